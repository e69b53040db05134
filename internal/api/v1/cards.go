package v1

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/collabboard/collabboard/internal/domain"
	"github.com/collabboard/collabboard/internal/server/middleware"
)

type CreateCardInput struct {
	BoardID uuid.UUID `path:"boardID" doc:"Board ID"`
	Body    struct {
		ColumnID    uuid.UUID `json:"columnId" doc:"Column to place the card in"`
		Title       string    `json:"title" minLength:"1" maxLength:"500" doc:"Card title"`
		Description string    `json:"description,omitempty" doc:"Card description"`
		Tags        []string  `json:"tags,omitempty" doc:"Card tags"`
	}
}

type CardOutput struct {
	Body *domain.Card
}

type UpdateCardInput struct {
	ID   uuid.UUID `path:"id" doc:"Card ID"`
	Body struct {
		Version     int       `json:"version" minimum:"0" doc:"Expected card version"`
		Title       *string   `json:"title,omitempty" maxLength:"500" doc:"New title"`
		Description *string   `json:"description,omitempty" doc:"New description"`
		Tags        *[]string `json:"tags,omitempty" doc:"New tags"`
	}
}

type MoveCardInput struct {
	ID   uuid.UUID `path:"id" doc:"Card ID"`
	Body struct {
		Version  int       `json:"version" minimum:"0" doc:"Expected card version"`
		ColumnID uuid.UUID `json:"columnId" doc:"Destination column"`
		Position int       `json:"position" minimum:"0" doc:"Position within the column"`
	}
}

type DeleteCardInput struct {
	ID uuid.UUID `path:"id" doc:"Card ID"`
}

func RegisterCardRoutes(api huma.API, engine SyncEngine) {
	huma.Register(api, huma.Operation{
		OperationID: "create-card",
		Method:      http.MethodPost,
		Path:        "/boards/{boardID}/cards",
		Summary:     "Create a card",
		Tags:        []string{"Cards"},
	}, func(ctx context.Context, input *CreateCardInput) (*CardOutput, error) {
		userID, ok := middleware.UserIDFromContext(ctx)
		if !ok {
			return nil, huma.Error401Unauthorized("missing user context")
		}

		card := &domain.Card{
			BoardID:     input.BoardID,
			ColumnID:    input.Body.ColumnID,
			Title:       input.Body.Title,
			Description: input.Body.Description,
			Tags:        input.Body.Tags,
			Position:    -1, // end of column
		}

		created, err := engine.CreateCard(ctx, userID, card)
		if err != nil {
			return nil, mapDomainError(err, "create card")
		}

		return &CardOutput{Body: created}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-card",
		Method:      http.MethodPatch,
		Path:        "/cards/{id}",
		Summary:     "Update card content (optimistic concurrency)",
		Tags:        []string{"Cards"},
	}, func(ctx context.Context, input *UpdateCardInput) (*CardOutput, error) {
		userID, ok := middleware.UserIDFromContext(ctx)
		if !ok {
			return nil, huma.Error401Unauthorized("missing user context")
		}

		changes := domain.CardChanges{
			Title:       input.Body.Title,
			Description: input.Body.Description,
			Tags:        input.Body.Tags,
		}
		if changes.Empty() {
			return nil, huma.Error422UnprocessableEntity("no changes given")
		}

		card, err := engine.UpdateCard(ctx, userID, input.ID, input.Body.Version, changes)
		if err != nil {
			return nil, mapDomainError(err, "update card")
		}

		return &CardOutput{Body: card}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "move-card",
		Method:      http.MethodPost,
		Path:        "/cards/{id}/move",
		Summary:     "Move a card (optimistic concurrency)",
		Tags:        []string{"Cards"},
	}, func(ctx context.Context, input *MoveCardInput) (*CardOutput, error) {
		userID, ok := middleware.UserIDFromContext(ctx)
		if !ok {
			return nil, huma.Error401Unauthorized("missing user context")
		}

		card, err := engine.MoveCard(ctx, userID, input.ID, input.Body.Version, input.Body.ColumnID, input.Body.Position)
		if err != nil {
			return nil, mapDomainError(err, "move card")
		}

		return &CardOutput{Body: card}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-card",
		Method:      http.MethodDelete,
		Path:        "/cards/{id}",
		Summary:     "Delete a card",
		Tags:        []string{"Cards"},
	}, func(ctx context.Context, input *DeleteCardInput) (*struct{}, error) {
		userID, ok := middleware.UserIDFromContext(ctx)
		if !ok {
			return nil, huma.Error401Unauthorized("missing user context")
		}

		if err := engine.DeleteCard(ctx, userID, input.ID); err != nil {
			return nil, mapDomainError(err, "delete card")
		}

		return nil, nil
	})
}
