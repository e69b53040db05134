package v1

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/collabboard/collabboard/internal/domain"
	"github.com/collabboard/collabboard/internal/server/middleware"
)

type CreateColumnInput struct {
	BoardID uuid.UUID `path:"boardID" doc:"Board ID"`
	Body    struct {
		Name string `json:"name" minLength:"1" maxLength:"200" doc:"Column name"`
	}
}

type ColumnOutput struct {
	Body *domain.Column
}

type RenameColumnInput struct {
	ID   uuid.UUID `path:"id" doc:"Column ID"`
	Body struct {
		Name string `json:"name" minLength:"1" maxLength:"200" doc:"New column name"`
	}
}

type DeleteColumnInput struct {
	ID uuid.UUID `path:"id" doc:"Column ID"`
}

func RegisterColumnRoutes(api huma.API, engine SyncEngine) {
	huma.Register(api, huma.Operation{
		OperationID: "create-column",
		Method:      http.MethodPost,
		Path:        "/boards/{boardID}/columns",
		Summary:     "Create a column",
		Tags:        []string{"Columns"},
	}, func(ctx context.Context, input *CreateColumnInput) (*ColumnOutput, error) {
		userID, ok := middleware.UserIDFromContext(ctx)
		if !ok {
			return nil, huma.Error401Unauthorized("missing user context")
		}

		col := &domain.Column{
			BoardID:  input.BoardID,
			Name:     input.Body.Name,
			Position: -1, // end of board
		}

		created, err := engine.CreateColumn(ctx, userID, col)
		if err != nil {
			return nil, mapDomainError(err, "create column")
		}

		return &ColumnOutput{Body: created}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "rename-column",
		Method:      http.MethodPatch,
		Path:        "/columns/{id}",
		Summary:     "Rename a column",
		Tags:        []string{"Columns"},
	}, func(ctx context.Context, input *RenameColumnInput) (*ColumnOutput, error) {
		userID, ok := middleware.UserIDFromContext(ctx)
		if !ok {
			return nil, huma.Error401Unauthorized("missing user context")
		}

		col, err := engine.RenameColumn(ctx, userID, input.ID, input.Body.Name)
		if err != nil {
			return nil, mapDomainError(err, "rename column")
		}

		return &ColumnOutput{Body: col}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-column",
		Method:      http.MethodDelete,
		Path:        "/columns/{id}",
		Summary:     "Delete a column and its cards",
		Tags:        []string{"Columns"},
	}, func(ctx context.Context, input *DeleteColumnInput) (*struct{}, error) {
		userID, ok := middleware.UserIDFromContext(ctx)
		if !ok {
			return nil, huma.Error401Unauthorized("missing user context")
		}

		if err := engine.DeleteColumn(ctx, userID, input.ID); err != nil {
			return nil, mapDomainError(err, "delete column")
		}

		return nil, nil
	})
}
