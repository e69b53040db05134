package v1

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/collabboard/collabboard/internal/domain"
	"github.com/collabboard/collabboard/internal/server/middleware"
)

type ListEventsInput struct {
	BoardID uuid.UUID `path:"boardID" doc:"Board ID"`
	After   *int64    `query:"after" minimum:"0" doc:"Return events with a sequence strictly greater than this, ascending"`
	Limit   *int      `query:"limit" minimum:"1" maximum:"1000" doc:"Maximum number of events to return. Defaults to 1000 with a cursor; the recent view without a cursor returns at most 100"`
}

type ListEventsOutput struct {
	Body struct {
		Events []*domain.BoardEvent `json:"events"`
	}
}

// RegisterEventRoutes exposes the board event log over HTTP. With `after`
// the response is an ascending replay slice; without it the most recent
// events come back newest first.
func RegisterEventRoutes(api huma.API, store DataStore) {
	huma.Register(api, huma.Operation{
		OperationID: "list-board-events",
		Method:      http.MethodGet,
		Path:        "/boards/{boardID}/events",
		Summary:     "List board events",
		Tags:        []string{"Events"},
	}, func(ctx context.Context, input *ListEventsInput) (*ListEventsOutput, error) {
		userID, ok := middleware.UserIDFromContext(ctx)
		if !ok {
			return nil, huma.Error401Unauthorized("missing user context")
		}

		allowed, err := store.Access().HasBoardAccess(ctx, userID, input.BoardID)
		if err != nil {
			return nil, mapDomainError(err, "check board access")
		}
		if !allowed {
			return nil, huma.Error403Forbidden("no access to this board")
		}

		var events []*domain.BoardEvent
		if input.After != nil {
			limit := domain.ReplayLimit
			if input.Limit != nil {
				limit = *input.Limit
			}
			events, err = store.Events().ListAfter(ctx, input.BoardID, *input.After, limit)
		} else {
			// The recent view is capped below the replay limit regardless
			// of the requested size.
			limit := domain.RecentLimit
			if input.Limit != nil && *input.Limit < domain.RecentLimit {
				limit = *input.Limit
			}
			events, err = store.Events().ListRecent(ctx, input.BoardID, limit)
		}
		if err != nil {
			return nil, mapDomainError(err, "list board events")
		}

		out := &ListEventsOutput{}
		out.Body.Events = events
		return out, nil
	})
}
