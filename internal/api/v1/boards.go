package v1

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/collabboard/collabboard/internal/domain"
	"github.com/collabboard/collabboard/internal/server/middleware"
)

type CreateWorkspaceInput struct {
	Body struct {
		Name string `json:"name" minLength:"1" maxLength:"200" doc:"Workspace name"`
	}
}

type WorkspaceOutput struct {
	Body *domain.Workspace
}

type ListWorkspacesOutput struct {
	Body struct {
		Workspaces []*domain.Workspace `json:"workspaces"`
	}
}

type AddWorkspaceMemberInput struct {
	WorkspaceID uuid.UUID `path:"workspaceID" doc:"Workspace ID"`
	Body        struct {
		UserID uuid.UUID   `json:"userId" doc:"User to add"`
		Role   domain.Role `json:"role" enum:"OWNER,ADMIN,MEMBER" doc:"Membership role"`
	}
}

type CreateBoardInput struct {
	WorkspaceID uuid.UUID `path:"workspaceID" doc:"Workspace ID"`
	Body        struct {
		Name        string `json:"name" minLength:"1" maxLength:"200" doc:"Board name"`
		Description string `json:"description,omitempty" doc:"Board description"`
	}
}

type BoardOutput struct {
	Body *domain.Board
}

type ListBoardsInput struct {
	WorkspaceID uuid.UUID `path:"workspaceID" doc:"Workspace ID"`
}

type ListBoardsOutput struct {
	Body struct {
		Boards []*domain.Board `json:"boards"`
	}
}

type GetBoardInput struct {
	ID uuid.UUID `path:"id" doc:"Board ID"`
}

// BoardSnapshot is the full board state a client renders before switching
// to the live event stream.
type BoardSnapshot struct {
	Board   *domain.Board    `json:"board"`
	Columns []*domain.Column `json:"columns"`
	Cards   []*domain.Card   `json:"cards"`
}

type GetBoardOutput struct {
	Body *BoardSnapshot
}

func RegisterBoardRoutes(api huma.API, store DataStore) {
	huma.Register(api, huma.Operation{
		OperationID: "create-workspace",
		Method:      http.MethodPost,
		Path:        "/workspaces",
		Summary:     "Create a workspace",
		Tags:        []string{"Workspaces"},
	}, func(ctx context.Context, input *CreateWorkspaceInput) (*WorkspaceOutput, error) {
		userID, ok := middleware.UserIDFromContext(ctx)
		if !ok {
			return nil, huma.Error401Unauthorized("missing user context")
		}

		ws := &domain.Workspace{
			ID:        uuid.New(),
			Name:      input.Body.Name,
			CreatedBy: userID,
		}
		if err := store.Workspaces().Create(ctx, ws); err != nil {
			return nil, mapDomainError(err, "create workspace")
		}

		member := &domain.WorkspaceMember{
			ID:          uuid.New(),
			WorkspaceID: ws.ID,
			UserID:      userID,
			Role:        domain.RoleOwner,
			JoinedAt:    time.Now(),
		}
		if err := store.Workspaces().AddMember(ctx, member); err != nil {
			return nil, mapDomainError(err, "add workspace owner")
		}

		return &WorkspaceOutput{Body: ws}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-workspaces",
		Method:      http.MethodGet,
		Path:        "/workspaces",
		Summary:     "List workspaces the caller belongs to",
		Tags:        []string{"Workspaces"},
	}, func(ctx context.Context, _ *struct{}) (*ListWorkspacesOutput, error) {
		userID, ok := middleware.UserIDFromContext(ctx)
		if !ok {
			return nil, huma.Error401Unauthorized("missing user context")
		}

		workspaces, err := store.Workspaces().ListByUser(ctx, userID)
		if err != nil {
			return nil, mapDomainError(err, "list workspaces")
		}

		out := &ListWorkspacesOutput{}
		out.Body.Workspaces = workspaces
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "add-workspace-member",
		Method:      http.MethodPost,
		Path:        "/workspaces/{workspaceID}/members",
		Summary:     "Add a member to a workspace",
		Tags:        []string{"Workspaces"},
	}, func(ctx context.Context, input *AddWorkspaceMemberInput) (*struct{}, error) {
		userID, ok := middleware.UserIDFromContext(ctx)
		if !ok {
			return nil, huma.Error401Unauthorized("missing user context")
		}

		role, err := store.Workspaces().RoleOf(ctx, input.WorkspaceID, userID)
		if err != nil {
			return nil, mapDomainError(err, "check workspace role")
		}
		if role != domain.RoleOwner && role != domain.RoleAdmin {
			return nil, huma.Error403Forbidden("only owners and admins can add members")
		}

		member := &domain.WorkspaceMember{
			ID:          uuid.New(),
			WorkspaceID: input.WorkspaceID,
			UserID:      input.Body.UserID,
			Role:        input.Body.Role,
			JoinedAt:    time.Now(),
		}
		if err := store.Workspaces().AddMember(ctx, member); err != nil {
			return nil, mapDomainError(err, "add workspace member")
		}

		return nil, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "create-board",
		Method:      http.MethodPost,
		Path:        "/workspaces/{workspaceID}/boards",
		Summary:     "Create a board",
		Tags:        []string{"Boards"},
	}, func(ctx context.Context, input *CreateBoardInput) (*BoardOutput, error) {
		userID, ok := middleware.UserIDFromContext(ctx)
		if !ok {
			return nil, huma.Error401Unauthorized("missing user context")
		}

		if _, err := store.Workspaces().RoleOf(ctx, input.WorkspaceID, userID); err != nil {
			return nil, mapDomainError(err, "check workspace membership")
		}

		board := &domain.Board{
			ID:          uuid.New(),
			WorkspaceID: input.WorkspaceID,
			Name:        input.Body.Name,
			Description: input.Body.Description,
			CreatedBy:   userID,
		}
		if err := store.Boards().Create(ctx, board); err != nil {
			return nil, mapDomainError(err, "create board")
		}

		return &BoardOutput{Body: board}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-boards",
		Method:      http.MethodGet,
		Path:        "/workspaces/{workspaceID}/boards",
		Summary:     "List boards in a workspace",
		Tags:        []string{"Boards"},
	}, func(ctx context.Context, input *ListBoardsInput) (*ListBoardsOutput, error) {
		userID, ok := middleware.UserIDFromContext(ctx)
		if !ok {
			return nil, huma.Error401Unauthorized("missing user context")
		}

		if _, err := store.Workspaces().RoleOf(ctx, input.WorkspaceID, userID); err != nil {
			return nil, mapDomainError(err, "check workspace membership")
		}

		boards, err := store.Boards().ListByWorkspace(ctx, input.WorkspaceID)
		if err != nil {
			return nil, mapDomainError(err, "list boards")
		}

		out := &ListBoardsOutput{}
		out.Body.Boards = boards
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-board",
		Method:      http.MethodGet,
		Path:        "/boards/{id}",
		Summary:     "Get a board snapshot with its columns and cards",
		Tags:        []string{"Boards"},
	}, func(ctx context.Context, input *GetBoardInput) (*GetBoardOutput, error) {
		userID, ok := middleware.UserIDFromContext(ctx)
		if !ok {
			return nil, huma.Error401Unauthorized("missing user context")
		}

		allowed, err := store.Access().HasBoardAccess(ctx, userID, input.ID)
		if err != nil {
			return nil, mapDomainError(err, "check board access")
		}
		if !allowed {
			return nil, huma.Error403Forbidden("no access to this board")
		}

		board, err := store.Boards().GetByID(ctx, input.ID)
		if err != nil {
			return nil, mapDomainError(err, "get board")
		}
		columns, err := store.Columns().ListByBoard(ctx, input.ID)
		if err != nil {
			return nil, mapDomainError(err, "list columns")
		}
		cards, err := store.Cards().ListByBoard(ctx, input.ID)
		if err != nil {
			return nil, mapDomainError(err, "list cards")
		}

		return &GetBoardOutput{Body: &BoardSnapshot{
			Board:   board,
			Columns: columns,
			Cards:   cards,
		}}, nil
	})
}
