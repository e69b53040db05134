package v1

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/collabboard/collabboard/internal/auth"
	"github.com/collabboard/collabboard/internal/domain"
)

type RegisterInput struct {
	Body struct {
		Email    string `json:"email" format:"email" doc:"User email"`
		Name     string `json:"name" minLength:"1" maxLength:"200" doc:"Display name"`
		Password string `json:"password" minLength:"8" maxLength:"72" doc:"Password"`
	}
}

type LoginInput struct {
	Body struct {
		Email    string `json:"email" format:"email" doc:"User email"`
		Password string `json:"password" minLength:"1" doc:"Password"`
	}
}

type RefreshInput struct {
	Body struct {
		RefreshToken string `json:"refreshToken" minLength:"1" doc:"Refresh token"`
	}
}

type AuthOutput struct {
	Body struct {
		User   *domain.User    `json:"user"`
		Tokens *auth.TokenPair `json:"tokens"`
	}
}

type TokensOutput struct {
	Body *auth.TokenPair
}

func RegisterAuthRoutes(api huma.API, svc AuthService) {
	huma.Register(api, huma.Operation{
		OperationID: "register",
		Method:      http.MethodPost,
		Path:        "/auth/register",
		Summary:     "Register a new user",
		Tags:        []string{"Auth"},
	}, func(ctx context.Context, input *RegisterInput) (*AuthOutput, error) {
		user, tokens, err := svc.Register(ctx, input.Body.Email, input.Body.Name, input.Body.Password)
		if err != nil {
			return nil, mapDomainError(err, "register")
		}

		out := &AuthOutput{}
		out.Body.User = user
		out.Body.Tokens = tokens
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "login",
		Method:      http.MethodPost,
		Path:        "/auth/login",
		Summary:     "Log in with email and password",
		Tags:        []string{"Auth"},
	}, func(ctx context.Context, input *LoginInput) (*AuthOutput, error) {
		user, tokens, err := svc.Login(ctx, input.Body.Email, input.Body.Password)
		if err != nil {
			return nil, mapDomainError(err, "login")
		}

		out := &AuthOutput{}
		out.Body.User = user
		out.Body.Tokens = tokens
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "refresh",
		Method:      http.MethodPost,
		Path:        "/auth/refresh",
		Summary:     "Exchange a refresh token for a new token pair",
		Tags:        []string{"Auth"},
	}, func(ctx context.Context, input *RefreshInput) (*TokensOutput, error) {
		tokens, err := svc.Refresh(ctx, input.Body.RefreshToken)
		if err != nil {
			return nil, mapDomainError(err, "refresh tokens")
		}

		return &TokensOutput{Body: tokens}, nil
	})
}
