package server

import (
	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5"

	v1 "github.com/collabboard/collabboard/internal/api/v1"
	"github.com/collabboard/collabboard/internal/api/ws"
	"github.com/collabboard/collabboard/internal/auth"
	"github.com/collabboard/collabboard/internal/boardsync"
	"github.com/collabboard/collabboard/internal/store/postgres"
)

func registerAuthRoutes(api huma.API, authSvc *auth.Service) {
	v1.RegisterAuthRoutes(api, authSvc)
}

func registerAPIRoutes(api huma.API, store *postgres.Store, engine *boardsync.Engine) {
	v1.RegisterBoardRoutes(api, store)
	v1.RegisterColumnRoutes(api, engine)
	v1.RegisterCardRoutes(api, engine)
	v1.RegisterEventRoutes(api, store)
}

func registerWSRoutes(r chi.Router, hub *ws.Hub) {
	r.Get("/", hub.Serve)
}
