package ws

import (
	"context"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/rs/zerolog/log"

	"github.com/collabboard/collabboard/internal/domain"
	"github.com/collabboard/collabboard/internal/server/middleware"
)

// Bus is the cross-process broadcast medium sessions subscribe through.
type Bus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, func(), error)
}

// Hub accepts WebSocket connections and runs one Session per client. All
// collaborators are injected; the hub owns no global state.
type Hub struct {
	bus         Bus
	events      domain.EventLog
	presence    domain.PresenceTracker
	access      domain.AccessChecker
	joinTimeout time.Duration
}

const defaultJoinTimeout = 10 * time.Second

func NewHub(bus Bus, events domain.EventLog, presence domain.PresenceTracker, access domain.AccessChecker, joinTimeout time.Duration) *Hub {
	if joinTimeout <= 0 {
		joinTimeout = defaultJoinTimeout
	}
	return &Hub{
		bus:         bus,
		events:      events,
		presence:    presence,
		access:      access,
		joinTimeout: joinTimeout,
	}
}

// Serve upgrades the request and runs the session until the client
// disconnects. Authentication happened in middleware; an unauthenticated
// request never reaches this handler.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "missing user", http.StatusUnauthorized)
		return
	}
	userName, _ := middleware.UserNameFromContext(r.Context())

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("websocket accept")
		return
	}
	defer conn.CloseNow()

	log.Info().Str("user_id", userID.String()).Msg("client connected")

	sess := NewSession(h, &wsTransport{conn: conn}, userID, userName)
	sess.Run(r.Context())

	log.Info().Str("user_id", userID.String()).Msg("client disconnected")

	_ = conn.Close(websocket.StatusNormalClosure, "connection closed")
}

// wsTransport adapts a websocket connection to the session's transport.
type wsTransport struct {
	conn *websocket.Conn
}

func (t *wsTransport) Read(ctx context.Context) ([]byte, error) {
	_, data, err := t.conn.Read(ctx)
	return data, err
}

func (t *wsTransport) Write(ctx context.Context, data []byte) error {
	return t.conn.Write(ctx, websocket.MessageText, data)
}
