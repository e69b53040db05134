package ws

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/collabboard/collabboard/internal/domain"
	redisstore "github.com/collabboard/collabboard/internal/store/redis"
)

// Transport delivers frames to and from one client connection. Per-connection
// delivery is assumed reliable and ordered.
type Transport interface {
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, data []byte) error
}

// Session is one client's subscription handle. It joins and leaves board
// interest sets, replays missed events on join, forwards live events, and
// relays ephemeral chat and presence traffic. A session may be active on
// several boards at once; disconnect releases every subscription and
// presence entry it holds.
type Session struct {
	hub       *Hub
	transport Transport
	userID    uuid.UUID
	userName  string

	out    chan []byte
	boards map[uuid.UUID]*boardSub
}

// boardSub is one live board subscription.
type boardSub struct {
	cancel  context.CancelFunc
	done    chan struct{}
	lastSeq int64 // highest delivered sequence, owned by the forwarder
}

const outboundBuffer = 256

func NewSession(hub *Hub, transport Transport, userID uuid.UUID, userName string) *Session {
	return &Session{
		hub:       hub,
		transport: transport,
		userID:    userID,
		userName:  userName,
		out:       make(chan []byte, outboundBuffer),
		boards:    make(map[uuid.UUID]*boardSub),
	}
}

// Run processes the connection until ctx ends or the transport fails, then
// releases every board the session was active on.
func (s *Session) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for {
			select {
			case <-ctx.Done():
				return
			case frame := <-s.out:
				if err := s.transport.Write(ctx, frame); err != nil {
					log.Debug().Err(err).Msg("session: write")
					cancel()
					return
				}
			}
		}
	}()

	for {
		raw, err := s.transport.Read(ctx)
		if err != nil {
			break
		}
		s.dispatch(ctx, raw)
	}

	cancel()
	<-writerDone
	s.teardown()
}

func (s *Session) dispatch(ctx context.Context, raw []byte) {
	var frame Frame
	if err := json.Unmarshal(raw, &frame); err != nil {
		s.sendError("invalid frame", "bad_request")
		return
	}

	switch frame.Type {
	case FrameJoinBoard:
		var p JoinBoardPayload
		if err := json.Unmarshal(frame.Payload, &p); err != nil || p.BoardID == uuid.Nil {
			s.sendError("invalid payload", "bad_request")
			return
		}
		s.handleJoin(ctx, p)
	case FrameLeaveBoard:
		var p LeaveBoardPayload
		if err := json.Unmarshal(frame.Payload, &p); err != nil || p.BoardID == uuid.Nil {
			s.sendError("invalid payload", "bad_request")
			return
		}
		s.handleLeave(ctx, p.BoardID)
	case FrameSendChat:
		var p SendChatPayload
		if err := json.Unmarshal(frame.Payload, &p); err != nil || p.BoardID == uuid.Nil {
			s.sendError("invalid payload", "bad_request")
			return
		}
		s.handleChat(ctx, p)
	case FrameHeartbeat:
		var p HeartbeatPayload
		if err := json.Unmarshal(frame.Payload, &p); err != nil || p.BoardID == uuid.Nil {
			s.sendError("invalid payload", "bad_request")
			return
		}
		s.handleHeartbeat(ctx, p.BoardID)
	default:
		s.sendError("unknown frame type", "bad_request")
	}
}

// handleJoin subscribes the session to a board, registers presence, replays
// missed events when a cursor is given, and only then starts live
// forwarding. Live events arriving during replay wait in the subscription
// buffer; the forwarder flushes them afterwards and drops any sequence
// already covered by the replay batch, so the client sees one ascending,
// duplicate-free stream across the join boundary. A join that fails or times
// out part-way unwinds the subscription and presence entry.
func (s *Session) handleJoin(ctx context.Context, p JoinBoardPayload) {
	if _, joined := s.boards[p.BoardID]; joined {
		return
	}

	jctx, jcancel := context.WithTimeout(ctx, s.hub.joinTimeout)
	defer jcancel()

	ok, err := s.hub.access.HasBoardAccess(jctx, s.userID, p.BoardID)
	if err != nil {
		log.Error().Err(err).Str("board_id", p.BoardID.String()).Msg("session: access check")
		s.sendError("failed to join board", "internal")
		return
	}
	if !ok {
		s.sendError("no access to this board", "forbidden")
		return
	}

	// Subscribe before the replay query so no event committed after the
	// cursor can fall between replay and live delivery.
	bctx, bcancel := context.WithCancel(ctx)
	msgs, cleanup, err := s.hub.bus.Subscribe(bctx, redisstore.BoardChannel(p.BoardID))
	if err != nil {
		bcancel()
		log.Error().Err(err).Str("board_id", p.BoardID.String()).Msg("session: subscribe")
		s.sendError("failed to join board", "internal")
		return
	}

	sub := &boardSub{done: make(chan struct{})}
	sub.cancel = func() {
		cleanup()
		bcancel()
	}

	if p.LastEventID != nil {
		sub.lastSeq = *p.LastEventID
		events, listErr := s.hub.events.ListAfter(jctx, p.BoardID, *p.LastEventID, domain.ReplayLimit)
		if listErr != nil {
			sub.cancel()
			log.Error().Err(listErr).Str("board_id", p.BoardID.String()).Msg("session: replay")
			s.sendError("failed to join board", "internal")
			return
		}
		for _, ev := range events {
			frame, encErr := EncodeEvent(ev)
			if encErr != nil {
				log.Error().Err(encErr).Int64("sequence", ev.Sequence).Msg("session: encode replay event")
				continue
			}
			// A replay frame is never dropped: wait for writer capacity,
			// and fail the join if the client cannot drain within the
			// join window. lastSeq only advances past queued frames.
			if sendErr := s.sendBlocking(jctx, frame); sendErr != nil {
				sub.cancel()
				log.Warn().Err(sendErr).
					Str("board_id", p.BoardID.String()).
					Int64("sequence", ev.Sequence).
					Msg("session: replay send stalled")
				s.sendError("failed to join board", "internal")
				return
			}
			sub.lastSeq = ev.Sequence
		}
		log.Info().
			Str("board_id", p.BoardID.String()).
			Str("user_id", s.userID.String()).
			Int("missed_events", len(events)).
			Msg("replayed missed events")
	}

	s.boards[p.BoardID] = sub
	go s.forward(bctx, sub, msgs)

	// Presence is observational: failures are logged, never fatal to join.
	s.registerPresence(jctx, p.BoardID)

	log.Info().Str("board_id", p.BoardID.String()).Str("user_id", s.userID.String()).Msg("user joined board")
}

// forward streams live frames to the client. Board events are deduplicated
// by sequence, so at-least-once bus delivery and the replay overlap both
// collapse to exactly-once, in-order delivery per session.
func (s *Session) forward(ctx context.Context, sub *boardSub, msgs <-chan []byte) {
	defer close(sub.done)
	for {
		select {
		case <-ctx.Done():
			return
		case raw, ok := <-msgs:
			if !ok {
				return
			}
			if seq, isEvent := EventSequence(raw); isEvent {
				if seq <= sub.lastSeq {
					continue
				}
				sub.lastSeq = seq
			}
			s.send(raw)
		}
	}
}

func (s *Session) handleLeave(ctx context.Context, boardID uuid.UUID) {
	sub, joined := s.boards[boardID]
	if !joined {
		return
	}
	delete(s.boards, boardID)
	sub.cancel()

	s.removePresence(ctx, boardID)

	log.Info().Str("board_id", boardID.String()).Str("user_id", s.userID.String()).Msg("user left board")
}

// handleChat broadcasts an ephemeral message. No sequence number, no log
// entry, no replay: recipients not live-subscribed at send time miss it.
func (s *Session) handleChat(ctx context.Context, p SendChatPayload) {
	msg := strings.TrimSpace(p.Message)
	if msg == "" || len(msg) > domain.MaxChatMessageLen {
		s.sendError("invalid message", "bad_request")
		return
	}

	if _, joined := s.boards[p.BoardID]; !joined {
		s.sendError("not joined to this board", "forbidden")
		return
	}

	frame, err := EncodeChat(&domain.ChatMessage{
		ID:        uuid.New(),
		BoardID:   p.BoardID,
		UserID:    s.userID,
		UserName:  s.userName,
		Message:   msg,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		log.Error().Err(err).Msg("session: encode chat")
		return
	}

	if err := s.hub.bus.Publish(ctx, redisstore.BoardChannel(p.BoardID), frame); err != nil {
		log.Warn().Err(err).Str("board_id", p.BoardID.String()).Msg("session: chat publish")
		s.sendError("failed to send message", "internal")
	}
}

func (s *Session) handleHeartbeat(ctx context.Context, boardID uuid.UUID) {
	if _, joined := s.boards[boardID]; !joined {
		return
	}
	if err := s.hub.presence.Heartbeat(ctx, boardID, s.userID); err != nil {
		log.Warn().Err(err).Str("board_id", boardID.String()).Msg("session: presence heartbeat")
	}
}

// registerPresence adds the viewer and broadcasts the new snapshot through
// the bus so sessions on every process see the update.
func (s *Session) registerPresence(ctx context.Context, boardID uuid.UUID) {
	if err := s.hub.presence.Join(ctx, boardID, s.userID, s.userName); err != nil {
		log.Warn().Err(err).Str("board_id", boardID.String()).Msg("session: presence join")
		return
	}
	s.broadcastPresence(ctx, boardID)
}

func (s *Session) removePresence(ctx context.Context, boardID uuid.UUID) {
	if err := s.hub.presence.Leave(ctx, boardID, s.userID); err != nil {
		log.Warn().Err(err).Str("board_id", boardID.String()).Msg("session: presence leave")
		return
	}
	s.broadcastPresence(ctx, boardID)
}

func (s *Session) broadcastPresence(ctx context.Context, boardID uuid.UUID) {
	users, err := s.hub.presence.Snapshot(ctx, boardID)
	if err != nil {
		log.Warn().Err(err).Str("board_id", boardID.String()).Msg("session: presence snapshot")
		return
	}

	frame, err := EncodePresence(boardID, users)
	if err != nil {
		log.Error().Err(err).Msg("session: encode presence")
		return
	}

	if err := s.hub.bus.Publish(ctx, redisstore.BoardChannel(boardID), frame); err != nil {
		log.Warn().Err(err).Str("board_id", boardID.String()).Msg("session: presence publish")
	}
}

// teardown releases every board subscription and presence entry the session
// holds. The session context is already done, so presence cleanup runs on a
// short background deadline.
func (s *Session) teardown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for boardID, sub := range s.boards {
		delete(s.boards, boardID)
		sub.cancel()
		s.removePresence(ctx, boardID)
	}
}

// send queues a frame for the writer. A client that cannot drain its buffer
// loses the frame; board events remain recoverable via replay.
func (s *Session) send(frame []byte) {
	select {
	case s.out <- frame:
	default:
		log.Warn().Str("user_id", s.userID.String()).Msg("session: outbound buffer full, dropping frame")
	}
}

// sendBlocking queues a frame, waiting for writer capacity until ctx ends.
// Replay delivery uses this path: a dropped replay frame is a permanent
// gap for the connection, while dropped live frames remain replayable.
func (s *Session) sendBlocking(ctx context.Context, frame []byte) error {
	select {
	case s.out <- frame:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) sendError(message, code string) {
	frame, err := EncodeError(message, code)
	if err != nil {
		return
	}
	s.send(frame)
}
