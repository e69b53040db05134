package ws_test

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/collabboard/collabboard/internal/api/ws"
	"github.com/collabboard/collabboard/internal/domain"
	redisstore "github.com/collabboard/collabboard/internal/store/redis"
)

// scriptTransport feeds scripted inbound frames to the session and captures
// everything the session writes.
type scriptTransport struct {
	in  chan []byte
	out chan []byte
}

func newScriptTransport() *scriptTransport {
	return &scriptTransport{
		in:  make(chan []byte, 16),
		out: make(chan []byte, 256),
	}
}

func (t *scriptTransport) Read(ctx context.Context) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case raw, ok := <-t.in:
		if !ok {
			return nil, io.EOF
		}
		return raw, nil
	}
}

func (t *scriptTransport) Write(_ context.Context, data []byte) error {
	t.out <- data
	return nil
}

// stallTransport holds every write until gate is closed, simulating a
// client that stops reading while the server is sending.
type stallTransport struct {
	*scriptTransport
	gate chan struct{}
}

func newStallTransport() *stallTransport {
	return &stallTransport{
		scriptTransport: newScriptTransport(),
		gate:            make(chan struct{}),
	}
}

func (t *stallTransport) Write(ctx context.Context, data []byte) error {
	select {
	case <-t.gate:
	case <-ctx.Done():
		return ctx.Err()
	}
	return t.scriptTransport.Write(ctx, data)
}

func (t *scriptTransport) sendFrame(tb testing.TB, frameType string, payload any) {
	tb.Helper()

	raw, err := json.Marshal(payload)
	require.NoError(tb, err)
	frame, err := json.Marshal(ws.Frame{Type: frameType, Payload: raw})
	require.NoError(tb, err)
	t.in <- frame
}

func (t *scriptTransport) nextFrame(tb testing.TB) ws.Frame {
	tb.Helper()

	select {
	case raw := <-t.out:
		var frame ws.Frame
		require.NoError(tb, json.Unmarshal(raw, &frame))
		return frame
	case <-time.After(2 * time.Second):
		tb.Fatal("timed out waiting for outbound frame")
		return ws.Frame{}
	}
}

// memBus is an in-process bus with the same delivery contract as the Redis
// one: subscription registered before Subscribe returns, buffered delivery.
type memBus struct {
	mu         sync.Mutex
	subs       map[string][]chan []byte
	published  map[string][][]byte
	subscribes int
}

func newMemBus() *memBus {
	return &memBus{
		subs:      map[string][]chan []byte{},
		published: map[string][][]byte{},
	}
}

func (b *memBus) Publish(_ context.Context, channel string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.published[channel] = append(b.published[channel], payload)
	for _, ch := range b.subs[channel] {
		select {
		case ch <- payload:
		default:
		}
	}
	return nil
}

func (b *memBus) Subscribe(ctx context.Context, channel string) (<-chan []byte, func(), error) {
	ch := make(chan []byte, 64)

	b.mu.Lock()
	b.subs[channel] = append(b.subs[channel], ch)
	b.subscribes++
	b.mu.Unlock()

	cleanup := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, c := range b.subs[channel] {
			if c == ch {
				b.subs[channel] = append(b.subs[channel][:i], b.subs[channel][i+1:]...)
				close(c)
				return
			}
		}
	}

	return ch, cleanup, nil
}

func (b *memBus) publishedOn(channel string) [][]byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([][]byte(nil), b.published[channel]...)
}

func (b *memBus) subscribeCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.subscribes
}

func (b *memBus) activeSubscribers(channel string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[channel])
}

// memEventLog is a fixed in-memory event log. onListAfter runs inside the
// replay query, which lets tests inject bus traffic that races the join.
type memEventLog struct {
	events      []*domain.BoardEvent
	onListAfter func()
}

func (l *memEventLog) Append(context.Context, uuid.UUID, domain.EventType, any, uuid.UUID) (*domain.BoardEvent, error) {
	panic("sessions never append")
}

func (l *memEventLog) ListAfter(_ context.Context, boardID uuid.UUID, afterSequence int64, limit int) ([]*domain.BoardEvent, error) {
	if l.onListAfter != nil {
		l.onListAfter()
	}

	var out []*domain.BoardEvent
	for _, ev := range l.events {
		if ev.BoardID == boardID && ev.Sequence > afterSequence {
			out = append(out, ev)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (l *memEventLog) ListRecent(context.Context, uuid.UUID, int) ([]*domain.BoardEvent, error) {
	return nil, nil
}

// memPresence records presence calls.
type memPresence struct {
	mu         sync.Mutex
	joins      map[uuid.UUID][]uuid.UUID // board -> users
	leaves     map[uuid.UUID][]uuid.UUID
	heartbeats map[uuid.UUID]int
}

func newMemPresence() *memPresence {
	return &memPresence{
		joins:      map[uuid.UUID][]uuid.UUID{},
		leaves:     map[uuid.UUID][]uuid.UUID{},
		heartbeats: map[uuid.UUID]int{},
	}
}

func (p *memPresence) Join(_ context.Context, boardID, userID uuid.UUID, _ string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.joins[boardID] = append(p.joins[boardID], userID)
	return nil
}

func (p *memPresence) Heartbeat(_ context.Context, boardID, _ uuid.UUID) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.heartbeats[boardID]++
	return nil
}

func (p *memPresence) Leave(_ context.Context, boardID, userID uuid.UUID) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.leaves[boardID] = append(p.leaves[boardID], userID)
	return nil
}

func (p *memPresence) Snapshot(context.Context, uuid.UUID) ([]*domain.PresenceEntry, error) {
	return []*domain.PresenceEntry{}, nil
}

func (p *memPresence) heartbeatCount(boardID uuid.UUID) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.heartbeats[boardID]
}

func (p *memPresence) joinedUsers(boardID uuid.UUID) []uuid.UUID {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]uuid.UUID(nil), p.joins[boardID]...)
}

func (p *memPresence) leftUsers(boardID uuid.UUID) []uuid.UUID {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]uuid.UUID(nil), p.leaves[boardID]...)
}

type allowAll struct{}

func (allowAll) HasBoardAccess(context.Context, uuid.UUID, uuid.UUID) (bool, error) {
	return true, nil
}

type denyAll struct{}

func (denyAll) HasBoardAccess(context.Context, uuid.UUID, uuid.UUID) (bool, error) {
	return false, nil
}

func mkEvent(tb testing.TB, boardID uuid.UUID, seq int64) *domain.BoardEvent {
	tb.Helper()

	payload, err := domain.MarshalPayload(domain.EventCardDeleted, domain.CardDeletedPayload{
		CardID:  uuid.New(),
		BoardID: boardID,
	})
	require.NoError(tb, err)

	return &domain.BoardEvent{
		ID:        uuid.New(),
		BoardID:   boardID,
		Sequence:  seq,
		Type:      domain.EventCardDeleted,
		Payload:   payload,
		ActorID:   uuid.New(),
		CreatedAt: time.Now(),
	}
}

func encodeEvent(tb testing.TB, ev *domain.BoardEvent) []byte {
	tb.Helper()

	frame, err := ws.EncodeEvent(ev)
	require.NoError(tb, err)
	return frame
}

type sessionFixture struct {
	transport *scriptTransport
	bus       *memBus
	log       *memEventLog
	presence  *memPresence
	userID    uuid.UUID
	done      chan struct{}
}

func runSession(t *testing.T, access domain.AccessChecker, eventLog *memEventLog) *sessionFixture {
	t.Helper()

	f := &sessionFixture{
		transport: newScriptTransport(),
		bus:       newMemBus(),
		log:       eventLog,
		presence:  newMemPresence(),
		userID:    uuid.New(),
		done:      make(chan struct{}),
	}

	hub := ws.NewHub(f.bus, eventLog, f.presence, access, time.Second)
	sess := ws.NewSession(hub, f.transport, f.userID, "Alice")

	go func() {
		defer close(f.done)
		sess.Run(context.Background())
	}()

	t.Cleanup(func() {
		select {
		case <-f.done:
		default:
			close(f.transport.in)
			<-f.done
		}
	})

	return f
}

// eventSeq asserts the frame is a board event and returns its sequence.
func eventSeq(tb testing.TB, frame ws.Frame) int64 {
	tb.Helper()

	raw, err := json.Marshal(frame)
	require.NoError(tb, err)
	seq, ok := ws.EventSequence(raw)
	require.True(tb, ok, "expected a board event frame, got %s", frame.Type)
	return seq
}

func TestSession_ReconnectReplaysMissedEventsThenGoesLive(t *testing.T) {
	t.Parallel()

	boardID := uuid.New()
	eventLog := &memEventLog{events: []*domain.BoardEvent{
		mkEvent(t, boardID, 11),
		mkEvent(t, boardID, 12),
		mkEvent(t, boardID, 13),
	}}
	f := runSession(t, allowAll{}, eventLog)

	last := int64(10)
	f.transport.sendFrame(t, ws.FrameJoinBoard, ws.JoinBoardPayload{BoardID: boardID, LastEventID: &last})

	// Missed events arrive first, ascending.
	for _, want := range []int64{11, 12, 13} {
		frame := f.transport.nextFrame(t)
		if frame.Type == ws.FramePresenceUpdate {
			frame = f.transport.nextFrame(t)
		}
		assert.Equal(t, want, eventSeq(t, frame))
	}

	// A live publish after the join flows straight through.
	require.NoError(t, f.bus.Publish(context.Background(), redisstore.BoardChannel(boardID), encodeEvent(t, mkEvent(t, boardID, 14))))

	for {
		frame := f.transport.nextFrame(t)
		if frame.Type == ws.FramePresenceUpdate {
			continue
		}
		assert.Equal(t, int64(14), eventSeq(t, frame))
		break
	}
}

func TestSession_EventPublishedDuringReplayDeliveredExactlyOnce(t *testing.T) {
	t.Parallel()

	boardID := uuid.New()
	eventLog := &memEventLog{events: []*domain.BoardEvent{
		mkEvent(t, boardID, 11),
		mkEvent(t, boardID, 12),
	}}
	f := runSession(t, allowAll{}, eventLog)

	// While the replay query runs, event 12 also arrives on the bus. The
	// subscription is already registered, so it lands in the buffer; the
	// forwarder must drop it because replay already covered sequence 12.
	eventLog.onListAfter = func() {
		_ = f.bus.Publish(context.Background(), redisstore.BoardChannel(boardID), encodeEvent(t, mkEvent(t, boardID, 12)))
	}

	last := int64(10)
	f.transport.sendFrame(t, ws.FrameJoinBoard, ws.JoinBoardPayload{BoardID: boardID, LastEventID: &last})

	// Publish a sentinel after join so we have a bounded frame stream.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, f.bus.Publish(context.Background(), redisstore.BoardChannel(boardID), encodeEvent(t, mkEvent(t, boardID, 13))))

	var got []int64
	for {
		frame := f.transport.nextFrame(t)
		if frame.Type == ws.FramePresenceUpdate {
			continue
		}
		seq := eventSeq(t, frame)
		got = append(got, seq)
		if seq == 13 {
			break
		}
	}

	// 11 and 12 from replay, 13 live; the buffered duplicate of 12 dropped.
	assert.Equal(t, []int64{11, 12, 13}, got)
}

func TestSession_ReplayWaitsForStalledWriterWithoutGaps(t *testing.T) {
	t.Parallel()

	// More history than the outbound buffer holds, so the replay loop
	// must wait for the writer instead of dropping frames.
	boardID := uuid.New()
	const total = 300
	events := make([]*domain.BoardEvent, 0, total)
	for i := 1; i <= total; i++ {
		events = append(events, mkEvent(t, boardID, int64(i)))
	}
	eventLog := &memEventLog{events: events}

	transport := newStallTransport()
	bus := newMemBus()
	presence := newMemPresence()
	hub := ws.NewHub(bus, eventLog, presence, allowAll{}, 5*time.Second)
	sess := ws.NewSession(hub, transport, uuid.New(), "Alice")

	done := make(chan struct{})
	go func() {
		defer close(done)
		sess.Run(context.Background())
	}()
	t.Cleanup(func() {
		select {
		case <-done:
		default:
			close(transport.in)
			<-done
		}
	})

	last := int64(0)
	transport.sendFrame(t, ws.FrameJoinBoard, ws.JoinBoardPayload{BoardID: boardID, LastEventID: &last})

	// Give the replay loop time to fill the buffer and park on the
	// stalled writer, then let the client catch up.
	time.Sleep(200 * time.Millisecond)
	close(transport.gate)

	var got []int64
	for len(got) < total {
		frame := transport.nextFrame(t)
		if frame.Type == ws.FramePresenceUpdate {
			continue
		}
		got = append(got, eventSeq(t, frame))
	}

	for i, seq := range got {
		require.Equal(t, int64(i+1), seq, "replayed stream must be gapless and ascending")
	}
}

func TestSession_ReplayStallBeyondJoinWindowFailsJoin(t *testing.T) {
	t.Parallel()

	boardID := uuid.New()
	const total = 300
	events := make([]*domain.BoardEvent, 0, total)
	for i := 1; i <= total; i++ {
		events = append(events, mkEvent(t, boardID, int64(i)))
	}
	eventLog := &memEventLog{events: events}

	transport := newStallTransport()
	bus := newMemBus()
	presence := newMemPresence()
	hub := ws.NewHub(bus, eventLog, presence, allowAll{}, 100*time.Millisecond)
	sess := ws.NewSession(hub, transport, uuid.New(), "Alice")

	done := make(chan struct{})
	go func() {
		defer close(done)
		sess.Run(context.Background())
	}()
	t.Cleanup(func() {
		select {
		case <-done:
		default:
			close(transport.in)
			<-done
		}
	})

	last := int64(0)
	transport.sendFrame(t, ws.FrameJoinBoard, ws.JoinBoardPayload{BoardID: boardID, LastEventID: &last})

	// The writer never drains: once the join window lapses the join is
	// unwound, releasing the subscription without registering presence.
	require.Eventually(t, func() bool {
		return bus.subscribeCount() == 1 &&
			bus.activeSubscribers(redisstore.BoardChannel(boardID)) == 0
	}, 2*time.Second, 10*time.Millisecond)

	assert.Empty(t, presence.joinedUsers(boardID))
}

func TestSession_JoinWithoutCursorSkipsReplay(t *testing.T) {
	t.Parallel()

	boardID := uuid.New()
	eventLog := &memEventLog{events: []*domain.BoardEvent{
		mkEvent(t, boardID, 1),
		mkEvent(t, boardID, 2),
	}}
	f := runSession(t, allowAll{}, eventLog)

	f.transport.sendFrame(t, ws.FrameJoinBoard, ws.JoinBoardPayload{BoardID: boardID})

	// Only the presence broadcast comes back; stored history is not replayed.
	frame := f.transport.nextFrame(t)
	assert.Equal(t, ws.FramePresenceUpdate, frame.Type)

	select {
	case raw := <-f.transport.out:
		t.Fatalf("unexpected frame: %s", raw)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestSession_ForbiddenJoin(t *testing.T) {
	t.Parallel()

	boardID := uuid.New()
	f := runSession(t, denyAll{}, &memEventLog{})

	f.transport.sendFrame(t, ws.FrameJoinBoard, ws.JoinBoardPayload{BoardID: boardID})

	frame := f.transport.nextFrame(t)
	require.Equal(t, ws.FrameError, frame.Type)

	var p ws.ErrorPayload
	require.NoError(t, json.Unmarshal(frame.Payload, &p))
	assert.Equal(t, "forbidden", p.Code)

	// No subscription, no presence.
	assert.Empty(t, f.bus.publishedOn(redisstore.BoardChannel(boardID)))
}

func TestSession_ChatBroadcast(t *testing.T) {
	t.Parallel()

	boardID := uuid.New()
	f := runSession(t, allowAll{}, &memEventLog{})

	f.transport.sendFrame(t, ws.FrameJoinBoard, ws.JoinBoardPayload{BoardID: boardID})
	require.Equal(t, ws.FramePresenceUpdate, f.transport.nextFrame(t).Type)

	f.transport.sendFrame(t, ws.FrameSendChat, ws.SendChatPayload{BoardID: boardID, Message: "  hello board  "})

	// The chat frame comes back through the bus subscription.
	frame := f.transport.nextFrame(t)
	require.Equal(t, ws.FrameChatMessage, frame.Type)

	var msg domain.ChatMessage
	require.NoError(t, json.Unmarshal(frame.Payload, &msg))
	assert.Equal(t, "hello board", msg.Message)
	assert.Equal(t, f.userID, msg.UserID)
	assert.Equal(t, "Alice", msg.UserName)
}

func TestSession_ChatRejectedWhenNotJoined(t *testing.T) {
	t.Parallel()

	f := runSession(t, allowAll{}, &memEventLog{})

	f.transport.sendFrame(t, ws.FrameSendChat, ws.SendChatPayload{BoardID: uuid.New(), Message: "hello"})

	frame := f.transport.nextFrame(t)
	require.Equal(t, ws.FrameError, frame.Type)

	var p ws.ErrorPayload
	require.NoError(t, json.Unmarshal(frame.Payload, &p))
	assert.Equal(t, "forbidden", p.Code)
}

func TestSession_ChatRejectsOversizeMessage(t *testing.T) {
	t.Parallel()

	boardID := uuid.New()
	f := runSession(t, allowAll{}, &memEventLog{})

	f.transport.sendFrame(t, ws.FrameJoinBoard, ws.JoinBoardPayload{BoardID: boardID})
	require.Equal(t, ws.FramePresenceUpdate, f.transport.nextFrame(t).Type)

	long := make([]byte, domain.MaxChatMessageLen+1)
	for i := range long {
		long[i] = 'a'
	}
	f.transport.sendFrame(t, ws.FrameSendChat, ws.SendChatPayload{BoardID: boardID, Message: string(long)})

	frame := f.transport.nextFrame(t)
	require.Equal(t, ws.FrameError, frame.Type)
}

func TestSession_HeartbeatOnlyWhenJoined(t *testing.T) {
	t.Parallel()

	boardID := uuid.New()
	f := runSession(t, allowAll{}, &memEventLog{})

	// Heartbeat before joining is ignored.
	f.transport.sendFrame(t, ws.FrameHeartbeat, ws.HeartbeatPayload{BoardID: boardID})

	f.transport.sendFrame(t, ws.FrameJoinBoard, ws.JoinBoardPayload{BoardID: boardID})
	require.Equal(t, ws.FramePresenceUpdate, f.transport.nextFrame(t).Type)

	f.transport.sendFrame(t, ws.FrameHeartbeat, ws.HeartbeatPayload{BoardID: boardID})

	require.Eventually(t, func() bool {
		return f.presence.heartbeatCount(boardID) == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSession_DisconnectReleasesPresence(t *testing.T) {
	t.Parallel()

	boardA := uuid.New()
	boardB := uuid.New()
	f := runSession(t, allowAll{}, &memEventLog{})

	f.transport.sendFrame(t, ws.FrameJoinBoard, ws.JoinBoardPayload{BoardID: boardA})
	require.Equal(t, ws.FramePresenceUpdate, f.transport.nextFrame(t).Type)
	f.transport.sendFrame(t, ws.FrameJoinBoard, ws.JoinBoardPayload{BoardID: boardB})
	require.Equal(t, ws.FramePresenceUpdate, f.transport.nextFrame(t).Type)

	// Simulate the client dropping the connection.
	close(f.transport.in)
	<-f.done

	assert.Equal(t, []uuid.UUID{f.userID}, f.presence.leftUsers(boardA))
	assert.Equal(t, []uuid.UUID{f.userID}, f.presence.leftUsers(boardB))
}

func TestSession_MalformedFrame(t *testing.T) {
	t.Parallel()

	f := runSession(t, allowAll{}, &memEventLog{})

	f.transport.in <- []byte("{not json")

	frame := f.transport.nextFrame(t)
	require.Equal(t, ws.FrameError, frame.Type)

	var p ws.ErrorPayload
	require.NoError(t, json.Unmarshal(frame.Payload, &p))
	assert.Equal(t, "bad_request", p.Code)
}

func TestSession_UnknownFrameType(t *testing.T) {
	t.Parallel()

	f := runSession(t, allowAll{}, &memEventLog{})

	f.transport.sendFrame(t, "teleport_board", struct{}{})

	frame := f.transport.nextFrame(t)
	assert.Equal(t, ws.FrameError, frame.Type)
}
