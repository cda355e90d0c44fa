package poller

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"support-service/internal/models"
)

// fakeAPI is an in-memory API the loop polls against. Tests mutate it
// between ticks to simulate server-side activity.
type fakeAPI struct {
	mu           sync.Mutex
	room         []models.Message
	ticketMsgs   map[int64][]models.Message
	ticketStatus map[int64]models.TicketStatus
	online       int
	postErr      error
	// postGate, when set, makes PostMessage commit the message server-side
	// first and then block until the gate is closed, so tests can hold the
	// response open while polls observe the committed copy.
	postGate     chan struct{}
	nextID       int64
	heartbeats   atomic.Int64
	toggles      atomic.Int64
	deletes      atomic.Int64
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		ticketMsgs:   make(map[int64][]models.Message),
		ticketStatus: make(map[int64]models.TicketStatus),
		nextID:       100,
	}
}

func (f *fakeAPI) addRoomMessage(content string, createdAt time.Time) models.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	msg := models.Message{ID: f.nextID, Content: content, CreatedAt: createdAt}
	f.room = append(f.room, msg)
	return msg
}

func (f *fakeAPI) addTicketMessage(ticketID int64, content string, createdAt time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.ticketMsgs[ticketID] = append(f.ticketMsgs[ticketID], models.Message{
		ID: f.nextID, TicketID: &ticketID, Content: content, CreatedAt: createdAt,
	})
}

func (f *fakeAPI) setTicketStatus(ticketID int64, status models.TicketStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ticketStatus[ticketID] = status
}

func (f *fakeAPI) dropTicket(ticketID int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.ticketStatus, ticketID)
	delete(f.ticketMsgs, ticketID)
}

func (f *fakeAPI) setPostErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.postErr = err
}

func (f *fakeAPI) PostMessage(ctx context.Context, content string, ticketID *int64) (models.Message, error) {
	f.mu.Lock()
	if f.postErr != nil {
		err := f.postErr
		f.mu.Unlock()
		return models.Message{}, err
	}
	f.nextID++
	msg := models.Message{ID: f.nextID, TicketID: ticketID, Content: content, CreatedAt: time.Now()}
	if ticketID != nil {
		f.ticketMsgs[*ticketID] = append(f.ticketMsgs[*ticketID], msg)
	} else {
		f.room = append(f.room, msg)
	}
	gate := f.postGate
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}
	return msg, nil
}

func (f *fakeAPI) ListRoomMessages(ctx context.Context, limit int) ([]models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Message{}, f.room...), nil
}

func (f *fakeAPI) ListTicketMessages(ctx context.Context, ticketID int64) ([]models.Message, models.TicketStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	status, ok := f.ticketStatus[ticketID]
	if !ok {
		return nil, "", ErrTicketNotFound
	}
	return append([]models.Message{}, f.ticketMsgs[ticketID]...), status, nil
}

func (f *fakeAPI) ToggleReaction(ctx context.Context, messageID int64, kind models.ReactionKind) (bool, models.ReactionCounts, error) {
	f.toggles.Add(1)
	return true, models.ReactionCounts{}, nil
}

func (f *fakeAPI) DeleteMessage(ctx context.Context, messageID int64) error {
	f.deletes.Add(1)
	return nil
}

func (f *fakeAPI) CreateTicket(ctx context.Context, category string) (models.Ticket, error) {
	return models.Ticket{}, errors.New("not used")
}

func (f *fakeAPI) CloseTicket(ctx context.Context, ticketID int64) error { return nil }

func (f *fakeAPI) GetTicket(ctx context.Context, ticketID int64) (models.Ticket, []models.Message, error) {
	return models.Ticket{}, nil, errors.New("not used")
}

func (f *fakeAPI) ListTickets(ctx context.Context) ([]models.Ticket, error) { return nil, nil }

func (f *fakeAPI) Heartbeat(ctx context.Context) error {
	f.heartbeats.Add(1)
	return nil
}

func (f *fakeAPI) OnlineCount(ctx context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.online, nil
}

// chanRenderer forwards every view to a channel so tests can wait on
// specific states, and keeps the full render history for after-the-fact
// assertions over every frame.
type chanRenderer struct {
	mu    sync.Mutex
	all   []View
	views chan View
}

func newChanRenderer() *chanRenderer {
	return &chanRenderer{views: make(chan View, 128)}
}

func (r *chanRenderer) Render(view View) {
	r.mu.Lock()
	r.all = append(r.all, view)
	r.mu.Unlock()
	select {
	case r.views <- view:
	default:
	}
}

func (r *chanRenderer) history() []View {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]View{}, r.all...)
}

type countingNotifier struct {
	newMessage   atomic.Int64
	ticketChange atomic.Int64
}

func (n *countingNotifier) Play(kind SoundKind) {
	switch kind {
	case SoundNewMessage:
		n.newMessage.Add(1)
	case SoundTicketChange:
		n.ticketChange.Add(1)
	}
}

func waitView(t *testing.T, r *chanRenderer, match func(View) bool) View {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case view := <-r.views:
			if match(view) {
				return view
			}
		case <-deadline:
			t.Fatal("no matching view rendered in time")
			return View{}
		}
	}
}

func startSurface(t *testing.T, api API, renderer Renderer, notifier Notifier) (*Surface, context.Context, context.CancelFunc) {
	t.Helper()
	surface := NewSurface(api, renderer, notifier, Config{
		Name:          "test",
		Interval:      10 * time.Millisecond,
		RecencyWindow: time.Minute,
	})
	ctx, cancel := context.WithCancel(context.Background())
	go surface.Run(ctx)
	t.Cleanup(cancel)
	return surface, ctx, cancel
}

func TestPollRendersRoomAndOnline(t *testing.T) {
	api := newFakeAPI()
	api.addRoomMessage("welcome", time.Now().Add(-time.Hour))
	api.mu.Lock()
	api.online = 4
	api.mu.Unlock()

	renderer := newChanRenderer()
	_, _, _ = startSurface(t, api, renderer, nil)

	view := waitView(t, renderer, func(v View) bool { return len(v.Messages) == 1 && v.Online == 4 })
	assert.Equal(t, "welcome", view.Messages[0].Content)
	assert.False(t, view.Unread)
}

func TestNewMessagePlaysCueOnce(t *testing.T) {
	api := newFakeAPI()
	api.addRoomMessage("old", time.Now().Add(-time.Hour))
	renderer := newChanRenderer()
	notifier := &countingNotifier{}
	_, _, _ = startSurface(t, api, renderer, notifier)

	waitView(t, renderer, func(v View) bool { return len(v.Messages) == 1 })
	require.Equal(t, int64(0), notifier.newMessage.Load(), "messages already seen must not chime")

	api.addRoomMessage("fresh", time.Now())
	waitView(t, renderer, func(v View) bool { return len(v.Messages) == 2 })

	// A few more ticks with no new messages must not re-trigger the cue.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int64(1), notifier.newMessage.Load())
}

func TestUnreadOnlyWhenUnfocused(t *testing.T) {
	api := newFakeAPI()
	renderer := newChanRenderer()
	surface, ctx, _ := startSurface(t, api, renderer, nil)

	surface.SetFocused(ctx, false)
	api.addRoomMessage("psst", time.Now())

	view := waitView(t, renderer, func(v View) bool { return v.Unread })
	assert.Len(t, view.Messages, 1)

	surface.SetFocused(ctx, true)
	waitView(t, renderer, func(v View) bool { return !v.Unread })
}

func TestSendOptimisticThenConfirmed(t *testing.T) {
	api := newFakeAPI()
	renderer := newChanRenderer()
	surface, ctx, _ := startSurface(t, api, renderer, nil)

	surface.Send(ctx, "on its way")

	optimistic := waitView(t, renderer, func(v View) bool {
		return len(v.Messages) > 0 && v.Messages[len(v.Messages)-1].ID < 0
	})
	assert.Equal(t, "on its way", optimistic.Messages[len(optimistic.Messages)-1].Content)

	confirmed := waitView(t, renderer, func(v View) bool {
		if len(v.Messages) != 1 {
			return false
		}
		return v.Messages[0].ID > 0 && v.Messages[0].Content == "on its way"
	})
	assert.Empty(t, confirmed.Err)
}

func TestSendNeverRendersDuplicate(t *testing.T) {
	api := newFakeAPI()
	gate := make(chan struct{})
	api.mu.Lock()
	api.postGate = gate
	api.mu.Unlock()

	renderer := newChanRenderer()
	surface, ctx, _ := startSurface(t, api, renderer, nil)

	surface.Send(ctx, "slow send")
	waitView(t, renderer, func(v View) bool {
		return len(v.Messages) > 0 && v.Messages[len(v.Messages)-1].ID < 0
	})

	// The server has committed the message; the response is still held
	// open. Let several polls run against that state.
	time.Sleep(60 * time.Millisecond)
	close(gate)

	waitView(t, renderer, func(v View) bool {
		return len(v.Messages) == 1 && v.Messages[0].ID > 0 && v.Messages[0].Content == "slow send"
	})

	for _, view := range renderer.history() {
		copies := 0
		for _, m := range view.Messages {
			if m.Content == "slow send" {
				copies++
			}
		}
		require.LessOrEqual(t, copies, 1, "a frame showed the send twice: %+v", view.Messages)
	}
}

func TestSendCompletionIgnoredAfterContextSwitch(t *testing.T) {
	api := newFakeAPI()
	ticketID := int64(7)
	api.setTicketStatus(ticketID, models.TicketOpen)
	gate := make(chan struct{})
	api.mu.Lock()
	api.postGate = gate
	api.mu.Unlock()

	renderer := newChanRenderer()
	surface, ctx, _ := startSurface(t, api, renderer, nil)

	surface.Send(ctx, "room message")
	waitView(t, renderer, func(v View) bool {
		return len(v.Messages) > 0 && v.Messages[len(v.Messages)-1].ID < 0
	})

	surface.SelectTicket(ctx, &ticketID)
	waitView(t, renderer, func(v View) bool { return v.TicketID != nil && len(v.Messages) == 0 })

	close(gate)
	time.Sleep(60 * time.Millisecond)

	for _, view := range renderer.history() {
		if view.TicketID == nil {
			continue
		}
		for _, m := range view.Messages {
			require.NotEqual(t, "room message", m.Content, "room send leaked into the ticket view")
		}
	}
}

func TestSendFailureRollsBack(t *testing.T) {
	api := newFakeAPI()
	api.setPostErr(errors.New("boom"))
	renderer := newChanRenderer()
	surface, ctx, _ := startSurface(t, api, renderer, nil)

	surface.Send(ctx, "doomed")

	waitView(t, renderer, func(v View) bool {
		return len(v.Messages) > 0 && v.Messages[len(v.Messages)-1].ID < 0
	})
	view := waitView(t, renderer, func(v View) bool { return v.Err == "boom" })
	assert.Empty(t, view.Messages)
}

func TestSendToVanishedTicketEvicts(t *testing.T) {
	api := newFakeAPI()
	ticketID := int64(7)
	api.setTicketStatus(ticketID, models.TicketOpen)
	renderer := newChanRenderer()
	surface, ctx, _ := startSurface(t, api, renderer, nil)

	surface.SelectTicket(ctx, &ticketID)
	waitView(t, renderer, func(v View) bool { return v.TicketID != nil })

	api.setPostErr(ErrTicketNotFound)
	surface.Send(ctx, "anyone there?")

	view := waitView(t, renderer, func(v View) bool { return v.TicketGone })
	assert.Nil(t, view.TicketID)
	assert.Empty(t, view.Messages)
}

func TestTicketStatusChangeSignals(t *testing.T) {
	api := newFakeAPI()
	ticketID := int64(7)
	api.setTicketStatus(ticketID, models.TicketOpen)
	renderer := newChanRenderer()
	notifier := &countingNotifier{}
	surface, ctx, _ := startSurface(t, api, renderer, notifier)

	surface.SelectTicket(ctx, &ticketID)
	waitView(t, renderer, func(v View) bool { return v.TicketStatus == models.TicketOpen })

	api.setTicketStatus(ticketID, models.TicketClosed)
	view := waitView(t, renderer, func(v View) bool { return v.StatusChanged })
	assert.Equal(t, models.TicketClosed, view.TicketStatus)
	assert.GreaterOrEqual(t, notifier.ticketChange.Load(), int64(1))

	// The signal is edge-triggered: steady-state CLOSED renders without it.
	waitView(t, renderer, func(v View) bool {
		return v.TicketStatus == models.TicketClosed && !v.StatusChanged
	})
}

func TestTicketDeletedDuringPollingEvicts(t *testing.T) {
	api := newFakeAPI()
	ticketID := int64(7)
	api.setTicketStatus(ticketID, models.TicketOpen)
	api.addTicketMessage(ticketID, "hello", time.Now().Add(-time.Hour))
	renderer := newChanRenderer()
	surface, ctx, _ := startSurface(t, api, renderer, nil)

	surface.SelectTicket(ctx, &ticketID)
	waitView(t, renderer, func(v View) bool { return v.TicketID != nil && len(v.Messages) == 1 })

	api.dropTicket(ticketID)
	view := waitView(t, renderer, func(v View) bool { return v.TicketGone })
	assert.Nil(t, view.TicketID)
}

func TestReactBumpsCountImmediately(t *testing.T) {
	api := newFakeAPI()
	msg := api.addRoomMessage("react to me", time.Now().Add(-time.Hour))
	renderer := newChanRenderer()
	surface, ctx, _ := startSurface(t, api, renderer, nil)

	waitView(t, renderer, func(v View) bool { return len(v.Messages) == 1 })
	surface.React(ctx, msg.ID, models.ReactionLike)

	waitView(t, renderer, func(v View) bool {
		return len(v.Messages) == 1 && v.Messages[0].Likes == 1
	})
	require.Eventually(t, func() bool { return api.toggles.Load() == 1 }, time.Second, 5*time.Millisecond)
}

func TestDeleteRemovesLocallyAndCallsServer(t *testing.T) {
	api := newFakeAPI()
	msg := api.addRoomMessage("going away", time.Now().Add(-time.Hour))
	renderer := newChanRenderer()
	surface, ctx, _ := startSurface(t, api, renderer, nil)

	waitView(t, renderer, func(v View) bool { return len(v.Messages) == 1 })

	api.mu.Lock()
	api.room = nil
	api.mu.Unlock()
	surface.Delete(ctx, msg.ID)

	waitView(t, renderer, func(v View) bool { return len(v.Messages) == 0 })
	require.Eventually(t, func() bool { return api.deletes.Load() == 1 }, time.Second, 5*time.Millisecond)
}

func TestHeartbeatsFlowEachTick(t *testing.T) {
	api := newFakeAPI()
	renderer := newChanRenderer()
	_, _, _ = startSurface(t, api, renderer, nil)

	require.Eventually(t, func() bool { return api.heartbeats.Load() >= 3 }, time.Second, 5*time.Millisecond)
}

func TestCancelStopsLoop(t *testing.T) {
	api := newFakeAPI()
	renderer := newChanRenderer()
	_, _, cancel := startSurface(t, api, renderer, nil)

	waitView(t, renderer, func(v View) bool { return true })
	cancel()
	time.Sleep(30 * time.Millisecond)

	before := api.heartbeats.Load()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, before, api.heartbeats.Load(), "no ticks after cancel")
}
