package poller

import (
	"context"
	"errors"
	"time"

	"support-service/internal/models"
	"support-service/internal/observability"
)

// Config tunes one surface's polling behavior.
type Config struct {
	// Name labels the surface in metrics ("widget", "admin").
	Name string
	// Interval between poll ticks. The public widget polls at 3s, the admin
	// ticket view at 1s.
	Interval time.Duration
	// RecencyWindow bounds how old a newly-seen message may be and still
	// count as "new" for the notification cue.
	RecencyWindow time.Duration
	// RoomLimit caps the global-room fetch.
	RoomLimit int
}

func (c Config) withDefaults() Config {
	if c.Name == "" {
		c.Name = "widget"
	}
	if c.Interval <= 0 {
		c.Interval = 3 * time.Second
	}
	if c.RecencyWindow <= 0 {
		c.RecencyWindow = 5 * time.Second
	}
	if c.RoomLimit <= 0 {
		c.RoomLimit = 50
	}
	return c
}

// Surface is one UI surface's polling loop. All state lives on the loop
// goroutine; external calls enqueue closures onto the command channel, and
// asynchronous completions re-enter the loop the same way. Cancelling the
// Run context stops the ticker and guarantees no in-flight completion
// mutates state afterwards.
type Surface struct {
	api      API
	cfg      Config
	renderer Renderer
	notifier Notifier

	commands chan func(ctx context.Context)

	// Loop-owned state. Never touched off the Run goroutine.
	messages   []models.Message
	pending    []models.Message
	nextTempID int64
	lastSeenID int64
	lastStatus models.TicketStatus
	ticketID   *int64
	focused    bool
	unread     bool
	online     int
	ticketGone bool
	lastErr    string

	// inflightSends counts posts awaiting their response. While one is in
	// flight the authoritative fetch is held back: the server may already
	// have committed the message, and applying that list next to the still
	// pending entry would show the same message twice.
	inflightSends int
	// epoch increments on every context switch. A send completion from an
	// earlier epoch belongs to a context that no longer exists and must not
	// touch state.
	epoch int
}

// NewSurface builds a surface. renderer is required; notifier may be nil for
// silent surfaces.
func NewSurface(api API, renderer Renderer, notifier Notifier, cfg Config) *Surface {
	return &Surface{
		api:      api,
		cfg:      cfg.withDefaults(),
		renderer: renderer,
		notifier: notifier,
		commands: make(chan func(ctx context.Context), 16),
		// Optimistic entries live in their own id space: negative, counting
		// down, so they can never collide with server-assigned serial ids.
		nextTempID: -1,
		focused:    true,
	}
}

// Run drives the poll loop until ctx is cancelled (the surface unmounts).
// It polls once immediately, then on every tick.
func (s *Surface) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	s.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case cmd := <-s.commands:
			cmd(ctx)
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Surface) enqueue(ctx context.Context, cmd func(context.Context)) {
	select {
	case s.commands <- cmd:
	case <-ctx.Done():
	}
}

// tick runs one poll cycle: heartbeat, online estimate, message fetch,
// novelty detection, authoritative replace, status-transition check.
func (s *Surface) tick(ctx context.Context) {
	observability.IncPollTick(s.cfg.Name)

	go func() {
		hbCtx, cancel := context.WithTimeout(ctx, s.cfg.Interval)
		defer cancel()
		_ = s.api.Heartbeat(hbCtx)
	}()

	if online, err := s.api.OnlineCount(ctx); err == nil {
		s.online = online
	}

	if s.inflightSends > 0 {
		s.render(false)
		return
	}

	var (
		msgs   []models.Message
		status models.TicketStatus
		err    error
	)
	if s.ticketID != nil {
		msgs, status, err = s.api.ListTicketMessages(ctx, *s.ticketID)
		if errors.Is(err, ErrTicketNotFound) {
			s.evictTicket()
			s.render(false)
			return
		}
	} else {
		msgs, err = s.api.ListRoomMessages(ctx, s.cfg.RoomLimit)
	}
	if err != nil {
		// Transient fetch failure: keep the last rendered state, the next
		// tick self-corrects.
		return
	}

	if len(msgs) > 0 {
		newest := msgs[len(msgs)-1]
		if newest.ID != s.lastSeenID {
			if time.Since(newest.CreatedAt) <= s.cfg.RecencyWindow {
				if s.notifier != nil {
					s.notifier.Play(SoundNewMessage)
				}
				if !s.focused {
					s.unread = true
				}
			}
			s.lastSeenID = newest.ID
		}
	}

	s.messages = msgs

	statusChanged := false
	if s.ticketID != nil {
		if s.lastStatus != "" && status != s.lastStatus {
			// Status flips change reply permission and affordances, so the
			// renderer gets an explicit signal instead of a silent patch.
			statusChanged = true
			if s.notifier != nil {
				s.notifier.Play(SoundTicketChange)
			}
		}
		s.lastStatus = status
	}

	s.render(statusChanged)
}

// Send appends an optimistic entry immediately and posts in the background.
// On failure the entry is rolled back and the error surfaced verbatim; a
// vanished ticket additionally evicts the active-ticket context.
func (s *Surface) Send(ctx context.Context, content string) {
	s.enqueue(ctx, func(ctx context.Context) {
		tempID := s.nextTempID
		s.nextTempID--
		ticketID := s.ticketID
		epoch := s.epoch

		s.pending = append(s.pending, models.Message{
			ID:        tempID,
			TicketID:  ticketID,
			Content:   content,
			CreatedAt: time.Now(),
		})
		s.inflightSends++
		s.lastErr = ""
		s.render(false)

		go func() {
			msg, err := s.api.PostMessage(ctx, content, ticketID)
			s.enqueue(ctx, func(ctx context.Context) {
				if s.epoch != epoch {
					// The surface switched context while the post was in
					// flight; the pending entry is already gone and the
					// result belongs to nothing on screen.
					return
				}
				s.inflightSends--
				s.removePending(tempID)
				if err != nil {
					s.lastErr = err.Error()
					if errors.Is(err, ErrTicketNotFound) {
						s.evictTicket()
					}
					s.render(false)
					return
				}
				// Early reconciliation: slot the confirmed message in now
				// rather than waiting out the tick interval.
				if !s.hasMessage(msg.ID) {
					s.messages = append(s.messages, msg)
				}
				if msg.ID > s.lastSeenID {
					s.lastSeenID = msg.ID
				}
				s.render(false)
			})
		}()
	})
}

// React bumps the local count immediately and toggles in the background.
// The next authoritative fetch silently overwrites whatever actually
// happened server-side.
func (s *Surface) React(ctx context.Context, messageID int64, kind models.ReactionKind) {
	s.enqueue(ctx, func(ctx context.Context) {
		if messageID <= 0 {
			return // unconfirmed optimistic entry, nothing to react to yet
		}
		for i := range s.messages {
			if s.messages[i].ID != messageID {
				continue
			}
			switch kind {
			case models.ReactionLike:
				s.messages[i].Likes++
			case models.ReactionDislike:
				s.messages[i].Dislikes++
			case models.ReactionHeart:
				s.messages[i].Hearts++
			}
			break
		}
		s.render(false)

		go func() {
			_, _, _ = s.api.ToggleReaction(ctx, messageID, kind)
		}()
	})
}

// Delete removes the message locally and fires the server call without
// waiting on the result.
func (s *Surface) Delete(ctx context.Context, messageID int64) {
	s.enqueue(ctx, func(ctx context.Context) {
		kept := s.messages[:0]
		for _, m := range s.messages {
			if m.ID != messageID {
				kept = append(kept, m)
			}
		}
		s.messages = kept
		s.render(false)

		go func() {
			_ = s.api.DeleteMessage(ctx, messageID)
		}()
	})
}

// SelectTicket switches the surface context: a ticket id, or nil for the
// global room. The new context loads immediately.
func (s *Surface) SelectTicket(ctx context.Context, ticketID *int64) {
	s.enqueue(ctx, func(ctx context.Context) {
		s.epoch++
		s.inflightSends = 0
		s.ticketID = ticketID
		s.ticketGone = false
		s.lastStatus = ""
		s.lastSeenID = 0
		s.messages = nil
		s.pending = nil
		s.lastErr = ""
		s.tick(ctx)
	})
}

// SetFocused records whether the surface is visible. Regaining focus clears
// the unread flag.
func (s *Surface) SetFocused(ctx context.Context, focused bool) {
	s.enqueue(ctx, func(ctx context.Context) {
		s.focused = focused
		if focused {
			s.unread = false
		}
		s.render(false)
	})
}

func (s *Surface) evictTicket() {
	s.epoch++
	s.inflightSends = 0
	s.ticketID = nil
	s.ticketGone = true
	s.lastStatus = ""
	s.lastSeenID = 0
	s.messages = nil
	s.pending = nil
}

func (s *Surface) removePending(tempID int64) {
	kept := s.pending[:0]
	for _, m := range s.pending {
		if m.ID != tempID {
			kept = append(kept, m)
		}
	}
	s.pending = kept
}

func (s *Surface) hasMessage(id int64) bool {
	for _, m := range s.messages {
		if m.ID == id {
			return true
		}
	}
	return false
}

func (s *Surface) render(statusChanged bool) {
	view := View{
		Messages:      append(append([]models.Message{}, s.messages...), s.pending...),
		Online:        s.online,
		Unread:        s.unread,
		TicketID:      s.ticketID,
		TicketStatus:  s.lastStatus,
		StatusChanged: statusChanged,
		TicketGone:    s.ticketGone,
		Err:           s.lastErr,
	}
	s.renderer.Render(view)
}
