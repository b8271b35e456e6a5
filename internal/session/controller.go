// Package session decides when a live chat session exists. A session is
// the runtime binding of a resolved channel to one transport connection
// plus its keepalive; it is owned exclusively by the Controller and is
// bound to the consuming view's visibility.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/BrunoPereyra/nexo-vecinal-sub000/internal/client"
	"github.com/BrunoPereyra/nexo-vecinal-sub000/internal/domain"
	"github.com/BrunoPereyra/nexo-vecinal-sub000/internal/store"
	"github.com/BrunoPereyra/nexo-vecinal-sub000/internal/timeline"
	"github.com/BrunoPereyra/nexo-vecinal-sub000/internal/transport"
	"github.com/BrunoPereyra/nexo-vecinal-sub000/pkg/log"
)

// ErrEmptyMessage is returned by Send for blank input.
var ErrEmptyMessage = errors.New("message text must not be empty")

// Controller opens a session once the local identity, the partner and
// the channel are resolved and the view is focused, and tears it down
// unconditionally on blur, close or parameter change. Regaining focus
// opens a brand-new transport; a closed connection object is never
// resurrected. The message store outlives individual sessions and is
// cleared only when the conversation partner changes.
type Controller struct {
	api      *client.Client
	wsCfg    transport.Config
	identity domain.Identity
	labels   timeline.Labels
	onUpdate func()

	mu        sync.Mutex
	partnerID string
	channel   domain.Channel
	resolved  bool
	messages  *store.Store
	primed    bool
	tr        *transport.Transport
	gen       uint64
	focused   bool
}

// NewController creates a controller for one conversation view.
// onUpdate is invoked (on an arbitrary goroutine) whenever the rendered
// timeline may have changed; it may be nil.
func NewController(api *client.Client, wsCfg transport.Config, id domain.Identity, onUpdate func()) *Controller {
	return &Controller{
		api:      api,
		wsCfg:    wsCfg,
		identity: id,
		labels:   timeline.DefaultLabels(),
		onUpdate: onUpdate,
		messages: store.New(),
	}
}

// SetLabels overrides the timeline label vocabulary.
func (c *Controller) SetLabels(labels timeline.Labels) {
	c.mu.Lock()
	c.labels = labels
	c.mu.Unlock()
}

// SetPartner switches the conversation. Changing any identifying
// parameter closes the current session and clears the store; if the view
// is focused a new session opens for the new pair.
func (c *Controller) SetPartner(partnerID string) {
	c.mu.Lock()
	if partnerID == c.partnerID {
		c.mu.Unlock()
		return
	}
	c.teardownLocked()
	c.partnerID = partnerID
	c.channel = domain.Channel{}
	c.resolved = false
	c.messages = store.New()
	c.primed = false
	c.mu.Unlock()

	c.notify()
	c.ensureOpen()
}

// Focus marks the view visible and opens a session if every identifier
// is resolved and none is already live.
func (c *Controller) Focus() {
	c.mu.Lock()
	c.focused = true
	c.mu.Unlock()
	c.ensureOpen()
}

// Blur closes the session. The store is retained so regaining focus
// resumes the same conversation without losing messages.
func (c *Controller) Blur() {
	c.mu.Lock()
	c.focused = false
	c.teardownLocked()
	c.mu.Unlock()
}

// Close tears the session down for good (unmount, or a back navigation
// about to leave the view). Must run before navigation so the connection
// never outlives its owning view.
func (c *Controller) Close() {
	c.Blur()
}

// ConnectionState reports the live transport state, StateIdle when no
// transport exists.
func (c *Controller) ConnectionState() transport.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tr == nil {
		return transport.StateIdle
	}
	return c.tr.State()
}

// Timeline returns the grouped render sequence for the current store
// contents.
func (c *Controller) Timeline() []timeline.Item {
	return c.TimelineAt(time.Now())
}

// TimelineAt is Timeline with an explicit reference time.
func (c *Controller) TimelineAt(now time.Time) []timeline.Item {
	c.mu.Lock()
	st := c.messages
	labels := c.labels
	c.mu.Unlock()
	return timeline.Build(st.All(), now, labels)
}

// Send submits the message over the request channel; the sender sees
// their own message via the live connection's echo. The caller clears
// its input optimistically before this resolves: a failure is logged and
// returned but the text is not restored and no retry is attempted. An
// ErrConversationClosed result must be surfaced to the user as a
// blocking notice.
func (c *Controller) Send(ctx context.Context, text string) error {
	if text == "" {
		return ErrEmptyMessage
	}

	c.mu.Lock()
	req := client.SendRequest{
		SenderID:   c.identity.ID,
		ReceiverID: c.partnerID,
		Text:       text,
	}
	if c.resolved {
		req.ChannelID = c.channel.ID
	}
	c.mu.Unlock()

	if req.ReceiverID == "" {
		return errors.New("no conversation partner")
	}

	err := c.api.Send(ctx, req)
	if errors.Is(err, client.ErrConversationClosed) {
		return err
	}
	if err != nil {
		l := log.L()
		l.Error().Err(err).
			Str(log.FieldPartnerID, req.ReceiverID).
			Msg("send failed; message text is lost")
		return err
	}
	return nil
}

// teardownLocked closes the live session unconditionally and invalidates
// every in-flight continuation issued for it.
func (c *Controller) teardownLocked() {
	c.gen++
	if c.tr != nil {
		c.tr.Close()
		c.tr = nil
	}
}

// ensureOpen opens a session when preconditions hold. It never opens a
// second connection while one is pending or open.
func (c *Controller) ensureOpen() {
	c.mu.Lock()
	if !c.focused || c.identity.ID == "" || c.partnerID == "" || c.tr != nil {
		c.mu.Unlock()
		return
	}
	c.gen++
	gen := c.gen
	partner := c.partnerID
	c.mu.Unlock()

	go c.startSession(gen, partner)
}

// startSession resolves the channel, merges the history snapshot and
// brings up the transport. Every step checks that the session it was
// issued for is still the current one; completions against a superseded
// session are no-ops.
func (c *Controller) startSession(gen uint64, partner string) {
	ctx := context.Background()
	l := log.L()

	ch, err := c.api.ResolveChannel(ctx, c.identity.ID, partner)
	if err != nil {
		l.Warn().Err(err).Str(log.FieldPartnerID, partner).Msg("channel resolution failed")
		return
	}

	c.mu.Lock()
	if gen != c.gen || !c.focused {
		c.mu.Unlock()
		return
	}
	c.channel = ch
	c.resolved = true
	c.mu.Unlock()

	// A broken history fetch must not block the live channel.
	snapshot, err := c.api.FetchHistory(ctx, c.identity.ID, partner, ch.ID)
	if err != nil {
		l.Warn().Err(err).Str(log.FieldChannelID, ch.ID).Msg("history fetch failed, starting with empty snapshot")
		snapshot = nil
	}

	c.mu.Lock()
	if gen != c.gen || !c.focused {
		c.mu.Unlock()
		return
	}
	st := c.messages
	if !c.primed {
		st.Initialize(snapshot)
		c.primed = true
	} else {
		// Reconnect for the same conversation: merge, keeping live
		// messages received before this snapshot arrived.
		for _, m := range snapshot {
			st.Append(m)
		}
	}
	c.mu.Unlock()
	c.notify()

	tr := transport.New(c.wsCfg, ch, func(m domain.Message) {
		c.handleInbound(gen, m)
	})

	c.mu.Lock()
	if gen != c.gen || !c.focused || c.tr != nil {
		c.mu.Unlock()
		tr.Close()
		return
	}
	c.tr = tr
	c.mu.Unlock()

	if err := tr.Connect(); err != nil && !errors.Is(err, transport.ErrClosed) {
		l.Error().Err(err).Str(log.FieldChannelID, ch.ID).Msg("live connection failed")
		c.mu.Lock()
		if c.tr == tr {
			c.tr = nil
		}
		c.mu.Unlock()
	}
}

func (c *Controller) handleInbound(gen uint64, m domain.Message) {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	st := c.messages
	c.mu.Unlock()

	if st.Append(m) {
		c.notify()
	}
}

func (c *Controller) notify() {
	if c.onUpdate != nil {
		c.onUpdate()
	}
}
