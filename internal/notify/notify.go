// ABOUTME: Owner notifications for new shouts and guestbook entries
// ABOUTME: Notifier interface, Matrix implementation and an async dispatcher

package notify

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"strings"
	"sync"
	"time"

	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/id"

	"github.com/2389/guestdesk/internal/config"
)

// sendTimeout bounds a single notification delivery.
const sendTimeout = 30 * time.Second

// Kind identifies what a visitor posted.
type Kind string

const (
	KindShout     Kind = "shout"
	KindGuestbook Kind = "guestbook"
)

// Event describes a newly stored post. Text fields hold the sanitized values.
type Event struct {
	Kind    Kind
	Name    string
	Website string
	Message string
	Time    string
}

// Notifier delivers an Event to the site owner.
type Notifier interface {
	Notify(ctx context.Context, ev Event) error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Notify(context.Context, Event) error { return nil }

// Format renders ev as a single plain-text line. Stored text is HTML-escaped,
// so entities are decoded for chat clients.
func Format(ev Event) string {
	var b strings.Builder
	switch ev.Kind {
	case KindGuestbook:
		b.WriteString("New guestbook entry from ")
	default:
		b.WriteString("New shout from ")
	}
	b.WriteString(html.UnescapeString(ev.Name))
	if ev.Website != "" {
		fmt.Fprintf(&b, " (%s)", html.UnescapeString(ev.Website))
	}
	b.WriteString(": ")
	b.WriteString(html.UnescapeString(ev.Message))
	return b.String()
}

// MatrixNotifier posts events as plain-text messages to one Matrix room.
type MatrixNotifier struct {
	client *mautrix.Client
	room   id.RoomID
}

// NewMatrixNotifier creates a notifier from the matrix config section.
func NewMatrixNotifier(cfg config.MatrixConfig) (*MatrixNotifier, error) {
	client, err := mautrix.NewClient(cfg.Homeserver, id.UserID(cfg.UserID), cfg.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("creating matrix client: %w", err)
	}
	return &MatrixNotifier{client: client, room: id.RoomID(cfg.RoomID)}, nil
}

func (m *MatrixNotifier) Notify(ctx context.Context, ev Event) error {
	if _, err := m.client.SendText(ctx, m.room, Format(ev)); err != nil {
		return fmt.Errorf("sending matrix message to %s: %w", m.room, err)
	}
	return nil
}

// FromConfig returns the notifier selected by cfg, or Nop when none is enabled.
func FromConfig(cfg config.NotifyConfig) (Notifier, error) {
	if cfg.Matrix.Enabled {
		return NewMatrixNotifier(cfg.Matrix)
	}
	return Nop{}, nil
}

// Dispatcher delivers events in the background so a slow notifier never
// delays an HTTP response.
type Dispatcher struct {
	notifier Notifier
	logger   *slog.Logger

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewDispatcher wraps n. A nil notifier behaves like Nop.
func NewDispatcher(n Notifier, logger *slog.Logger) *Dispatcher {
	if n == nil {
		n = Nop{}
	}
	return &Dispatcher{notifier: n, logger: logger}
}

// Dispatch sends ev asynchronously. Events dispatched after Close are dropped.
func (d *Dispatcher) Dispatch(ev Event) {
	if _, ok := d.notifier.(Nop); ok {
		return
	}

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		d.logger.Debug("dropping notification after close", "kind", ev.Kind)
		return
	}
	d.wg.Add(1)
	d.mu.Unlock()

	go func() {
		defer d.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		defer cancel()
		if err := d.notifier.Notify(ctx, ev); err != nil {
			d.logger.Error("notification failed", "kind", ev.Kind, "error", err)
			return
		}
		d.logger.Debug("notification sent", "kind", ev.Kind)
	}()
}

// Close waits for in-flight notifications to finish.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	d.wg.Wait()
}
