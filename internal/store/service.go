// ABOUTME: Store service: unqueued reads and FIFO-queued read-modify-write mutations
// ABOUTME: Sanitizes visitor text, caps collections, and masks unreadable documents

package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/2389/guestdesk/internal/sanitize"
)

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithClock overrides the time source used to stamp new entries.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithLocation sets the timezone used to format entry timestamps.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// Service owns the document and its write queue. It is safe for concurrent use.
type Service struct {
	backend Backend
	queue   writeQueue
	logger  *slog.Logger
	now     func() time.Time
	loc     *time.Location
}

var _ Store = (*Service)(nil)

// New creates a Service over backend.
func New(backend Backend, opts ...Option) *Service {
	s := &Service{
		backend: backend,
		logger:  slog.Default().With("component", "store"),
		now:     time.Now,
		loc:     time.Local,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// read loads the current document, substituting the empty document on failure.
func (s *Service) read(ctx context.Context) *Document {
	doc, err := s.backend.Load(ctx)
	if err != nil {
		s.logger.Warn("document unreadable, using empty document", "error", err)
		return EmptyDocument()
	}
	return doc
}

// mutate queues a read-modify-write job and waits for it. The job reads the
// document at its own turn in the queue, so it sees every earlier write. If ctx
// ends first the wait is abandoned but the job still runs.
func (s *Service) mutate(ctx context.Context, apply func(doc *Document)) error {
	done := s.queue.submit(func() error {
		// Queued jobs run to completion even if the caller stops waiting.
		jobCtx := context.WithoutCancel(ctx)
		doc := s.read(jobCtx)
		apply(doc)
		if err := s.backend.Save(jobCtx, doc); err != nil {
			return fmt.Errorf("writing document: %w", err)
		}
		return nil
	})

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// VisitorCount returns the current visitor count.
func (s *Service) VisitorCount(ctx context.Context) uint64 {
	return s.read(ctx).Visitors
}

// IncrementVisitors adds one visitor and returns the new count.
func (s *Service) IncrementVisitors(ctx context.Context) (uint64, error) {
	var count uint64
	err := s.mutate(ctx, func(doc *Document) {
		doc.Visitors++
		count = doc.Visitors
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// ListShouts returns the shoutbox, newest first.
func (s *Service) ListShouts(ctx context.Context) []ShoutMessage {
	return s.read(ctx).Shoutbox
}

// PostShout sanitizes and stores a shout, evicting the oldest beyond MaxShouts.
func (s *Service) PostShout(ctx context.Context, name, message string) (*ShoutMessage, error) {
	name = sanitize.Text(name, MaxShoutName)
	message = sanitize.Text(message, MaxShoutMessage)
	if name == "" || message == "" {
		return nil, ErrMissingFields
	}

	shout := ShoutMessage{
		Name:    name,
		Message: message,
		Time:    s.now().In(s.loc).Format(shoutTimeLayout),
		Color:   ShoutColor,
	}

	err := s.mutate(ctx, func(doc *Document) {
		doc.Shoutbox = prepend(doc.Shoutbox, shout, MaxShouts)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug("shout stored", "name", shout.Name)
	return &shout, nil
}

// ListGuestbook returns the guestbook, newest first.
func (s *Service) ListGuestbook(ctx context.Context) []GuestbookEntry {
	return s.read(ctx).Guestbook
}

// PostGuestbook sanitizes and stores a guestbook entry, evicting the oldest
// beyond MaxGuestbook. Website is optional.
func (s *Service) PostGuestbook(ctx context.Context, name, website, message string) (*GuestbookEntry, error) {
	name = sanitize.Text(name, MaxGuestName)
	website = sanitize.Text(website, MaxGuestWebsite)
	message = sanitize.Text(message, MaxGuestMessage)
	if name == "" || message == "" {
		return nil, ErrMissingFields
	}

	entry := GuestbookEntry{
		Name:    name,
		Website: website,
		Message: message,
		Time:    s.now().In(s.loc).Format(guestbookDateForm),
	}

	err := s.mutate(ctx, func(doc *Document) {
		doc.Guestbook = prepend(doc.Guestbook, entry, MaxGuestbook)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug("guestbook entry stored", "name", entry.Name)
	return &entry, nil
}

// Ping reports whether the backend document can be read.
func (s *Service) Ping(ctx context.Context) error {
	_, err := s.backend.Load(ctx)
	return err
}

// PendingWrites reports how many write jobs wait behind the one in flight.
func (s *Service) PendingWrites() int {
	return s.queue.depth()
}

// Close waits for queued writes, then closes the backend.
func (s *Service) Close() error {
	s.queue.close()
	return s.backend.Close()
}

// prepend puts item at the front and drops the tail beyond max.
func prepend[T any](items []T, item T, max int) []T {
	out := make([]T, 0, min(len(items)+1, max))
	out = append(out, item)
	for _, it := range items {
		if len(out) == max {
			break
		}
		out = append(out, it)
	}
	return out
}
