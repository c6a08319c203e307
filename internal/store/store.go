// ABOUTME: Document types, limits, and interfaces for guestdesk persistence
// ABOUTME: Defines the visitor/shoutbox/guestbook document and the Backend contract

package store

import (
	"context"
	"errors"
)

// ErrMissingFields is returned when a required field is empty after sanitization.
var ErrMissingFields = errors.New("name and message required")

// ErrClosed is returned when a write is submitted after the store was closed.
var ErrClosed = errors.New("store closed")

// Collection limits and field lengths, counted in runes.
const (
	MaxShouts         = 50
	MaxGuestbook      = 100
	MaxShoutName      = 20
	MaxShoutMessage   = 140
	MaxGuestName      = 30
	MaxGuestWebsite   = 100
	MaxGuestMessage   = 500
	ShoutColor        = "text-blue-600"
	shoutTimeLayout   = "03:04 PM"
	guestbookDateForm = "Jan 2, 2006"
)

// ShoutMessage is a short message in the shoutbox feed.
type ShoutMessage struct {
	Name    string `json:"name"`
	Message string `json:"message"`
	Time    string `json:"time"`
	Color   string `json:"color"`
}

// GuestbookEntry is a signed guestbook entry.
type GuestbookEntry struct {
	Name    string `json:"name"`
	Website string `json:"website"`
	Message string `json:"message"`
	Time    string `json:"time"`
}

// Document is the single persisted document. Both collections are newest first.
type Document struct {
	Visitors  uint64           `json:"visitors"`
	Shoutbox  []ShoutMessage   `json:"shoutbox"`
	Guestbook []GuestbookEntry `json:"guestbook"`
}

// EmptyDocument returns the document used at first startup and whenever the
// persisted one cannot be read.
func EmptyDocument() *Document {
	return &Document{
		Shoutbox:  []ShoutMessage{},
		Guestbook: []GuestbookEntry{},
	}
}

// normalize replaces nil collections so they encode as [] rather than null.
func (d *Document) normalize() {
	if d.Shoutbox == nil {
		d.Shoutbox = []ShoutMessage{}
	}
	if d.Guestbook == nil {
		d.Guestbook = []GuestbookEntry{}
	}
}

// clone returns a deep copy so callers never share slices with a backend.
func (d *Document) clone() *Document {
	c := &Document{
		Visitors:  d.Visitors,
		Shoutbox:  make([]ShoutMessage, len(d.Shoutbox)),
		Guestbook: make([]GuestbookEntry, len(d.Guestbook)),
	}
	copy(c.Shoutbox, d.Shoutbox)
	copy(c.Guestbook, d.Guestbook)
	return c
}

// Backend persists the whole document. Implementations are not required to be
// safe for concurrent Save calls; the Service serializes them.
type Backend interface {
	// Load returns the persisted document. A missing document is reported as an error.
	Load(ctx context.Context) (*Document, error)
	// Save replaces the persisted document in full.
	Save(ctx context.Context, doc *Document) error
	// Close releases backend resources.
	Close() error
}

// Store is the set of operations the HTTP layer depends on.
type Store interface {
	VisitorCount(ctx context.Context) uint64
	IncrementVisitors(ctx context.Context) (uint64, error)
	ListShouts(ctx context.Context) []ShoutMessage
	PostShout(ctx context.Context, name, message string) (*ShoutMessage, error)
	ListGuestbook(ctx context.Context) []GuestbookEntry
	PostGuestbook(ctx context.Context, name, website, message string) (*GuestbookEntry, error)
	Ping(ctx context.Context) error
	Close() error
}
