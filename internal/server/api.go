// ABOUTME: HTTP API handlers for the visitor counter, shoutbox, guestbook and pages
// ABOUTME: Translates store results and sentinel errors into JSON responses

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/2389/guestdesk/internal/notify"
	"github.com/2389/guestdesk/internal/pages"
	"github.com/2389/guestdesk/internal/store"
)

// Error messages returned to clients.
const (
	errMsgMissingFields = "Name and message required"
	errMsgInvalidJSON   = "invalid JSON body"
	errMsgTooLarge      = "request body too large"
	errMsgSaveFailed    = "failed to save"
	errMsgUnavailable   = "store is shutting down"
)

// VisitorCountResponse is the JSON response for /api/visitors.
type VisitorCountResponse struct {
	Count uint64 `json:"count"`
}

// ShoutRequest is the JSON request body for POST /api/shoutbox.
type ShoutRequest struct {
	Name    string `json:"name"`
	Message string `json:"message"`
}

// GuestbookRequest is the JSON request body for POST /api/guestbook.
type GuestbookRequest struct {
	Name    string `json:"name"`
	Website string `json:"website,omitempty"`
	Message string `json:"message"`
}

// sendJSON writes v as a JSON response with the given status.
func sendJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// sendJSONError writes a JSON error response.
func sendJSONError(w http.ResponseWriter, status int, message string) {
	sendJSON(w, status, map[string]string{"error": message})
}

// methodNotAllowed answers 405 and advertises the allowed methods.
func methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	sendJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
}

// decodeBody reads a size-limited JSON body into v. It writes the error
// response itself and reports whether decoding succeeded.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			sendJSONError(w, http.StatusRequestEntityTooLarge, errMsgTooLarge)
			return false
		}
		sendJSONError(w, http.StatusBadRequest, errMsgInvalidJSON)
		return false
	}
	return true
}

// writeStoreError maps a failed post to its HTTP response.
func (s *Server) writeStoreError(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, store.ErrMissingFields):
		sendJSONError(w, http.StatusBadRequest, errMsgMissingFields)
	case errors.Is(err, store.ErrClosed):
		sendJSONError(w, http.StatusServiceUnavailable, errMsgUnavailable)
	case errors.Is(err, context.Canceled):
		// The client left; the queued write still commits.
		s.logger.Info("client canceled before write finished", "op", op, "request_id", RequestIDFromContext(r.Context()))
	default:
		s.logger.Error("write failed", "op", op, "error", err, "request_id", RequestIDFromContext(r.Context()))
		sendJSONError(w, http.StatusInternalServerError, errMsgSaveFailed)
	}
}

// handleVisitors handles GET and POST /api/visitors.
func (s *Server) handleVisitors(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		sendJSON(w, http.StatusOK, VisitorCountResponse{Count: s.store.VisitorCount(r.Context())})
	case http.MethodPost:
		n, err := s.store.IncrementVisitors(r.Context())
		if err != nil {
			s.writeStoreError(w, r, "increment visitors", err)
			return
		}
		sendJSON(w, http.StatusOK, VisitorCountResponse{Count: n})
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPost)
	}
}

// handleShoutbox handles GET and POST /api/shoutbox.
func (s *Server) handleShoutbox(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		sendJSON(w, http.StatusOK, s.store.ListShouts(r.Context()))
	case http.MethodPost:
		var req ShoutRequest
		if !decodeBody(w, r, &req) {
			return
		}
		msg, err := s.store.PostShout(r.Context(), req.Name, req.Message)
		if err != nil {
			s.writeStoreError(w, r, "post shout", err)
			return
		}
		s.dispatcher.Dispatch(notify.Event{
			Kind:    notify.KindShout,
			Name:    msg.Name,
			Message: msg.Message,
			Time:    msg.Time,
		})
		sendJSON(w, http.StatusOK, msg)
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPost)
	}
}

// handleGuestbook handles GET and POST /api/guestbook.
func (s *Server) handleGuestbook(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		sendJSON(w, http.StatusOK, s.store.ListGuestbook(r.Context()))
	case http.MethodPost:
		var req GuestbookRequest
		if !decodeBody(w, r, &req) {
			return
		}
		entry, err := s.store.PostGuestbook(r.Context(), req.Name, req.Website, req.Message)
		if err != nil {
			s.writeStoreError(w, r, "post guestbook", err)
			return
		}
		s.dispatcher.Dispatch(notify.Event{
			Kind:    notify.KindGuestbook,
			Name:    entry.Name,
			Website: entry.Website,
			Message: entry.Message,
			Time:    entry.Time,
		})
		sendJSON(w, http.StatusOK, entry)
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPost)
	}
}

// handleListPages handles GET /api/pages.
func (s *Server) handleListPages(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	list, err := s.pages.List()
	if err != nil {
		s.logger.Error("listing pages", "error", err)
		sendJSONError(w, http.StatusInternalServerError, "failed to list pages")
		return
	}
	sendJSON(w, http.StatusOK, list)
}

// handleGetPage handles GET /api/pages/{slug}.
func (s *Server) handleGetPage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	slug := strings.TrimPrefix(r.URL.Path, "/api/pages/")
	p, err := s.pages.Get(slug)
	if errors.Is(err, pages.ErrNotFound) {
		sendJSONError(w, http.StatusNotFound, "page not found")
		return
	}
	if err != nil {
		s.logger.Error("rendering page", "slug", slug, "error", err)
		sendJSONError(w, http.StatusInternalServerError, "failed to render page")
		return
	}
	sendJSON(w, http.StatusOK, p)
}

// handleHealth returns 200 OK if the server is alive.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleReady returns 200 OK if the store can load the document.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = fmt.Fprintf(w, "store unavailable: %v", err)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
