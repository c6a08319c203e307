package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/2389/guestdesk/internal/config"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
	)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []Event
	err    error
	delay  time.Duration
}

func (r *recordingNotifier) Notify(ctx context.Context, ev Event) error {
	if r.delay > 0 {
		time.Sleep(r.delay)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return r.err
}

func (r *recordingNotifier) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func TestFormat(t *testing.T) {
	tests := []struct {
		name string
		ev   Event
		want string
	}{
		{
			name: "shout",
			ev:   Event{Kind: KindShout, Name: "Ann", Message: "hi there"},
			want: "New shout from Ann: hi there",
		},
		{
			name: "guestbook with website",
			ev:   Event{Kind: KindGuestbook, Name: "Bob", Website: "https://bob.example", Message: "nice site"},
			want: "New guestbook entry from Bob (https://bob.example): nice site",
		},
		{
			name: "entities decoded",
			ev:   Event{Kind: KindGuestbook, Name: "Tom &amp; Jerry", Message: "1 &lt; 2"},
			want: "New guestbook entry from Tom & Jerry: 1 < 2",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Format(tt.ev))
		})
	}
}

func TestFromConfig(t *testing.T) {
	n, err := FromConfig(config.NotifyConfig{})
	require.NoError(t, err)
	assert.IsType(t, Nop{}, n)

	n, err = FromConfig(config.NotifyConfig{Matrix: config.MatrixConfig{
		Enabled:     true,
		Homeserver:  "https://matrix.example.org",
		UserID:      "@desk:example.org",
		AccessToken: "token",
		RoomID:      "!room:example.org",
	}})
	require.NoError(t, err)
	assert.IsType(t, &MatrixNotifier{}, n)
}

func TestMatrixNotifier_SendsText(t *testing.T) {
	var (
		mu      sync.Mutex
		gotPath string
		gotAuth string
		gotBody map[string]any
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"event_id":"$evt1"}`))
	}))
	defer srv.Close()

	n, err := NewMatrixNotifier(config.MatrixConfig{
		Homeserver:  srv.URL,
		UserID:      "@desk:example.org",
		AccessToken: "secret-token",
		RoomID:      "!room:example.org",
	})
	require.NoError(t, err)

	err = n.Notify(context.Background(), Event{Kind: KindShout, Name: "Ann", Message: "hello"})
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.True(t, strings.Contains(gotPath, "/send/m.room.message/"), "path = %s", gotPath)
	assert.True(t, strings.Contains(gotPath, "!room:example.org"), "path = %s", gotPath)
	assert.Equal(t, "Bearer secret-token", gotAuth)
	assert.Equal(t, "m.text", gotBody["msgtype"])
	assert.Equal(t, "New shout from Ann: hello", gotBody["body"])
}

func TestMatrixNotifier_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"errcode":"M_FORBIDDEN","error":"not in room"}`))
	}))
	defer srv.Close()

	n, err := NewMatrixNotifier(config.MatrixConfig{
		Homeserver:  srv.URL,
		UserID:      "@desk:example.org",
		AccessToken: "token",
		RoomID:      "!room:example.org",
	})
	require.NoError(t, err)

	err = n.Notify(context.Background(), Event{Kind: KindShout, Name: "Ann", Message: "hello"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sending matrix message")
}

func TestDispatcher_DeliversAndCloseWaits(t *testing.T) {
	rec := &recordingNotifier{delay: 20 * time.Millisecond}
	d := NewDispatcher(rec, testLogger())

	d.Dispatch(Event{Kind: KindShout, Name: "a", Message: "1"})
	d.Dispatch(Event{Kind: KindGuestbook, Name: "b", Message: "2"})
	d.Close()

	assert.Len(t, rec.Events(), 2)
}

func TestDispatcher_FailureIsLogged(t *testing.T) {
	rec := &recordingNotifier{err: errors.New("homeserver down")}
	d := NewDispatcher(rec, testLogger())

	d.Dispatch(Event{Kind: KindShout, Name: "a", Message: "1"})
	d.Close()

	assert.Len(t, rec.Events(), 1)
}

func TestDispatcher_DropsAfterClose(t *testing.T) {
	rec := &recordingNotifier{}
	d := NewDispatcher(rec, testLogger())
	d.Close()

	d.Dispatch(Event{Kind: KindShout, Name: "late", Message: "x"})
	assert.Empty(t, rec.Events())
}

func TestDispatcher_NilNotifier(t *testing.T) {
	d := NewDispatcher(nil, testLogger())
	d.Dispatch(Event{Kind: KindShout})
	d.Close()
}
