package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"progresskit/core"
	"progresskit/notify"
)

func testNotification() notify.Notification {
	return notify.Notification{
		ID:      "n1",
		UserID:  core.UserID("u1"),
		Kind:    core.NotifyLevelUp,
		Message: "you reached level 2",
		At:      time.Now().UTC(),
	}
}

func TestNotifyPostsToEndpoints(t *testing.T) {
	var hits int32
	var got notify.Notification
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		body, _ := io.ReadAll(r.Body)
		_ = r.Body.Close()
		_ = json.Unmarshal(body, &got)
	}))
	defer srv.Close()

	n := New([]string{srv.URL})
	if err := n.Notify(context.Background(), testNotification()); err != nil {
		t.Fatal(err)
	}
	if atomic.LoadInt32(&hits) != 1 {
		t.Fatalf("expected 1 hit, got %d", hits)
	}
	if got.UserID != "u1" || got.Kind != core.NotifyLevelUp {
		t.Fatalf("unexpected payload: %+v", got)
	}
}

func TestNotifyReportsFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	n := New([]string{srv.URL})
	if err := n.Notify(context.Background(), testNotification()); err == nil {
		t.Fatal("expected error for 500 endpoint")
	}
}

func TestNotifyNoEndpoints(t *testing.T) {
	n := New(nil)
	if err := n.Notify(context.Background(), testNotification()); err != nil {
		t.Fatalf("no endpoints is a no-op, got %v", err)
	}
}
