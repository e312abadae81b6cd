package notify

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSend_PostsTextPayload(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &got); err != nil {
			t.Errorf("bad payload: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewSlack(discard(), srv.URL, nil)
	if !s.Send(context.Background(), "hello") {
		t.Fatal("Send() = false")
	}
	if got["text"] != "hello" {
		t.Errorf("payload text = %q", got["text"])
	}
}

func TestSend_EmptyTextSuppressed(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	s := NewSlack(discard(), srv.URL, nil)
	if !s.Send(context.Background(), "") {
		t.Error("Send() of empty text should report delivered")
	}
	if called {
		t.Error("empty text reached the webhook")
	}
}

func TestSend_Non2xxIsSwallowed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no_service", http.StatusNotFound)
	}))
	defer srv.Close()

	s := NewSlack(discard(), srv.URL, nil)
	if s.Send(context.Background(), "hello") {
		t.Error("Send() = true for a 404 response")
	}
}

func TestSend_TransportErrorIsSwallowed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused from here on

	s := NewSlack(discard(), srv.URL, nil)
	if s.Send(context.Background(), "hello") {
		t.Error("Send() = true for a dead endpoint")
	}
}

func TestSend_NoURLConfigured(t *testing.T) {
	s := NewSlack(discard(), "", nil)
	if s.Send(context.Background(), "hello") {
		t.Error("Send() = true without a webhook URL")
	}
}
