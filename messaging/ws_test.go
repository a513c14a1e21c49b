package messaging

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func startHub(t *testing.T) string {
	t.Helper()
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	server := httptest.NewServer(hub)
	t.Cleanup(func() {
		cancel()
		server.Close()
	})
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func dialBus(t *testing.T, url string) *WSBus {
	t.Helper()
	bus, err := DialBus(url)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(func() { bus.Close() })
	return bus
}

func TestHandshakeOverWebsocket(t *testing.T) {
	url := startHub(t)

	content := NewChannel("content", dialBus(t, url))
	defer content.Close()
	injected := NewChannel("injected", dialBus(t, url))
	defer injected.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := content.WaitForConnected(ctx, "injected"); err != nil {
		t.Fatalf("content side never connected: %v", err)
	}
	if err := injected.WaitForConnected(ctx, "content"); err != nil {
		t.Fatalf("injected side never connected: %v", err)
	}
}

func TestRequestResponseOverWebsocket(t *testing.T) {
	url := startHub(t)

	responder := NewChannel("responder", dialBus(t, url))
	defer responder.Close()
	responder.OnMessage(func(msg Message) {
		if msg.Type != "GET_STATE" {
			return
		}
		responder.Post(PostConfig{
			Type:      "STATE",
			Content:   "ok",
			To:        msg.From,
			ContextID: msg.ContextID,
		}, nil)
	})

	requester := NewChannel("requester", dialBus(t, url))
	defer requester.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := requester.WaitForConnected(ctx, "responder"); err != nil {
		t.Fatal(err)
	}

	content := requester.Request(ctx, PostConfig{Type: "GET_STATE", To: "responder"}, 5*time.Second)
	if content == nil {
		t.Fatal("request over websocket returned no answer")
	}
	var decoded string
	if err := json.Unmarshal(content, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded != "ok" {
		t.Errorf("decoded %q", decoded)
	}
}

func TestPostAfterCloseFails(t *testing.T) {
	url := startHub(t)
	bus := dialBus(t, url)
	if err := bus.Close(); err != nil {
		t.Fatal(err)
	}
	if err := bus.Post(Message{Type: "PING", From: "a"}); err == nil {
		t.Error("post on a closed bus should fail")
	}
}
