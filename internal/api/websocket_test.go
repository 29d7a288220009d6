package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/FocuswithJustin/legacyfix/core/fixer"
)

func dialHub(t *testing.T, srv *httptest.Server, origin string) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	header := http.Header{}
	if origin != "" {
		header.Set("Origin", origin)
	}
	return websocket.DefaultDialer.Dial(url, header)
}

func waitForClients(t *testing.T, h *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for h.Clients() != n {
		if time.Now().After(deadline) {
			t.Fatalf("hub has %d clients, want %d", h.Clients(), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestWebSocketJobProgress(t *testing.T) {
	s := newTestServer(t, Config{}, fixer.Config{})
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	conn, _, err := dialHub(t, srv, "")
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()
	waitForClients(t, s.hub, 1)

	rec, env := do(t, s.Handler(), http.MethodPost, "/jobs", JobRequest{
		Kind:          "Entity",
		SourceVersion: 100,
		Documents:     []string{`{id:"EntityHorse",Type:1}`, `{id:"Pig"}`},
	})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("POST /jobs = %d", rec.Code)
	}
	jobID := decodeData[Job](t, env).ID

	var got []ProgressMessage
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("ReadMessage() error = %v after %+v", err, got)
		}
		var msg ProgressMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("decode %s: %v", data, err)
		}
		got = append(got, msg)
		if msg.Type == "complete" {
			break
		}
	}

	if len(got) != 3 {
		t.Fatalf("messages = %+v, want two progress and one complete", got)
	}
	for i, msg := range got[:2] {
		if msg.Type != "progress" || msg.JobID != jobID || msg.Done != i+1 || msg.Total != 2 {
			t.Errorf("message %d = %+v", i, msg)
		}
	}
	if got[2].Progress != 100 || got[2].Timestamp == "" {
		t.Errorf("complete message = %+v", got[2])
	}
}

func TestWebSocketOrigin(t *testing.T) {
	s := newTestServer(t, Config{AllowedOrigins: []string{"https://tools.example"}}, fixer.Config{})
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	conn, _, err := dialHub(t, srv, "https://tools.example")
	if err != nil {
		t.Fatalf("Dial(allowed origin) error = %v", err)
	}
	conn.Close()

	_, resp, err := dialHub(t, srv, "https://evil.example")
	if err == nil {
		t.Fatal("Dial(foreign origin) succeeded")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Errorf("foreign origin response = %v, want 403", resp)
	}
}

func TestHubStop(t *testing.T) {
	h := NewHub()
	go h.Run()
	h.Broadcast(ProgressMessage{Type: "progress"})
	h.Stop()
	h.Stop()

	var nilHub *Hub
	nilHub.Broadcast(ProgressMessage{Type: "progress"})
}
