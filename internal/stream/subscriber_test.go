// Threatcanvas - Real-Time Threat Intelligence Map
// Copyright 2026 The Threatcanvas Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/threatcanvas/threatcanvas

package stream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/threatcanvas/threatcanvas/internal/models"
	"github.com/threatcanvas/threatcanvas/internal/store"
)

// wireMessage mirrors Message with a concrete delta payload for decoding.
// Ping frames carry an epoch-seconds number in data, so the payload is only
// decoded as a Delta for delta frames.
type wireMessage struct {
	Type string `json:"type"`
	Data models.Delta
}

func dialSubscriber(t *testing.T, st *store.Store, tick, keepAlive time.Duration) *websocket.Conn {
	t.Helper()

	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = hub.RunWithContext(ctx) }()

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		sub := NewSubscriber(hub, conn, st, tick, keepAlive)
		hub.Register <- sub
		sub.Start()
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readWire(t *testing.T, conn *websocket.Conn) wireMessage {
	t.Helper()
	if err := conn.SetReadDeadline(time.Now().Add(5 * time.Second)); err != nil {
		t.Fatalf("set read deadline: %v", err)
	}
	_, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	var env struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(payload, &env); err != nil {
		t.Fatalf("unmarshal %q: %v", payload, err)
	}
	msg := wireMessage{Type: env.Type}
	if env.Type == MessageTypeDelta {
		if err := json.Unmarshal(env.Data, &msg.Data); err != nil {
			t.Fatalf("unmarshal delta payload %q: %v", env.Data, err)
		}
	}
	return msg
}

func TestSubscriberInitialWindowThenIncrements(t *testing.T) {
	t.Parallel()

	st := store.New(100, 100)
	st.AppendPoints([]models.Point{
		{IP: "1.1.1.1", Lat: 1, Lon: 1, FirstSeen: 100},
		{IP: "2.2.2.2", Lat: 2, Lon: 2, FirstSeen: 100},
	})

	conn := dialSubscriber(t, st, 10*time.Millisecond, time.Hour)

	if msg := readWire(t, conn); msg.Type != MessageTypePing {
		t.Fatalf("first frame type = %q, want %q", msg.Type, MessageTypePing)
	}

	first := readWire(t, conn)
	if first.Type != MessageTypeDelta {
		t.Fatalf("second frame type = %q, want %q", first.Type, MessageTypeDelta)
	}
	if len(first.Data.Points) != 2 {
		t.Fatalf("initial delta has %d points, want the full window of 2", len(first.Data.Points))
	}

	st.AppendPoints([]models.Point{{IP: "3.3.3.3", Lat: 3, Lon: 3, FirstSeen: 200}})
	st.AppendFlows([]models.Flow{{SrcIP: "3.3.3.3", DstIP: "8.8.8.8", TS: 200}})

	second := readWire(t, conn)
	if second.Type != MessageTypeDelta {
		t.Fatalf("third frame type = %q, want %q", second.Type, MessageTypeDelta)
	}
	if len(second.Data.Points) != 1 || second.Data.Points[0].IP != "3.3.3.3" {
		t.Errorf("incremental delta points = %+v, want only 3.3.3.3", second.Data.Points)
	}
	if len(second.Data.Flows) != 1 {
		t.Errorf("incremental delta has %d flows, want 1", len(second.Data.Flows))
	}
}

func TestSubscriberKeepAlivePing(t *testing.T) {
	t.Parallel()

	// Empty store: no deltas ever fire, so after the keep-alive window the
	// pump must emit a ping on its own.
	conn := dialSubscriber(t, store.New(10, 10), 10*time.Millisecond, 50*time.Millisecond)

	if msg := readWire(t, conn); msg.Type != MessageTypePing {
		t.Fatalf("first frame type = %q, want %q", msg.Type, MessageTypePing)
	}
	if msg := readWire(t, conn); msg.Type != MessageTypePing {
		t.Errorf("keep-alive frame type = %q, want %q", msg.Type, MessageTypePing)
	}
}

func TestSubscriberCloseStopsPumps(t *testing.T) {
	t.Parallel()

	st := store.New(10, 10)
	conn := dialSubscriber(t, st, 10*time.Millisecond, time.Hour)

	if msg := readWire(t, conn); msg.Type != MessageTypePing {
		t.Fatalf("first frame type = %q, want %q", msg.Type, MessageTypePing)
	}

	// Client-initiated close: the server's read pump unregisters and the
	// connection winds down without new frames.
	deadline := time.Now().Add(time.Second)
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}
