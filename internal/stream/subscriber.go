// Threatcanvas - Real-Time Threat Intelligence Map
// Copyright 2026 The Threatcanvas Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/threatcanvas/threatcanvas

package stream

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/threatcanvas/threatcanvas/internal/logging"
	"github.com/threatcanvas/threatcanvas/internal/metrics"
	"github.com/threatcanvas/threatcanvas/internal/store"
)

const (
	writeWait = 10 * time.Second
	pongWait  = 60 * time.Second

	// Subscribers are read-only consumers; inbound frames are control
	// traffic at most.
	maxMessageSize = 4 * 1024

	// DefaultTickInterval paces each subscriber's delta pump.
	DefaultTickInterval = time.Second

	// DefaultKeepAliveInterval bounds how long a quiet connection goes
	// without any frame.
	DefaultKeepAliveInterval = 15 * time.Second
)

// subscriberIDCounter hands out unique IDs so hub shutdown can iterate in a
// stable order.
var subscriberIDCounter atomic.Uint64

// Subscriber couples one websocket connection to its own store cursor. A
// fresh subscriber starts at the zero cursor, so its first delta carries the
// entire retained window and every later one only what arrived since.
type Subscriber struct {
	id     uint64
	hub    *Hub
	conn   *websocket.Conn
	store  *store.Store
	cursor store.Cursor

	tick      time.Duration
	keepAlive time.Duration

	done  chan struct{}
	close sync.Once
}

// NewSubscriber creates a subscriber at the zero cursor. Non-positive
// intervals fall back to the defaults.
func NewSubscriber(hub *Hub, conn *websocket.Conn, st *store.Store, tick, keepAlive time.Duration) *Subscriber {
	if tick <= 0 {
		tick = DefaultTickInterval
	}
	if keepAlive <= 0 {
		keepAlive = DefaultKeepAliveInterval
	}
	return &Subscriber{
		id:        subscriberIDCounter.Add(1),
		hub:       hub,
		conn:      conn,
		store:     st,
		tick:      tick,
		keepAlive: keepAlive,
		done:      make(chan struct{}),
	}
}

// ID returns the subscriber's unique identifier.
func (s *Subscriber) ID() uint64 {
	return s.id
}

// Start launches the read and delta pumps.
func (s *Subscriber) Start() {
	go s.deltaPump()
	go s.readPump()
}

// closeOnce signals both pumps to stop. Safe to call from the hub and from
// either pump.
func (s *Subscriber) closeOnce() {
	s.close.Do(func() {
		close(s.done)
	})
}

// readPump drains the connection so close frames and pongs are processed.
// Subscribers have nothing to say; any payload is discarded.
func (s *Subscriber) readPump() {
	defer func() {
		s.hub.Unregister <- s
		_ = s.conn.Close()
	}()

	s.conn.SetReadLimit(maxMessageSize)
	if err := s.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		logging.Error().Err(err).Msg("failed to set read deadline")
		return
	}
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				logging.Debug().Err(err).Uint64("subscriber", s.id).Msg("unexpected websocket close")
			}
			return
		}
	}
}

// deltaPump advances the cursor on a fixed tick. Quiet ticks emit nothing;
// after keepAlive of silence a ping frame keeps intermediaries from timing
// out the connection. The opening ping doubles as a connection ack.
func (s *Subscriber) deltaPump() {
	ticker := time.NewTicker(s.tick)
	defer func() {
		ticker.Stop()
		_ = s.conn.Close()
	}()

	if err := s.writeMessage(Message{Type: MessageTypePing, Data: time.Now().Unix()}); err != nil {
		return
	}
	lastWrite := time.Now()

	for {
		select {
		case <-s.done:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = s.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case <-ticker.C:
			delta, next := s.store.DeltaSince(s.cursor)
			if !delta.Empty() {
				if err := s.writeMessage(Message{Type: MessageTypeDelta, Data: delta}); err != nil {
					return
				}
				s.cursor = next
				lastWrite = time.Now()
				metrics.StreamDeltasSent.Inc()
				continue
			}
			s.cursor = next

			if time.Since(lastWrite) >= s.keepAlive {
				if err := s.writeMessage(Message{Type: MessageTypePing, Data: time.Now().Unix()}); err != nil {
					return
				}
				lastWrite = time.Now()
				metrics.StreamKeepAlives.Inc()
			}
		}
	}
}

func (s *Subscriber) writeMessage(msg Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		logging.Error().Err(err).Msg("failed to marshal stream message")
		return err
	}
	if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return s.conn.WriteMessage(websocket.TextMessage, payload)
}
