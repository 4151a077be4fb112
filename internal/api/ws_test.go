package api

import (
	"testing"

	"github.com/gorilla/websocket"
	"sla-engine/internal/logging"
)

func TestDeliveryHubConnectionCap(t *testing.T) {
	hub := NewDeliveryHub(logging.NewDiscard())

	conns := make([]*websocket.Conn, maxFeedConnections)
	for i := range conns {
		conns[i] = &websocket.Conn{}
		if !hub.AddConnection("p1", conns[i]) {
			t.Fatalf("connection %d rejected below the cap", i+1)
		}
	}

	extra := &websocket.Conn{}
	if hub.AddConnection("p1", extra) {
		t.Error("connection above the cap was accepted")
	}

	// another project is unaffected by p1's full set
	if !hub.AddConnection("p2", &websocket.Conn{}) {
		t.Error("connection for a different project rejected")
	}

	// dropping a subscriber frees a slot
	hub.RemoveConnection("p1", conns[0])
	if !hub.AddConnection("p1", extra) {
		t.Error("connection rejected after a slot was freed")
	}
}
