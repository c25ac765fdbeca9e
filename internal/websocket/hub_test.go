package websocket

import (
	"testing"
)

func testClient(id string, buffer int) *WSClient {
	return &WSClient{
		ID:   id,
		Send: make(chan *Envelope, buffer),
		done: make(chan struct{}),
	}
}

func mustEnvelope(t *testing.T, event string, payload interface{}) *Envelope {
	t.Helper()
	envelope, err := NewEnvelope(event, payload)
	if err != nil {
		t.Fatalf("build envelope: %v", err)
	}
	return envelope
}

func TestBroadcastReachesRoomMembersOnly(t *testing.T) {
	hub := NewHub()
	inRoom := testClient("a", 4)
	outside := testClient("b", 4)
	hub.Register(inRoom)
	hub.Register(outside)
	hub.JoinRoom("session-1", inRoom)

	hub.Broadcast("session-1", mustEnvelope(t, EventNewMessage, map[string]string{"content": "hi"}))

	select {
	case envelope := <-inRoom.Send:
		if envelope.Event != EventNewMessage {
			t.Fatalf("unexpected event %q", envelope.Event)
		}
	default:
		t.Fatal("room member did not receive the broadcast")
	}

	select {
	case <-outside.Send:
		t.Fatal("client outside the room received the broadcast")
	default:
	}
}

func TestUnregisteredClientReceivesNothing(t *testing.T) {
	hub := NewHub()
	client := testClient("a", 4)
	hub.Register(client)
	hub.JoinRoom("session-1", client)

	hub.Unregister(client)
	hub.Broadcast("session-1", mustEnvelope(t, EventNewMessage, nil))

	// The send channel is closed on unregister; any residual read must
	// report closed, not a delivered message.
	select {
	case envelope, ok := <-client.Send:
		if ok {
			t.Fatalf("disconnected client received %v", envelope)
		}
	default:
		t.Fatal("send channel should be closed after unregister")
	}

	if hub.RoomSize("session-1") != 0 {
		t.Fatal("room should be empty after unregister")
	}
}

func TestSlowClientIsEvictedWithoutBlockingOthers(t *testing.T) {
	hub := NewHub()
	slow := testClient("slow", 1)
	healthy := testClient("healthy", 4)
	hub.Register(slow)
	hub.Register(healthy)
	hub.JoinRoom("agents", slow)
	hub.JoinRoom("agents", healthy)

	// Fill the slow client's buffer so the next broadcast cannot be
	// delivered to it.
	slow.Send <- mustEnvelope(t, EventNotification, nil)

	hub.Broadcast("agents", mustEnvelope(t, EventNotification, map[string]string{"title": "x"}))

	if got := len(healthy.Send); got != 1 {
		t.Fatalf("healthy client should have 1 message, got %d", got)
	}
	if hub.InRoom("agents", "slow") {
		t.Fatal("slow client should have been evicted")
	}
	if hub.ConnectionCount() != 1 {
		t.Fatalf("expected 1 remaining connection, got %d", hub.ConnectionCount())
	}
}

func TestDoubleUnregisterIsSafe(t *testing.T) {
	hub := NewHub()
	client := testClient("a", 1)
	hub.Register(client)

	hub.Unregister(client)
	hub.Unregister(client) // must not panic on double-close

	if hub.ConnectionCount() != 0 {
		t.Fatalf("expected 0 connections, got %d", hub.ConnectionCount())
	}
}

func TestSendToUnknownClientFails(t *testing.T) {
	hub := NewHub()
	if err := hub.SendTo("ghost", mustEnvelope(t, EventError, nil)); err == nil {
		t.Fatal("expected an error for an unknown client")
	}
}

// SendTo must not race the channel close performed by a concurrent
// eviction. Unbuffered victims with no reader make every delivery
// attempt an eviction, so closes keep happening while SendTo hammers
// the same client id; a send on a closed channel would panic.
func TestSendToSurvivesConcurrentEviction(t *testing.T) {
	hub := NewHub()
	envelope := mustEnvelope(t, EventNotification, nil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			victim := testClient("victim", 0)
			hub.Register(victim)
			hub.JoinRoom("agents", victim)
			hub.Broadcast("agents", envelope)
		}
	}()

	for i := 0; i < 200; i++ {
		// Errors are expected here (unknown client, full buffer); the
		// failure mode is a panic, not a returned error.
		_ = hub.SendTo("victim", envelope)
	}
	<-done
}

func TestJoinRoomRequiresRegistration(t *testing.T) {
	hub := NewHub()
	client := testClient("a", 1)

	hub.JoinRoom("session-1", client)
	if hub.RoomSize("session-1") != 0 {
		t.Fatal("unregistered client must not join rooms")
	}
}
