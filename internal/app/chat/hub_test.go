package chat

import (
	"encoding/json"
	"testing"
)

func newQueueClient(id string, size int) *Client {
	return &Client{id: id, send: make(chan []byte, size)}
}

func TestHubPublishToAllMarshalsEnvelope(t *testing.T) {
	hub := NewHub()
	a, b := newQueueClient("a", 4), newQueueClient("b", 4)
	hub.Register(a)
	hub.Register(b)

	hub.PublishToAll(EventMOTD, "hi")

	for _, c := range []*Client{a, b} {
		select {
		case frame := <-c.send:
			var env Envelope
			if err := json.Unmarshal(frame, &env); err != nil {
				t.Fatal(err)
			}
			if env.Type != EventMOTD || string(env.Payload) != `"hi"` {
				t.Errorf("%s got %s", c.id, frame)
			}
		default:
			t.Errorf("%s received nothing", c.id)
		}
	}
}

func TestHubPublishToOneTargetsSingleClient(t *testing.T) {
	hub := NewHub()
	a, b := newQueueClient("a", 4), newQueueClient("b", 4)
	hub.Register(a)
	hub.Register(b)

	hub.PublishToOne("b", EventTyping, TypingNotice{Username: "x", Active: true})
	hub.PublishToOne("missing", EventTyping, nil)

	if len(a.send) != 0 || len(b.send) != 1 {
		t.Errorf("queues a=%d b=%d", len(a.send), len(b.send))
	}
}

func TestHubTerminatesSlowClient(t *testing.T) {
	hub := NewHub()
	slow := newQueueClient("slow", 1)
	hub.Register(slow)

	hub.PublishToOne("slow", EventMOTD, "1")
	hub.PublishToOne("slow", EventMOTD, "2")

	<-slow.send
	if _, ok := <-slow.send; ok {
		t.Error("slow client's queue should be closed")
	}

	// publishing to a closed client must not panic
	hub.PublishToAll(EventMOTD, "3")
}

func TestHubTerminateAndUnregister(t *testing.T) {
	hub := NewHub()
	c := newQueueClient("c", 1)
	hub.Register(c)

	hub.Terminate("c")
	if _, ok := <-c.send; ok {
		t.Error("terminated client's queue still open")
	}

	hub.Unregister(c)
	hub.Unregister(c)
	if hub.Count() != 0 {
		t.Errorf("Count = %d", hub.Count())
	}
}

func TestHubUnregisterIgnoresReplacedClient(t *testing.T) {
	hub := NewHub()
	old, current := newQueueClient("same", 1), newQueueClient("same", 1)
	hub.Register(old)
	hub.Register(current)

	hub.Unregister(old)
	if hub.Count() != 1 {
		t.Error("unregistering a stale client removed the current one")
	}
}
