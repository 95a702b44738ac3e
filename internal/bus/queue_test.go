package bus

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestPublishConsumeInbound(t *testing.T) {
	b := NewMessageBus(10)
	b.PublishInbound(InboundEvent{Channel: "telegram", SenderID: "7", ChatID: "42", Content: "hello"})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	evt, err := b.ConsumeInbound(ctx)
	if err != nil {
		t.Fatalf("ConsumeInbound: %v", err)
	}
	if evt.Content != "hello" || evt.ChatID != "42" {
		t.Errorf("unexpected event: %+v", evt)
	}
	if evt.IsCallback() {
		t.Error("plain message should not be a callback")
	}
}

func TestConsumeInboundCancelled(t *testing.T) {
	b := NewMessageBus(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := b.ConsumeInbound(ctx); err == nil {
		t.Fatal("expected error from cancelled context")
	}
}

func TestSessionKey(t *testing.T) {
	evt := InboundEvent{Channel: "telegram", ChatID: "99"}
	if got := evt.SessionKey(); got != "telegram:99" {
		t.Errorf("SessionKey = %q, want %q", got, "telegram:99")
	}
}

func TestDispatchOutbound(t *testing.T) {
	b := NewMessageBus(10)

	var mu sync.Mutex
	var got []OutboundMessage
	b.Subscribe("telegram", func(msg OutboundMessage) {
		mu.Lock()
		got = append(got, msg)
		mu.Unlock()
	})

	var wildcard []OutboundMessage
	b.Subscribe("", func(msg OutboundMessage) {
		mu.Lock()
		wildcard = append(wildcard, msg)
		mu.Unlock()
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		b.DispatchOutbound(ctx)
		close(done)
	}()

	b.PublishOutbound(OutboundMessage{Channel: "telegram", ChatID: "42", Content: "hi"})
	b.PublishOutbound(OutboundMessage{Channel: "other", ChatID: "1", Content: "nope"})

	deadline := time.After(time.Second)
	for {
		mu.Lock()
		n, w := len(got), len(wildcard)
		mu.Unlock()
		if n == 1 && w == 2 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("dispatch timeout: got %d channel msgs, %d wildcard msgs", n, w)
		case <-time.After(10 * time.Millisecond):
		}
	}

	mu.Lock()
	if got[0].Content != "hi" {
		t.Errorf("unexpected message: %+v", got[0])
	}
	mu.Unlock()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("DispatchOutbound did not return after cancel")
	}
}

func TestCallbackEvent(t *testing.T) {
	evt := InboundEvent{Channel: "telegram", SenderID: "7", CallbackID: "cb1", CallbackData: "view:abc"}
	if !evt.IsCallback() {
		t.Error("expected callback event")
	}
}
