package schedule

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/hirojw/hirobot/internal/bus"
)

func newTestRouter(t *testing.T, entries ...Entry) (*Router, *Sessions, *memBlob, *collector, func()) {
	t.Helper()
	blob := &memBlob{entries: entries}
	reg := NewRegistry(blob)
	now := time.Date(2025, 1, 1, 10, 0, 0, 0, sgt)
	sessions := NewSessions(reg, sgt, func() time.Time { return now })

	msgBus := bus.NewMessageBus(32)
	col := &collector{}
	msgBus.Subscribe("telegram", col.add)
	ctx, cancel := context.WithCancel(context.Background())
	go msgBus.DispatchOutbound(ctx)

	return NewRouter(reg, sessions, msgBus, "telegram", "admin"), sessions, blob, col, cancel
}

func adminCallback(data string) bus.InboundEvent {
	return bus.InboundEvent{
		Channel:      "telegram",
		SenderID:     "admin",
		ChatID:       "111",
		CallbackID:   "cb",
		CallbackData: data,
		MessageID:    "55",
	}
}

func TestRouterNonAdminIgnoredSilently(t *testing.T) {
	at := time.Date(2031, 5, 1, 9, 0, 0, 0, sgt)
	e := testEntry(t, "hi", at)
	r, _, blob, col, cancel := newTestRouter(t, e)
	defer cancel()

	evt := adminCallback("delete:" + e.ID)
	evt.SenderID = "stranger"
	r.HandleCallback(context.Background(), evt)

	time.Sleep(50 * time.Millisecond)
	if msgs := col.snapshot(); len(msgs) != 0 {
		t.Errorf("non-admin callback must get no reply, got %d", len(msgs))
	}
	if len(blob.entries) != 1 {
		t.Error("non-admin callback must not mutate the store")
	}
}

func TestRouterUnknownAction(t *testing.T) {
	at := time.Date(2031, 5, 1, 9, 0, 0, 0, sgt)
	r, _, blob, col, cancel := newTestRouter(t, testEntry(t, "hi", at))
	defer cancel()

	r.HandleCallback(context.Background(), adminCallback("explode:everything"))

	msgs := col.waitFor(t, 1)
	if !strings.Contains(msgs[0].Content, "Unknown action") {
		t.Errorf("reply = %q", msgs[0].Content)
	}
	if len(blob.entries) != 1 {
		t.Error("unknown action must not mutate the store")
	}
}

func TestRouterListRefreshDoesNotMutate(t *testing.T) {
	at := time.Date(2031, 5, 1, 9, 0, 0, 0, sgt)
	e := testEntry(t, "hi", at)
	r, _, blob, col, cancel := newTestRouter(t, e)
	defer cancel()

	r.HandleCallback(context.Background(), adminCallback("list:refresh"))

	msgs := col.waitFor(t, 1)
	if len(msgs[0].Buttons) != 2 { // one entry + refresh row
		t.Errorf("expected 2 keyboard rows, got %d", len(msgs[0].Buttons))
	}
	if msgs[0].EditMessageID != "55" {
		t.Errorf("list refresh should edit the menu message, got %q", msgs[0].EditMessageID)
	}
	if len(blob.entries) != 1 {
		t.Error("list refresh must not mutate the store")
	}
}

func TestRouterViewDetail(t *testing.T) {
	at := time.Date(2031, 5, 1, 9, 0, 0, 0, sgt)
	e := testEntry(t, "the message body", at)
	r, _, _, col, cancel := newTestRouter(t, e)
	defer cancel()

	r.HandleCallback(context.Background(), adminCallback("view:"+e.ID))

	msgs := col.waitFor(t, 1)
	if !strings.Contains(msgs[0].Content, "the message body") {
		t.Errorf("detail text missing body: %q", msgs[0].Content)
	}
	if !strings.Contains(msgs[0].Content, RenderTime(at)) {
		t.Errorf("detail text missing rendered time: %q", msgs[0].Content)
	}
}

func TestRouterViewStaleEntry(t *testing.T) {
	r, _, _, col, cancel := newTestRouter(t)
	defer cancel()

	r.HandleCallback(context.Background(), adminCallback("view:ghost"))

	msgs := col.waitFor(t, 1)
	if !strings.Contains(msgs[0].Content, "no longer exists") {
		t.Errorf("reply = %q", msgs[0].Content)
	}
}

func TestRouterDelete(t *testing.T) {
	at := time.Date(2031, 5, 1, 9, 0, 0, 0, sgt)
	keep := testEntry(t, "keep", at)
	drop := testEntry(t, "drop", at)
	r, _, blob, col, cancel := newTestRouter(t, keep, drop)
	defer cancel()

	r.HandleCallback(context.Background(), adminCallback("delete:"+drop.ID))

	msgs := col.waitFor(t, 1)
	if !strings.Contains(msgs[0].Content, "Deleted") {
		t.Errorf("reply = %q", msgs[0].Content)
	}
	if len(blob.entries) != 1 || blob.entries[0].ID != keep.ID {
		t.Errorf("unexpected store after delete: %+v", blob.entries)
	}
}

func TestRouterEditTimeOpensSession(t *testing.T) {
	at := time.Date(2031, 5, 1, 9, 0, 0, 0, sgt)
	e := testEntry(t, "hi", at)
	r, sessions, _, col, cancel := newTestRouter(t, e)
	defer cancel()

	r.HandleCallback(context.Background(), adminCallback("edit_time:"+e.ID))

	col.waitFor(t, 1)
	if !sessions.IsOpen("admin") {
		t.Error("edit_time should open an edit session")
	}
}

func TestRouterEditStaleEntryOpensNothing(t *testing.T) {
	r, sessions, _, col, cancel := newTestRouter(t)
	defer cancel()

	r.HandleCallback(context.Background(), adminCallback("edit_msg:ghost"))

	msgs := col.waitFor(t, 1)
	if !strings.Contains(msgs[0].Content, "no longer exists") {
		t.Errorf("reply = %q", msgs[0].Content)
	}
	if sessions.IsOpen("admin") {
		t.Error("stale edit action must not open a session")
	}
}
