package schedule

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func testEntry(t *testing.T, msg string, at time.Time) Entry {
	t.Helper()
	e, err := NewEntry(at, "222", msg)
	if err != nil {
		t.Fatalf("NewEntry: %v", err)
	}
	return e
}

func TestFileBlobRoundTrip(t *testing.T) {
	blob := NewFileBlob(filepath.Join(t.TempDir(), "schedules.json"))
	ctx := context.Background()

	at := time.Date(2031, 5, 1, 9, 0, 0, 0, sgt)
	want := []Entry{testEntry(t, "hello", at), testEntry(t, "again", at.Add(time.Hour))}
	if err := blob.Save(ctx, want); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := blob.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(got))
	}
	if got[0].ID != want[0].ID || got[0].Message != "hello" {
		t.Errorf("first entry mismatch: %+v", got[0])
	}
	if !got[0].Time.Equal(at) {
		t.Errorf("time did not round-trip: %v vs %v", got[0].Time, at)
	}
}

func TestFileBlobMissingFile(t *testing.T) {
	blob := NewFileBlob(filepath.Join(t.TempDir(), "nope.json"))
	got, err := blob.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected empty collection, got %d entries", len(got))
	}
}

func TestFileBlobReadsLegacyArray(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schedules.json")
	legacy := `[{"time": "2025-01-01T10:00:00+08:00", "recipient_id": "222", "message": "hi"}]`
	if err := os.WriteFile(path, []byte(legacy), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	got, err := NewFileBlob(path).Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(got))
	}
	if got[0].Message != "hi" || got[0].RecipientID != "222" {
		t.Errorf("unexpected entry: %+v", got[0])
	}
	if got[0].ID == "" {
		t.Error("legacy entry should be assigned an ID on load")
	}
}

func TestFileBlobSavesVersionedShape(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schedules.json")
	blob := NewFileBlob(path)
	at := time.Date(2031, 5, 1, 9, 0, 0, 0, sgt)
	if err := blob.Save(context.Background(), []Entry{testEntry(t, "x", at)}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("saved shape is not an object: %v", err)
	}
	if _, ok := raw["version"]; !ok {
		t.Error("saved shape missing version field")
	}
	if _, ok := raw["entries"]; !ok {
		t.Error("saved shape missing entries field")
	}
}

func TestBookRejectsGarbage(t *testing.T) {
	var b Book
	if err := json.Unmarshal([]byte(`"what"`), &b); err == nil {
		t.Fatal("expected error for non-collection JSON")
	}
}

func TestBookAcceptsEmptyEnvelope(t *testing.T) {
	for _, payload := range []string{`{}`, `{"version":1,"entries":null}`, `{"version":1,"entries":[]}`} {
		var b Book
		if err := json.Unmarshal([]byte(payload), &b); err != nil {
			t.Fatalf("Unmarshal(%s): %v", payload, err)
		}
		if b.Version != bookVersion {
			t.Errorf("Unmarshal(%s): version = %d, want %d", payload, b.Version, bookVersion)
		}
		if len(b.Entries) != 0 {
			t.Errorf("Unmarshal(%s): expected no entries, got %+v", payload, b.Entries)
		}
	}
}
