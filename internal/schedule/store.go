package schedule

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Blob persists the schedule collection as one whole-collection document.
// There is no partial update: callers read-modify-write the full sequence.
type Blob interface {
	Load(ctx context.Context) ([]Entry, error)
	Save(ctx context.Context, entries []Entry) error
}

// FileBlob stores the collection in a local JSON file.
type FileBlob struct {
	path string
}

func NewFileBlob(path string) *FileBlob {
	return &FileBlob{path: path}
}

func (f *FileBlob) Load(ctx context.Context) ([]Entry, error) {
	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return []Entry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read schedule store: %w", err)
	}

	var book Book
	if err := json.Unmarshal(data, &book); err != nil {
		return nil, fmt.Errorf("failed to parse schedule store: %w", err)
	}
	if book.Entries == nil {
		return []Entry{}, nil
	}
	return book.Entries, nil
}

func (f *FileBlob) Save(ctx context.Context, entries []Entry) error {
	book := Book{Version: bookVersion, Entries: entries}
	data, err := json.MarshalIndent(book, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal schedule store: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return fmt.Errorf("failed to create store directory: %w", err)
	}
	return os.WriteFile(f.path, data, 0o644)
}
