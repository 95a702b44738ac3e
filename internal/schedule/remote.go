package schedule

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// RemoteBlob stores the collection in a JSON-bin style HTTP service:
// GET returns {"record": <collection>}, PUT replaces the record. The
// service has no transactional guarantees; serialization is the
// Registry's job.
type RemoteBlob struct {
	url    string
	apiKey string
	client *http.Client
}

func NewRemoteBlob(url, apiKey string, timeout time.Duration) *RemoteBlob {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &RemoteBlob{
		url:    url,
		apiKey: apiKey,
		client: &http.Client{Timeout: timeout},
	}
}

func (r *RemoteBlob) Load(ctx context.Context) ([]Entry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.url+"/latest", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build store request: %w", err)
	}
	if r.apiKey != "" {
		req.Header.Set("X-Master-Key", r.apiKey)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("schedule store read failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("schedule store read failed: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read store response: %w", err)
	}

	// The bin wraps the payload in {"record": ...}; tolerate a bare payload too.
	record := gjson.GetBytes(body, "record")
	raw := body
	if record.Exists() {
		raw = []byte(record.Raw)
	}

	var book Book
	if err := json.Unmarshal(raw, &book); err != nil {
		return nil, fmt.Errorf("failed to parse schedule collection: %w", err)
	}
	if book.Entries == nil {
		return []Entry{}, nil
	}
	return book.Entries, nil
}

func (r *RemoteBlob) Save(ctx context.Context, entries []Entry) error {
	book := Book{Version: bookVersion, Entries: entries}
	payload, err := json.Marshal(book)
	if err != nil {
		return fmt.Errorf("failed to marshal schedule collection: %w", err)
	}
	body, err := sjson.SetRawBytes([]byte(`{}`), "record", payload)
	if err != nil {
		return fmt.Errorf("failed to build store payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, r.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build store request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if r.apiKey != "" {
		req.Header.Set("X-Master-Key", r.apiKey)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("schedule store write failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("schedule store write failed: status %d", resp.StatusCode)
	}
	return nil
}
