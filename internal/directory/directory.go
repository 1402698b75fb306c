// Package directory pushes room-summary updates to the external lobby
// directory service. Notifications are strictly best-effort: a directory
// outage must never block or fail a room's own state transitions.
package directory

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/starspacegroup/starspace-server/internal/telemetry"
)

// RoomSummary is the discovery record the directory lists.
type RoomSummary struct {
	Code        string `json:"code"`
	HostID      string `json:"hostId"`
	Private     bool   `json:"private"`
	Phase       string `json:"phase"`
	PlayerCount int    `json:"playerCount"`
	MaxPlayers  int    `json:"maxPlayers"`
	Wave        int    `json:"wave"`
}

// Notifier receives room lifecycle updates.
type Notifier interface {
	Upsert(ctx context.Context, summary RoomSummary) error
	Archive(ctx context.Context, code string) error
	Delete(ctx context.Context, code string) error
}

// Nop discards all notifications.
type Nop struct{}

// Upsert implements Notifier.
func (Nop) Upsert(context.Context, RoomSummary) error { return nil }

// Archive implements Notifier.
func (Nop) Archive(context.Context, string) error { return nil }

// Delete implements Notifier.
func (Nop) Delete(context.Context, string) error { return nil }

// HTTPNotifier posts summaries to the directory service. Requests carry a
// short timeout so a slow directory cannot back up callers.
type HTTPNotifier struct {
	baseURL string
	client  *http.Client
	logger  telemetry.Logger
}

// NewHTTPNotifier targets the directory at baseURL.
func NewHTTPNotifier(baseURL string, logger telemetry.Logger) *HTTPNotifier {
	if logger == nil {
		logger = telemetry.Nop()
	}
	return &HTTPNotifier{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 2 * time.Second},
		logger:  logger,
	}
}

// Upsert implements Notifier.
func (n *HTTPNotifier) Upsert(ctx context.Context, summary RoomSummary) error {
	body, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("marshal room summary: %w", err)
	}
	return n.do(ctx, http.MethodPut, "/rooms/"+summary.Code, body)
}

// Archive implements Notifier.
func (n *HTTPNotifier) Archive(ctx context.Context, code string) error {
	return n.do(ctx, http.MethodPost, "/rooms/"+code+"/archive", nil)
}

// Delete implements Notifier.
func (n *HTTPNotifier) Delete(ctx context.Context, code string) error {
	return n.do(ctx, http.MethodDelete, "/rooms/"+code, nil)
}

func (n *HTTPNotifier) do(ctx context.Context, method, path string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, method, n.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build directory request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("directory %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("directory %s %s: status %d", method, path, resp.StatusCode)
	}
	return nil
}

// Async wraps a Notifier so every call is dispatched on its own goroutine
// and failures are only logged. Rooms use this to keep the tick loop from
// ever waiting on the directory.
type Async struct {
	next   Notifier
	logger telemetry.Logger
}

// NewAsync wraps next; a nil next becomes a Nop.
func NewAsync(next Notifier, logger telemetry.Logger) *Async {
	if next == nil {
		next = Nop{}
	}
	if logger == nil {
		logger = telemetry.Nop()
	}
	return &Async{next: next, logger: logger}
}

// Upsert implements Notifier.
func (a *Async) Upsert(_ context.Context, summary RoomSummary) error {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := a.next.Upsert(ctx, summary); err != nil {
			a.logger.Printf("directory upsert for %s failed: %v", summary.Code, err)
		}
	}()
	return nil
}

// Archive implements Notifier.
func (a *Async) Archive(_ context.Context, code string) error {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := a.next.Archive(ctx, code); err != nil {
			a.logger.Printf("directory archive for %s failed: %v", code, err)
		}
	}()
	return nil
}

// Delete implements Notifier.
func (a *Async) Delete(_ context.Context, code string) error {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := a.next.Delete(ctx, code); err != nil {
			a.logger.Printf("directory delete for %s failed: %v", code, err)
		}
	}()
	return nil
}
