// internal/delivery/registry.go
package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Handler delivers an out-of-turn report, such as a reminder result, for
// the session identified by sessionKey.
type Handler func(ctx context.Context, sessionKey, report string) error

// Registry routes reports to a handler by session key prefix
// (e.g. "http:", "slack:"). The empty prefix matches every key.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry creates an empty delivery registry.
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[string]Handler),
	}
}

// Register adds a handler for session keys starting with prefix.
func (r *Registry) Register(prefix string, handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[prefix] = handler
}

// Deliver calls the handler with the longest prefix matching sessionKey.
func (r *Registry) Deliver(ctx context.Context, sessionKey, report string) error {
	r.mu.RLock()
	var (
		best    Handler
		bestLen = -1
	)
	for prefix, handler := range r.handlers {
		if strings.HasPrefix(sessionKey, prefix) && len(prefix) > bestLen {
			best, bestLen = handler, len(prefix)
		}
	}
	r.mu.RUnlock()

	if best == nil {
		return fmt.Errorf("no delivery handler for session key: %s", sessionKey)
	}
	return best(ctx, sessionKey, report)
}

// Notification is the body Webhook posts.
type Notification struct {
	SessionKey string    `json:"session_key"`
	Report     any       `json:"report"`
	At         time.Time `json:"at"`
}

// Webhook returns a Handler that POSTs each report as a Notification to
// url. Reports that are JSON documents are embedded as-is.
func Webhook(client *http.Client, url string) Handler {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return func(ctx context.Context, sessionKey, report string) error {
		n := Notification{SessionKey: sessionKey, Report: report, At: time.Now()}
		if json.Valid([]byte(report)) {
			n.Report = json.RawMessage(report)
		}

		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		if err := enc.Encode(n); err != nil {
			return fmt.Errorf("encode notification: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := client.Do(req)
		if err != nil {
			return fmt.Errorf("post notification: %w", err)
		}
		defer resp.Body.Close()
		io.Copy(io.Discard, resp.Body)

		if resp.StatusCode >= 300 {
			return fmt.Errorf("notification rejected: %s", resp.Status)
		}
		return nil
	}
}
