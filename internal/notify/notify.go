// Package notify delivers short messages about newly claimed tasks.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/ungeskriptet/samsung-grab/internal/ports"
)

// NewTaskTitle is the title of notifications about a claimed task.
const NewTaskTitle = "samsung-grab: new task"

type Notifier interface {
	Notify(ctx context.Context, title, body string) error
}

// Webhook posts {"title": ..., "body": ...} as JSON to a URL.
type Webhook struct {
	URL    string
	Client ports.HTTPClient
}

func (w *Webhook) Notify(ctx context.Context, title, body string) error {
	payload, err := json.Marshal(map[string]string{"title": title, "body": body})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	client := w.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("notify %s: HTTP %d", redact(w.URL), resp.StatusCode)
	}
	return nil
}

// Multi delivers to every notifier and joins their errors.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, title, body string) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, title, body); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Parse builds a notifier from an opaque configuration string holding one
// or more whitespace separated http(s) URLs. An empty string yields nil.
func Parse(config string, client ports.HTTPClient) (Notifier, error) {
	var m Multi
	for _, field := range strings.Fields(config) {
		u, err := url.Parse(field)
		if err != nil {
			return nil, fmt.Errorf("notification URL: %w", err)
		}
		switch u.Scheme {
		case "http", "https":
			m = append(m, &Webhook{URL: field, Client: client})
		default:
			return nil, fmt.Errorf("notification URL %s: unsupported scheme %q", redact(field), u.Scheme)
		}
	}
	switch len(m) {
	case 0:
		return nil, nil
	case 1:
		return m[0], nil
	}
	return m, nil
}

// redact drops credentials and query strings, which often carry tokens.
func redact(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "<invalid url>"
	}
	u.User = nil
	u.RawQuery = ""
	return u.String()
}
