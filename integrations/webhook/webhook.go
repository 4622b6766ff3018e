// Package webhook delivers notifications by POSTing them to configured HTTP
// endpoints.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"progresskit/notify"
)

// Notifier posts notification JSON to each configured endpoint.
type Notifier struct {
	client    *http.Client
	endpoints []string
}

// Option configures a Notifier.
type Option func(*Notifier)

// WithClient overrides the HTTP client (defaults to a 2s timeout).
func WithClient(c *http.Client) Option {
	return func(n *Notifier) {
		if c != nil {
			n.client = c
		}
	}
}

func New(endpoints []string, opts ...Option) *Notifier {
	n := &Notifier{
		client:    &http.Client{Timeout: 2 * time.Second},
		endpoints: append([]string{}, endpoints...),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Notify posts to every endpoint and reports the combined failures. The
// dispatcher treats any error as log-only.
func (n *Notifier) Notify(ctx context.Context, msg notify.Notification) error {
	if len(n.endpoints) == 0 {
		return nil
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	var errs []error
	for _, ep := range n.endpoints {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, ep, bytes.NewReader(body))
		if err != nil {
			errs = append(errs, err)
			continue
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := n.client.Do(req)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		_ = resp.Body.Close()
		if resp.StatusCode >= 400 {
			errs = append(errs, fmt.Errorf("endpoint %s returned %d", ep, resp.StatusCode))
		}
	}
	return errors.Join(errs...)
}

var _ notify.Notifier = (*Notifier)(nil)
