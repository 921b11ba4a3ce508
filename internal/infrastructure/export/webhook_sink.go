package export

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/oisp/sensor/internal/domain/event"
)

// WebhookSink POSTs events (individually or batched as a JSON array) to a
// fixed URL. Retry/back-off is handled by the owning sinkWorker, not here.
type WebhookSink struct {
	url    string
	client *http.Client
}

func NewWebhookSink(url string) *WebhookSink {
	return &WebhookSink{url: url, client: &http.Client{Timeout: 10 * time.Second}}
}

func (s *WebhookSink) Name() string { return "webhook:" + s.url }

func (s *WebhookSink) Start(ctx context.Context) error { return nil }

func (s *WebhookSink) Export(ctx context.Context, ev *event.Event) error {
	return s.post(ctx, ev)
}

func (s *WebhookSink) ExportBatch(ctx context.Context, evs []*event.Event) error {
	return s.post(ctx, evs)
}

func (s *WebhookSink) post(ctx context.Context, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("export: webhook %s returned status %d", s.url, resp.StatusCode)
	}
	return nil
}

func (s *WebhookSink) Flush(ctx context.Context) error    { return nil }
func (s *WebhookSink) Shutdown(ctx context.Context) error { return nil }
