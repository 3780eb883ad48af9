// Package payout implements ledger.Transferer: the last step of a withdrawal,
// where value leaves the ledger for an external recipient.
package payout

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/syndicate/internal/ledger"
)

var (
	_ ledger.Transferer = (*LogSink)(nil)
	_ ledger.Transferer = (*Webhook)(nil)
)

// LogSink records transfers in the log and always succeeds.
// It is the default when no webhook is configured.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a LogSink writing to logger, or slog.Default() if nil.
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger}
}

// Transfer logs the transfer.
func (s *LogSink) Transfer(ctx context.Context, to uuid.UUID, amount int64) error {
	s.logger.InfoContext(ctx, "Payout", "to", to, "amount", amount)
	return nil
}

// Request is the JSON body posted by Webhook.
type Request struct {
	To     uuid.UUID `json:"to"`
	Amount int64     `json:"amount"`
}

// Webhook posts each transfer to an HTTP endpoint that moves the funds.
// Any non-2xx answer fails the transfer, which rolls the withdrawal back.
type Webhook struct {
	url    string
	client *http.Client
}

// NewWebhook creates a Webhook posting to url with the given request timeout.
func NewWebhook(url string, timeout time.Duration) *Webhook {
	return &Webhook{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

// Transfer posts the transfer and waits for the endpoint to accept it.
func (w *Webhook) Transfer(ctx context.Context, to uuid.UUID, amount int64) error {
	body, err := json.Marshal(Request{To: to, Amount: amount})
	if err != nil {
		return fmt.Errorf("failed to encode payout: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build payout request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to post payout: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("payout rejected: %s: %s", resp.Status, bytes.TrimSpace(msg))
	}

	return nil
}
