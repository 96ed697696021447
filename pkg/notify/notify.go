// Package notify posts disputed consensus labels to an external review
// callback. Delivery is best-effort with retries; the aggregator never
// blocks on it.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/labelhive/labelhive/config"
	"github.com/labelhive/labelhive/internal"
	"github.com/labelhive/labelhive/pkg/models"
)

var log = internal.GetLogger()

var _ models.Notifier = &WebhookNotifier{}

// DisputePayload is the body posted to the callback URL.
type DisputePayload struct {
	CampaignID string                 `json:"campaign_id"`
	Consensus  *models.ConsensusLabel `json:"consensus"`
}

type WebhookNotifier struct {
	url    string
	client *retryablehttp.Client
}

// NewWebhookNotifier creates a notifier for the configured callback URL. A
// notifier with an empty URL is valid and reports itself disabled.
func NewWebhookNotifier(cfg *config.Config) *WebhookNotifier {
	client := retryablehttp.NewClient()
	client.RetryMax = cfg.Callback.MaxRetries
	client.HTTPClient.Timeout = time.Duration(cfg.Callback.TimeoutSeconds) * time.Second
	client.Logger = internal.NewLeveledLogrus(log)

	return &WebhookNotifier{
		url:    cfg.Callback.URL,
		client: client,
	}
}

func (n *WebhookNotifier) Enabled() bool {
	return n.url != ""
}

// NotifyDisputed posts a disputed consensus to the callback URL.
func (n *WebhookNotifier) NotifyDisputed(
	ctx context.Context,
	campaignID string,
	consensus *models.ConsensusLabel,
) error {
	if !n.Enabled() {
		return nil
	}

	body, err := json.Marshal(DisputePayload{
		CampaignID: campaignID,
		Consensus:  consensus,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal dispute payload: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create dispute callback request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("dispute callback failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("dispute callback returned status %d", resp.StatusCode)
	}

	return nil
}
