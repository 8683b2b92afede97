// Package notify dispatches deployment notifications to an outbound
// webhook. Delivery is fire-and-forget: the ingestion path never blocks on
// a downstream channel, and failures are only visible in logs.
package notify

import (
	"log/slog"
	"time"

	"resty.dev/v3"

	"github.com/apptrail-sh/control-plane/pkg/history"
)

// WebhookPublisher posts notifications as JSON to a configured endpoint.
type WebhookPublisher struct {
	client   *resty.Client
	endpoint string
	logger   *slog.Logger
}

// NewWebhookPublisher creates a publisher for the given endpoint.
func NewWebhookPublisher(endpoint string, logger *slog.Logger) *WebhookPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	client := resty.New().
		SetTimeout(10 * time.Second).
		SetRetryCount(3).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(5 * time.Second)

	return &WebhookPublisher{
		client:   client,
		endpoint: endpoint,
		logger:   logger,
	}
}

// Publish sends the notification in a background goroutine.
func (p *WebhookPublisher) Publish(n history.Notification) {
	go func() {
		resp, err := p.client.R().
			SetHeader("Content-Type", "application/json").
			SetBody(n).
			Post(p.endpoint)
		if err != nil {
			p.logger.Error("notification dispatch failed",
				"notificationID", n.ID, "type", n.Type, "error", err)
			return
		}
		if resp.IsError() {
			p.logger.Error("notification endpoint returned error",
				"notificationID", n.ID, "type", n.Type, "status", resp.StatusCode())
			return
		}
		p.logger.Info("notification dispatched",
			"notificationID", n.ID, "type", n.Type,
			"workload", n.Workload, "version", n.CurrentVersion)
	}()
}

// NopPublisher drops all notifications. Used when no webhook is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(history.Notification) {}
