package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/axiomesh/governor/core"
	"github.com/pkg/errors"
	"github.com/sethgrid/pester"
	"github.com/sirupsen/logrus"
)

const maxErrorBody = 512

var _ core.Executor = (*Webhook)(nil)

type WebhookConfig struct {
	URL        string
	Timeout    time.Duration
	MaxRetries int
	Backoff    pester.BackoffStrategy
}

// Webhook posts the execute request of a passed proposal to an HTTP
// endpoint. Any 2xx answer counts as a successful execution; transport
// errors and 5xx answers are retried.
type Webhook struct {
	url    string
	client *pester.Client
	logger logrus.FieldLogger
}

func NewWebhook(cfg WebhookConfig, logger logrus.FieldLogger) (*Webhook, error) {
	if cfg.URL == "" {
		return nil, errors.New("webhook url is empty")
	}

	ec := pester.NewExtendedClient(&http.Client{
		Timeout: cfg.Timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	})
	{
		if cfg.MaxRetries > 0 {
			ec.MaxRetries = cfg.MaxRetries
		}
		ec.Concurrency = 1
		ec.Backoff = cfg.Backoff
		if ec.Backoff == nil {
			ec.Backoff = pester.ExponentialBackoff
		}
	}

	return &Webhook{
		url:    cfg.URL,
		client: ec,
		logger: logger,
	}, nil
}

func (w *Webhook) Execute(ctx context.Context, req *core.ExecuteRequest) error {
	body, err := json.Marshal(req)
	if err != nil {
		return errors.Wrap(err, "marshal execute request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "new webhook request")
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(httpReq)
	if err != nil {
		return errors.Wrapf(err, "post proposal %d", req.ProposalID)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return errors.Errorf("webhook answered %s: %s", resp.Status, bytes.TrimSpace(msg))
	}

	w.logger.WithFields(logrus.Fields{
		"proposal_id": req.ProposalID,
		"msgs":        len(req.Msgs),
		"url":         w.url,
	}).Info("Proposal delivered to webhook")
	return nil
}
