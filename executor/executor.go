package executor

import (
	"time"

	"github.com/axiomesh/governor/core"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	KindLog     = "log"
	KindWebhook = "webhook"
)

type Config struct {
	Kind       string
	URL        string
	Timeout    time.Duration
	MaxRetries int
}

// New builds the executor named by cfg.Kind.
func New(cfg Config, logger logrus.FieldLogger) (core.Executor, error) {
	switch cfg.Kind {
	case "", KindLog:
		return NewLog(logger), nil
	case KindWebhook:
		return NewWebhook(WebhookConfig{
			URL:        cfg.URL,
			Timeout:    cfg.Timeout,
			MaxRetries: cfg.MaxRetries,
		}, logger)
	default:
		return nil, errors.Errorf("unknown executor kind %q", cfg.Kind)
	}
}
