package app

import (
	"context"
	"time"

	"github.com/axiomesh/axiom-kit/log"
	"github.com/axiomesh/governor/api"
	"github.com/axiomesh/governor/chain"
	"github.com/axiomesh/governor/core"
	"github.com/axiomesh/governor/executor"
	"github.com/axiomesh/governor/metrics"
	"github.com/axiomesh/governor/repo"
	"github.com/axiomesh/governor/storage"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	stdprometheus "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

const shutdownTimeout = 5 * time.Second

// Governor runs the proposal module against a chain and serves it over
// HTTP.
type Governor struct {
	Ctx    context.Context
	Logger *logrus.Logger
	DB     *storage.KVStore
	Config *repo.Config

	Client chain.Client
	Clock  *chain.Clock
	Module *core.Module
	Server *api.Server

	cancel context.CancelFunc
}

func NewGovernor(ctx context.Context, config *repo.Config, client chain.Client, version string) (*Governor, error) {
	logger := log.New()
	logger.SetLevel(log.ParseLevel(config.Log.Level))

	govCfg, err := config.Governance.CoreConfig()
	if err != nil {
		return nil, err
	}

	retryPolicy := chain.RetryPolicy{Attempts: config.Chain.RetryAttempts, Backoff: config.Chain.RetryBackoff}
	oracle, err := chain.NewVotesOracle(client, common.HexToAddress(config.Chain.VotesContract), retryPolicy, logger.WithField("module", "oracle"))
	if err != nil {
		return nil, err
	}

	exec, err := executor.New(executor.Config{
		Kind:       config.Executor.Kind,
		URL:        config.Executor.URL,
		Timeout:    config.Executor.Timeout,
		MaxRetries: config.Executor.MaxRetries,
	}, logger.WithField("module", "executor"))
	if err != nil {
		return nil, err
	}

	db, err := storage.Open(config.RepoRoot)
	if err != nil {
		return nil, errors.Wrap(err, "open storage")
	}

	registry := stdprometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	metrics.SetVersion(metrics.PromVersion(registry), version, "")

	module := core.NewModule(db, oracle, exec, logger.WithField("module", "proposal"), metrics.PromGovernanceMetrics(registry), version)
	if _, err := module.Config(); err != nil {
		if !errors.Is(err, core.ErrNotInstantiated) {
			db.Close()
			return nil, err
		}
		if err := module.Instantiate(govCfg); err != nil {
			db.Close()
			return nil, errors.Wrap(err, "instantiate proposal module")
		}
		logger.WithField("threshold", govCfg.Threshold.String()).Info("Proposal module instantiated from config")
	}

	clock := chain.NewClock(client, logger.WithField("module", "clock"))

	apiCfg := api.Config{
		CORSOrigins:    config.API.CORSOrigins,
		MetricsHandler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	}
	if config.API.AccessLog {
		apiCfg.AccessLog = logger.WithField("module", "access").Writer()
	}
	server := api.NewServer(module, clock, apiCfg, metrics.PromAPIMetrics(registry), logger.WithField("module", "api"))

	ctx, cancel := context.WithCancel(ctx)
	return &Governor{
		Ctx:    ctx,
		Logger: logger,
		DB:     db,
		Config: config,
		Client: client,
		Clock:  clock,
		Module: module,
		Server: server,
		cancel: cancel,
	}, nil
}

func (g *Governor) Start() error {
	if err := g.Clock.Start(g.Ctx); err != nil {
		return err
	}

	now, err := g.Clock.Now(g.Ctx)
	if err != nil {
		return err
	}
	g.Logger.WithFields(logrus.Fields{
		"height": now.Height,
		"time":   now.Time,
	}).Info("Governor started")
	return nil
}

// Serve blocks serving the API until Stop. With the API disabled it only
// waits for Stop.
func (g *Governor) Serve() error {
	if !g.Config.API.Enable {
		<-g.Ctx.Done()
		return nil
	}
	return g.Server.Serve(g.Config.API.Listen)
}

func (g *Governor) Stop() error {
	g.cancel()
	g.Clock.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := g.Server.Shutdown(ctx); err != nil {
		g.Logger.WithField("err", err).Warn("Shutdown API server failed")
	}
	return g.DB.Close()
}
