package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/axiomesh/axiom-kit/log"
	"github.com/axiomesh/governor"
	"github.com/axiomesh/governor/app"
	"github.com/axiomesh/governor/chain"
	"github.com/axiomesh/governor/repo"
	"github.com/oklog/run"
	"github.com/urfave/cli/v2"
)

func start(ctx *cli.Context) error {
	p, err := getRootPath(ctx)
	if err != nil {
		return err
	}
	r, err := repo.Load(p)
	if err != nil {
		return err
	}

	err = log.Initialize(
		log.WithReportCaller(r.Config.Log.ReportCaller),
		log.WithPersist(true),
		log.WithFilePath(filepath.Join(r.Config.RepoRoot, repo.LogsDirName)),
		log.WithFileName(r.Config.Log.Filename),
		log.WithMaxAge(r.Config.Log.MaxAge),
		log.WithRotationTime(r.Config.Log.RotationTime),
	)
	if err != nil {
		return fmt.Errorf("log initialize: %w", err)
	}

	printVersion()

	policy := chain.RetryPolicy{Attempts: r.Config.Chain.RetryAttempts, Backoff: r.Config.Chain.RetryBackoff}
	client, err := chain.Dial(ctx.Context, r.Config.Chain.DialUrl, policy, log.New())
	if err != nil {
		return fmt.Errorf("dial %s: %w", r.Config.Chain.DialUrl, err)
	}
	defer client.Close()

	g, err := app.NewGovernor(ctx.Context, r.Config, client, governor.CurrentVersion)
	if err != nil {
		return fmt.Errorf("new governor error: %w", err)
	}
	if err := g.Start(); err != nil {
		_ = g.Stop()
		return fmt.Errorf("start governor failed: %w", err)
	}

	var group run.Group
	{
		group.Add(g.Serve, func(error) {
			if err := g.Stop(); err != nil {
				g.Logger.WithField("err", err).Error("Stop governor failed")
			}
		})
	}
	{
		stop := make(chan os.Signal, 2)
		signal.Notify(stop, syscall.SIGTERM, syscall.SIGINT)
		cancel := make(chan struct{})
		group.Add(func() error {
			select {
			case <-stop:
				fmt.Println("received interrupt signal, shutting down...")
			case <-cancel:
			}
			return nil
		}, func(error) {
			close(cancel)
		})
	}

	fmt.Println("=============Governor is ready=============")
	return group.Run()
}

func printVersion() {
	fmt.Printf("Governor version: %s-%s-%s\n", governor.CurrentVersion, governor.CurrentBranch, governor.CurrentCommit)
	fmt.Printf("App build date: %s\n", governor.BuildDate)
	fmt.Printf("System version: %s\n", governor.Platform)
	fmt.Printf("Golang version: %s\n", governor.GoVersion)
	fmt.Println()
}
