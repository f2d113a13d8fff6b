package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joshsymonds/autoreply/internal/config"
	"github.com/joshsymonds/autoreply/internal/credential"
	"github.com/joshsymonds/autoreply/internal/label"
	"github.com/joshsymonds/autoreply/internal/rate"
	"github.com/joshsymonds/autoreply/internal/responder"
	"github.com/joshsymonds/autoreply/internal/runtime"
	"github.com/joshsymonds/autoreply/internal/schedule"
)

type cliConfig struct {
	configPath string
	envFile    string
	once       bool
	forever    bool
	dryRun     bool
	reportPath string
}

func main() {
	cli := parseFlags()
	if err := run(cli); err != nil {
		runtime.DefaultLogger(slog.LevelInfo).Error("autoreply failed", "error", err)
		os.Exit(1)
	}
}

func parseFlags() cliConfig {
	configPath := flag.String("config", "autoreply.yaml", "YAML config file (missing file means defaults)")
	envFile := flag.String("env", ".env", "dotenv file loaded before reading AUTOREPLY_* variables")
	once := flag.Bool("once", false, "run a single tick and exit (overrides run_once)")
	forever := flag.Bool("forever", false, "keep polling on the randomized interval (overrides run_once)")
	dryRun := flag.Bool("dry-run", false, "log decisions; send nothing and attach no labels")
	reportPath := flag.String("report", "", "append each pass as a JSON line to this relative path")
	flag.Parse()

	return cliConfig{
		configPath: *configPath,
		envFile:    *envFile,
		once:       *once,
		forever:    *forever,
		dryRun:     *dryRun,
		reportPath: *reportPath,
	}
}

func run(cli cliConfig) error {
	if cli.once && cli.forever {
		return errors.New("-once and -forever are mutually exclusive")
	}
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load(cli.configPath, cli.envFile, cli.apply)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	level, err := cfg.SlogLevel()
	if err != nil {
		return err
	}
	logger := runtime.DefaultLogger(level)

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	provider := credential.NewProvider(store, cfg.CredentialsPath, runtime.Scopes(),
		&credential.LoopbackAuthorizer{ListenAddr: cfg.OAuthListenAddr, Logger: logger}, logger)
	session, err := provider.Session(ctx)
	if err != nil {
		return fmt.Errorf("authorize: %w", err)
	}

	client, err := runtime.NewGmailClient(ctx, session, runtime.BreakerSettings{
		ConsecutiveFailures: uint32(cfg.BreakerFailures), // #nosec G115 - validated non-negative
		OpenTimeout:         cfg.BreakerTimeout(),
	}, logger)
	if err != nil {
		return fmt.Errorf("create gmail client: %w", err)
	}

	var limiter rate.Limiter
	if bucket := rate.NewTokenBucket(cfg.RPS); bucket != nil {
		limiter = bucket
	}
	svc := responder.NewService(client, label.NewManager(client, limiter, logger), limiter, logger)

	opts := responder.Options{
		ThreadFetchLimit: cfg.ThreadFetchLimit,
		LabelName:        cfg.LabelName,
		Subject:          cfg.ReplySubject,
		Body:             cfg.ReplyBody,
		Query:            cfg.ThreadQuery,
		Concurrency:      cfg.Concurrency,
		DryRun:           cfg.DryRun,
	}
	lo, hi := cfg.PollInterval()
	loop := &schedule.Loop{
		Min:     lo,
		Max:     hi,
		RunOnce: cfg.RunOnce,
		Logger:  logger,
		Tick: func(ctx context.Context) error {
			rep, err := svc.Run(ctx, opts)
			if err != nil {
				return fmt.Errorf("run tick: %w", err)
			}
			if printErr := responder.PrintHuman(rep, os.Stdout); printErr != nil {
				return printErr
			}
			if cli.reportPath != "" {
				if writeErr := responder.AppendJSON(rep, cli.reportPath); writeErr != nil {
					return fmt.Errorf("write report: %w", writeErr)
				}
			}
			return rep.Err()
		},
	}
	if err := loop.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// apply lays command-line overrides over the loaded configuration.
func (cli cliConfig) apply(cfg *config.Config) {
	switch {
	case cli.once:
		cfg.RunOnce = true
	case cli.forever:
		cfg.RunOnce = false
	}
	if cli.dryRun {
		cfg.DryRun = true
	}
}

func openStore(cfg *config.Config) (credential.Store, error) {
	if cfg.TokenStore != config.TokenStoreKeyring {
		return credential.FileStore{Path: cfg.TokenPath}, nil
	}
	dir, err := cfg.KeyringFileDir()
	if err != nil {
		return nil, err
	}
	store, err := credential.OpenKeyringStore(dir, cfg.KeyringPassword)
	if err != nil {
		return nil, fmt.Errorf("open token store: %w", err)
	}
	return store, nil
}
