// Command poststudio runs the tweet-drafting studio server.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"poststudio/internal/actions"
	"poststudio/internal/config"
	"poststudio/internal/gateway"
	"poststudio/internal/logging"
	"poststudio/internal/ratelimit"
	"poststudio/internal/server"
	"poststudio/internal/store"
)

var version = "1.0.0"

var (
	cfgPath string
	verbose bool
)

func main() {
	root := &cobra.Command{
		Use:   "poststudio",
		Short: "AI-assisted tweet drafting studio",
		Long:  "poststudio serves the drafting studio API: streamed AI rewrites,\ndraft analysis, rewrite suggestions, and the content assistant.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run()
		},
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", "poststudio.yaml", "path to config file")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the studio API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run()
		},
	})
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("poststudio", version)
		},
	})

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func run() error {
	zcfg := zap.NewProductionConfig()
	if verbose {
		zcfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	log, err := zcfg.Build()
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer log.Sync()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if err := logging.Initialize(logging.Options{
		Enabled:    cfg.Logging.Enabled,
		Dir:        cfg.Logging.Dir,
		Level:      cfg.Logging.Level,
		JSONFormat: cfg.Logging.JSONFormat,
		Categories: cfg.Logging.Categories,
	}); err != nil {
		return fmt.Errorf("initialize logging: %w", err)
	}
	defer logging.CloseAll()
	logging.Get(logging.CategoryBoot).Info("%s %s starting", cfg.Name, version)

	var limiter *ratelimit.Limiter
	if cfg.RateLimit.StorePath != "" {
		st, err := store.Open(cfg.RateLimit.StorePath)
		if err != nil {
			return fmt.Errorf("open bucket store: %w", err)
		}
		defer st.Close()
		limiter, err = ratelimit.NewWithStore(cfg.RateLimit.MaxRequests, cfg.Window(), st)
		if err != nil {
			return fmt.Errorf("restore usage buckets: %w", err)
		}
		log.Info("usage buckets persisted", zap.String("path", cfg.RateLimit.StorePath))
	} else {
		limiter = ratelimit.New(cfg.RateLimit.MaxRequests, cfg.Window())
	}

	client := gateway.NewClient(gateway.ClientConfig{
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: cfg.LLM.Temperature,
		Timeout:     cfg.LLMTimeout(),
	})
	gw := gateway.New(client, limiter, cfg.ChargeFailures())
	svc := actions.NewService(gw)
	srv := server.New(cfg.Server.Addr, gw, svc, cfg.StreamIdleTimeout(), cfg.ShutdownTimeout(), log)

	if !client.HasCredential() {
		log.Warn("no API key configured; callers must supply their own")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	watcher, err := config.NewWatcher(cfgPath, func(next *config.Config) {
		limiter.SetLimits(next.RateLimit.MaxRequests, next.Window())
		log.Info("rate limits reloaded",
			zap.Int("max_requests", next.RateLimit.MaxRequests),
			zap.Duration("window", next.Window()),
		)
	})
	if err != nil {
		log.Warn("config watcher unavailable", zap.Error(err))
	} else {
		if err := watcher.Start(ctx); err != nil {
			log.Warn("config watcher failed to start", zap.Error(err))
		} else {
			defer watcher.Stop()
		}
	}

	log.Info("poststudio ready",
		zap.String("addr", cfg.Server.Addr),
		zap.String("model", cfg.LLM.Model),
		zap.Int("rate_limit", cfg.RateLimit.MaxRequests),
	)
	return srv.Run(ctx)
}
