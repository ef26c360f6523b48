package coremain

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/evalfun/zonesync/pkg/directory"
	"github.com/evalfun/zonesync/pkg/journal"
	"github.com/evalfun/zonesync/pkg/zonesync"
	"github.com/evalfun/zonesync/pkg/zonexfer"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
	"go.uber.org/zap"
)

func runSync(ctx context.Context, cfg *Config, lg *zap.Logger) error {
	client, err := directory.NewClient(cfg.Directory.URL, cfg.Directory.Token, directory.Opts{
		Logger:             lg.Named("directory"),
		TokenScheme:        cfg.Directory.TokenScheme,
		Timeout:            cfg.Directory.Timeout,
		RateLimit:          cfg.Directory.RateLimit,
		InsecureSkipVerify: cfg.Directory.InsecureSkipVerify,
	})
	if err != nil {
		lg.Error("failed to init directory client", zap.Error(err))
		return err
	}
	if cfg.Directory.InsecureSkipVerify {
		lg.Warn("tls certificate verification of the directory is disabled")
	}

	reg := prometheus.NewRegistry()
	opts := zonesync.Opts{
		Logger:  lg.Named("sync"),
		Metrics: zonesync.NewMetrics(reg),
	}
	if cfg.Journal.Enabled() {
		j, err := journal.NewJournal(&cfg.Journal, journal.Opts{Logger: lg.Named("journal")})
		if err != nil {
			lg.Error("failed to open journal", zap.Error(err))
			return err
		}
		defer j.Close()
		opts.Observers = append(opts.Observers, j)
	}

	fetcher := zonexfer.NewFetcher(zonexfer.Opts{Logger: lg.Named("axfr"), Timeout: cfg.DNS.Timeout})
	s := zonesync.New(cfg.syncOptions(), directory.New(client), fetcher, opts)
	_, err = s.Run(ctx)
	pushMetrics(cfg.Metrics, reg, lg)
	if err != nil {
		if errors.Is(err, zonesync.ErrBootstrap) {
			lg.Error("sync aborted", zap.Error(err))
		}
		return err
	}
	return nil
}

func pushMetrics(mc MetricsConfig, g prometheus.Gatherer, lg *zap.Logger) {
	if mc.Pushgateway == "" {
		return
	}
	err := push.New(mc.Pushgateway, mc.Job).
		Gatherer(g).
		Client(&http.Client{Timeout: 10 * time.Second}).
		Push()
	if err != nil {
		lg.Warn("failed to push metrics", zap.String("pushgateway", mc.Pushgateway), zap.Error(err))
	}
}

func serveJournal(ctx context.Context, cfg *Config, lg *zap.Logger, listen string) error {
	if !cfg.Journal.Enabled() {
		err := errors.New("no journal database configured (JOURNAL_DATABASE_TYPE)")
		lg.Error("cannot serve journal", zap.Error(err))
		return err
	}
	j, err := journal.NewJournal(&cfg.Journal, journal.Opts{Logger: lg.Named("journal")})
	if err != nil {
		lg.Error("failed to open journal", zap.Error(err))
		return err
	}
	defer j.Close()

	srv := &http.Server{Addr: listen, Handler: j.Api(), ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		lg.Info("journal api listening", zap.String("addr", listen))
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		lg.Error("journal api exited", zap.Error(err))
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
