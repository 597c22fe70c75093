package main

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/Veraticus/basket-rules/internal/api"
	"github.com/Veraticus/basket-rules/internal/certs"
	"github.com/Veraticus/basket-rules/internal/pipeline"
)

const shutdownTimeout = 10 * time.Second

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve rules and lookups over HTTP",
		Long: `Start a JSON HTTP API over the imported sales records.

Endpoints:
  GET /options                       outlets, years and quarters on record
  GET /items?pos=&year=&quarter=     items seen in a period
  GET /rules?pos=&year=&quarter=     rule table (granularity, metric,
                                     threshold, min_support optional)
  GET /rules/lookup?...&antecedent=&consequent=
  GET /health
  GET /metrics                       Prometheus metrics

Send SIGHUP after importing new records to drop cached analyses.`,
		PreRunE: bindAnalysisFlags,
		RunE:    runServe,
	}

	addAnalysisFlags(cmd)
	cmd.Flags().String("addr", "", "listen address (default from config, :8080)")
	cmd.Flags().Bool("tls", false, "serve HTTPS with a self-signed certificate")
	cmd.Flags().StringSlice("tls-host", nil, "extra host names or IPs the certificate must cover")

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	for key, flag := range map[string]string{
		"server.addr":      "addr",
		"server.tls":       "tls",
		"server.tls_hosts": "tls-host",
	} {
		if f := cmd.Flags().Lookup(flag); f.Changed {
			_ = viper.BindPFlag(key, f)
		}
	}
	addr := viper.GetString("server.addr")

	a, err := loadAnalysis()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	p, err := newPipeline(store, a, reg)
	if err != nil {
		return err
	}

	srv := api.NewServer(api.Options{
		Analyzer:   p,
		Selections: store,
		Logger:     slog.Default(),
		Gatherer:   reg,
		Defaults:   a,
	})

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	go purgeOnHangup(ctx, hup, p)

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	if viper.GetBool("server.tls") {
		certStore := certs.NewStore(certDir(), viper.GetStringSlice("server.tls_hosts")...)
		tlsConfig, tlsErr := certStore.TLSConfig()
		if tlsErr != nil {
			_ = listener.Close()
			return fmt.Errorf("failed to prepare TLS certificate: %w", tlsErr)
		}
		certFile, _ := certStore.Paths()
		slog.Info("Serving HTTPS", "certificate", certFile)
		listener = tls.NewListener(listener, tlsConfig)
	}

	return serve(ctx, listener, srv.Routes())
}

// serve runs handler on listener until ctx is canceled, then shuts down
// gracefully.
func serve(ctx context.Context, listener net.Listener, handler http.Handler) error {
	server := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("HTTP API listening", "addr", listener.Addr().String())
		if err := server.Serve(listener); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Shutting down HTTP API")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// purgeOnHangup clears the pipeline caches each time a signal arrives on hup.
func purgeOnHangup(ctx context.Context, hup <-chan os.Signal, p *pipeline.Pipeline) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			p.Purge()
			slog.Info("Cleared cached analyses")
		}
	}
}

// certDir holds the self-signed certificate next to the database.
func certDir() string {
	return filepath.Join(filepath.Dir(databasePath()), "certs")
}
