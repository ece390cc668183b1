// Command as2server runs the inbound AS2 servlet: spec.md §4.7.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/phax/as2-peppol-client/internal/config"
	"github.com/phax/as2-peppol-client/internal/inbound"
	"github.com/phax/as2-peppol-client/internal/keystore"
	"github.com/phax/as2-peppol-client/internal/storage"
	"github.com/phax/as2-peppol-client/internal/storage/mongodb"
	"github.com/phax/as2-peppol-client/pkg/reliability"
	"github.com/phax/as2-peppol-client/pkg/sbd"
	"github.com/phax/as2-peppol-client/pkg/transport"
)

func main() {
	configPath := flag.String("config", "", "path to the YAML configuration file")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	if *configPath == "" {
		fmt.Fprintln(os.Stderr, "usage: as2server -config FILE")
		os.Exit(2)
	}

	if err := run(*configPath, logger); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(configPath string, logger *slog.Logger) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ks, err := keystore.NewProvider(&cfg.KeyStore)
	if err != nil {
		return fmt.Errorf("initializing key store: %w", err)
	}
	defer ks.Close()

	ctx := context.Background()
	store, closeStore, err := buildStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initializing storage: %w", err)
	}
	defer closeStore(ctx)

	senderAlias := cfg.KeyStore.File.SenderAlias
	if senderAlias == "" {
		senderAlias = "sender"
	}

	duplicates := reliability.NewDuplicateTracker(24 * time.Hour)
	defer duplicates.Cleanup()
	go cleanupDuplicatesPeriodically(duplicates)

	handler := inbound.NewHandler(inbound.Config{
		KeyStore:      ks,
		ReceiverAlias: senderAlias,
		Store:         store,
		Duplicates:    duplicates,
		Logger:        logger,
	})
	handler.RegisterHandler(loggingSBDHandler{logger: logger})

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.Handle("POST "+cfg.Server.BasePath, handler)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	if cfg.Server.TLS.Enabled {
		srv.TLSConfig = transport.NewServerTLSConfig(transport.DefaultConfig())
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting AS2 server", "addr", srv.Addr, "path", cfg.Server.BasePath)
		var err error
		if cfg.Server.TLS.Enabled {
			err = srv.ListenAndServeTLS(cfg.Server.TLS.CertFile, cfg.Server.TLS.KeyFile)
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("serving: %w", err)
		}
	case <-stop:
		logger.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// cleanupDuplicatesPeriodically evicts expired Message-ID entries so the
// tracker's memory does not grow with every distinct message ever received.
func cleanupDuplicatesPeriodically(tracker *reliability.DuplicateTracker) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for range ticker.C {
		tracker.Cleanup()
	}
}

func buildStore(ctx context.Context, cfg *config.Config) (storage.Store, func(context.Context) error, error) {
	if !cfg.Storage.MongoDB.Enabled {
		s := storage.NewNoopStore()
		return s, s.Close, nil
	}
	s, err := mongodb.NewStore(ctx, &mongodb.Config{
		URI:      cfg.Storage.MongoDB.URI,
		Database: cfg.Storage.MongoDB.Database,
	})
	if err != nil {
		return nil, nil, err
	}
	return s, s.Close, nil
}

// loggingSBDHandler is the default registered handler: it logs receipt of
// every inbound SBD. Applications embedding this module register their own
// handlers alongside or instead of it.
type loggingSBDHandler struct {
	logger *slog.Logger
}

func (h loggingSBDHandler) HandleSBD(ctx context.Context, doc *sbd.Document) error {
	h.logger.Info("received SBD",
		"sender", doc.Sender.Value,
		"receiver", doc.Receiver.Value,
		"document_type", doc.DocumentType.URIEncoded(),
		"process", doc.Process.URIEncoded(),
		"instance_id", doc.InstanceIdentifier)
	return nil
}
