package main

import (
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/bmfreitas/carrinhos-etl/internal/config"
	"github.com/bmfreitas/carrinhos-etl/internal/httpx"
	"github.com/bmfreitas/carrinhos-etl/internal/ingest"
	"github.com/bmfreitas/carrinhos-etl/internal/report"
	"github.com/bmfreitas/carrinhos-etl/internal/store"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	cl := ingest.NewHTTPClient(cfg.HTTPTimeout)
	st := store.NewMemoryStore()
	ld := ingest.NewLoader(cl, st, logger, cfg)
	svc := report.NewService(ld)

	r := httpx.NewRouter(logger, ld, svc, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("starting server", slog.String("port", cfg.Port))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", slog.String("err", err.Error()))
		os.Exit(1)
	}
}
