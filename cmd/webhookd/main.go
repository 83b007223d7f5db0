// Command webhookd runs the Paddle webhook receiver: it connects to
// PostgreSQL, applies schema migrations, and serves the webhook endpoint
// plus a health check until interrupted.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"

	"github.com/paddlekit/cashier/pkg/cashier"
	"github.com/paddlekit/cashier/pkg/cashier/pgstore"
	"github.com/paddlekit/cashier/pkg/config"
	"github.com/paddlekit/cashier/pkg/httpserver"
	"github.com/paddlekit/cashier/pkg/logger"
	"github.com/paddlekit/cashier/pkg/pg"
)

type appConfig struct {
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	HTTP    httpserver.Config
	DB      pg.Config
	Billing cashier.Config
}

func main() {
	cfg := config.MustLoad[appConfig]()

	log := logger.New(
		logger.WithFormat(logger.Format(cfg.LogFormat)),
		logger.WithAttr(slog.String("service", "webhookd")),
	)

	if err := run(context.Background(), cfg, log); err != nil {
		log.Error("webhookd failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg appConfig, log *slog.Logger) error {
	pool, err := pg.Connect(ctx, cfg.DB)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := pgstore.Migrate(ctx, pool, log); err != nil {
		return err
	}

	store := pgstore.New(pool)
	rec := cashier.NewReconciler(
		cfg.Billing,
		store.Subscriptions(),
		store.Payments(),
		store.Customers(),
		cashier.WithLogger(log),
	)

	healthcheck := pg.Healthcheck(pool)

	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if err := healthcheck(req.Context()); err != nil {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	r.Mount("/paddle", cashier.Routes(rec, log))

	srv := httpserver.New(cfg.HTTP, httpserver.WithLogger(log))
	return srv.Run(ctx, r)
}
