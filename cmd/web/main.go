package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AdamBeresnev/racetime/internal/auth"
	"github.com/AdamBeresnev/racetime/internal/config"
	"github.com/AdamBeresnev/racetime/internal/db"
	"github.com/AdamBeresnev/racetime/internal/gateway"
	"github.com/AdamBeresnev/racetime/internal/metrics"
	"github.com/AdamBeresnev/racetime/internal/pubsub"
	"github.com/AdamBeresnev/racetime/internal/service"
	"github.com/AdamBeresnev/racetime/internal/store"
	"github.com/alexedwards/scs/sqlite3store"
	"github.com/alexedwards/scs/v2"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config: ", err)
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()})))

	database, err := db.InitDB(cfg.DatabasePath)
	if err != nil {
		log.Fatal("Failed to open database: ", err)
	}
	defer database.Close()

	if err := db.RunMigrations(database.DB); err != nil {
		log.Fatal("Failed to run migrations: ", err)
	}

	metrics.Register(prometheus.DefaultRegisterer)

	sessionManager := scs.New()
	sessionManager.Lifetime = cfg.SessionLifetime
	sessionManager.Store = sqlite3store.New(database.DB)

	broker := pubsub.NewMemoryBroker()

	competitionStore := store.NewCompetitionStore(database)
	judgeStore := store.NewJudgeStore(database)
	recordStore := store.NewRecordStore(database)

	competitions := service.NewCompetitionService(database, competitionStore, broker)
	registration := service.NewRegistrationService(database, competitionStore, judgeStore, recordStore, cfg.MaxRecordsPerTeam, cfg.MaxBatchSize)
	results := service.NewResultsService(competitionStore, judgeStore, recordStore, cfg.MaxRecordsPerTeam)

	app := &application{
		cfg:            cfg,
		sessionManager: sessionManager,
		competitions:   competitions,
		results:        results,
		judgeSessions:  gateway.NewHandler(auth.NewJWTValidator(cfg.JWTSecret, judgeStore), judgeStore, competitions, registration, broker),
		gatherer:       prometheus.DefaultGatherer,
	}

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newRouter(app),
		ReadHeaderTimeout: 5 * time.Second,
	}
	server.RegisterOnShutdown(app.judgeSessions.CloseSessions)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("server starting", "addr", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		slog.Info("server shutting down")

		// Closing the broker ends the relays of every judge session.
		broker.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Fatal(err)
	}
}
