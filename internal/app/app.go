package app

import (
	"context"
	"log/slog"

	httpapp "github.com/VotingM7011E/VotingService/internal/app/http"
	"github.com/VotingM7011E/VotingService/internal/config"
	"github.com/VotingM7011E/VotingService/internal/events"
	"github.com/VotingM7011E/VotingService/internal/handlers"
	"github.com/VotingM7011E/VotingService/internal/metrics"
	"github.com/VotingM7011E/VotingService/internal/repo/postgres"
	"github.com/VotingM7011E/VotingService/internal/services"
	"github.com/prometheus/client_golang/prometheus"
)

type App struct {
	HTTPServer *httpapp.App
	Voting     *services.Voting
	storage    *postgres.Storage
	publisher  events.Publisher
}

func NewApp(log *slog.Logger, cfg *config.Config) *App {
	storage, err := postgres.New(cfg.StoragePath)
	if err != nil {
		panic(err)
	}

	var publisher events.Publisher = events.Nop{}
	if len(cfg.Events.Brokers) > 0 {
		publisher = events.NewKafkaPublisher(cfg.Events.Brokers, cfg.Events.Topic, cfg.ServiceName)
	}

	votingMetrics := metrics.New(prometheus.DefaultRegisterer, "voting", "service")

	votingService := services.NewVoting(log, storage, storage, storage, storage, publisher, votingMetrics)
	votingHandler := handlers.NewVotingHandler(votingService)

	httpApp := httpapp.NewApp(cfg.HTTP.Port, votingHandler)

	app := &App{
		HTTPServer: httpApp,
		Voting:     votingService,
		storage:    storage,
		publisher:  publisher,
	}

	return app
}

func (a *App) Stop(ctx context.Context) error {
	if err := a.HTTPServer.Stop(ctx); err != nil {
		return err
	}
	if err := a.publisher.Close(); err != nil {
		return err
	}
	return a.storage.Close()
}
