package main

import (
	"database/sql"

	"github.com/jonboulle/clockwork"

	"github.com/mcdev12/draftcoord/go/internal/draft/backend"
	"github.com/mcdev12/draftcoord/go/internal/draft/rpc"
	"github.com/mcdev12/draftcoord/go/internal/draft/rules"
)

type Services struct {
	Draft     *rpc.Service
	Scheduler *backend.Scheduler
}

func setupServices(database *sql.DB, catalog *rules.Catalog, formats *rules.Registry, config *Config) *Services {
	// Database layer → Repository layer → App layer → Service layer
	clock := clockwork.NewRealClock()

	repo := backend.NewRepository(database)
	app := backend.NewApp(repo, formats, catalog, clock)

	scheduler := backend.NewScheduler(app, clock, backend.SchedulerConfig{
		Workers:     config.Scheduler.Workers,
		RetryDelay:  config.Scheduler.RetryDelay,
		MaxAttempts: config.Scheduler.MaxAttempts,
	})
	app.SetAuctionTimer(scheduler)

	return &Services{
		Draft:     rpc.NewService(app),
		Scheduler: scheduler,
	}
}
