package main

import (
	"context"
	"database/sql"
	"fmt"

	log "gopkg.in/src-d/go-log.v1"
	_ "modernc.org/sqlite" // load sqlite driver

	cabhfuil "github.com/SeanMooney/ca-bhfuil-sub001"
	"github.com/SeanMooney/ca-bhfuil-sub001/metrics"
	"github.com/SeanMooney/ca-bhfuil-sub001/storage"
)

// DatabaseOpts holds cli configuration for the index cache database.
type DatabaseOpts struct {
	Database string `long:"database" env:"CABHFUIL_DATABASE" default:"ca-bhfuil.db" description:"path to the sqlite index cache"`
}

// OpenDatabase creates a database connection with the provided
// configuration.
func (c *DatabaseOpts) OpenDatabase() (*sql.DB, error) {
	return sql.Open("sqlite", c.Database)
}

// OpenStore opens the snapshot store backed by the configured database.
func (c *DatabaseOpts) OpenStore() (storage.Store, *sql.DB, error) {
	db, err := c.OpenDatabase()
	if err != nil {
		return nil, nil, err
	}

	store, err := storage.NewDatabase(db)
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}

	return store, db, nil
}

// QueueOpts holds cli configuration for the sync job queue.
type QueueOpts struct {
	Queue  string `long:"queue" env:"CABHFUIL_QUEUE" default:"cabhfuil" description:"queue name"`
	Broker string `long:"broker" env:"CABHFUIL_BROKER" default:"amqp://localhost:5672" description:"broker service URI"`
}

// MetricsOpts holds cli configuration to expose metrics.
type MetricsOpts struct {
	Metrics     bool `long:"metrics" env:"CABHFUIL_METRICS" description:"expose a metrics endpoint using an HTTP server"`
	MetricsPort int  `long:"metrics-port" env:"CABHFUIL_METRICS_PORT" description:"port to bind metrics to" default:"6062"`
}

// MaybeStartMetrics starts the metrics server if configured.
func (c *MetricsOpts) MaybeStartMetrics() {
	if c.Metrics {
		addr := fmt.Sprintf("0.0.0.0:%d", c.MetricsPort)
		go func() {
			logger := log.New(log.Fields{"address": addr})
			logger.Debugf("started metrics service")
			if err := metrics.Start(addr); err != nil {
				logger.With(log.Fields{
					"error": err,
				}).Warningf("metrics service stopped")
			}
		}()
	}
}

// RepositoryOpts selects the repository a query runs against.
type RepositoryOpts struct {
	Repository string `long:"repo" env:"CABHFUIL_REPO" default:"." description:"path to the git repository"`
	Sync       bool   `long:"sync" description:"sync the index against the repository before answering"`
	DatabaseOpts
}

// openEngine returns a ready engine for the configured repository, priming
// it from the cache and syncing it when needed. The returned closer flushes
// nothing; it only releases the database.
func (o *RepositoryOpts) openEngine(ctx context.Context) (*cabhfuil.Engine, func() error, error) {
	store, db, err := o.OpenStore()
	if err != nil {
		return nil, nil, err
	}

	syncer := cabhfuil.NewSyncer(store)
	e, err := syncer.Engine(o.Repository)
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}

	if o.Sync || e.State() == cabhfuil.Empty {
		if err := syncer.Do(ctx, cabhfuil.NewJob(o.Repository)); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
	}

	return e, db.Close, nil
}
