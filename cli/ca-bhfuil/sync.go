package main

import (
	"os"

	"gopkg.in/src-d/go-cli.v0"
	log "gopkg.in/src-d/go-log.v1"
	"gopkg.in/src-d/go-queue.v1"
	_ "gopkg.in/src-d/go-queue.v1/memory"

	cabhfuil "github.com/SeanMooney/ca-bhfuil-sub001"
)

func init() {
	app.AddCommand(&syncCmd{})
}

type syncCmd struct {
	cli.Command `name:"sync" short-description:"sync every repository listed in a file" long-description:"One-shot run: reads repository paths from a file, syncs the index of each one through an in-process queue and exits once all of them are done. No broker service is needed."`
	DatabaseOpts
	MetricsOpts

	WorkersCount int `long:"workers" env:"CABHFUIL_WORKERS" default:"8" description:"number of workers"`

	Args struct {
		File string `positional-arg-name:"file" required:"true" description:"file with one repository path per line"`
	} `positional-args:"true"`
}

func (c *syncCmd) Execute(args []string) error {
	c.MaybeStartMetrics()

	f, err := os.Open(c.Args.File)
	if err != nil {
		return err
	}

	b, err := queue.NewBroker("memory://")
	if err != nil {
		return err
	}

	defer func() { _ = b.Close() }()
	q, err := b.Queue("cabhfuil-sync")
	if err != nil {
		return err
	}

	store, db, err := c.OpenStore()
	if err != nil {
		return err
	}

	defer func() { _ = db.Close() }()

	syncer := cabhfuil.NewSyncer(store)
	wp := cabhfuil.NewSyncWorkerPool(log.New(nil), syncer)
	wp.SetWorkerCount(c.WorkersCount)

	executor := cabhfuil.NewExecutor(log.New(nil), q, wp, cabhfuil.NewLineJobIter(f))
	return executor.Execute()
}
