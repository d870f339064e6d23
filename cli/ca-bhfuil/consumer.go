package main

import (
	"gopkg.in/src-d/go-cli.v0"
	log "gopkg.in/src-d/go-log.v1"
	"gopkg.in/src-d/go-queue.v1"
	_ "gopkg.in/src-d/go-queue.v1/amqp"
	_ "gopkg.in/src-d/go-queue.v1/memory"

	cabhfuil "github.com/SeanMooney/ca-bhfuil-sub001"
)

func init() {
	app.AddCommand(&consumerCmd{})
}

type consumerCmd struct {
	cli.Command `name:"consumer" short-description:"consume sync jobs from a queue and process them" long-description:"Consumes repository sync jobs from the queue and keeps the index of each repository up to date, persisting snapshots into the cache database."`
	QueueOpts
	DatabaseOpts
	MetricsOpts

	WorkersCount int `long:"workers" env:"CABHFUIL_WORKERS" default:"8" description:"number of workers"`
}

func (c *consumerCmd) Execute(args []string) error {
	c.MaybeStartMetrics()

	b, err := queue.NewBroker(c.Broker)
	if err != nil {
		return err
	}

	defer func() { _ = b.Close() }()
	q, err := b.Queue(c.Queue)
	if err != nil {
		return err
	}

	store, db, err := c.OpenStore()
	if err != nil {
		return err
	}

	defer func() { _ = db.Close() }()

	syncer := cabhfuil.NewSyncer(store)
	syncer.Notifiers.Start = func(j *cabhfuil.Job) {
		log.With(log.Fields{"job": j.ID.String(), "repo": j.Path}).
			Debugf("job started")
	}

	syncer.Notifiers.Stop = func(j *cabhfuil.Job, err error) {
		l := log.With(log.Fields{"job": j.ID.String(), "repo": j.Path})
		if err != nil {
			l.Errorf(err, "job errored")
		} else {
			l.Infof("job done")
		}
	}

	wp := cabhfuil.NewSyncWorkerPool(log.New(nil), syncer)
	wp.SetWorkerCount(c.WorkersCount)

	consumer := cabhfuil.NewConsumer(q, wp)
	consumer.Notifiers.QueueError = func(err error) {
		log.Errorf(err, "queue error")
	}

	consumer.Start()
	return nil
}
