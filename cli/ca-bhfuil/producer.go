package main

import (
	"os"

	"gopkg.in/src-d/go-cli.v0"
	log "gopkg.in/src-d/go-log.v1"
	"gopkg.in/src-d/go-queue.v1"
	_ "gopkg.in/src-d/go-queue.v1/amqp"
	_ "gopkg.in/src-d/go-queue.v1/memory"

	cabhfuil "github.com/SeanMooney/ca-bhfuil-sub001"
	"github.com/SeanMooney/ca-bhfuil-sub001/metrics"
)

func init() {
	app.AddCommand(&producerCmd{})
}

type producerCmd struct {
	cli.Command `name:"producer" short-description:"create sync jobs and put them into the queue" long-description:"Reads repository paths, one per line, from a file and publishes a sync job per path. Blank lines and lines starting with # are skipped."`
	QueueOpts
	MetricsOpts

	Args struct {
		File string `positional-arg-name:"file" required:"true" description:"file with one repository path per line"`
	} `positional-args:"true"`
}

func (c *producerCmd) Execute(args []string) error {
	c.MaybeStartMetrics()

	f, err := os.Open(c.Args.File)
	if err != nil {
		return err
	}

	b, err := queue.NewBroker(c.Broker)
	if err != nil {
		return err
	}

	defer func() { _ = b.Close() }()
	q, err := b.Queue(c.Queue)
	if err != nil {
		return err
	}

	p := cabhfuil.NewProducer(cabhfuil.NewLineJobIter(f), q)
	p.Notifiers.Done = func(j *cabhfuil.Job, err error) {
		if j == nil {
			metrics.JobProduceFailed()
			log.Errorf(err, "job iterator error")
			return
		}

		l := log.With(log.Fields{"job": j.ID.String(), "repo": j.Path})
		if err != nil {
			metrics.JobProduceFailed()
			l.Errorf(err, "job queue error")
		} else {
			metrics.JobProduced()
			l.Infof("job queued")
		}
	}

	p.Start()
	return nil
}
