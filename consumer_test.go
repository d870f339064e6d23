package cabhfuil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	log "gopkg.in/src-d/go-log.v1"
)

func TestConsumerSuite(t *testing.T) {
	suite.Run(t, new(ConsumerSuite))
}

type ConsumerSuite struct {
	BaseQueueSuite
}

func (s *ConsumerSuite) TestProcessesPublishedJobs() {
	require := s.Require()

	s.publishJob(NewJob("/srv/git/one.git"))
	s.publishJob(NewJob("/srv/git/two.git"))

	processed := make(chan string, 2)
	wp := NewWorkerPool(log.New(nil), func(_ log.Logger, j *Job) error {
		processed <- j.Path
		return nil
	})
	wp.SetWorkerCount(1)

	c := NewConsumer(s.queue, wp)
	go c.Start()

	seen := make(map[string]bool)
	for i := 0; i < 2; i++ {
		select {
		case p := <-processed:
			seen[p] = true
		case <-time.After(5 * time.Second):
			s.T().Fatal("timed out waiting for jobs")
		}
	}

	require.True(seen["/srv/git/one.git"])
	require.True(seen["/srv/git/two.git"])

	c.Stop()
	require.Equal(0, wp.Len())
}

func (s *ConsumerSuite) TestIsRunningAcrossGoroutines() {
	require := s.Require()

	wp := NewWorkerPool(log.New(nil), func(log.Logger, *Job) error { return nil })
	wp.SetWorkerCount(1)

	c := NewConsumer(s.queue, wp)
	go c.Start()

	require.Eventually(c.IsRunning, 5*time.Second, time.Millisecond)
	c.Stop()
	require.False(c.IsRunning())
}

func (s *ConsumerSuite) TestStopIsIdempotent() {
	wp := NewWorkerPool(log.New(nil), func(log.Logger, *Job) error { return nil })
	c := NewConsumer(s.queue, wp)

	c.Stop()
	c.Stop()
	s.Require().False(c.IsRunning())
}
