package cabhfuil

import (
	"errors"
	"io"
	"io/ioutil"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

func TestProducerSuite(t *testing.T) {
	suite.Run(t, new(ProducerSuite))
}

type ProducerSuite struct {
	BaseQueueSuite
}

func (s *ProducerSuite) TestPublishesAllJobs() {
	require := s.Require()

	iter := NewLineJobIter(ioutil.NopCloser(strings.NewReader(
		"# fleet\n/srv/git/one.git\n/srv/git/two.git\n")))

	p := NewProducer(iter, s.queue)

	var done []*Job
	p.Notifiers.Done = func(j *Job, err error) {
		require.NoError(err)
		done = append(done, j)
	}

	p.Start()
	require.Len(done, 2)
	require.False(p.IsRunning())

	jiter, err := s.queue.Consume(1)
	require.NoError(err)

	var paths []string
	for i := 0; i < 2; i++ {
		qj, err := jiter.Next()
		require.NoError(err)

		j := &Job{}
		require.NoError(qj.Decode(j))
		paths = append(paths, j.Path)
		require.NoError(qj.Ack())
	}

	require.NoError(jiter.Close())
	require.Equal([]string{"/srv/git/one.git", "/srv/git/two.git"}, paths)
}

// failOnceIter fails its first Next and then reports exhaustion, like a
// line iterator hitting an oversized line mid file.
type failOnceIter struct {
	err    error
	failed bool
}

func (i *failOnceIter) Next() (*Job, error) {
	if !i.failed {
		i.failed = true
		return nil, i.err
	}

	return nil, io.EOF
}

func (i *failOnceIter) Close() error { return nil }

func (s *ProducerSuite) TestIteratorErrorReportsNilJob() {
	require := s.Require()

	iterErr := errors.New("token too long")
	p := NewProducer(&failOnceIter{err: iterErr}, s.queue)

	var jobs []*Job
	var errs []error
	p.Notifiers.Done = func(j *Job, err error) {
		jobs = append(jobs, j)
		errs = append(errs, err)
	}

	p.Start()
	require.Len(jobs, 1)
	require.Nil(jobs[0])
	require.Equal(iterErr, errs[0])
	require.False(p.IsRunning())
}

// waitingIter never produces a job, so the producer keeps running until it
// is stopped from another goroutine.
type waitingIter struct{}

func (i *waitingIter) Next() (*Job, error) { return nil, ErrWaitForJobs.New() }
func (i *waitingIter) Close() error        { return nil }

func (s *ProducerSuite) TestIsRunningAcrossGoroutines() {
	require := s.Require()

	p := NewProducer(&waitingIter{}, s.queue)
	go p.Start()

	require.Eventually(p.IsRunning, 5*time.Second, time.Millisecond)
	p.Stop()
	require.False(p.IsRunning())
}

func (s *ProducerSuite) TestStopIsIdempotent() {
	require := s.Require()

	iter := NewLineJobIter(ioutil.NopCloser(strings.NewReader("")))
	p := NewProducer(iter, s.queue)
	p.Start()

	p.Stop()
	p.Stop()
	require.False(p.IsRunning())
}
