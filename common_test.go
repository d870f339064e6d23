package cabhfuil

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"gopkg.in/src-d/go-queue.v1"
	_ "gopkg.in/src-d/go-queue.v1/memory"
)

const (
	testBrokerURI   = "memory://"
	testQueuePrefix = "cabhfuil_test_queue"
)

type BaseQueueSuite struct {
	suite.Suite
	broker    queue.Broker
	queue     queue.Queue
	queueName string
}

func (s *BaseQueueSuite) SetupTest() {
	s.queueName = fmt.Sprintf("%s_%d", testQueuePrefix, time.Now().UnixNano())

	var err error
	s.broker, err = queue.NewBroker(testBrokerURI)
	s.NoError(err)
	s.queue, err = s.broker.Queue(s.queueName)
	s.NoError(err)
}

func (s *BaseQueueSuite) TearDownTest() {
	s.NoError(s.broker.Close())
}

func (s *BaseQueueSuite) publishJob(j *Job) {
	qj, err := queue.NewJob()
	s.Require().NoError(err)
	s.Require().NoError(qj.Encode(j))
	s.Require().NoError(s.queue.Publish(qj))
}

func TestNewJob(t *testing.T) {
	require := require.New(t)

	j := NewJob("/srv/git/repo.git")
	require.Equal("/srv/git/repo.git", j.Path)
	require.NotEmpty(j.ID.String())

	other := NewJob("/srv/git/repo.git")
	require.NotEqual(j.ID, other.ID)
}
