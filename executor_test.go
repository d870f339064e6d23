package cabhfuil

import (
	"io/ioutil"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	log "gopkg.in/src-d/go-log.v1"
	"gopkg.in/src-d/go-queue.v1"
	_ "gopkg.in/src-d/go-queue.v1/memory"
)

func TestExecutorRunsAllJobs(t *testing.T) {
	require := require.New(t)

	b, err := queue.NewBroker("memory://")
	require.NoError(err)
	defer func() { require.NoError(b.Close()) }()

	q, err := b.Queue("cabhfuil_test_executor")
	require.NoError(err)

	var mu sync.Mutex
	var paths []string
	wp := NewWorkerPool(log.New(nil), func(_ log.Logger, j *Job) error {
		mu.Lock()
		paths = append(paths, j.Path)
		mu.Unlock()
		return nil
	})
	wp.SetWorkerCount(2)

	iter := NewLineJobIter(ioutil.NopCloser(strings.NewReader(
		"/srv/git/one.git\n/srv/git/two.git\n/srv/git/three.git\n")))

	e := NewExecutor(log.New(nil), q, wp, iter)
	require.NoError(e.Execute())

	sort.Strings(paths)
	require.Equal([]string{
		"/srv/git/one.git",
		"/srv/git/three.git",
		"/srv/git/two.git",
	}, paths)
}
