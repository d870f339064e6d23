package main

import (
	"context"

	"gopkg.in/src-d/go-cli.v0"
	log "gopkg.in/src-d/go-log.v1"
)

func init() {
	app.AddCommand(&updateCmd{})
}

type updateCmd struct {
	cli.Command `name:"update" short-description:"sync the index of a repository" long-description:"Reads the current refs of a repository and brings its ancestry index and equivalence groups up to date, persisting the result into the cache database."`
	DatabaseOpts
	MetricsOpts

	Args struct {
		Repository string `positional-arg-name:"repository" default:"." description:"path to the git repository"`
	} `positional-args:"true"`
}

func (c *updateCmd) ExecuteContext(ctx context.Context, args []string) error {
	c.MaybeStartMetrics()

	opts := RepositoryOpts{
		Repository:   c.Args.Repository,
		Sync:         true,
		DatabaseOpts: c.DatabaseOpts,
	}

	e, done, err := opts.openEngine(ctx)
	if err != nil {
		return err
	}

	defer func() { _ = done() }()

	for _, warn := range e.Warnings() {
		log.With(log.Fields{"repo": c.Args.Repository}).
			Warningf("history warning: %s", warn)
	}

	return nil
}
