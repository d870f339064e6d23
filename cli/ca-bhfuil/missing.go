package main

import (
	"context"
	"fmt"

	"gopkg.in/src-d/go-cli.v0"

	"github.com/SeanMooney/ca-bhfuil-sub001/metrics"
)

func init() {
	app.AddCommand(&missingCmd{})
}

type missingCmd struct {
	cli.Command `name:"missing" short-description:"list changes a ref lacks from another" long-description:"Lists, per target ref, the commits reachable from the source ref that the target contains neither directly nor through an equivalent backport. Commits are listed oldest first."`
	RepositoryOpts `group:"Repository Options"`

	Args struct {
		Source  string   `positional-arg-name:"source" required:"true" description:"ref whose history is the baseline"`
		Targets []string `positional-arg-name:"targets" required:"1" description:"refs to diff against the source"`
	} `positional-args:"true"`
}

func (c *missingCmd) Execute(args []string) error {
	e, done, err := c.openEngine(context.Background())
	if err != nil {
		return err
	}

	defer func() { _ = done() }()

	report, err := e.MissingFrom(c.Args.Targets, c.Args.Source)
	if err != nil {
		return err
	}

	metrics.QueryServed()

	for _, name := range c.Args.Targets {
		ids, ok := report.PerTarget[name]
		if !ok {
			continue
		}

		for _, id := range ids {
			fmt.Printf("%s\t%s\n", name, id)
		}
	}

	for _, name := range report.Unresolvable {
		fmt.Printf("unknown\t%s\n", name)
	}

	return nil
}
