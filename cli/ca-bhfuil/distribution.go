package main

import (
	"context"
	"fmt"

	"gopkg.in/src-d/go-cli.v0"

	"github.com/SeanMooney/ca-bhfuil-sub001/metrics"
)

func init() {
	app.AddCommand(&distributionCmd{})
}

type distributionCmd struct {
	cli.Command `name:"distribution" short-description:"report which refs contain a change" long-description:"Resolves the identifier (commit hash, Change-Id, cherry-pick reference or group id) to its equivalence group and reports, for every ref of the universe, whether the change is present. Refs are reported in the order they were given."`
	RepositoryOpts `group:"Repository Options"`

	Args struct {
		Identifier string   `positional-arg-name:"identifier" required:"true" description:"commit hash, cross-reference token or group id"`
		Refs       []string `positional-arg-name:"refs" description:"refs to check, defaults to every branch and tag"`
	} `positional-args:"true"`
}

func (c *distributionCmd) Execute(args []string) error {
	e, done, err := c.openEngine(context.Background())
	if err != nil {
		return err
	}

	defer func() { _ = done() }()

	universe := c.Args.Refs
	if len(universe) == 0 {
		refs, err := e.References()
		if err != nil {
			return err
		}

		for _, r := range refs {
			universe = append(universe, r.Name)
		}
	}

	d, err := e.Distribution(c.Args.Identifier, universe)
	if err != nil {
		return err
	}

	metrics.QueryServed()

	for _, name := range d.Present {
		fmt.Printf("present\t%s\n", name)
	}

	for _, name := range d.Missing {
		fmt.Printf("missing\t%s\n", name)
	}

	for _, name := range d.Unresolvable {
		fmt.Printf("unknown\t%s\n", name)
	}

	return nil
}
