package main

import (
	"context"
	"fmt"

	"gopkg.in/src-d/go-cli.v0"

	"github.com/SeanMooney/ca-bhfuil-sub001/metrics"
)

func init() {
	app.AddCommand(&equivalentsCmd{})
}

type equivalentsCmd struct {
	cli.Command `name:"equivalents" short-description:"list commits carrying the same change" long-description:"Resolves the identifier to its equivalence group and prints every known commit carrying the same logical change, the resolved commit included."`
	RepositoryOpts `group:"Repository Options"`

	Args struct {
		Identifier string `positional-arg-name:"identifier" required:"true" description:"commit hash, cross-reference token or group id"`
	} `positional-args:"true"`
}

func (c *equivalentsCmd) Execute(args []string) error {
	e, done, err := c.openEngine(context.Background())
	if err != nil {
		return err
	}

	defer func() { _ = done() }()

	ids, err := e.Equivalents(c.Args.Identifier)
	if err != nil {
		return err
	}

	metrics.QueryServed()

	for _, id := range ids {
		fmt.Println(id)
	}

	return nil
}
