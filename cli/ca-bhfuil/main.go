package main

import (
	"gopkg.in/src-d/go-cli.v0"
)

var (
	version string
	build   string
)

var app = cli.New(
	"ca-bhfuil",
	version,
	build,
	"Finds where a change is: which branches and tags contain a commit or an equivalent backport of it.",
)

func main() {
	app.RunMain()
}
