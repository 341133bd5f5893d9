package main

import (
	"log"

	"tractor.dev/toolkit-go/engine"
	"tractor.dev/toolkit-go/engine/cli"
)

func main() {
	engine.Run(Main{})
}

type Main struct{}

func (m *Main) InitializeCLI(root *cli.Command) {
	root.Usage = "gvfs"
	root.AddCommand(mountCmd())
	root.AddCommand(lsCmd())
	root.AddCommand(catCmd())
	root.AddCommand(statCmd())
	root.AddCommand(mkdirCmd())
	root.AddCommand(rmCmd())
	root.AddCommand(mvCmd())
}

func fatal(err error) {
	if err != nil {
		log.Fatal(err)
	}
}
