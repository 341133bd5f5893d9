package main

import (
	"log"
	"os"
	"os/signal"

	"tractor.dev/toolkit-go/engine/cli"

	"github.com/filesetio/gvfs/fusekit"
)

func mountCmd() *cli.Command {
	cmd := &cli.Command{
		Usage: "mount <virtual-path> <dir>",
		Short: "mount a fileset on a local directory",
		Args:  cli.ExactArgs(2),
		Run: func(ctx *cli.Context, args []string) {
			log.SetFlags(log.Ldate | log.Ltime)

			fsys, err := openFS()
			fatal(err)
			defer fsys.Close()

			mount, err := fusekit.Mount(fsys, args[0], args[1])
			if err != nil {
				log.Fatalf("mount failed: %v", err)
			}
			defer func() {
				if err := mount.Close(); err != nil {
					log.Fatalf("failed to unmount: %v", err)
				}
			}()

			log.Printf("mounted %s at %s ...", args[0], args[1])

			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan)
			for sig := range sigChan {
				if sig == os.Interrupt {
					return
				}
			}
		},
	}
	return cmd
}
