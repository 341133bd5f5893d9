package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"tractor.dev/toolkit-go/engine/cli"
)

func lsCmd() *cli.Command {
	return &cli.Command{
		Usage: "ls <virtual-path>",
		Short: "list a fileset directory",
		Args:  cli.ExactArgs(1),
		Run: func(ctx *cli.Context, args []string) {
			fsys, err := openFS()
			fatal(err)
			defer fsys.Close()

			statuses, err := fsys.ListStatus(context.Background(), args[0])
			fatal(err)
			for _, st := range statuses {
				kind := "-"
				if st.IsDir() {
					kind = "d"
				}
				fmt.Printf("%s %10d  %s  %s\n", kind, st.Size, st.ModTime.Format("2006-01-02 15:04"), st.Path)
			}
		},
	}
}

func catCmd() *cli.Command {
	return &cli.Command{
		Usage: "cat <virtual-path>",
		Short: "print a fileset file",
		Args:  cli.ExactArgs(1),
		Run: func(ctx *cli.Context, args []string) {
			fsys, err := openFS()
			fatal(err)
			defer fsys.Close()

			f, err := fsys.Open(context.Background(), args[0])
			fatal(err)
			defer f.Close()
			_, err = io.Copy(os.Stdout, f)
			fatal(err)
		},
	}
}

func statCmd() *cli.Command {
	return &cli.Command{
		Usage: "stat <virtual-path>",
		Short: "describe a fileset path",
		Args:  cli.ExactArgs(1),
		Run: func(ctx *cli.Context, args []string) {
			fsys, err := openFS()
			fatal(err)
			defer fsys.Close()

			st, err := fsys.GetFileStatus(context.Background(), args[0])
			fatal(err)
			fmt.Printf("path:  %s\nsize:  %d\ndir:   %v\nmtime: %s\n", st.Path, st.Size, st.IsDir(), st.ModTime)
		},
	}
}

func mkdirCmd() *cli.Command {
	return &cli.Command{
		Usage: "mkdir <virtual-path>",
		Short: "create a fileset directory",
		Args:  cli.ExactArgs(1),
		Run: func(ctx *cli.Context, args []string) {
			fsys, err := openFS()
			fatal(err)
			defer fsys.Close()
			fatal(fsys.Mkdirs(context.Background(), args[0], 0o755))
		},
	}
}

func rmCmd() *cli.Command {
	var recursive bool
	cmd := &cli.Command{
		Usage: "rm <virtual-path>",
		Short: "remove a fileset path",
		Args:  cli.ExactArgs(1),
		Run: func(ctx *cli.Context, args []string) {
			fsys, err := openFS()
			fatal(err)
			defer fsys.Close()

			removed, err := fsys.Delete(context.Background(), args[0], recursive)
			fatal(err)
			if !removed {
				fmt.Fprintln(os.Stderr, "nothing removed")
			}
		},
	}
	cmd.Flags().BoolVar(&recursive, "r", false, "remove directories recursively")
	return cmd
}

func mvCmd() *cli.Command {
	return &cli.Command{
		Usage: "mv <src> <dst>",
		Short: "rename within a fileset",
		Args:  cli.ExactArgs(2),
		Run: func(ctx *cli.Context, args []string) {
			fsys, err := openFS()
			fatal(err)
			defer fsys.Close()
			fatal(fsys.Rename(context.Background(), args[0], args[1]))
		},
	}
}
