// Command sfsutil is a small diagnostic CLI over a single sfs image file. It
// covers format and inspection only; the interactive shell from the
// original program is out of scope here.
package main

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/urfave/cli/v2"

	"github.com/dkrylov/sfs"
)

func main() {
	app := cli.App{
		Name:  "sfsutil",
		Usage: "format and inspect sfs image files",
		Commands: []*cli.Command{
			{
				Name:      "mkfs",
				Usage:     "format an existing file as a fresh, empty image",
				ArgsUsage: "IMAGE_FILE",
				Action:    mkfsCommand,
			},
			{
				Name:      "stat",
				Usage:     "print layout metadata for a mounted image",
				ArgsUsage: "IMAGE_FILE",
				Action:    statCommand,
			},
			{
				Name:      "ls",
				Usage:     "list a directory's entries",
				ArgsUsage: "IMAGE_FILE PATH",
				Action:    lsCommand,
			},
			{
				Name:      "export-csv",
				Usage:     "export a directory's entries as CSV",
				ArgsUsage: "IMAGE_FILE PATH",
				Action:    exportCSVCommand,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("fatal error: %s", err.Error())
	}
}

func mkfsCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("usage: sfsutil mkfs IMAGE_FILE", 1)
	}
	return sfs.Mkfs(c.Args().Get(0))
}

func statCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("usage: sfsutil stat IMAGE_FILE", 1)
	}
	fs, err := sfs.Mount(c.Args().Get(0))
	if err != nil {
		return err
	}
	defer fs.Unmount()

	stats, err := fs.DumpStats()
	if err != nil {
		return err
	}
	fmt.Printf("FS size: %d\n", stats.Size)
	fmt.Printf("block size: %d\n", stats.BlockSize)
	fmt.Printf("blocks num: %d\n", stats.BlocksNum)
	fmt.Printf("max files: %d\n", stats.MaxFiles)
	fmt.Printf("mask offset: %d\n", stats.MaskOffset)
	fmt.Printf("descriptor table offset: %d\n", stats.DescrTableOffset)
	return nil
}

func lsCommand(c *cli.Context) error {
	if c.NArg() != 2 {
		return cli.Exit("usage: sfsutil ls IMAGE_FILE PATH", 1)
	}
	fs, err := sfs.Mount(c.Args().Get(0))
	if err != nil {
		return err
	}
	defer fs.Unmount()

	entries, err := fs.List(c.Args().Get(1))
	if err != nil {
		return err
	}
	for _, entry := range entries {
		stat, err := fs.FileStat(entry.ID)
		if err != nil {
			return err
		}
		fmt.Printf("%s\tid:%s\tsize:%d\n", entry.Name, strconv.Itoa(int(entry.ID)), stat.Size)
	}
	return nil
}

func exportCSVCommand(c *cli.Context) error {
	if c.NArg() != 2 {
		return cli.Exit("usage: sfsutil export-csv IMAGE_FILE PATH", 1)
	}
	fs, err := sfs.Mount(c.Args().Get(0))
	if err != nil {
		return err
	}
	defer fs.Unmount()

	return fs.WriteDirCSV(c.Args().Get(1), os.Stdout)
}
