package main

import (
	"context"
	"fmt"
	"io"
	"runtime/debug"

	"github.com/urfave/cli/v3"
)

type buildInfo struct {
	Version   string
	GoVersion string
	Commit    string
	BuildTime string
	Modified  bool
}

// readBuildInfo extracts version and VCS details stamped by the Go toolchain.
func readBuildInfo() buildInfo {
	bi := buildInfo{
		Version:   "unknown",
		GoVersion: "unknown",
	}

	info, ok := debug.ReadBuildInfo()
	if !ok {
		return bi
	}

	bi.Version = info.Main.Version
	bi.GoVersion = info.GoVersion

	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			bi.Commit = setting.Value
		case "vcs.time":
			bi.BuildTime = setting.Value
		case "vcs.modified":
			bi.Modified = setting.Value == "true"
		}
	}

	return bi
}

func (bi buildInfo) print(w io.Writer) {
	fmt.Fprintf(w, "version: %s\n", bi.Version)
	fmt.Fprintf(w, "go: %s\n", bi.GoVersion)
	if bi.Commit != "" {
		dirty := ""
		if bi.Modified {
			dirty = " (dirty)"
		}
		fmt.Fprintf(w, "commit: %s%s\n", bi.Commit, dirty)
	}
	if bi.BuildTime != "" {
		fmt.Fprintf(w, "built: %s\n", bi.BuildTime)
	}
}

func newVersionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Print version information",
		Action: func(ctx context.Context, command *cli.Command) error {
			readBuildInfo().print(command.Root().Writer)
			return nil
		},
	}
}
