package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// module defs - BuildDate and BuildCommit can be set at build time via ldflags
var (
	CurrentVersion string = "0.1.0"
	BuildCommit    string = "none"
	BuildDate      string = "unknown"
)

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Print version information",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "scenewalk %s (commit %s, built %s, %s)\n",
				CurrentVersion, BuildCommit, BuildDate, runtime.Version())
			return nil
		},
	}
}
