package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/scenewalk/scenewalk/internal/tour"
)

func newValidateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "validate [tour...]",
		Short: "Check tour files and print their layout",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				args = []string{""}
			}
			for _, path := range args {
				t, err := loadTour(path)
				if err != nil {
					if path == "" {
						return err
					}
					return fmt.Errorf("%s: %w", path, err)
				}
				printTour(cmd.OutOrStdout(), t)
			}
			return nil
		},
	}
}

func printTour(w io.Writer, t *tour.Tour) {
	fmt.Fprintf(w, "%s: %d targets, %d slots\n", t.Name, len(t.Targets), t.SlotCount())
	for i, def := range t.Targets {
		fmt.Fprintf(w, "  target %d %q", i, def.Name)
		if def.Gate != nil {
			fmt.Fprintf(w, " gated by %d (%s)", *def.Gate, def.Trigger())
		}
		if len(def.Track) > 0 {
			fmt.Fprintf(w, " tracks %v", def.Track)
		}
		fmt.Fprintln(w)
		for j, s := range def.Slots {
			switch {
			case s.Composite():
				fmt.Fprintf(w, "    slot %d: %d parts over %dms", j, len(s.Files), lastTiming(s.Timing))
			default:
				fmt.Fprintf(w, "    slot %d: %s", j, s.Static)
			}
			if s.Title != "" {
				fmt.Fprintf(w, " %q", s.Title)
			}
			if s.Gated {
				fmt.Fprint(w, " gated")
			}
			fmt.Fprintln(w)
		}
	}
}

func lastTiming(timing []int) int {
	last := 0
	for _, ms := range timing {
		last = max(last, ms)
	}
	return last
}
