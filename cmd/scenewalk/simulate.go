package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/scenewalk/scenewalk/internal/config"
	"github.com/scenewalk/scenewalk/internal/loader"
	"github.com/scenewalk/scenewalk/internal/logging"
	"github.com/scenewalk/scenewalk/internal/parser"
	"github.com/scenewalk/scenewalk/internal/session"
	"github.com/scenewalk/scenewalk/internal/sim"
	"github.com/scenewalk/scenewalk/internal/storage"
)

func newSimulateCommand(ctx *commandContext) *cobra.Command {
	var tourPath string
	var failRefs []string
	var skipFailed bool
	var journal bool

	cmd := &cobra.Command{
		Use:   "simulate <script|->",
		Short: "Replay a tracking script in simulated time and check its expectations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := loadTour(tourPath)
			if err != nil {
				return err
			}

			var in io.Reader = cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("open script: %w", err)
				}
				defer f.Close()
				in = f
			}

			started := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
			sess := session.New(t.Name, len(t.Targets), t.SlotCount(), started)

			log, zl, err := ctx.setupLogging(logOptions{Name: "simulate", Started: time.Now(), Session: sess.ID})
			if err != nil {
				return err
			}
			defer ctx.closeLogging()

			steps, err := parser.NewParser(log).ParseScript(in)
			if err != nil {
				return err
			}

			src := &loader.SimSource{Fail: make(map[string]bool)}
			for _, ref := range failRefs {
				src.Fail[ref] = true
			}

			ec := config.GetEngineConfig()
			if cmd.Flags().Changed("skip-failed") {
				ec.SkipFailedParts = skipFailed
			}

			opts := sim.Options{
				Tour:           t,
				Engine:         ec,
				Source:         src,
				Session:        sess,
				Start:          started,
				Logger:         log,
				DispatchLogger: logging.NewDispatcherLogger(zl),
			}

			var j *storage.Fanout
			if journal {
				j, err = newJournal(config.GetStorageConfig(), log, zl, time.Now())
				if err != nil {
					return err
				}
				if err := j.Init(); err != nil {
					return fmt.Errorf("failed to initialize journal: %w", err)
				}
				if err := j.StartSession(sess); err != nil {
					_ = j.Close()
					return fmt.Errorf("failed to start session: %w", err)
				}
				opts.Journal = j
			}

			rig, err := sim.NewRig(opts)
			if err != nil {
				return err
			}
			report, runErr := rig.Runner.Run(cmd.Context(), steps)

			if j != nil {
				sess.EndedAt = sess.StartedAt.Add(report.Elapsed)
				if err := j.EndSession(); err != nil {
					log.Error("Failed to end session", "error", err)
				}
				if err := j.Close(); err != nil {
					log.Error("Failed to close journal", "error", err)
				}
			}

			printReport(cmd.OutOrStdout(), t.Name, report)
			return runErr
		},
	}

	cmd.Flags().StringVarP(&tourPath, "tour", "t", "", "Tour file; defaults to the configured or built-in tour")
	cmd.Flags().StringSliceVar(&failRefs, "fail", nil, "Asset refs that fail to load")
	cmd.Flags().BoolVar(&skipFailed, "skip-failed", false, "Skip parts whose asset failed instead of waiting on them")
	cmd.Flags().BoolVar(&journal, "journal", false, "Record the run with the configured storage backend")
	return cmd
}

func printReport(w io.Writer, name string, r sim.Report) {
	fmt.Fprintf(w, "tour:         %s\n", name)
	fmt.Fprintf(w, "steps:        %d\n", r.Steps)
	fmt.Fprintf(w, "expectations: %d\n", r.Expectations)
	fmt.Fprintf(w, "elapsed:      %s\n", r.Elapsed)
	fmt.Fprintf(w, "label:        %s\n", r.Final.Label)
	for _, t := range r.Final.Targets {
		fmt.Fprintf(w, "target %d:     %s slot %d/%d viewed %v complete %t\n",
			t.ID, t.Name, t.Slot+1, t.Slots, t.Viewed, t.Complete)
	}
}
