package main

import (
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/scenewalk/scenewalk/internal/config"
	"github.com/scenewalk/scenewalk/internal/session"
	"github.com/scenewalk/scenewalk/internal/tour"
)

// loadTour reads path, falling back to the configured tour and then the built-in one.
func loadTour(path string) (*tour.Tour, error) {
	if path == "" {
		path = config.GetString("tour")
	}
	if path == "" {
		return tour.Default(), nil
	}
	return tour.Load(path)
}

func newRunCommand(ctx *commandContext) *cobra.Command {
	var tourPath string
	var simulated bool
	var headless bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Play a tour with keyboard-driven tracking",
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := loadTour(tourPath)
			if err != nil {
				return err
			}

			started := time.Now()
			sess := session.New(t.Name, len(t.Targets), t.SlotCount(), started)

			var current atomic.Pointer[player]
			active := func() int {
				if p := current.Load(); p != nil {
					return p.Active()
				}
				return -1
			}
			log, zl, err := ctx.setupLogging(logOptions{
				Name:    "scenewalk",
				Started: started,
				Session: sess.ID,
				Active:  active,
			})
			if err != nil {
				return err
			}
			defer ctx.closeLogging()

			var meter metric.Meter = noop.Meter{}
			if ctx.otel != nil {
				meter = ctx.otel.Meter(meterName)
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			p, err := startPlayer(runCtx, playerOptions{
				Tour:    t,
				Session: sess,
				Started: started,
				Sim:     simulated,
				Meter:   meter,
				Logger:  log,
				ZLog:    zl,
			})
			if err != nil {
				return err
			}
			current.Store(p)

			if headless {
				fmt.Fprintf(cmd.OutOrStdout(), "Playing %q (session %s), press Ctrl+C to stop\n", t.Name, sess.ID)
				<-runCtx.Done()
			} else {
				program := tea.NewProgram(newTourModel(p, p.Engine.Status), tea.WithAltScreen(), tea.WithContext(runCtx))
				if _, err := program.Run(); err != nil && runCtx.Err() == nil {
					log.Error("Player UI failed", "error", err)
				}
			}

			if err := p.Stop(); err != nil {
				return err
			}
			ended := p.Session.Get()
			fmt.Fprintf(cmd.OutOrStdout(), "Session %s ended after %s\n", ended.ID, ended.Duration().Round(time.Second))
			return nil
		},
	}

	cmd.Flags().StringVarP(&tourPath, "tour", "t", "", "Tour file (JSON, YAML or TOML); defaults to the configured or built-in tour")
	cmd.Flags().BoolVar(&simulated, "sim", false, "Fabricate assets instead of reading loader.assetDir")
	cmd.Flags().BoolVar(&headless, "headless", false, "Run without the terminal player until interrupted")
	return cmd
}
