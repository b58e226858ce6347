package engine

import (
	"log/slog"
	"time"
)

// LogDisplay is a coordinator.Display for headless runs. Notices are logged at info,
// HUD changes at debug.
type LogDisplay struct {
	Logger *slog.Logger

	label string
}

// ShowHUD implements coordinator.Display.
func (d *LogDisplay) ShowHUD(visible bool) {
	d.logger().Debug("hud", "visible", visible)
}

// SetStatus implements coordinator.Display.
func (d *LogDisplay) SetStatus(label string) {
	if label == d.label {
		return
	}
	d.label = label
	d.logger().Debug("status", "label", label)
}

// SetControls implements coordinator.Display.
func (d *LogDisplay) SetControls(prev, next, replay bool) {}

// Notice implements coordinator.Display.
func (d *LogDisplay) Notice(msg string, dur time.Duration) {
	d.logger().Info("notice", "message", msg, "duration", dur)
}

func (d *LogDisplay) logger() *slog.Logger {
	if d.Logger == nil {
		return slog.Default()
	}
	return d.Logger
}
