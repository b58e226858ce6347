package monitor

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/scenewalk/scenewalk/pkg/core"
)

// Dependencies holds all dependencies for the monitor service
type Dependencies struct {
	Status   func() core.Status
	DB       *gorm.DB // optional; samples are stored when set
	Logger   *slog.Logger
	Path     string
	Interval time.Duration
}

// Sample is one persisted status reading.
type Sample struct {
	ID            uint      `gorm:"primarykey"`
	Time          time.Time `gorm:"index"`
	Session       string    `gorm:"size:64;index"`
	Active        int
	QueueLen      int
	PendingTimers int
	Unlocked      int
	Complete      int
}

// TableName implements gorm's Tabler.
func (Sample) TableName() string { return "status_samples" }

// Service manages status monitoring
type Service struct {
	deps      Dependencies
	isRunning bool
	mu        sync.RWMutex
	stopChan  chan struct{}
	done      chan struct{}
}

// NewService creates a new monitor service
func NewService(deps Dependencies) *Service {
	if deps.Interval <= 0 {
		deps.Interval = time.Second
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Service{deps: deps}
}

// IsRunning returns whether the status monitor is running
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Snapshot reads the engine status and condenses it into a sample.
func (s *Service) Snapshot() (core.Status, Sample) {
	st := s.deps.Status()
	sample := Sample{
		Time:          st.Time,
		Session:       st.Session,
		Active:        st.Active,
		QueueLen:      st.QueueLen,
		PendingTimers: st.PendingTimers,
	}
	if sample.Time.IsZero() {
		sample.Time = time.Now()
	}
	for _, t := range st.Targets {
		if t.GateOpen {
			sample.Unlocked++
		}
		if t.Complete {
			sample.Complete++
		}
	}
	return st, sample
}

// WriteOnce writes the status file and stores a sample.
func (s *Service) WriteOnce() error {
	st, sample := s.Snapshot()

	if s.deps.Path != "" {
		if err := writeStatusFile(s.deps.Path, st); err != nil {
			return err
		}
	}
	if s.deps.DB != nil {
		if err := s.deps.DB.Create(&sample).Error; err != nil {
			return fmt.Errorf("failed to store status sample: %w", err)
		}
	}
	return nil
}

// Start starts the status monitor goroutine
func (s *Service) Start() error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	if s.deps.DB != nil {
		if err := s.deps.DB.AutoMigrate(&Sample{}); err != nil {
			s.mu.Unlock()
			return fmt.Errorf("failed to migrate status samples: %w", err)
		}
	}
	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.done = make(chan struct{})
	s.mu.Unlock()

	go s.loop(s.stopChan, s.done)
	return nil
}

func (s *Service) loop(stop, done chan struct{}) {
	defer func() {
		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()
		close(done)
	}()

	logger := s.deps.Logger
	logger.Debug("Starting status monitor", "path", s.deps.Path, "interval", s.deps.Interval)

	ticker := time.NewTicker(s.deps.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			if err := s.WriteOnce(); err != nil {
				logger.Error("Error writing final status", "error", err)
			}
			return
		case <-ticker.C:
			if err := s.WriteOnce(); err != nil {
				logger.Error("Error writing status", "error", err)
			}
		}
	}
}

// Stop stops the status monitor and waits for the final write.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	stop, done := s.stopChan, s.done
	s.stopChan = nil
	s.mu.Unlock()

	if stop != nil {
		close(stop)
	}
	<-done
}

// writeStatusFile replaces path atomically so readers never see a partial file.
func writeStatusFile(path string, st core.Status) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal status: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".status-*")
	if err != nil {
		return fmt.Errorf("error creating status file: %w", err)
	}
	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("error writing status file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
