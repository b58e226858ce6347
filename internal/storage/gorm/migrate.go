package gormstorage

import (
	"fmt"
	"log/slog"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MigrateStats summarizes one Migrate call.
type MigrateStats struct {
	Sessions int // copied
	Skipped  int // already present in the destination
	Rows     int
}

// rebind detaches a row from its source database and points it at a new session.
type rebinder[M any] interface {
	*M
	rebind(session uint)
}

func (r *TrackingEvent) rebind(s uint) { r.ID, r.SessionID = 0, s }
func (r *SlotView) rebind(s uint)      { r.ID, r.SessionID = 0, s }
func (r *GateUnlock) rebind(s uint)    { r.ID, r.SessionID = 0, s }
func (r *PartEvent) rebind(s uint)     { r.ID, r.SessionID = 0, s }
func (r *LoadEvent) rebind(s uint)     { r.ID, r.SessionID = 0, s }

// Migrate copies every session of src, with its journal rows, into dst. Sessions
// whose UUID already exists in dst are skipped, so a dump can be imported twice.
// Each session is copied in its own transaction.
func Migrate(src, dst *gorm.DB, log *slog.Logger) (MigrateStats, error) {
	var stats MigrateStats
	if log == nil {
		log = slog.Default()
	}
	if err := dst.AutoMigrate(Models...); err != nil {
		return stats, fmt.Errorf("failed to migrate schema: %w", err)
	}

	var sessions []Session
	if err := src.Order("id").Find(&sessions).Error; err != nil {
		return stats, fmt.Errorf("failed to read sessions: %w", err)
	}
	log.Info("Found sessions", "count", len(sessions), "database", src.Name())

	for _, s := range sessions {
		var existing int64
		if err := dst.Model(&Session{}).Where("uuid = ?", s.UUID).Count(&existing).Error; err != nil {
			return stats, fmt.Errorf("failed to look up session %s: %w", s.UUID, err)
		}
		if existing > 0 {
			log.Info("Session already migrated", "session", s.UUID)
			stats.Skipped++
			continue
		}

		from := s.ID
		rows := 0
		err := dst.Transaction(func(tx *gorm.DB) error {
			s.ID = 0
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&s).Error; err != nil {
				return fmt.Errorf("failed to create session: %w", err)
			}
			copiers := []func() (int, error){
				func() (int, error) { return copyRows[TrackingEvent](src, tx, from, s.ID) },
				func() (int, error) { return copyRows[SlotView](src, tx, from, s.ID) },
				func() (int, error) { return copyRows[GateUnlock](src, tx, from, s.ID) },
				func() (int, error) { return copyRows[PartEvent](src, tx, from, s.ID) },
				func() (int, error) { return copyRows[LoadEvent](src, tx, from, s.ID) },
			}
			for _, c := range copiers {
				n, err := c()
				if err != nil {
					return err
				}
				rows += n
			}
			return nil
		})
		if err != nil {
			return stats, fmt.Errorf("session %s: %w", s.UUID, err)
		}
		log.Info("Migrated session", "session", s.UUID, "rows", rows)
		stats.Sessions++
		stats.Rows += rows
	}
	return stats, nil
}

func copyRows[M any, P rebinder[M]](src, tx *gorm.DB, from, to uint) (int, error) {
	var rows []M
	if err := src.Where("session_id = ?", from).Order("id").Find(&rows).Error; err != nil {
		var zero M
		return 0, fmt.Errorf("failed to read %T rows: %w", zero, err)
	}
	if len(rows) == 0 {
		return 0, nil
	}
	for i := range rows {
		P(&rows[i]).rebind(to)
	}
	if err := tx.CreateInBatches(&rows, 500).Error; err != nil {
		var zero M
		return 0, fmt.Errorf("failed to write %T rows: %w", zero, err)
	}
	return len(rows), nil
}
