package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/scenewalk/scenewalk/internal/config"
	"github.com/scenewalk/scenewalk/internal/database"
	gormstorage "github.com/scenewalk/scenewalk/internal/storage/gorm"
)

// migratedSuffix marks dumps that were imported so later runs skip them.
const migratedSuffix = ".migrated"

func newMigrateCommand(ctx *commandContext) *cobra.Command {
	var keep bool

	cmd := &cobra.Command{
		Use:   "migrate [dump.db...]",
		Short: "Import local SQLite journal dumps into Postgres",
		Long: "Copies every session of each SQLite dump into the configured Postgres database. " +
			"Without arguments the configured storage.sqlite.path is imported.",
		RunE: func(cmd *cobra.Command, args []string) error {
			log, zl, err := ctx.setupLogging(logOptions{Name: "migrate", Started: time.Now()})
			if err != nil {
				return err
			}
			defer ctx.closeLogging()

			paths := args
			if len(paths) == 0 {
				paths = []string{config.GetStorageConfig().SQLite.Path}
			}

			m := database.NewManager(zl, "")
			pg, err := m.GetPostgresDB()
			if err != nil {
				return fmt.Errorf("error getting postgres database: %w", err)
			}

			var migrated []string
			for _, path := range paths {
				if _, err := os.Stat(path); err != nil {
					return fmt.Errorf("dump %s: %w", path, err)
				}
				src, err := database.GetSqliteDB(path)
				if err != nil {
					return fmt.Errorf("error getting sqlite database: %w", err)
				}

				stats, err := gormstorage.Migrate(src, pg, log)
				if sqlDB, dbErr := src.DB(); dbErr == nil {
					if cerr := sqlDB.Close(); cerr != nil {
						log.Error("Error closing sqlite connection", "error", cerr)
					}
				}
				if err != nil {
					return fmt.Errorf("migrate %s: %w", path, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %d sessions, %d rows, %d already present\n",
					filepath.Base(path), stats.Sessions, stats.Rows, stats.Skipped)

				if !keep {
					if err := os.Rename(path, path+migratedSuffix); err != nil {
						log.Error("Error renaming sqlite file", "error", err)
					}
				}
				migrated = append(migrated, path)
			}

			log.Info("Successfully migrated dumps", "count", len(migrated), "paths", migrated)
			return nil
		},
	}

	cmd.Flags().BoolVar(&keep, "keep", false, "Leave dumps in place instead of renaming them to *"+migratedSuffix)
	return cmd
}
