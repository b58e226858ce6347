package database

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/spf13/viper"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Journal rows arrive in bursts from the flush loop; the sqlite pragmas trade
// durability for speed because the in-memory database is dumped anyway.
var sqlitePragmas = []string{
	"PRAGMA user_version = 1",
	"PRAGMA journal_mode = MEMORY",
	"PRAGMA synchronous = OFF",
	"PRAGMA temp_store = MEMORY",
}

func gormConfig(batch int, prepare bool) *gorm.Config {
	return &gorm.Config{
		PrepareStmt:            prepare,
		SkipDefaultTransaction: true,
		CreateBatchSize:        batch,
		Logger:                 logger.Default.LogMode(logger.Silent),
	}
}

// PostgresDSN builds the connection string from the db.* config keys.
func PostgresDSN() string {
	parts := []string{
		"host=" + viper.GetString("db.host"),
		"port=" + viper.GetString("db.port"),
		"user=" + viper.GetString("db.username"),
		"password=" + viper.GetString("db.password"),
		"dbname=" + viper.GetString("db.database"),
		"sslmode=disable",
	}
	return strings.Join(parts, " ")
}

// MemoryDSN returns a DSN for a fresh named in-memory database. Connections sharing
// the DSN share the database; distinct calls never collide.
func MemoryDSN() string {
	return "file:scenewalk-" + uuid.NewString() + "?mode=memory&cache=shared"
}

// GetPostgresDB opens a Postgres connection.
func GetPostgresDB(dsn string) (*gorm.DB, error) {
	return gorm.Open(postgres.New(postgres.Config{
		DSN:                  dsn,
		PreferSimpleProtocol: true,
	}), gormConfig(1000, false))
}

// GetSqliteDB opens a SQLite database. dsn is a file path or a MemoryDSN.
func GetSqliteDB(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dsn), gormConfig(500, true))
	if err != nil {
		return nil, err
	}
	for _, pragma := range sqlitePragmas {
		if err := db.Exec(pragma).Error; err != nil {
			return nil, fmt.Errorf("error setting %q: %w", pragma, err)
		}
	}
	return db, nil
}

// DumpMemoryDBToDisk vacuums db into path, replacing any previous dump.
func DumpMemoryDBToDisk(db *gorm.DB, path string) error {
	switch {
	case db == nil:
		return fmt.Errorf("db not connected")
	case path == "":
		return fmt.Errorf("sqlite file path not set")
	}

	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("error removing existing DB file: %w", err)
	}
	target := strings.ReplaceAll(path, "'", "''")
	if err := db.Exec("VACUUM INTO 'file:" + target + "'").Error; err != nil {
		return fmt.Errorf("error dumping memory DB to disk: %w", err)
	}
	return nil
}
