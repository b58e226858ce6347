// Package influx mirrors the session journal into InfluxDB as line-protocol points.
// When the server is unreachable the points go to a gzip backup file instead, which
// can be replayed with `influx write` later.
package influx

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	influxdb2_api "github.com/influxdata/influxdb-client-go/v2/api"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/influxdata/influxdb-client-go/v2/domain"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// ErrDisabled is returned by Connect when influx.enabled is false.
var ErrDisabled = errors.New("influxdb.Enabled is false")

// DefaultBucket receives the journal points when influx.bucket is unset.
const DefaultBucket = "scenewalk_journal"

const retention = 30 * 24 * time.Hour

// settings is the influx.* block of the config.
type settings struct {
	url    string
	token  string
	org    string
	bucket string
}

func loadSettings() settings {
	s := settings{
		url: fmt.Sprintf("%s://%s:%s",
			viper.GetString("influx.protocol"),
			viper.GetString("influx.host"),
			viper.GetString("influx.port")),
		token:  viper.GetString("influx.token"),
		org:    viper.GetString("influx.org"),
		bucket: viper.GetString("influx.bucket"),
	}
	if s.bucket == "" {
		s.bucket = DefaultBucket
	}
	return s
}

// sink is where points end up: the live write API or the backup file.
type sink interface {
	write(p *influxdb2_write.Point) error
	flush()
	close() error
}

// Manager is a storage.Backend writing journal rows as points.
type Manager struct {
	Bucket     string
	BackupPath string
	Logger     zerolog.Logger

	// IsValid reports whether points reach the server rather than the backup.
	IsValid bool

	client influxdb2.Client

	mu      sync.Mutex
	out     sink
	session string
	started time.Time
}

// NewManager creates an unconnected manager.
func NewManager(log zerolog.Logger, backupPath string) *Manager {
	return &Manager{
		Bucket:     loadSettings().bucket,
		BackupPath: backupPath,
		Logger:     log,
	}
}

// Connect pings the server and prepares the bucket, falling back to the backup file
// when the ping fails.
func (m *Manager) Connect() error {
	if !viper.GetBool("influx.enabled") {
		return ErrDisabled
	}
	s := loadSettings()
	m.Bucket = s.bucket

	m.client = influxdb2.NewClientWithOptions(s.url, s.token,
		influxdb2.DefaultOptions().SetBatchSize(2500).SetFlushInterval(1000))

	ctx := context.Background()
	if running, err := m.client.Ping(ctx); err != nil || !running {
		m.Logger.Warn().Err(err).Str("backupPath", m.BackupPath).
			Msg("InfluxDB unreachable, writing journal points to backup file")
		out, err := openBackup(m.BackupPath)
		if err != nil {
			return err
		}
		m.setSink(out, false)
		return nil
	}

	if err := m.ensureBucket(ctx, s); err != nil {
		return err
	}
	m.setSink(newAPISink(m.client.WriteAPI(s.org, s.bucket), m.Logger.With().Str("bucket", s.bucket).Logger()), true)
	m.Logger.Info().Str("bucket", s.bucket).Msg("InfluxDB client initialized")
	return nil
}

func (m *Manager) setSink(out sink, live bool) {
	m.mu.Lock()
	m.out = out
	m.IsValid = live
	m.mu.Unlock()
}

// ensureBucket creates the organization and the journal bucket when missing.
func (m *Manager) ensureBucket(ctx context.Context, s settings) error {
	orgs := m.client.OrganizationsAPI()
	org, err := orgs.FindOrganizationByName(ctx, s.org)
	if err != nil {
		m.Logger.Info().Str("org", s.org).Msg("Organization not found, creating")
		if org, err = orgs.CreateOrganizationWithName(ctx, s.org); err != nil {
			return fmt.Errorf("create organization %q: %w", s.org, err)
		}
	}

	buckets := m.client.BucketsAPI()
	if _, err := buckets.FindBucketByName(ctx, s.bucket); err == nil {
		return nil
	}
	m.Logger.Info().Str("bucket", s.bucket).Msg("Bucket not found, creating")
	rule := domain.RetentionRuleTypeExpire
	_, err = buckets.CreateBucketWithName(ctx, org, s.bucket, domain.RetentionRule{
		Type:         &rule,
		EverySeconds: int64(retention / time.Second),
	})
	if err != nil {
		return fmt.Errorf("create bucket %q: %w", s.bucket, err)
	}
	return nil
}

// WritePoint sends p to the current sink.
func (m *Manager) WritePoint(p *influxdb2_write.Point) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.out == nil {
		return fmt.Errorf("influxDB client not initialized and backup writer not available")
	}
	return m.out.write(p)
}

type apiSink struct {
	api influxdb2_api.WriteAPI
}

func newAPISink(api influxdb2_api.WriteAPI, log zerolog.Logger) *apiSink {
	go func() {
		for err := range api.Errors() {
			log.Error().Err(err).Msg("Error sending data to InfluxDB")
		}
	}()
	return &apiSink{api: api}
}

func (s *apiSink) write(p *influxdb2_write.Point) error {
	s.api.WritePoint(p)
	return nil
}

func (s *apiSink) flush()       { s.api.Flush() }
func (s *apiSink) close() error { s.api.Flush(); return nil }

type backupSink struct {
	file *os.File
	gz   *gzip.Writer
}

func openBackup(path string) (*backupSink, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("error creating backup file: %w", err)
	}
	return &backupSink{file: f, gz: gzip.NewWriter(f)}, nil
}

func (s *backupSink) write(p *influxdb2_write.Point) error {
	line := influxdb2_write.PointToLineProtocol(p, time.Nanosecond)
	if _, err := s.gz.Write([]byte(line + "\n")); err != nil {
		return fmt.Errorf("error writing to InfluxDB backup file: %w", err)
	}
	return nil
}

func (s *backupSink) flush() { _ = s.gz.Flush() }

func (s *backupSink) close() error {
	return errors.Join(s.gz.Close(), s.file.Close())
}
