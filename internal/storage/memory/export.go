package memory

import (
	"compress/gzip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	v1 "github.com/scenewalk/scenewalk/internal/storage/memory/export/v1"
	"github.com/scenewalk/scenewalk/pkg/core"
)

var unsafeName = strings.NewReplacer(" ", "_", ":", "_", "/", "_", `\`, "_")

// exportFileName is <tour>_<start>.json, with .gz when compressed.
func exportFileName(s *core.Session, compress bool) string {
	tour := unsafeName.Replace(s.Tour)
	if tour == "" {
		tour = "session"
	}
	name := tour + "_" + s.StartedAt.Format("20060102_150405") + ".json"
	if compress {
		name += ".gz"
	}
	return name
}

// exportJSON writes the journal into OutputDir. The file appears under its final
// name only once fully written. Caller holds b.mu.
func (b *Backend) exportJSON() error {
	if err := os.MkdirAll(b.cfg.OutputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	path := filepath.Join(b.cfg.OutputDir, exportFileName(b.session, b.cfg.CompressOutput))

	tmp, err := os.CreateTemp(b.cfg.OutputDir, ".export-*")
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	err = writeExport(tmp, b.buildExport(), b.cfg.CompressOutput)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Rename(tmp.Name(), path)
	}
	if err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	b.lastExportPath = path
	return nil
}

func writeExport(w io.Writer, data v1.Export, compress bool) error {
	if !compress {
		return json.NewEncoder(w).Encode(data)
	}
	gz := gzip.NewWriter(w)
	return errors.Join(json.NewEncoder(gz).Encode(data), gz.Close())
}

func (b *Backend) buildExport() v1.Export {
	return v1.Build(&v1.SessionData{
		Session:  b.session,
		Tracking: b.tracking,
		Views:    b.views,
		Unlocks:  b.unlocks,
		Parts:    b.parts,
		Loads:    b.loads,
	})
}

// ExportedFilePath returns the path of the last export, empty before EndSession.
func (b *Backend) ExportedFilePath() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastExportPath
}

// ExportMetadata describes the last export for the collection server.
func (b *Backend) ExportMetadata() core.UploadMetadata {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.session == nil {
		return core.UploadMetadata{}
	}
	return core.UploadMetadata{
		SessionID: b.session.ID,
		Tour:      b.session.Tour,
		Host:      b.session.Host,
		Duration:  b.session.Duration().Seconds(),
		Unlocked:  len(b.unlocks),
	}
}
