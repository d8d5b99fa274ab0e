package dataset

import (
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"freight-dashboard/internal/models"
)

const snapshotVersion = "v2"

var errStaleSnapshot = errors.New("dataset snapshot is stale")

// sourceStamp identifies the source file a snapshot was built from. Any
// change in size or modification time, including a move to an older
// time, invalidates the snapshot.
type sourceStamp struct {
	Size    int64
	ModTime time.Time
}

func stampOf(info os.FileInfo) sourceStamp {
	return sourceStamp{Size: info.Size(), ModTime: info.ModTime().UTC()}
}

func (s sourceStamp) matches(other sourceStamp) bool {
	return s.Size == other.Size && s.ModTime.Equal(other.ModTime)
}

type snapshot struct {
	Source      sourceStamp
	Records     []models.Record
	Columns     []string
	Skipped     int
	LoadedAt    time.Time
	Fingerprint string
}

func snapshotFilename(dir, sourcePath string) string {
	name := strings.NewReplacer("/", "_", "\\", "_", ":", "_").Replace(sourcePath)
	return filepath.Join(dir, fmt.Sprintf("%s_%s.gob", name, snapshotVersion))
}

func saveSnapshot(dir, sourcePath string, source sourceStamp, d *Dataset) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	file, err := os.Create(snapshotFilename(dir, sourcePath))
	if err != nil {
		return err
	}
	defer file.Close()

	return gob.NewEncoder(file).Encode(snapshot{
		Source:      source,
		Records:     d.records,
		Columns:     d.columns,
		Skipped:     d.skipped,
		LoadedAt:    d.loadedAt,
		Fingerprint: d.fingerprint,
	})
}

// loadSnapshot returns errStaleSnapshot when the snapshot was built from a
// different version of the source.
func loadSnapshot(dir, sourcePath string, source sourceStamp) (*Dataset, error) {
	file, err := os.Open(snapshotFilename(dir, sourcePath))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var s snapshot
	if err := gob.NewDecoder(file).Decode(&s); err != nil {
		return nil, err
	}
	if !s.Source.matches(source) {
		return nil, errStaleSnapshot
	}

	return &Dataset{
		records:     s.Records,
		columns:     s.Columns,
		skipped:     s.Skipped,
		loadedAt:    s.LoadedAt,
		fingerprint: s.Fingerprint,
	}, nil
}
