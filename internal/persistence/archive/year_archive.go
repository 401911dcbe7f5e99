// Package archive preserves year-boundary snapshots outside the
// regular save rotation, one directory per completed calendar year.
package archive

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"fableforge.ai/internal/persistence/snapshot"
	"fableforge.ai/internal/sim/clock"
)

type YearArchiveMeta struct {
	Year         int    `json:"year"`
	TotalMinutes int64  `json:"total_minutes"`
	Seed         int64  `json:"seed"`
	Snapshot     string `json:"snapshot"`
	CreatedAt    string `json:"created_at"`
	DaysPerYear  int    `json:"days_per_year"`
	MinutesPer   int    `json:"minutes_per_day"`
}

// ArchiveYearSnapshot copies a snapshot into dataDir/archives/year_NNN
// when its calendar reading sits exactly on a year boundary. Returns
// archived=false, without error, for any other snapshot.
func ArchiveYearSnapshot(dataDir, snapshotPath string, snap snapshot.SnapshotV1) (year int, archivedPath string, archived bool, err error) {
	total := snap.World.Time.TotalMinutes
	if total <= 0 || total%clock.MinutesPerYear != 0 {
		return 0, "", false, nil
	}
	year = int(total / clock.MinutesPerYear)

	archiveDir := filepath.Join(dataDir, "archives", fmt.Sprintf("year_%03d", year))
	if err := os.MkdirAll(archiveDir, 0o755); err != nil {
		return 0, "", false, err
	}

	dst := filepath.Join(archiveDir, filepath.Base(snapshotPath))
	if err := copyFile(snapshotPath, dst); err != nil {
		return 0, "", false, err
	}

	meta := YearArchiveMeta{
		Year:         year,
		TotalMinutes: total,
		Seed:         snap.World.Seed,
		Snapshot:     filepath.Base(dst),
		CreatedAt:    time.Now().UTC().Format(time.RFC3339Nano),
		DaysPerYear:  clock.DaysPerYear,
		MinutesPer:   clock.MinutesPerDay,
	}
	if b, err := json.MarshalIndent(meta, "", "  "); err == nil {
		_ = os.WriteFile(filepath.Join(archiveDir, "meta.json"), b, 0o644)
	}

	return year, dst, true, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() { _ = out.Close() }()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
