package rendercache

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"

	"lightmapper/internal/logging"
	"lightmapper/internal/sqlitedb"
)

// statfsFunc allows tests to stub filesystem stats.
type statfsFunc func(path string) (total uint64, free uint64, err error)

// Stats describes current cache usage.
type Stats struct {
	Entries      int            `json:"entries"`
	Skipped      int            `json:"skipped"`
	TotalBytes   int64          `json:"total_bytes"`
	FreeBytes    uint64         `json:"free_bytes"`
	TotalFSBytes uint64         `json:"total_fs_bytes"`
	FreeRatio    float64        `json:"free_ratio"`
	Groups       map[string]int `json:"groups"`
}

// Stats returns entry counts and filesystem free-space info.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	entries, err := s.List(ctx, Filter{})
	if err != nil {
		return st, err
	}
	st.Groups = make(map[string]int)
	for _, e := range entries {
		st.Entries++
		st.TotalBytes += e.SizeBytes
		st.Groups[e.Group]++
		if e.Skipped {
			st.Skipped++
		}
	}
	total, free, err := s.statfs(s.root)
	if err != nil {
		return st, fmt.Errorf("rendercache: statfs: %w", err)
	}
	st.TotalFSBytes = total
	st.FreeBytes = free
	st.FreeRatio = 1
	if total > 0 {
		st.FreeRatio = float64(free) / float64(total)
	}
	return st, nil
}

// Prune removes image files no entry references, leftover temp files, and
// rows whose image file disappeared. It returns the number of files and rows
// removed.
func (s *Store) Prune(ctx context.Context) (int, error) {
	entries, err := s.List(ctx, Filter{})
	if err != nil {
		return 0, err
	}
	known := make(map[string]bool, len(entries))
	removed := 0
	for _, e := range entries {
		if _, err := os.Stat(s.abs(e.Path)); errors.Is(err, os.ErrNotExist) {
			if _, err := sqlitedb.Exec(ctx, s.db,
				`DELETE FROM entries WHERE bake_group = ? AND partition_index = ? AND situation = ?`,
				e.Group, e.Partition, e.Situation); err != nil {
				return removed, fmt.Errorf("rendercache: prune row: %w", err)
			}
			removed++
			continue
		}
		known[filepath.Clean(e.Path)] = true
	}

	renders := filepath.Join(s.root, "renders")
	err = filepath.WalkDir(renders, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}
		if known[rel] {
			return nil
		}
		if !strings.HasSuffix(path, ".png") && !strings.HasSuffix(path, ".tmp") {
			return nil
		}
		if err := os.Remove(path); err != nil {
			return err
		}
		removed++
		s.logger.DebugContext(ctx, "pruned orphan cache file", logging.String("path", rel))
		return nil
	})
	if err != nil {
		return removed, fmt.Errorf("rendercache: prune files: %w", err)
	}
	return removed, nil
}

func realStatfs(path string) (uint64, uint64, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return 0, 0, err
	}
	total := stat.Blocks * uint64(stat.Bsize)
	free := stat.Bavail * uint64(stat.Bsize)
	return total, free, nil
}
