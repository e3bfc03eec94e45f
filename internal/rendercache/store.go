package rendercache

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"lightmapper/internal/config"
	"lightmapper/internal/fileutil"
	"lightmapper/internal/hostrender"
	"lightmapper/internal/logging"
	"lightmapper/internal/sqlitedb"
)

//go:embed schema.sql
var schemaSQL string

const schemaVersion = 1

var (
	// ErrMiss is returned when a slot holds no entry.
	ErrMiss = errors.New("render cache miss")
	// ErrLocked is returned when another process holds the cache lock.
	ErrLocked = errors.New("render cache is locked by another process")
)

// Entry describes a stored render.
type Entry struct {
	Key
	Digest    string
	Path      string
	Skipped   bool
	SizeBytes int64
	CreatedAt time.Time
}

// Filter selects entries for listing and invalidation. The zero value
// matches every entry.
type Filter struct {
	Group     string
	Situation string
}

func (f Filter) where() (string, []any) {
	var clauses []string
	var args []any
	if f.Group != "" {
		clauses = append(clauses, "bake_group = ?")
		args = append(args, f.Group)
	}
	if f.Situation != "" {
		clauses = append(clauses, "situation = ?")
		args = append(args, f.Situation)
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// Store is the render cache.
type Store struct {
	db     *sql.DB
	root   string
	lock   *flock.Flock
	logger *slog.Logger
	statfs statfsFunc
	now    func() time.Time
}

// Open connects to the cache index under cfg.Paths.CacheDir.
func Open(cfg *config.Config, logger *slog.Logger) (*Store, error) {
	root := strings.TrimSpace(cfg.Paths.CacheDir)
	if root == "" {
		return nil, errors.New("rendercache: cache directory is not configured")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("rendercache: create cache dir: %w", err)
	}
	path := cfg.CacheDBPath()
	db, err := sqlitedb.Open(context.Background(), path, sqlitedb.Schema{
		SQL:       schemaSQL,
		Version:   schemaVersion,
		ResetHint: "run `lightmapper cache invalidate --all` or delete " + path,
	})
	if err != nil {
		return nil, err
	}
	return &Store{
		db:     db,
		root:   root,
		lock:   flock.New(cfg.CacheLockPath()),
		logger: logging.NewComponentLogger(logger, "rendercache"),
		statfs: realStatfs,
		now:    time.Now,
	}, nil
}

// Close releases the lock and closes the index.
func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	_ = s.Unlock()
	return s.db.Close()
}

// Root returns the cache directory.
func (s *Store) Root() string {
	return s.root
}

// Lock takes the single-writer lock without blocking.
func (s *Store) Lock() error {
	ok, err := s.lock.TryLock()
	if err != nil {
		return fmt.Errorf("rendercache: acquire lock: %w", err)
	}
	if !ok {
		return ErrLocked
	}
	return nil
}

// Unlock releases the writer lock if held.
func (s *Store) Unlock() error {
	if s.lock == nil || !s.lock.Locked() {
		return nil
	}
	return s.lock.Unlock()
}

// Get returns the entry of a slot.
func (s *Store) Get(ctx context.Context, key Key) (*Entry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT bake_group, partition_index, situation, digest, file_path, skipped, size_bytes, created_at
		 FROM entries WHERE bake_group = ? AND partition_index = ? AND situation = ?`,
		key.Group, key.Partition, key.Situation)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrMiss, key)
	}
	if err != nil {
		return nil, fmt.Errorf("rendercache: get %s: %w", key, err)
	}
	return entry, nil
}

// Load returns the entry and its decoded image. A missing image file is a
// miss; the orphaned row is removed.
func (s *Store) Load(ctx context.Context, key Key) (*image.NRGBA64, *Entry, error) {
	entry, err := s.Get(ctx, key)
	if err != nil {
		return nil, nil, err
	}
	f, err := os.Open(s.abs(entry.Path))
	if errors.Is(err, os.ErrNotExist) {
		_, _ = sqlitedb.Exec(ctx, s.db,
			`DELETE FROM entries WHERE bake_group = ? AND partition_index = ? AND situation = ?`,
			key.Group, key.Partition, key.Situation)
		return nil, nil, fmt.Errorf("%w: %s (image file missing)", ErrMiss, key)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("rendercache: open %s: %w", entry.Path, err)
	}
	defer f.Close()
	decoded, err := png.Decode(f)
	if err != nil {
		return nil, nil, fmt.Errorf("rendercache: decode %s: %w", entry.Path, err)
	}
	// Fully opaque frames decode as RGBA64.
	return hostrender.ToNRGBA64(decoded), entry, nil
}

// Put stores img for key, replacing any previous entry atomically.
func (s *Store) Put(ctx context.Context, key Key, digest string, img *image.NRGBA64, skipped bool) (*Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rel := key.relPath()
	size, err := writeAtomic(s.abs(rel), img)
	if err != nil {
		return nil, fmt.Errorf("rendercache: write %s: %w", key, err)
	}
	created := s.now()
	if _, err := sqlitedb.Exec(ctx, s.db,
		`INSERT INTO entries (bake_group, partition_index, situation, digest, file_path, skipped, size_bytes, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(bake_group, partition_index, situation) DO UPDATE SET
		   digest = excluded.digest, file_path = excluded.file_path, skipped = excluded.skipped,
		   size_bytes = excluded.size_bytes, created_at = excluded.created_at`,
		key.Group, key.Partition, key.Situation, digest, rel, boolInt(skipped), size, sqlitedb.FormatTime(created),
	); err != nil {
		return nil, fmt.Errorf("rendercache: index %s: %w", key, err)
	}
	return &Entry{Key: key, Digest: digest, Path: rel, Skipped: skipped, SizeBytes: size, CreatedAt: created}, nil
}

// List returns the entries matching filter ordered by key.
func (s *Store) List(ctx context.Context, filter Filter) ([]Entry, error) {
	where, args := filter.where()
	rows, err := s.db.QueryContext(ctx,
		`SELECT bake_group, partition_index, situation, digest, file_path, skipped, size_bytes, created_at
		 FROM entries`+where+` ORDER BY bake_group, partition_index, situation`, args...)
	if err != nil {
		return nil, fmt.Errorf("rendercache: list: %w", err)
	}
	defer rows.Close()
	var out []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("rendercache: scan: %w", err)
		}
		out = append(out, *entry)
	}
	return out, rows.Err()
}

// Invalidate removes the entries matching filter and their files.
func (s *Store) Invalidate(ctx context.Context, filter Filter) (int, error) {
	entries, err := s.List(ctx, filter)
	if err != nil {
		return 0, err
	}
	where, args := filter.where()
	if _, err := sqlitedb.Exec(ctx, s.db, `DELETE FROM entries`+where, args...); err != nil {
		return 0, fmt.Errorf("rendercache: invalidate: %w", err)
	}
	for _, e := range entries {
		if err := os.Remove(s.abs(e.Path)); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.logger.WarnContext(ctx, "cache file removal failed; run cache prune to clean up",
				logging.String("path", e.Path),
				logging.Error(err),
				logging.String(logging.FieldEventType, "cache_remove_failed"),
				logging.String(logging.FieldErrorHint, "check permissions on the cache directory"),
			)
		}
	}
	if len(entries) > 0 {
		s.logger.InfoContext(ctx, "render cache invalidated",
			logging.Int("entries", len(entries)),
			logging.String(logging.FieldBakeGroup, filter.Group),
			logging.String(logging.FieldSituation, filter.Situation),
			logging.String(logging.FieldEventType, "cache_invalidated"),
		)
	}
	return len(entries), nil
}

// GroupResolver maps object IDs to the bake groups that contain them.
type GroupResolver interface {
	GroupsOf(ids []string) []string
}

// InvalidateObjects drops the entries of every bake group holding one of
// ids. Objects outside any bake group, such as lights, can affect every
// render, so they clear the whole cache.
func (s *Store) InvalidateObjects(ctx context.Context, resolver GroupResolver, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	groups := resolver.GroupsOf(ids)
	for _, id := range ids {
		if len(resolver.GroupsOf([]string{id})) == 0 {
			return s.Invalidate(ctx, Filter{})
		}
	}
	total := 0
	for _, g := range groups {
		n, err := s.Invalidate(ctx, Filter{Group: g})
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

func (s *Store) abs(rel string) string {
	return filepath.Join(s.root, rel)
}

func writeAtomic(path string, img *image.NRGBA64) (int64, error) {
	return fileutil.WriteAtomic(path, func(w io.Writer) error {
		return png.Encode(w, img)
	})
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*Entry, error) {
	var (
		e       Entry
		skipped int
		created string
	)
	if err := row.Scan(&e.Group, &e.Partition, &e.Situation, &e.Digest, &e.Path, &skipped, &e.SizeBytes, &created); err != nil {
		return nil, err
	}
	e.Skipped = skipped != 0
	e.CreatedAt = sqlitedb.ParseTime(created)
	return &e, nil
}

func boolInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
