package persistence

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/MimeLyc/syncdub/internal/subtitle"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// SQLiteStore caches subtitle acquisitions keyed by video id.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if strings.TrimSpace(dbPath) == "" {
		return nil, fmt.Errorf("db path is required")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &SQLiteStore{db: db}
	if err := store.init(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) init(ctx context.Context) error {
	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL;",
		"PRAGMA busy_timeout = 5000;",
		"PRAGMA foreign_keys = ON;",
	} {
		if _, err := s.db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("apply %q: %w", pragma, err)
		}
	}
	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		applied_at INTEGER NOT NULL
	);`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	entries, err := migrationFiles.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		version := migrationVersion(entry.Name())
		if version <= 0 {
			continue
		}
		var exists int
		if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM schema_migrations WHERE version = ?`, version).Scan(&exists); err != nil {
			return fmt.Errorf("check migration %s: %w", entry.Name(), err)
		}
		if exists > 0 {
			continue
		}
		// embed paths always use forward slashes
		content, err := migrationFiles.ReadFile(path.Join("migrations", entry.Name()))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}
		if _, err := s.db.ExecContext(ctx, string(content)); err != nil {
			return fmt.Errorf("apply migration %s: %w", entry.Name(), err)
		}
		if _, err := s.db.ExecContext(ctx, `INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)`,
			version, time.Now().UnixMilli()); err != nil {
			return fmt.Errorf("record migration %s: %w", entry.Name(), err)
		}
	}
	return nil
}

// migrationVersion extracts the leading integer from a migration filename (e.g. "001_init.sql" → 1).
func migrationVersion(name string) int {
	for i, c := range name {
		if c < '0' || c > '9' {
			if i == 0 {
				return 0
			}
			n, _ := strconv.Atoi(name[:i])
			return n
		}
	}
	n, _ := strconv.Atoi(name)
	return n
}

// SaveVideo replaces the cached cues of a video.
func (s *SQLiteStore) SaveVideo(ctx context.Context, video subtitle.Video, fetchedAt time.Time) error {
	if video.ID == "" {
		return fmt.Errorf("video id is required")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM cues WHERE video_id = ?`, video.ID); err != nil {
		return fmt.Errorf("clear cues: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO videos (video_id, url, title, duration_ms, subtitle_language, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(video_id) DO UPDATE SET
			url = excluded.url,
			title = excluded.title,
			duration_ms = excluded.duration_ms,
			subtitle_language = excluded.subtitle_language,
			fetched_at = excluded.fetched_at`,
		video.ID, video.URL, video.Title, video.Duration.Milliseconds(), video.SubtitleLanguage, fetchedAt.UnixMilli(),
	); err != nil {
		return fmt.Errorf("upsert video: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO cues (video_id, seq, start_ms, end_ms, text) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare cue insert: %w", err)
	}
	defer stmt.Close()
	for i, cue := range video.Cues {
		if _, err := stmt.ExecContext(ctx, video.ID, i, cue.StartTime.Milliseconds(), cue.EndTime.Milliseconds(), cue.Text); err != nil {
			return fmt.Errorf("insert cue %d: %w", i, err)
		}
	}
	return tx.Commit()
}

// LoadVideo returns the cached video when it was fetched at or after notBefore.
func (s *SQLiteStore) LoadVideo(ctx context.Context, videoID string, notBefore time.Time) (*CachedVideo, bool, error) {
	var (
		cached     CachedVideo
		durationMS int64
		fetchedMS  int64
	)
	err := s.db.QueryRowContext(ctx, `SELECT url, title, duration_ms, subtitle_language, fetched_at
		FROM videos WHERE video_id = ?`, videoID).
		Scan(&cached.Video.URL, &cached.Video.Title, &durationMS, &cached.Video.SubtitleLanguage, &fetchedMS)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load video %s: %w", videoID, err)
	}
	cached.FetchedAt = time.UnixMilli(fetchedMS).UTC()
	if cached.FetchedAt.Before(notBefore) {
		return nil, false, nil
	}
	cached.Video.ID = videoID
	cached.Video.Duration = time.Duration(durationMS) * time.Millisecond

	rows, err := s.db.QueryContext(ctx, `SELECT start_ms, end_ms, text FROM cues WHERE video_id = ? ORDER BY seq ASC`, videoID)
	if err != nil {
		return nil, false, fmt.Errorf("load cues %s: %w", videoID, err)
	}
	defer rows.Close()
	for rows.Next() {
		var startMS, endMS int64
		var cue subtitle.Cue
		if err := rows.Scan(&startMS, &endMS, &cue.Text); err != nil {
			return nil, false, fmt.Errorf("scan cue: %w", err)
		}
		cue.StartTime = time.Duration(startMS) * time.Millisecond
		cue.EndTime = time.Duration(endMS) * time.Millisecond
		cached.Video.Cues = append(cached.Video.Cues, cue)
	}
	if err := rows.Err(); err != nil {
		return nil, false, err
	}
	if len(cached.Video.Cues) == 0 {
		return nil, false, nil
	}
	return &cached, true, nil
}

// PurgeOlderThan deletes videos fetched before cutoff and returns how many went.
func (s *SQLiteStore) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM videos WHERE fetched_at < ?`, cutoff.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("purge videos: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (s *SQLiteStore) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM videos`).Scan(&st.Videos); err != nil {
		return Stats{}, err
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM cues`).Scan(&st.Cues); err != nil {
		return Stats{}, err
	}
	return st, nil
}
