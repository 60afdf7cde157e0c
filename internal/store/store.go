// Package store persists build-time snapshots of the first post page.
package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ppiankov/spacetraveling/internal/post"
)

// ErrNoSnapshot is returned when no snapshot was built for a document type.
var ErrNoSnapshot = errors.New("no snapshot built")

type Store struct {
	db *sql.DB
}

// Snapshot is the normalized first page captured at build time.
type Snapshot struct {
	ID           int64
	DocumentType string
	Endpoint     string
	PageSize     int
	NextCursor   string
	ContentHash  string
	BuiltAt      time.Time
	Posts        []post.Post
}

// Page returns the snapshot as the page an accumulator is seeded with.
func (s Snapshot) Page() post.Page {
	return post.Page{
		Posts:      append([]post.Post(nil), s.Posts...),
		NextCursor: s.NextCursor,
	}
}

// SnapshotInfo summarizes a stored snapshot without its posts.
type SnapshotInfo struct {
	ID           int64
	DocumentType string
	PostCount    int
	HasMore      bool
	BuiltAt      time.Time
}

func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("path is required")
	}

	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// The pragma below is per connection.
	db.SetMaxOpenConns(1)

	ctx := context.Background()
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// SaveSnapshot stores snap and its posts in one transaction. When the latest
// snapshot of the same type has identical content, nothing is written and
// saved is false.
func (s *Store) SaveSnapshot(ctx context.Context, snap Snapshot) (stored Snapshot, saved bool, err error) {
	if s == nil || s.db == nil {
		return Snapshot{}, false, errors.New("store is not initialized")
	}
	if strings.TrimSpace(snap.DocumentType) == "" {
		return Snapshot{}, false, errors.New("document_type is required")
	}
	if snap.PageSize < 1 {
		return Snapshot{}, false, errors.New("page_size must be at least 1")
	}
	if snap.BuiltAt.IsZero() {
		return Snapshot{}, false, errors.New("built_at is required")
	}

	snap.ContentHash = contentHash(snap.Posts, snap.NextCursor)

	latest, err := s.LatestSnapshot(ctx, snap.DocumentType)
	switch {
	case err == nil && latest.ContentHash == snap.ContentHash:
		return latest, false, nil
	case err != nil && !errors.Is(err, ErrNoSnapshot):
		return Snapshot{}, false, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Snapshot{}, false, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO snapshots (document_type, endpoint, page_size, next_cursor, content_hash, built_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		snap.DocumentType,
		snap.Endpoint,
		snap.PageSize,
		nullString(snap.NextCursor),
		snap.ContentHash,
		formatTime(snap.BuiltAt),
	)
	if err != nil {
		return Snapshot{}, false, fmt.Errorf("insert snapshot: %w", err)
	}
	snap.ID, err = res.LastInsertId()
	if err != nil {
		return Snapshot{}, false, fmt.Errorf("snapshot id: %w", err)
	}

	for i, p := range snap.Posts {
		var publishedAt sql.NullString
		if p.PublishedAt != nil {
			publishedAt = sql.NullString{String: formatTime(*p.PublishedAt), Valid: true}
		}
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO snapshot_posts (snapshot_id, position, uid, title, subtitle, author, published_at, date_label)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, snap.ID, i, p.UID, p.Title, p.Subtitle, p.Author, publishedAt, p.Date); err != nil {
			return Snapshot{}, false, fmt.Errorf("insert snapshot post %q: %w", p.UID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return Snapshot{}, false, fmt.Errorf("commit snapshot: %w", err)
	}
	return snap, true, nil
}

// LatestSnapshot returns the most recently built snapshot of docType.
func (s *Store) LatestSnapshot(ctx context.Context, docType string) (Snapshot, error) {
	if s == nil || s.db == nil {
		return Snapshot{}, errors.New("store is not initialized")
	}

	var (
		snap    Snapshot
		cursor  sql.NullString
		builtAt string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, document_type, endpoint, page_size, next_cursor, content_hash, built_at
		FROM snapshots
		WHERE document_type = ?
		ORDER BY built_at DESC, id DESC
		LIMIT 1
	`, docType).Scan(&snap.ID, &snap.DocumentType, &snap.Endpoint, &snap.PageSize, &cursor, &snap.ContentHash, &builtAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, fmt.Errorf("%s: %w", docType, ErrNoSnapshot)
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("get latest snapshot: %w", err)
	}
	snap.NextCursor = cursor.String
	if snap.BuiltAt, err = parseTime(builtAt); err != nil {
		return Snapshot{}, fmt.Errorf("parse built_at: %w", err)
	}

	snap.Posts, err = s.snapshotPosts(ctx, snap.ID)
	if err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

func (s *Store) snapshotPosts(ctx context.Context, snapshotID int64) ([]post.Post, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT uid, title, subtitle, author, published_at, date_label
		FROM snapshot_posts
		WHERE snapshot_id = ?
		ORDER BY position ASC
	`, snapshotID)
	if err != nil {
		return nil, fmt.Errorf("get snapshot posts: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	posts := []post.Post{}
	for rows.Next() {
		var (
			p           post.Post
			publishedAt sql.NullString
		)
		if err := rows.Scan(&p.UID, &p.Title, &p.Subtitle, &p.Author, &publishedAt, &p.Date); err != nil {
			return nil, fmt.Errorf("scan snapshot post: %w", err)
		}
		if publishedAt.Valid {
			t, err := parseTime(publishedAt.String)
			if err != nil {
				return nil, fmt.Errorf("parse published_at: %w", err)
			}
			p.PublishedAt = &t
		}
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshot posts: %w", err)
	}
	return posts, nil
}

// ListSnapshots returns snapshot summaries, newest first.
func (s *Store) ListSnapshots(ctx context.Context) ([]SnapshotInfo, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("store is not initialized")
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT s.id, s.document_type, s.next_cursor, s.built_at, COUNT(p.uid)
		FROM snapshots s
		LEFT JOIN snapshot_posts p ON p.snapshot_id = s.id
		GROUP BY s.id
		ORDER BY s.built_at DESC, s.id DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var infos []SnapshotInfo
	for rows.Next() {
		var (
			info    SnapshotInfo
			cursor  sql.NullString
			builtAt string
		)
		if err := rows.Scan(&info.ID, &info.DocumentType, &cursor, &builtAt, &info.PostCount); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		info.HasMore = cursor.Valid && cursor.String != ""
		if info.BuiltAt, err = parseTime(builtAt); err != nil {
			return nil, fmt.Errorf("parse built_at: %w", err)
		}
		infos = append(infos, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshots: %w", err)
	}
	return infos, nil
}

// PruneSnapshots keeps the newest keep snapshots per document type and
// deletes the rest. It returns the number of deleted snapshots.
func (s *Store) PruneSnapshots(ctx context.Context, keep int) (int64, error) {
	if s == nil || s.db == nil {
		return 0, errors.New("store is not initialized")
	}
	if keep < 1 {
		return 0, fmt.Errorf("keep must be at least 1, got %d", keep)
	}

	res, err := s.db.ExecContext(ctx, `
		DELETE FROM snapshots
		WHERE id IN (
			SELECT id FROM (
				SELECT id, ROW_NUMBER() OVER (
					PARTITION BY document_type ORDER BY built_at DESC, id DESC
				) AS rn
				FROM snapshots
			) WHERE rn > ?
		)
	`, keep)
	if err != nil {
		return 0, fmt.Errorf("prune snapshots: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune snapshots: %w", err)
	}
	return n, nil
}

func contentHash(posts []post.Post, cursor string) string {
	h := sha256.New()
	for _, p := range posts {
		for _, v := range []string{p.UID, p.Title, p.Subtitle, p.Author, p.Date} {
			h.Write([]byte(v))
			h.Write([]byte{0})
		}
	}
	h.Write([]byte(cursor))
	return hex.EncodeToString(h.Sum(nil))
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// timeLayout is fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	if ts, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return ts, nil
	}
	return time.Parse(time.RFC3339, value)
}
