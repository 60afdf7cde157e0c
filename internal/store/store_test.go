package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ppiankov/spacetraveling/internal/post"
)

func openTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "snapshots.db")
	st, err := Open(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = st.Close()
	})
	return st, path
}

func testSnapshot(builtAt time.Time, cursor string, uids ...string) Snapshot {
	published := time.Date(2021, 3, 15, 0, 0, 0, 0, time.UTC)
	snap := Snapshot{
		DocumentType: "posts",
		Endpoint:     "https://blog.cdn.prismic.io/api/v2",
		PageSize:     2,
		NextCursor:   cursor,
		BuiltAt:      builtAt,
	}
	for _, uid := range uids {
		snap.Posts = append(snap.Posts, post.Post{
			UID:         uid,
			PublishedAt: &published,
			Date:        "15 de março de 2021",
			Title:       "Title " + uid,
			Subtitle:    "Subtitle " + uid,
			Author:      "Author " + uid,
		})
	}
	return snap
}

func TestOpenAndMigrate(t *testing.T) {
	st, path := openTestStore(t)

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("db file not created: %v", err)
	}

	var version int
	if err := st.db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		t.Fatalf("read schema version: %v", err)
	}
	if version != schemaVersion {
		t.Fatalf("schema version = %d, want %d", version, schemaVersion)
	}

	// Reopening an up-to-date database is a no-op.
	_ = st.Close()
	again, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	_ = again.Close()
}

func TestOpen_NewerSchema(t *testing.T) {
	st, path := openTestStore(t)
	if _, err := st.db.Exec("PRAGMA user_version = 99"); err != nil {
		t.Fatalf("set version: %v", err)
	}
	_ = st.Close()

	if _, err := Open(path); err == nil {
		t.Fatal("expected error for newer schema")
	}
}

func TestOpen_EmptyPath(t *testing.T) {
	if _, err := Open("  "); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestSaveAndLatestSnapshot(t *testing.T) {
	st, _ := openTestStore(t)
	ctx := context.Background()
	builtAt := time.Date(2026, 2, 16, 10, 0, 0, 0, time.UTC)

	saved, ok, err := st.SaveSnapshot(ctx, testSnapshot(builtAt, "https://x/page2", "a", "b"))
	if err != nil {
		t.Fatalf("save snapshot: %v", err)
	}
	if !ok || saved.ID == 0 || saved.ContentHash == "" {
		t.Fatalf("unexpected save result: ok=%v snap=%+v", ok, saved)
	}

	got, err := st.LatestSnapshot(ctx, "posts")
	if err != nil {
		t.Fatalf("latest snapshot: %v", err)
	}
	if got.ID != saved.ID || got.NextCursor != "https://x/page2" || got.PageSize != 2 {
		t.Errorf("snapshot header mismatch: %+v", got)
	}
	if !got.BuiltAt.Equal(builtAt) {
		t.Errorf("built_at = %v, want %v", got.BuiltAt, builtAt)
	}
	if len(got.Posts) != 2 || got.Posts[0].UID != "a" || got.Posts[1].UID != "b" {
		t.Fatalf("posts out of order: %+v", got.Posts)
	}
	p := got.Posts[0]
	if p.Title != "Title a" || p.Subtitle != "Subtitle a" || p.Author != "Author a" || p.Date != "15 de março de 2021" {
		t.Errorf("post fields mismatch: %+v", p)
	}
	if p.PublishedAt == nil || !p.PublishedAt.Equal(time.Date(2021, 3, 15, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("published_at = %v", p.PublishedAt)
	}

	page := got.Page()
	if page.NextCursor != "https://x/page2" || len(page.Posts) != 2 {
		t.Errorf("page = %+v", page)
	}
}

func TestSaveSnapshot_NullDateAndNoCursor(t *testing.T) {
	st, _ := openTestStore(t)
	ctx := context.Background()

	snap := testSnapshot(time.Now(), "", "a")
	snap.Posts[0].PublishedAt = nil
	snap.Posts[0].Date = ""
	if _, _, err := st.SaveSnapshot(ctx, snap); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := st.LatestSnapshot(ctx, "posts")
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if got.NextCursor != "" {
		t.Errorf("cursor = %q, want empty", got.NextCursor)
	}
	if got.Posts[0].PublishedAt != nil {
		t.Errorf("published_at = %v, want nil", got.Posts[0].PublishedAt)
	}
}

func TestSaveSnapshot_UnchangedContentSkipped(t *testing.T) {
	st, _ := openTestStore(t)
	ctx := context.Background()
	t0 := time.Date(2026, 2, 16, 10, 0, 0, 0, time.UTC)

	first, ok, err := st.SaveSnapshot(ctx, testSnapshot(t0, "https://x/page2", "a"))
	if err != nil || !ok {
		t.Fatalf("first save: ok=%v err=%v", ok, err)
	}

	same, ok, err := st.SaveSnapshot(ctx, testSnapshot(t0.Add(time.Hour), "https://x/page2", "a"))
	if err != nil {
		t.Fatalf("second save: %v", err)
	}
	if ok {
		t.Error("identical content should not be stored again")
	}
	if same.ID != first.ID {
		t.Errorf("id = %d, want existing %d", same.ID, first.ID)
	}

	_, ok, err = st.SaveSnapshot(ctx, testSnapshot(t0.Add(2*time.Hour), "https://x/page2", "a", "b"))
	if err != nil || !ok {
		t.Fatalf("changed save: ok=%v err=%v", ok, err)
	}

	infos, err := st.ListSnapshots(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(infos) != 2 {
		t.Fatalf("got %d snapshots, want 2", len(infos))
	}
	if infos[0].PostCount != 2 || infos[1].PostCount != 1 || !infos[0].HasMore {
		t.Errorf("unexpected infos: %+v", infos)
	}
}

func TestSaveSnapshot_Validation(t *testing.T) {
	st, _ := openTestStore(t)
	ctx := context.Background()

	bad := []Snapshot{
		{PageSize: 2, BuiltAt: time.Now()},
		{DocumentType: "posts", BuiltAt: time.Now()},
		{DocumentType: "posts", PageSize: 2},
	}
	for _, snap := range bad {
		if _, _, err := st.SaveSnapshot(ctx, snap); err == nil {
			t.Errorf("SaveSnapshot(%+v): expected error", snap)
		}
	}
}

func TestLatestSnapshot_None(t *testing.T) {
	st, _ := openTestStore(t)
	_, err := st.LatestSnapshot(context.Background(), "posts")
	if !errors.Is(err, ErrNoSnapshot) {
		t.Fatalf("err = %v, want ErrNoSnapshot", err)
	}
}

func TestPruneSnapshots(t *testing.T) {
	st, _ := openTestStore(t)
	ctx := context.Background()
	t0 := time.Date(2026, 2, 16, 10, 0, 0, 0, time.UTC)

	for i, uid := range []string{"a", "b", "c", "d"} {
		if _, _, err := st.SaveSnapshot(ctx, testSnapshot(t0.Add(time.Duration(i)*time.Minute), "", uid)); err != nil {
			t.Fatalf("save %s: %v", uid, err)
		}
	}

	deleted, err := st.PruneSnapshots(ctx, 2)
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if deleted != 2 {
		t.Errorf("deleted = %d, want 2", deleted)
	}

	latest, err := st.LatestSnapshot(ctx, "posts")
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if latest.Posts[0].UID != "d" {
		t.Errorf("latest uid = %q, want d", latest.Posts[0].UID)
	}

	var orphans int
	if err := st.db.QueryRow(`SELECT COUNT(*) FROM snapshot_posts WHERE snapshot_id NOT IN (SELECT id FROM snapshots)`).Scan(&orphans); err != nil {
		t.Fatalf("count orphans: %v", err)
	}
	if orphans != 0 {
		t.Errorf("orphans = %d, want cascade delete", orphans)
	}

	if _, err := st.PruneSnapshots(ctx, 0); err == nil {
		t.Error("expected error for keep=0")
	}
}
