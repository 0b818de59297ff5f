package main

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/edumarques81/stellar-playback/internal/domain/track"
	"github.com/edumarques81/stellar-playback/internal/infra/store"
)

type stubSource struct {
	tracks []track.Track
	err    error
}

func (s stubSource) FetchCatalog(ctx context.Context) ([]track.Track, error) {
	return s.tracks, s.err
}

func openTestDB(t *testing.T) *store.DB {
	t.Helper()
	db := store.NewDB(filepath.Join(t.TempDir(), "stellar.db"))
	if err := db.Open(); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestPersistingSourceCachesFetch(t *testing.T) {
	db := openTestDB(t)
	src := &persistingSource{
		src:   stubSource{tracks: []track.Track{{ID: "a", AudioURL: "u"}, {ID: "b", AudioURL: "u"}}},
		store: db,
	}

	tracks, err := src.FetchCatalog(context.Background())
	if err != nil || len(tracks) != 2 {
		t.Fatalf("FetchCatalog = %d tracks, %v", len(tracks), err)
	}

	cached, err := db.LoadCatalog()
	if err != nil {
		t.Fatal(err)
	}
	if ids := track.IDs(cached); len(ids) != 2 || ids[0] != "a" || ids[1] != "b" {
		t.Errorf("cached = %v", ids)
	}
}

func TestPersistingSourceKeepsCacheOnFailure(t *testing.T) {
	db := openTestDB(t)
	if err := db.SaveCatalog([]track.Track{{ID: "old", AudioURL: "u"}}); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		src  stubSource
	}{
		{"error", stubSource{err: errors.New("api down")}},
		{"empty", stubSource{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := &persistingSource{src: tt.src, store: db}
			_, err := src.FetchCatalog(context.Background())
			if (err != nil) != (tt.src.err != nil) {
				t.Errorf("err = %v", err)
			}

			cached, _ := db.LoadCatalog()
			if ids := track.IDs(cached); len(ids) != 1 || ids[0] != "old" {
				t.Errorf("cache overwritten: %v", ids)
			}
		})
	}
}

func TestPrintCatalog(t *testing.T) {
	var buf bytes.Buffer
	tracks := []track.Track{
		{ID: "a", Title: "Alpha", Artist: track.Artist{Name: "Ann"}, LikeCount: 3, Genres: []string{"house", "techno"}},
		{ID: "ai-b", Title: "Beta"},
	}

	if err := printCatalog(&buf, tracks); err != nil {
		t.Fatal(err)
	}

	out := buf.String()
	for _, want := range []string{"ID", "Alpha", "Ann", "house,techno", "ai-b", "2 tracks"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}
