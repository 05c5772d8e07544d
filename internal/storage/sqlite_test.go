package storage

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"

	"streamwatch/internal/model"
)

func newTestDB(t *testing.T) *SQLite {
	t.Helper()
	s, err := NewSQLite(":memory:")
	if err != nil {
		t.Fatalf("new sqlite: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newTestFile(t *testing.T) *File {
	t.Helper()
	s, err := NewFile(t.TempDir())
	if err != nil {
		t.Fatalf("new file store: %v", err)
	}
	return s
}

// stores runs fn against every Store backend.
func stores(t *testing.T, fn func(t *testing.T, s Store)) {
	t.Helper()
	t.Run("file", func(t *testing.T) { fn(t, newTestFile(t)) })
	t.Run("sqlite", func(t *testing.T) { fn(t, newTestDB(t)) })
}

func TestLoadWithoutState(t *testing.T) {
	stores(t, func(t *testing.T, s Store) {
		got, err := s.Load(context.Background(), "twitch")
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		if got == nil {
			t.Fatal("expected empty set, got nil")
		}
		if diff := cmp.Diff(0, got.Len()); diff != "" {
			t.Errorf("len mismatch (-want +got):\n%s", diff)
		}
	})
}

func TestSaveReplaces(t *testing.T) {
	tests := []struct {
		name  string
		saves [][]string
		want  []string
	}{
		{
			name:  "single save",
			saves: [][]string{{"alice", "bob"}},
			want:  []string{"alice", "bob"},
		},
		{
			name:  "second save drops missing ids",
			saves: [][]string{{"alice", "carol"}, {"alice", "bob"}},
			want:  []string{"alice", "bob"},
		},
		{
			name:  "save empty set clears state",
			saves: [][]string{{"alice"}, {}},
			want:  []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stores(t, func(t *testing.T, s Store) {
				ctx := context.Background()
				for _, ids := range tt.saves {
					if err := s.Save(ctx, "twitch", model.NewIDSet(ids...)); err != nil {
						t.Fatalf("save: %v", err)
					}
				}
				got, err := s.Load(ctx, "twitch")
				if err != nil {
					t.Fatalf("load: %v", err)
				}
				if diff := cmp.Diff(tt.want, got.Sorted()); diff != "" {
					t.Errorf("Load mismatch (-want +got):\n%s", diff)
				}
			})
		})
	}
}

func TestSourcesAreIsolated(t *testing.T) {
	stores(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		if err := s.Save(ctx, "twitch", model.NewIDSet("alice")); err != nil {
			t.Fatalf("save twitch: %v", err)
		}
		if err := s.Save(ctx, "youtube", model.NewIDSet("bob")); err != nil {
			t.Fatalf("save youtube: %v", err)
		}

		got, err := s.Load(ctx, "twitch")
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		if diff := cmp.Diff([]string{"alice"}, got.Sorted()); diff != "" {
			t.Errorf("twitch mismatch (-want +got):\n%s", diff)
		}
	})
}

func TestSQLiteKeepsSeenAt(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)

	if err := s.Save(ctx, "youtube_videos", model.NewIDSet("v1")); err != nil {
		t.Fatalf("save: %v", err)
	}
	first, err := s.SeenAt(ctx, "youtube_videos", "v1")
	if err != nil {
		t.Fatalf("seen at: %v", err)
	}
	if err := s.Save(ctx, "youtube_videos", model.NewIDSet("v1", "v2")); err != nil {
		t.Fatalf("save: %v", err)
	}
	again, err := s.SeenAt(ctx, "youtube_videos", "v1")
	if err != nil {
		t.Fatalf("seen at: %v", err)
	}
	if !again.Equal(first) {
		t.Errorf("seen_at changed from %v to %v", first, again)
	}
}

func TestOpen(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "default driver is file", cfg: Config{DataDir: t.TempDir()}},
		{name: "sqlite", cfg: Config{Driver: DriverSQLite, DatabasePath: ":memory:"}},
		{name: "unknown driver", cfg: Config{Driver: "redis"}, wantErr: true},
		{name: "file without dir", cfg: Config{Driver: DriverFile}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Open(tt.cfg)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			_ = s.Close()
		})
	}
}
