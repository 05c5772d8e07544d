package detect

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"streamwatch/internal/model"
)

func TestDiff(t *testing.T) {
	tests := []struct {
		name         string
		snapshot     []string
		lastSeen     []string
		ignore       []string
		prune        bool
		wantNew      []string
		wantRetained []string
	}{
		{
			name:         "new streamer appears",
			snapshot:     []string{"alice", "bob"},
			lastSeen:     []string{"alice"},
			prune:        true,
			wantNew:      []string{"bob"},
			wantRetained: []string{"alice"},
		},
		{
			name:         "ended stream is pruned",
			snapshot:     []string{"alice"},
			lastSeen:     []string{"alice", "carol"},
			prune:        true,
			wantNew:      []string{},
			wantRetained: []string{"alice"},
		},
		{
			name:         "ignored identifiers are never new",
			snapshot:     []string{"alice", "bob", "mallory"},
			lastSeen:     nil,
			ignore:       []string{"mallory"},
			prune:        true,
			wantNew:      []string{"alice", "bob"},
			wantRetained: []string{},
		},
		{
			name:         "ignored identifier already seen stays retained",
			snapshot:     []string{"mallory"},
			lastSeen:     []string{"mallory"},
			ignore:       []string{"mallory"},
			prune:        true,
			wantNew:      []string{},
			wantRetained: []string{"mallory"},
		},
		{
			name:         "videos never shrink",
			snapshot:     []string{"v3"},
			lastSeen:     []string{"v1", "v2"},
			prune:        false,
			wantNew:      []string{"v3"},
			wantRetained: []string{"v1", "v2", "v3"},
		},
		{
			name:         "empty snapshot with pruning",
			snapshot:     nil,
			lastSeen:     []string{"alice"},
			prune:        true,
			wantNew:      []string{},
			wantRetained: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Diff(model.NewIDSet(tt.snapshot...), model.NewIDSet(tt.lastSeen...), model.NewIDSet(tt.ignore...), tt.prune)

			if diff := cmp.Diff(tt.wantNew, got.New.Sorted()); diff != "" {
				t.Errorf("new mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.wantRetained, got.Retained.Sorted()); diff != "" {
				t.Errorf("retained mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDiffProperties(t *testing.T) {
	universe := []string{"a", "b", "c", "d"}
	subsets := func() []model.IDSet {
		var out []model.IDSet
		for mask := 0; mask < 1<<len(universe); mask++ {
			s := model.NewIDSet()
			for i, id := range universe {
				if mask&(1<<i) != 0 {
					s.Add(id)
				}
			}
			out = append(out, s)
		}
		return out
	}()

	for _, snap := range subsets {
		for _, last := range subsets {
			for _, ign := range subsets {
				for _, prune := range []bool{true, false} {
					snapBefore, lastBefore := snap.Sorted(), last.Sorted()

					first := Diff(snap, last, ign, prune)
					second := Diff(snap, last, ign, prune)

					want := snap.Minus(last).Minus(ign)
					if !first.New.Equal(want) {
						t.Fatalf("New = %v, want %v", first.New.Sorted(), want.Sorted())
					}
					if first.New.Intersect(ign).Len() != 0 {
						t.Fatalf("New %v overlaps ignore %v", first.New.Sorted(), ign.Sorted())
					}
					if !first.New.Equal(second.New) || !first.Retained.Equal(second.Retained) {
						t.Fatal("Diff is not deterministic")
					}
					if diff := cmp.Diff(snapBefore, snap.Sorted()); diff != "" {
						t.Fatalf("snapshot mutated:\n%s", diff)
					}
					if diff := cmp.Diff(lastBefore, last.Sorted()); diff != "" {
						t.Fatalf("last-seen mutated:\n%s", diff)
					}
					if prune && !first.Retained.Equal(last.Intersect(snap)) {
						t.Fatalf("pruned retained = %v", first.Retained.Sorted())
					}
					if !prune && !first.Retained.Equal(last.Union(want)) {
						t.Fatalf("unpruned retained = %v", first.Retained.Sorted())
					}
				}
			}
		}
	}
}

func TestResultBase(t *testing.T) {
	res := Diff(model.NewIDSet("v2"), model.NewIDSet("v1"), nil, false)
	if diff := cmp.Diff([]string{"v1"}, res.Base().Sorted()); diff != "" {
		t.Errorf("Base mismatch (-want +got):\n%s", diff)
	}
}

func TestSelect(t *testing.T) {
	items := []model.Item{
		model.StreamItem{Login: "carol"},
		model.StreamItem{Login: "alice"},
		model.StreamItem{Login: "bob"},
		model.StreamItem{Login: "alice", UserName: "duplicate"},
	}

	got := Select(items, model.NewIDSet("alice", "bob"))

	want := []model.Item{
		model.StreamItem{Login: "alice"},
		model.StreamItem{Login: "bob"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Select mismatch (-want +got):\n%s", diff)
	}

	if diff := cmp.Diff([]string{"alice", "bob", "carol"}, IDs(items).Sorted()); diff != "" {
		t.Errorf("IDs mismatch (-want +got):\n%s", diff)
	}
}
