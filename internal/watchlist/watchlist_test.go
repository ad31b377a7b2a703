package watchlist

import (
	"errors"
	"testing"

	"auction-advisor/internal/catalog"
)

func sampleCandidates() []catalog.Candidate {
	return []catalog.Candidate{
		{ID: 1, Name: "Alpha", Position: catalog.Forward, ConvenienceScore: 85, Trend: catalog.TrendUp, Goals: 14},
		{ID: 2, Name: "Bravo", Position: catalog.Midfielder, ConvenienceScore: 55, Injured: true},
		{ID: 3, Name: "Charlie", Position: catalog.Defender, ConvenienceScore: 72, Trend: catalog.TrendUp},
		{ID: 4, Name: "Delta", Position: catalog.Forward, ConvenienceScore: 40, Status: catalog.StatusTaken},
	}
}

func ptr[T any](v T) *T { return &v }

func TestManualListMembership(t *testing.T) {
	b := NewBook()
	l := b.AddManual("targets", "", 5, 1, 1, 4)
	if l.ID == "" || len(l.CandidateIDs) != 2 {
		t.Fatalf("unexpected list: %+v", l)
	}
	if !b.Watching(sampleCandidates()[0]) {
		t.Fatal("candidate 1 should be watched")
	}
	if b.Watching(sampleCandidates()[1]) {
		t.Fatal("candidate 2 should not be watched")
	}

	if err := b.Watch(l.ID, 2); err != nil {
		t.Fatalf("Watch: %v", err)
	}
	if err := b.Unwatch(l.ID, 1); err != nil {
		t.Fatalf("Unwatch: %v", err)
	}
	got, _ := b.Get(l.ID)
	if got.Contains(1) || !got.Contains(2) {
		t.Fatalf("unexpected members: %v", got.CandidateIDs)
	}
}

func TestAutoListFollowsCriteria(t *testing.T) {
	b := NewBook()
	cr := Criteria{MinConvenience: ptr(70.0), Trend: ptr(catalog.TrendUp)}
	l := b.AddAuto("rising", "trending up", 3, cr, sampleCandidates())
	if len(l.CandidateIDs) != 2 || !l.Contains(1) || !l.Contains(3) {
		t.Fatalf("unexpected members: %v", l.CandidateIDs)
	}

	late := catalog.Candidate{ID: 9, Position: catalog.Defender, ConvenienceScore: 90, Trend: catalog.TrendUp}
	if !b.Watching(late) {
		t.Fatal("criteria should match candidates added after creation")
	}

	b.Refresh(append(sampleCandidates(), late))
	got, _ := b.Get(l.ID)
	if !got.Contains(9) {
		t.Fatalf("refresh did not pick up candidate 9: %v", got.CandidateIDs)
	}
}

func TestListsOrderedByPriority(t *testing.T) {
	b := NewBook()
	b.AddManual("low", "", 1)
	b.AddManual("high", "", 9)
	b.AddManual("mid", "", 5)
	lists := b.Lists()
	if lists[0].Name != "high" || lists[1].Name != "mid" || lists[2].Name != "low" {
		t.Fatalf("unexpected order: %s %s %s", lists[0].Name, lists[1].Name, lists[2].Name)
	}
}

func TestUnknownListErrors(t *testing.T) {
	b := NewBook()
	if err := b.Watch("missing", 1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := b.Remove("missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAvailableSkipsTakenCandidates(t *testing.T) {
	l := List{CandidateIDs: []int{1, 3, 4}}
	got := Available(l, sampleCandidates())
	if len(got) != 2 || got[0].ID != 1 || got[1].ID != 3 {
		t.Fatalf("unexpected available list: %+v", got)
	}
}

func TestRestoreKeepsLists(t *testing.T) {
	b := NewBook()
	b.AddManual("targets", "", 2, 1)
	saved := b.Lists()

	other := NewBook()
	other.Restore(saved)
	if !other.Watching(sampleCandidates()[0]) {
		t.Fatal("restored book lost membership")
	}
}
