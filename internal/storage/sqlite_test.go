package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"auction-advisor/internal/alertcfg"
	"auction-advisor/internal/catalog"
	"auction-advisor/internal/ledger"
	"auction-advisor/internal/watchlist"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testSnapshot(t *testing.T) ledger.Snapshot {
	t.Helper()
	l := ledger.New(ledger.DefaultConfig(), []catalog.Candidate{
		{ID: 1, Name: "Maignan", Position: catalog.Goalkeeper, ConvenienceScore: 70},
		{ID: 2, Name: "Bastoni", Position: catalog.Defender, ConvenienceScore: 65},
		{ID: 3, Name: "Lookman", Position: catalog.Forward, ConvenienceScore: 80},
	}, ledger.Options{})
	if _, err := l.Purchase(1, decimal.NewFromInt(25), ""); err != nil {
		t.Fatalf("purchase: %v", err)
	}
	if _, err := l.Purchase(3, decimal.NewFromInt(60), "Rivals FC"); err != nil {
		t.Fatalf("purchase: %v", err)
	}
	return l.Snapshot()
}

func TestSaveAndLoadSession(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rec, err := s.SaveSession(ctx, SessionRecord{
		Name:        "league 2025",
		Snapshot:    testSnapshot(t),
		AlertConfig: alertcfg.Default(),
		WatchLists:  []watchlist.List{{ID: "w1", Name: "targets", Kind: watchlist.KindManual, CandidateIDs: []int{2}}},
	})
	if err != nil {
		t.Fatalf("SaveSession: %v", err)
	}
	if rec.ID == "" {
		t.Fatal("expected generated session id")
	}

	got, err := s.LoadSession(ctx, rec.ID)
	if err != nil {
		t.Fatalf("LoadSession: %v", err)
	}
	if got.Name != "league 2025" || len(got.Snapshot.MyTeam) != 1 || len(got.Snapshot.Purchases) != 2 {
		t.Fatalf("unexpected session: %+v", got)
	}
	if !got.Snapshot.RemainingBudget.Equal(decimal.NewFromInt(475)) {
		t.Fatalf("remaining %s, want 475", got.Snapshot.RemainingBudget)
	}
	if got.AlertConfig.PlayStyle != alertcfg.Balanced {
		t.Fatalf("alert config not restored: %+v", got.AlertConfig)
	}
	if len(got.WatchLists) != 1 || !got.WatchLists[0].Contains(2) {
		t.Fatalf("watch lists not restored: %+v", got.WatchLists)
	}

	latest, err := s.LoadSession(ctx, "")
	if err != nil || latest.ID != rec.ID {
		t.Fatalf("latest session: %+v, %v", latest.ID, err)
	}
}

func TestLoadSessionSanitizes(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	snap := testSnapshot(t)
	snap.MyTeam[0].Position = "X"
	snap.RemainingBudget = decimal.NewFromInt(1)

	rec, err := s.SaveSession(ctx, SessionRecord{Snapshot: snap})
	if err != nil {
		t.Fatalf("SaveSession: %v", err)
	}
	got, err := s.LoadSession(ctx, rec.ID)
	if err != nil {
		t.Fatalf("LoadSession: %v", err)
	}
	if got.Dropped != 1 || len(got.Snapshot.MyTeam) != 0 {
		t.Fatalf("dropped %d, roster %d", got.Dropped, len(got.Snapshot.MyTeam))
	}
	if !got.Snapshot.RemainingBudget.Equal(decimal.NewFromInt(500)) {
		t.Fatalf("remaining %s, want 500", got.Snapshot.RemainingBudget)
	}
}

func TestLoadSessionNotFound(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.LoadSession(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := s.LoadSession(context.Background(), ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for empty store, got %v", err)
	}
}

func TestPurchasesAndAlerts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	snap := testSnapshot(t)
	rec, err := s.SaveSession(ctx, SessionRecord{Snapshot: snap})
	if err != nil {
		t.Fatalf("SaveSession: %v", err)
	}
	for _, evt := range snap.Purchases {
		if err := s.AppendPurchase(ctx, NewPurchaseRecord(rec.ID, evt)); err != nil {
			t.Fatalf("AppendPurchase: %v", err)
		}
	}
	// replaying the same sequence must not duplicate rows
	if err := s.AppendPurchase(ctx, NewPurchaseRecord(rec.ID, snap.Purchases[0])); err != nil {
		t.Fatalf("AppendPurchase: %v", err)
	}

	purchases, err := s.ListPurchases(ctx, rec.ID)
	if err != nil {
		t.Fatalf("ListPurchases: %v", err)
	}
	if len(purchases) != 2 || purchases[1].Owner != "Rivals FC" || !purchases[1].Price.Equal(decimal.NewFromInt(60)) {
		t.Fatalf("unexpected purchases: %+v", purchases)
	}

	base := time.Date(2025, 8, 20, 21, 0, 0, 0, time.UTC)
	for i, title := range []string{"first", "second"} {
		_, err := s.RecordAlert(ctx, AlertRecord{
			SessionID: rec.ID,
			AlertID:   title,
			Level:     alertcfg.LevelCritical,
			Category:  alertcfg.CategoryBudget,
			Title:     title,
			Priority:  9,
			Channels:  []string{"telegram"},
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("RecordAlert: %v", err)
		}
	}
	alerts, err := s.ListAlerts(ctx, rec.ID, 10)
	if err != nil {
		t.Fatalf("ListAlerts: %v", err)
	}
	if len(alerts) != 2 || alerts[0].Title != "second" || alerts[0].Channels[0] != "telegram" {
		t.Fatalf("unexpected alerts: %+v", alerts)
	}

	if err := s.ClearPurchases(ctx, rec.ID); err != nil {
		t.Fatalf("ClearPurchases: %v", err)
	}
	purchases, _ = s.ListPurchases(ctx, rec.ID)
	if len(purchases) != 0 {
		t.Fatalf("purchases not cleared: %d", len(purchases))
	}
}

func TestPostgresStoreNotConfigured(t *testing.T) {
	var s *PostgresStore
	if _, err := s.LoadSession(context.Background(), ""); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close on nil store: %v", err)
	}
}
