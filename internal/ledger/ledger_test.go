package ledger

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"auction-advisor/internal/catalog"
)

func testCandidates() []catalog.Candidate {
	return []catalog.Candidate{
		{ID: 1, Name: "Keeper", Position: catalog.Goalkeeper, ConvenienceScore: 60},
		{ID: 2, Name: "Back", Position: catalog.Defender, ConvenienceScore: 55},
		{ID: 3, Name: "Mid", Position: catalog.Midfielder, ConvenienceScore: 80},
		{ID: 4, Name: "Striker", Position: catalog.Forward, ConvenienceScore: 90},
		{ID: 5, Name: "Winger", Position: catalog.Forward, ConvenienceScore: 40},
	}
}

func newTestLedger(t *testing.T) *Ledger {
	t.Helper()
	clock := time.Date(2025, 8, 20, 21, 0, 0, 0, time.UTC)
	return New(DefaultConfig(), testCandidates(), Options{Clock: func() time.Time { return clock }})
}

func assertBudgetInvariant(t *testing.T, l *Ledger) {
	t.Helper()
	st := l.State()
	spent := decimal.Zero
	for _, c := range st.MyTeam {
		spent = spent.Add(c.PaidPrice)
	}
	want := st.Config.TotalBudget.Sub(spent)
	if !st.RemainingBudget.Equal(want) {
		t.Fatalf("remaining budget %s, want %s", st.RemainingBudget, want)
	}
}

type recordingObserver struct {
	events []PurchaseEvent
}

func (r *recordingObserver) OnPurchase(evt PurchaseEvent) {
	r.events = append(r.events, evt)
}

func TestPurchaseByOperator(t *testing.T) {
	l := newTestLedger(t)
	obs := &recordingObserver{}
	l.Observe(obs)
	if err := l.Select(4); err != nil {
		t.Fatalf("Select: %v", err)
	}

	evt, err := l.Purchase(4, decimal.NewFromInt(120), "")
	if err != nil {
		t.Fatalf("Purchase: %v", err)
	}
	if evt.Owner != DefaultOperator || evt.Seq != 1 {
		t.Fatalf("unexpected event: %+v", evt)
	}

	st := l.State()
	if !st.RemainingBudget.Equal(decimal.NewFromInt(380)) {
		t.Fatalf("remaining budget %s, want 380", st.RemainingBudget)
	}
	if len(st.MyTeam) != 1 || st.MyTeam[0].Status != catalog.StatusMine {
		t.Fatalf("own roster not updated: %+v", st.MyTeam)
	}
	if st.Selected != nil {
		t.Fatal("selection should be cleared after purchase")
	}
	if len(obs.events) != 1 {
		t.Fatalf("observer saw %d events, want 1", len(obs.events))
	}
	cand, _ := l.Catalog().Get(4)
	if cand.Status != catalog.StatusMine || !cand.PaidPrice.Equal(decimal.NewFromInt(120)) {
		t.Fatalf("catalog entry not updated: %+v", cand)
	}
	assertBudgetInvariant(t, l)
}

func TestPurchaseByRivalUpsertsTeam(t *testing.T) {
	l := newTestLedger(t)
	for i, id := range []int{3, 4, 5} {
		if _, err := l.Purchase(id, decimal.NewFromInt(int64(50+10*i)), "Team X"); err != nil {
			t.Fatalf("Purchase %d: %v", id, err)
		}
	}

	st := l.State()
	team, ok := st.Rivals["Team X"]
	if !ok {
		t.Fatal("rival team not created")
	}
	if !team.BudgetSpent.Equal(decimal.NewFromInt(180)) {
		t.Fatalf("budget spent %s, want 180", team.BudgetSpent)
	}
	if len(team.Purchased) != 3 || team.Purchased[0].Status != catalog.StatusTaken {
		t.Fatalf("unexpected purchased list: %+v", team.Purchased)
	}
	if !st.RemainingBudget.Equal(st.Config.TotalBudget) {
		t.Fatal("rival purchases must not touch operator budget")
	}
	assertBudgetInvariant(t, l)
}

func TestPurchaseRejectsInvalidInput(t *testing.T) {
	l := newTestLedger(t)
	before := l.Snapshot()

	for _, price := range []decimal.Decimal{decimal.Zero, decimal.NewFromInt(-5)} {
		if _, err := l.Purchase(1, price, ""); !errors.Is(err, ErrInvalidPrice) {
			t.Fatalf("expected ErrInvalidPrice for %s, got %v", price, err)
		}
	}
	if _, err := l.Purchase(99, decimal.NewFromInt(10), ""); !errors.Is(err, ErrUnknownCandidate) {
		t.Fatalf("expected ErrUnknownCandidate, got %v", err)
	}

	after := l.Snapshot()
	if len(after.Purchases) != len(before.Purchases) || len(after.Rivals) != 0 || len(after.MyTeam) != 0 {
		t.Fatal("rejected purchases must not mutate the ledger")
	}
	if !after.RemainingBudget.Equal(before.RemainingBudget) {
		t.Fatal("rejected purchases must not touch the budget")
	}
}

func TestPurchaseRejectsOwnedCandidate(t *testing.T) {
	l := newTestLedger(t)
	if _, err := l.Purchase(2, decimal.NewFromInt(5), "Team Y"); err != nil {
		t.Fatalf("Purchase: %v", err)
	}
	if _, err := l.Purchase(2, decimal.NewFromInt(5), ""); !errors.Is(err, ErrAlreadyOwned) {
		t.Fatalf("expected ErrAlreadyOwned, got %v", err)
	}
}

func TestOverspendIsRepresentable(t *testing.T) {
	l := newTestLedger(t)
	if _, err := l.Purchase(4, decimal.NewFromInt(600), ""); err != nil {
		t.Fatalf("Purchase: %v", err)
	}
	if !l.RemainingBudget().Equal(decimal.NewFromInt(-100)) {
		t.Fatalf("remaining budget %s, want -100", l.RemainingBudget())
	}
	assertBudgetInvariant(t, l)
}

func TestSlotsInfoAllowsOverflow(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Slots[catalog.Forward] = 1
	l := New(cfg, testCandidates(), Options{})
	for _, id := range []int{4, 5} {
		if _, err := l.Purchase(id, decimal.NewFromInt(10), "me"); err != nil {
			t.Fatalf("Purchase: %v", err)
		}
	}
	info := l.SlotsInfo()[catalog.Forward]
	if info.Taken != 2 || info.Total != 1 || info.Remaining != -1 {
		t.Fatalf("unexpected slots info: %+v", info)
	}
}

func TestResetRestoresInitialState(t *testing.T) {
	l := newTestLedger(t)
	_, _ = l.Purchase(1, decimal.NewFromInt(10), "")
	_, _ = l.Purchase(2, decimal.NewFromInt(20), "Team X")
	l.SetPhase(Phase(catalog.Defender))

	l.Reset()

	st := l.State()
	if !st.RemainingBudget.Equal(st.Config.TotalBudget) {
		t.Fatalf("remaining %s, want %s", st.RemainingBudget, st.Config.TotalBudget)
	}
	if len(st.MyTeam) != 0 || len(st.Rivals) != 0 || len(l.Purchases()) != 0 {
		t.Fatal("reset must clear roster, rivals and log")
	}
	if st.Phase != PhaseIdle {
		t.Fatalf("phase %s, want idle", st.Phase)
	}
	for _, c := range st.Candidates {
		if c.Status != catalog.StatusAvailable || c.Owner != "" || !c.PaidPrice.IsZero() {
			t.Fatalf("candidate not released: %+v", c)
		}
	}
}

func TestRestoreDropsInvalidPositions(t *testing.T) {
	l := newTestLedger(t)
	_, _ = l.Purchase(1, decimal.NewFromInt(30), "")
	_, _ = l.Purchase(3, decimal.NewFromInt(40), "")
	snap := l.Snapshot()

	snap.MyTeam[0].Position = "X"
	snap.Candidates = append(snap.Candidates, catalog.Candidate{ID: 42, Name: "Ghost", Position: "?"})

	restored := New(DefaultConfig(), nil, Options{})
	dropped := restored.Restore(snap)
	if dropped != 2 {
		t.Fatalf("dropped %d entries, want 2", dropped)
	}
	st := restored.State()
	if len(st.MyTeam) != 1 {
		t.Fatalf("own roster has %d entries, want 1", len(st.MyTeam))
	}
	if !st.RemainingBudget.Equal(decimal.NewFromInt(460)) {
		t.Fatalf("remaining budget %s, want 460", st.RemainingBudget)
	}
	if _, ok := restored.Catalog().Get(42); ok {
		t.Fatal("invalid candidate should be dropped")
	}
	assertBudgetInvariant(t, restored)
}

func TestSetPhaseRejectsUnknownPosition(t *testing.T) {
	l := newTestLedger(t)
	l.SetPhase("Z")
	if l.State().Phase != PhaseIdle {
		t.Fatal("unknown phase should fall back to idle")
	}
}

func TestSanitizeRecomputesBudget(t *testing.T) {
	l := newTestLedger(t)
	_, _ = l.Purchase(1, decimal.NewFromInt(30), "")
	snap := l.Snapshot()
	snap.RemainingBudget = decimal.NewFromInt(1)
	snap.Phase = Phase("D")

	clean, dropped := Sanitize(snap)
	if dropped != 0 {
		t.Fatalf("dropped %d, want 0", dropped)
	}
	if !clean.RemainingBudget.Equal(decimal.NewFromInt(470)) {
		t.Fatalf("remaining %s, want 470", clean.RemainingBudget)
	}
	if clean.Phase != PhaseIdle || clean.Selected != nil {
		t.Fatalf("selection state not cleared: %+v", clean.State)
	}
}

func TestSanitizeRecomputesRivalSpend(t *testing.T) {
	l := newTestLedger(t)
	_, _ = l.Purchase(1, decimal.NewFromInt(30), "Team R")
	_, _ = l.Purchase(2, decimal.NewFromInt(45), "Team R")
	snap := l.Snapshot()

	team := snap.Rivals["Team R"]
	team.Purchased = append([]catalog.Candidate(nil), team.Purchased...)
	team.Purchased[1].Position = catalog.Position("X")
	snap.Rivals["Team R"] = team

	clean, _ := Sanitize(snap)
	got := clean.Rivals["Team R"]
	if len(got.Purchased) != 1 {
		t.Fatalf("kept %d rival purchases, want 1", len(got.Purchased))
	}
	if !got.BudgetSpent.Equal(decimal.NewFromInt(30)) {
		t.Fatalf("budget spent %s, want 30", got.BudgetSpent)
	}
}
