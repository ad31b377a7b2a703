// Package ledger is the single writer of draft truth: budget, owned roster,
// rival teams and the append-only purchase log.
package ledger

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"auction-advisor/internal/catalog"
)

var (
	// ErrInvalidPrice is returned for non-positive purchase prices.
	ErrInvalidPrice = errors.New("ledger: price must be greater than zero")
	// ErrUnknownCandidate is returned when a candidate ID is not in the catalog.
	ErrUnknownCandidate = errors.New("ledger: unknown candidate")
	// ErrAlreadyOwned is returned when buying a candidate that is not available.
	ErrAlreadyOwned = errors.New("ledger: candidate already owned")
)

// PurchaseObserver is notified after every committed purchase.
type PurchaseObserver interface {
	OnPurchase(evt PurchaseEvent)
}

// Appraiser computes the expected price of a candidate for a given state.
type Appraiser func(state State, cand catalog.Candidate) decimal.Decimal

// Options tune ledger behaviour.
type Options struct {
	Clock     func() time.Time
	Appraiser Appraiser
}

// Ledger holds the authoritative auction state. It is not safe for concurrent
// use; callers serialise access.
type Ledger struct {
	cfg       Config
	catalog   *catalog.Catalog
	myTeam    []catalog.Candidate
	remaining decimal.Decimal
	rivals    *rivalBook
	selected  *int
	phase     Phase
	log       []PurchaseEvent
	observers []PurchaseObserver

	now       func() time.Time
	appraiser Appraiser
}

// New constructs a ledger over the given candidates.
func New(cfg Config, candidates []catalog.Candidate, opts Options) *Ledger {
	if cfg.Operator == "" {
		cfg.Operator = DefaultOperator
	}
	now := opts.Clock
	if now == nil {
		now = time.Now
	}
	l := &Ledger{
		cfg:       cfg,
		catalog:   catalog.New(candidates),
		remaining: cfg.TotalBudget,
		rivals:    newRivalBook(),
		phase:     PhaseIdle,
		now:       now,
		appraiser: opts.Appraiser,
	}
	return l
}

// Observe registers an observer for committed purchases.
func (l *Ledger) Observe(o PurchaseObserver) {
	l.observers = append(l.observers, o)
}

// Config returns the auction rules.
func (l *Ledger) Config() Config {
	return l.cfg
}

// Catalog exposes the candidate roster for read-only queries.
func (l *Ledger) Catalog() *catalog.Catalog {
	return l.catalog
}

// Purchase commits a sale. A non-positive price or unknown candidate leaves
// the ledger untouched. The remaining budget has no floor.
func (l *Ledger) Purchase(candidateID int, price decimal.Decimal, owner string) (PurchaseEvent, error) {
	if !price.IsPositive() {
		return PurchaseEvent{}, fmt.Errorf("%w: %s", ErrInvalidPrice, price.String())
	}
	cand, ok := l.catalog.Get(candidateID)
	if !ok {
		return PurchaseEvent{}, fmt.Errorf("%w: %d", ErrUnknownCandidate, candidateID)
	}
	if !cand.Available() {
		return PurchaseEvent{}, fmt.Errorf("%w: %s (%s)", ErrAlreadyOwned, cand.Name, cand.Owner)
	}

	owner = strings.TrimSpace(owner)
	mine := l.cfg.IsOperator(owner)
	if mine {
		owner = l.cfg.Operator
	}

	expected := decimal.Zero
	if l.appraiser != nil {
		expected = l.appraiser(l.State(), cand)
	}

	snapshot := cand
	cand.Owner = owner
	cand.PaidPrice = price
	if mine {
		cand.Status = catalog.StatusMine
		l.myTeam = append(l.myTeam, cand)
		l.remaining = l.remaining.Sub(price)
	} else {
		cand.Status = catalog.StatusTaken
		l.rivals.upsert(owner, cand, price)
	}
	l.catalog.Put(cand)
	l.selected = nil

	evt := PurchaseEvent{
		Seq:       len(l.log) + 1,
		Candidate: snapshot,
		Price:     price,
		Owner:     owner,
		Timestamp: l.now(),
		Expected:  expected,
	}
	l.log = append(l.log, evt)

	for _, o := range l.observers {
		o.OnPurchase(evt)
	}
	return evt, nil
}

// Select marks a candidate as the one currently on the block.
func (l *Ledger) Select(candidateID int) error {
	if _, ok := l.catalog.Get(candidateID); !ok {
		return fmt.Errorf("%w: %d", ErrUnknownCandidate, candidateID)
	}
	id := candidateID
	l.selected = &id
	return nil
}

// ClearSelection removes the current selection.
func (l *Ledger) ClearSelection() {
	l.selected = nil
}

// SetPhase switches the position filter. Invalid positions reset to idle.
func (l *Ledger) SetPhase(p Phase) {
	if p != PhaseIdle && !catalog.Position(p).Valid() {
		p = PhaseIdle
	}
	l.phase = p
}

// Reset returns every candidate to available and clears all auction state.
func (l *Ledger) Reset() {
	l.catalog.ReleaseAll()
	l.myTeam = nil
	l.remaining = l.cfg.TotalBudget
	l.rivals = newRivalBook()
	l.log = nil
	l.selected = nil
	l.phase = PhaseIdle
}

// SlotsInfo reports slot usage per position for the operator.
func (l *Ledger) SlotsInfo() map[catalog.Position]Slots {
	return slotsInfo(l.cfg, l.myTeam)
}

// RemainingBudget returns the operator's remaining budget.
func (l *Ledger) RemainingBudget() decimal.Decimal {
	return l.remaining
}

// Purchases returns a copy of the purchase log.
func (l *Ledger) Purchases() []PurchaseEvent {
	return append([]PurchaseEvent(nil), l.log...)
}

// RivalNames lists rivals in first-purchase order.
func (l *Ledger) RivalNames() []string {
	return l.rivals.names()
}

// Available lists candidates still on the market for position; an empty
// position lists all of them.
func (l *Ledger) Available(position catalog.Position) []catalog.Candidate {
	return l.catalog.Filter(position, true)
}

// State returns a copy of the current ledger state.
func (l *Ledger) State() State {
	st := State{
		Config:          l.cfg,
		Candidates:      l.catalog.All(),
		MyTeam:          append([]catalog.Candidate(nil), l.myTeam...),
		RemainingBudget: l.remaining,
		Rivals:          l.rivals.snapshot(),
		Phase:           l.phase,
	}
	if l.selected != nil {
		if cand, ok := l.catalog.Get(*l.selected); ok {
			st.Selected = &cand
		}
	}
	return st
}

// Snapshot returns the persisted form of the ledger.
func (l *Ledger) Snapshot() Snapshot {
	return Snapshot{State: l.State(), Purchases: l.Purchases()}
}

// Restore replaces the ledger contents with a persisted snapshot. The
// snapshot is passed through Sanitize first; the returned count is the number
// of dropped entries.
func (l *Ledger) Restore(snap Snapshot) int {
	snap, dropped := Sanitize(snap)
	if snap.Config.TotalBudget.IsPositive() {
		l.cfg = snap.Config
	}

	l.catalog = catalog.New(snap.Candidates)
	l.myTeam = snap.MyTeam
	l.remaining = l.cfg.TotalBudget.Sub(paidTotal(l.myTeam))

	l.rivals = newRivalBook()
	for _, name := range sortedRivalNames(snap.Rivals, snap.Purchases) {
		l.rivals.put(snap.Rivals[name])
	}

	l.log = snap.Purchases
	l.selected = nil
	l.phase = PhaseIdle
	return dropped
}

// Sanitize drops candidates, roster entries and log events whose position is
// not one of catalog.Positions, then recomputes RemainingBudget from the
// surviving own roster and each rival's BudgetSpent from its surviving
// purchases. It returns the cleaned snapshot and the number of
// dropped candidate and roster entries.
func Sanitize(snap Snapshot) (Snapshot, int) {
	dropped := 0
	if snap.Config.TotalBudget.IsPositive() && snap.Config.Operator == "" {
		snap.Config.Operator = DefaultOperator
	}

	candidates := make([]catalog.Candidate, 0, len(snap.Candidates))
	for _, c := range snap.Candidates {
		if !c.Position.Valid() {
			dropped++
			continue
		}
		candidates = append(candidates, c)
	}
	snap.Candidates = candidates

	var team []catalog.Candidate
	for _, c := range snap.MyTeam {
		if !c.Position.Valid() {
			dropped++
			continue
		}
		team = append(team, c)
	}
	snap.MyTeam = team
	snap.RemainingBudget = snap.Config.TotalBudget.Sub(paidTotal(team))

	rivals := make(map[string]RivalTeam, len(snap.Rivals))
	for name, team := range snap.Rivals {
		kept := team.Purchased[:0:0]
		for _, c := range team.Purchased {
			if c.Position.Valid() {
				kept = append(kept, c)
			}
		}
		team.Purchased = kept
		team.BudgetSpent = paidTotal(kept)
		rivals[name] = team
	}
	snap.Rivals = rivals

	var log []PurchaseEvent
	for _, evt := range snap.Purchases {
		if evt.Candidate.Position.Valid() {
			log = append(log, evt)
		}
	}
	snap.Purchases = log
	snap.Selected = nil
	snap.Phase = PhaseIdle
	return snap, dropped
}

func paidTotal(team []catalog.Candidate) decimal.Decimal {
	total := decimal.Zero
	for _, c := range team {
		total = total.Add(c.PaidPrice)
	}
	return total
}

// sortedRivalNames orders rivals by their first appearance in the log so
// restores are deterministic; rivals absent from the log come last.
func sortedRivalNames(rivals map[string]RivalTeam, log []PurchaseEvent) []string {
	seen := make(map[string]bool, len(rivals))
	var names []string
	for _, evt := range log {
		if _, ok := rivals[evt.Owner]; ok && !seen[evt.Owner] {
			seen[evt.Owner] = true
			names = append(names, evt.Owner)
		}
	}
	var rest []string
	for name := range rivals {
		if !seen[name] {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	return append(names, rest...)
}
