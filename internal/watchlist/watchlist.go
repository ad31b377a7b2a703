// Package watchlist keeps the operator's watch lists: hand-picked candidate
// IDs and criteria-driven lists that follow the catalog.
package watchlist

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"auction-advisor/internal/catalog"
)

// ErrNotFound is returned for unknown list IDs.
var ErrNotFound = errors.New("watchlist: list not found")

// Kind distinguishes manual lists from criteria-driven ones.
type Kind string

const (
	KindManual Kind = "manual"
	KindAuto   Kind = "auto"
)

// Criteria filters candidates for automatic lists. Nil fields are ignored.
type Criteria struct {
	MinConvenience    *float64       `json:"min_convenience,omitempty"`
	MaxConvenience    *float64       `json:"max_convenience,omitempty"`
	Trend             *catalog.Trend `json:"trend,omitempty"`
	Injured           *bool          `json:"injured,omitempty"`
	NewSigning        *bool          `json:"new_signing,omitempty"`
	MinSeasonAverage  *float64       `json:"min_season_average,omitempty"`
	MaxSeasonAverage  *float64       `json:"max_season_average,omitempty"`
	MinGoals          *int           `json:"min_goals,omitempty"`
	MinAssists        *int           `json:"min_assists,omitempty"`
	MinXG             *float64       `json:"min_xg,omitempty"`
	MinCompositeIndex *float64       `json:"min_composite_index,omitempty"`
	MaxQuotation      *float64       `json:"max_quotation,omitempty"`
	MinDealScore      *float64       `json:"min_deal_score,omitempty"`
}

// Matches reports whether c satisfies every set criterion.
func (cr Criteria) Matches(c catalog.Candidate) bool {
	switch {
	case cr.MinConvenience != nil && c.ConvenienceScore < *cr.MinConvenience:
		return false
	case cr.MaxConvenience != nil && c.ConvenienceScore > *cr.MaxConvenience:
		return false
	case cr.Trend != nil && c.Trend != *cr.Trend:
		return false
	case cr.Injured != nil && c.Injured != *cr.Injured:
		return false
	case cr.NewSigning != nil && c.NewSigning != *cr.NewSigning:
		return false
	case cr.MinSeasonAverage != nil && c.SeasonAverage < *cr.MinSeasonAverage:
		return false
	case cr.MaxSeasonAverage != nil && c.SeasonAverage > *cr.MaxSeasonAverage:
		return false
	case cr.MinGoals != nil && c.Goals < *cr.MinGoals:
		return false
	case cr.MinAssists != nil && c.Assists < *cr.MinAssists:
		return false
	case cr.MinXG != nil && c.XG < *cr.MinXG:
		return false
	case cr.MinCompositeIndex != nil && c.CompositeIndex < *cr.MinCompositeIndex:
		return false
	case cr.MaxQuotation != nil && c.Quotation > *cr.MaxQuotation:
		return false
	case cr.MinDealScore != nil && c.DealScore < *cr.MinDealScore:
		return false
	}
	return true
}

// List is one watch list.
type List struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Kind         Kind      `json:"kind"`
	Description  string    `json:"description,omitempty"`
	Criteria     *Criteria `json:"criteria,omitempty"`
	CandidateIDs []int     `json:"candidate_ids"`
	Priority     int       `json:"priority"`
	CreatedAt    time.Time `json:"created_at"`
}

// Contains reports whether id is on the list.
func (l List) Contains(id int) bool {
	return slices.Contains(l.CandidateIDs, id)
}

// Book is the operator's set of watch lists. Not safe for concurrent use.
type Book struct {
	lists []*List
	now   func() time.Time
}

// NewBook constructs an empty book.
func NewBook() *Book {
	return &Book{now: time.Now}
}

// AddManual creates a hand-picked list.
func (b *Book) AddManual(name, description string, priority int, ids ...int) List {
	l := &List{
		ID:           uuid.NewString(),
		Name:         strings.TrimSpace(name),
		Kind:         KindManual,
		Description:  description,
		CandidateIDs: dedupe(ids),
		Priority:     priority,
		CreatedAt:    b.now().UTC(),
	}
	b.insert(l)
	return *l
}

// AddAuto creates a criteria-driven list populated from candidates.
func (b *Book) AddAuto(name, description string, priority int, cr Criteria, candidates []catalog.Candidate) List {
	crCopy := cr
	l := &List{
		ID:          uuid.NewString(),
		Name:        strings.TrimSpace(name),
		Kind:        KindAuto,
		Description: description,
		Criteria:    &crCopy,
		Priority:    priority,
		CreatedAt:   b.now().UTC(),
	}
	l.CandidateIDs = matchIDs(cr, candidates)
	b.insert(l)
	return *l
}

// Remove deletes a list.
func (b *Book) Remove(id string) error {
	for i, l := range b.lists {
		if l.ID == id {
			b.lists = append(b.lists[:i], b.lists[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrNotFound, id)
}

// Watch adds a candidate to a manual list.
func (b *Book) Watch(listID string, candidateID int) error {
	l, err := b.find(listID)
	if err != nil {
		return err
	}
	if !l.Contains(candidateID) {
		l.CandidateIDs = append(l.CandidateIDs, candidateID)
	}
	return nil
}

// Unwatch removes a candidate from a list.
func (b *Book) Unwatch(listID string, candidateID int) error {
	l, err := b.find(listID)
	if err != nil {
		return err
	}
	l.CandidateIDs = slices.DeleteFunc(l.CandidateIDs, func(id int) bool { return id == candidateID })
	return nil
}

// Refresh recomputes the members of every automatic list.
func (b *Book) Refresh(candidates []catalog.Candidate) {
	for _, l := range b.lists {
		if l.Kind == KindAuto && l.Criteria != nil {
			l.CandidateIDs = matchIDs(*l.Criteria, candidates)
		}
	}
}

// Watching reports whether c is on any list. Automatic lists also match by
// criteria so candidates loaded after the last refresh are covered.
func (b *Book) Watching(c catalog.Candidate) bool {
	for _, l := range b.lists {
		if l.Contains(c.ID) {
			return true
		}
		if l.Kind == KindAuto && l.Criteria != nil && l.Criteria.Matches(c) {
			return true
		}
	}
	return false
}

// Lists returns copies of all lists ordered by descending priority.
func (b *Book) Lists() []List {
	out := make([]List, 0, len(b.lists))
	for _, l := range b.lists {
		cp := *l
		cp.CandidateIDs = append([]int(nil), l.CandidateIDs...)
		out = append(out, cp)
	}
	return out
}

// Get returns one list.
func (b *Book) Get(id string) (List, error) {
	l, err := b.find(id)
	if err != nil {
		return List{}, err
	}
	cp := *l
	cp.CandidateIDs = append([]int(nil), l.CandidateIDs...)
	return cp, nil
}

// Restore replaces the book with persisted lists.
func (b *Book) Restore(lists []List) {
	b.lists = nil
	for _, l := range lists {
		cp := l
		if cp.ID == "" {
			cp.ID = uuid.NewString()
		}
		cp.CandidateIDs = dedupe(l.CandidateIDs)
		b.insert(&cp)
	}
}

// Available returns the watched candidates of a list that are still on the
// market, ordered by descending convenience.
func Available(l List, candidates []catalog.Candidate) []catalog.Candidate {
	var out []catalog.Candidate
	for _, c := range candidates {
		if c.Available() && l.Contains(c.ID) {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ConvenienceScore > out[j].ConvenienceScore
	})
	return out
}

func (b *Book) insert(l *List) {
	b.lists = append(b.lists, l)
	sort.SliceStable(b.lists, func(i, j int) bool {
		return b.lists[i].Priority > b.lists[j].Priority
	})
}

func (b *Book) find(id string) (*List, error) {
	for _, l := range b.lists {
		if l.ID == id {
			return l, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
}

func matchIDs(cr Criteria, candidates []catalog.Candidate) []int {
	var ids []int
	for _, c := range candidates {
		if cr.Matches(c) {
			ids = append(ids, c.ID)
		}
	}
	return ids
}

func dedupe(ids []int) []int {
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		if !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}
