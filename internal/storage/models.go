package storage

import (
	"time"

	"github.com/shopspring/decimal"

	"auction-advisor/internal/alertcfg"
	"auction-advisor/internal/catalog"
	"auction-advisor/internal/ledger"
	"auction-advisor/internal/watchlist"
)

// SessionRecord is the persisted form of one auction session.
type SessionRecord struct {
	ID          string
	Name        string
	Snapshot    ledger.Snapshot
	AlertConfig alertcfg.Config
	WatchLists  []watchlist.List
	CreatedAt   time.Time
	UpdatedAt   time.Time
	// Dropped counts entries removed by sanitisation on load. Not persisted.
	Dropped int
}

// PurchaseRecord is one row of the purchase audit log.
type PurchaseRecord struct {
	SessionID     string
	Seq           int
	CandidateID   int
	CandidateName string
	Position      catalog.Position
	Owner         string
	Price         decimal.Decimal
	Expected      decimal.Decimal
	PurchasedAt   time.Time
}

// NewPurchaseRecord flattens a ledger event for the audit log.
func NewPurchaseRecord(sessionID string, evt ledger.PurchaseEvent) PurchaseRecord {
	return PurchaseRecord{
		SessionID:     sessionID,
		Seq:           evt.Seq,
		CandidateID:   evt.Candidate.ID,
		CandidateName: evt.Candidate.Name,
		Position:      evt.Candidate.Position,
		Owner:         evt.Owner,
		Price:         evt.Price,
		Expected:      evt.Expected,
		PurchasedAt:   evt.Timestamp,
	}
}

// AlertRecord captures an alert that was delivered to at least one channel.
type AlertRecord struct {
	ID        int64
	SessionID string
	AlertID   string
	Level     alertcfg.Level
	Category  alertcfg.Category
	Title     string
	Message   string
	Priority  int
	Channels  []string
	CreatedAt time.Time
}
