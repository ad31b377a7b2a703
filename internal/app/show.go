package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"

	"auction-advisor/internal/catalog"
	"auction-advisor/internal/ledger"
	"auction-advisor/internal/market"
	"auction-advisor/internal/service"
	"auction-advisor/internal/storage"
)

// ShowOptions configure the show command.
type ShowOptions struct {
	SessionID string
	Alerts    int
}

// Show prints the state of a stored session without modifying it.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	store, closeStore, err := a.requireStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	sess, rec, err := a.loadReadOnly(ctx, store, opts.SessionID)
	if err != nil {
		return err
	}

	out := os.Stdout
	fmt.Fprintf(out, "session %s (%s), updated %s\n\n", rec.ID, rec.Name, rec.UpdatedAt.UTC().Format(time.RFC3339))
	printSlots(out, sess.SlotsInfo(), sess.State().RemainingBudget)
	fmt.Fprintln(out)
	printStats(out, sess.Stats())
	fmt.Fprintln(out)
	printRivals(out, sess.RivalOverview())

	if opts.Alerts > 0 {
		records, err := store.ListAlerts(ctx, rec.ID, opts.Alerts)
		if err != nil {
			return err
		}
		fmt.Fprintln(out)
		printAlertRecords(out, records)
	}
	return nil
}

// loadReadOnly rebuilds a stored session in memory, detached from the store.
func (a *App) loadReadOnly(ctx context.Context, store storage.Store, id string) (*service.Session, storage.SessionRecord, error) {
	if id == "" {
		id = a.Config.Storage.SessionID
	}
	rec, err := store.LoadSession(ctx, id)
	if err != nil {
		return nil, storage.SessionRecord{}, fmt.Errorf("load session: %w", err)
	}
	sess := service.New(service.Options{League: a.leagueConfig(), AlertConfig: rec.AlertConfig}, a.Logger)
	sess.Restore(rec)
	return sess, rec, nil
}

func printAlerts(w io.Writer, alerts []market.SmartAlert) {
	if len(alerts) == 0 {
		fmt.Fprintln(w, "no alerts")
		return
	}
	for _, al := range alerts {
		fmt.Fprintf(w, "[%s] p%d %s: %s (%s)\n", strings.ToUpper(string(al.Level)), al.Priority, al.Title, sanitizeInline(al.Message), al.ID)
		if al.Suggestion != "" {
			fmt.Fprintf(w, "    -> %s\n", sanitizeInline(al.Suggestion))
		}
	}
}

func printAlertRecords(w io.Writer, records []storage.AlertRecord) {
	if len(records) == 0 {
		fmt.Fprintln(w, "no delivered alerts")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "Time (UTC)\tLevel\tPriority\tTitle\tChannels")
	for _, r := range records {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n",
			r.CreatedAt.UTC().Format(time.RFC3339), r.Level, r.Priority, sanitizeInline(r.Title), strings.Join(r.Channels, ","))
	}
	tw.Flush()
}

func printSlots(w io.Writer, slots map[catalog.Position]ledger.Slots, remaining decimal.Decimal) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "Position\tTaken\tTotal\tRemaining")
	for _, pos := range catalog.Positions {
		s := slots[pos]
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\n", pos, s.Taken, s.Total, s.Remaining)
	}
	tw.Flush()
	fmt.Fprintf(w, "budget remaining: %s\n", remaining)
}

func printStats(w io.Writer, st service.Stats) {
	fmt.Fprintf(w, "sold %d/%d (%d%%), spent %s, mine %s, league position %d\n",
		st.Sold, st.Candidates, st.Progress, st.TotalSpent, st.MySpent, st.LeaguePosition)
	avg := make([]string, 0, len(catalog.Positions))
	for _, pos := range catalog.Positions {
		avg = append(avg, fmt.Sprintf("%s %s", pos, st.AvgPriceByPosition[pos]))
	}
	fmt.Fprintf(w, "average price: %s\n", strings.Join(avg, ", "))
	for i, c := range st.TopPurchases {
		fmt.Fprintf(w, "top %d: %s (%s) %s to %s\n", i+1, c.Name, c.Position, c.PaidPrice, c.Owner)
	}
	for _, d := range st.BestDeals {
		fmt.Fprintf(w, "deal: %s %s for %s (%.2f per credit)\n", d.Candidate.Name, d.Candidate.Position, d.Candidate.PaidPrice, d.Ratio)
	}
}

func printRivals(w io.Writer, rivals []service.RivalSummary) {
	if len(rivals) == 0 {
		fmt.Fprintln(w, "no rival purchases yet")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "Team\tP\tD\tC\tA\tSpent\tRemaining\tAvg\tComplete%\t")
	for _, r := range rivals {
		flag := ""
		if r.Dangerous {
			flag = "dangerous"
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%s\t%s\t%s\t%d\t%s\n", r.Name,
			r.Counts[catalog.Goalkeeper], r.Counts[catalog.Defender], r.Counts[catalog.Midfielder], r.Counts[catalog.Forward],
			r.Spent, r.Remaining, r.AvgPrice, r.Completion, flag)
	}
	tw.Flush()
}

func printMarket(w io.Writer, m market.Metrics) {
	v := m.Velocity
	fmt.Fprintf(w, "velocity: %d/5m %d/10m %d/30m (%s)\n", v.Last5, v.Last10, v.Last30, v.Trend)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "Position\tScarcity\tTop left\tInflation\tAvg price")
	for _, pos := range catalog.Positions {
		fmt.Fprintf(tw, "%s\t%.0f%%\t%d\t%.2f\t%.1f\n", pos, m.Scarcity[pos]*100, m.TopRemaining[pos], m.Inflation[pos], m.AvgPrice[pos])
	}
	tw.Flush()
	for _, p := range m.Competitors {
		fmt.Fprintf(w, "%s: %s, %d buys, avg %.1f, %s left\n", p.Name, p.Pattern, p.Purchases, p.AvgPurchasePrice, p.BudgetRemaining)
	}
}

func sanitizeInline(v string) string {
	cleaned := strings.ReplaceAll(v, "\n", " ")
	cleaned = strings.ReplaceAll(cleaned, "\r", " ")
	return cleaned
}
