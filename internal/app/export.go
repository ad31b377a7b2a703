package app

import (
	"context"
	"encoding/csv"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"

	"auction-advisor/internal/storage"
)

// ExportOptions hold parameters for exporting the purchase log.
type ExportOptions struct {
	SessionID string
	PNGPath   string
	CSVPath   string
	MaxPoints int
}

// Export renders the purchase log of a session as CSV and/or PNG. Without
// explicit paths both files are written to the configured export directory.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	opts.MaxPoints = a.Config.ResolveMaxPoints(opts.MaxPoints)

	store, closeStore, err := a.requireStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	id := opts.SessionID
	if id == "" {
		id = a.Config.Storage.SessionID
	}
	rec, err := store.LoadSession(ctx, id)
	if err != nil {
		return err
	}

	if opts.CSVPath == "" && opts.PNGPath == "" {
		if a.Config.Export.Dir == "" {
			return errors.New("at least one of --csv or --png must be provided")
		}
		opts.CSVPath = filepath.Join(a.Config.Export.Dir, rec.ID+"-purchases.csv")
		opts.PNGPath = filepath.Join(a.Config.Export.Dir, rec.ID+"-prices.png")
	}

	purchases, err := store.ListPurchases(ctx, rec.ID)
	if err != nil {
		return err
	}
	if len(purchases) == 0 {
		a.Logger.Info().Str("session_id", rec.ID).Msg("no purchases to export")
		return nil
	}

	// the CSV is an audit log and keeps every row
	if opts.CSVPath != "" {
		if err := writePurchasesCSV(opts.CSVPath, purchases); err != nil {
			return err
		}
		a.Logger.Info().Str("path", opts.CSVPath).Int("rows", len(purchases)).Msg("purchases exported")
	}

	if opts.PNGPath != "" {
		downsampled := downsamplePurchases(purchases, opts.MaxPoints)
		if len(downsampled) < 2 {
			a.Logger.Warn().Msg("chart needs at least two purchases, skipping png")
			return nil
		}
		if err := writePurchasesPNG(opts.PNGPath, downsampled); err != nil {
			return err
		}
		a.Logger.Info().Str("path", opts.PNGPath).Int("total", len(purchases)).Int("plotted", len(downsampled)).Msg("price chart exported")
	}

	return nil
}

func downsamplePurchases(purchases []storage.PurchaseRecord, max int) []storage.PurchaseRecord {
	if max <= 1 || len(purchases) <= max {
		return purchases
	}

	result := make([]storage.PurchaseRecord, 0, max)
	step := float64(len(purchases)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(purchases) {
			idx = len(purchases) - 1
		}
		result = append(result, purchases[idx])
	}
	return result
}

func writePurchasesCSV(path string, purchases []storage.PurchaseRecord) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"seq", "purchased_at", "candidate_id", "candidate", "position", "owner", "price", "expected", "ratio"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, p := range purchases {
		ratio := ""
		if p.Expected.IsPositive() {
			ratio = p.Price.Div(p.Expected).StringFixed(2)
		}
		record := []string{
			strconv.Itoa(p.Seq),
			p.PurchasedAt.UTC().Format(time.RFC3339),
			strconv.Itoa(p.CandidateID),
			p.CandidateName,
			string(p.Position),
			p.Owner,
			p.Price.String(),
			p.Expected.String(),
			ratio,
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

func writePurchasesPNG(path string, purchases []storage.PurchaseRecord) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	x := make([]float64, len(purchases))
	paid := make([]float64, len(purchases))
	expected := make([]float64, len(purchases))
	ratio := make([]float64, len(purchases))

	for i, p := range purchases {
		x[i] = float64(p.Seq)
		paid[i] = p.Price.InexactFloat64()
		expected[i] = p.Expected.InexactFloat64()
		if p.Expected.IsPositive() {
			ratio[i] = p.Price.Div(p.Expected).InexactFloat64()
		}
	}

	creditFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.0f")
	}
	graph := chart.Chart{
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			Name:           "Purchase #",
			ValueFormatter: creditFormatter,
		},
		YAxis: chart.YAxis{
			Name:           "Credits",
			ValueFormatter: creditFormatter,
		},
		YAxisSecondary: chart.YAxis{
			Name: "Paid / expected",
			ValueFormatter: func(v interface{}) string {
				return chart.FloatValueFormatterWithFormat(v, "%.2f")
			},
		},
		Series: []chart.Series{
			chart.ContinuousSeries{
				Name:    "Paid",
				XValues: x,
				YValues: paid,
			},
			chart.ContinuousSeries{
				Name:    "Expected",
				XValues: x,
				YValues: expected,
			},
			chart.ContinuousSeries{
				Name:    "Ratio",
				XValues: x,
				YValues: ratio,
				YAxis:   chart.YAxisSecondary,
			},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
