package app

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/shopspring/decimal"

	"auction-advisor/internal/alerting"
	"auction-advisor/internal/service"
)

// ScriptedPurchase is one row of a simulation script.
type ScriptedPurchase struct {
	Line      int
	Candidate string
	Price     decimal.Decimal
	Owner     string
}

// SimulateOptions configure a replay.
type SimulateOptions struct {
	Script string
	// Dispatch forwards alerts through the configured channels.
	Dispatch bool
	Out      io.Writer
}

// Simulate replays a scripted sale log through a fresh in-memory session and
// prints every alert it produces. Nothing is persisted.
func (a *App) Simulate(ctx context.Context, opts SimulateOptions) error {
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	f, err := os.Open(opts.Script)
	if err != nil {
		return err
	}
	defer f.Close()

	script, err := ReadPurchaseScript(f)
	if err != nil {
		return err
	}

	var dispatcher *alerting.Dispatcher
	if opts.Dispatch {
		if dispatcher, err = a.newDispatcher(); err != nil {
			return err
		}
		if dispatcher == nil {
			return errors.New("alerting is disabled; enable alerting.enabled to dispatch")
		}
	}

	sess, err := a.openSession(ctx, nil, dispatcher, SessionOptions{})
	if err != nil {
		return err
	}
	return replay(ctx, sess, script, opts.Out)
}

func replay(ctx context.Context, sess *service.Session, script []ScriptedPurchase, out io.Writer) error {
	failed := 0
	for _, p := range script {
		if err := recordPurchase(ctx, sess, out, p.Candidate, p.Price, p.Owner); err != nil {
			failed++
			fmt.Fprintf(out, "line %d: %v\n", p.Line, err)
		}
	}

	fmt.Fprintln(out, "\nfinal analysis:")
	printAlerts(out, sess.AnalyzeNow(ctx))
	fmt.Fprintln(out)
	printStats(out, sess.Stats())
	if failed > 0 {
		return fmt.Errorf("%d of %d scripted purchases failed", failed, len(script))
	}
	return nil
}

// ReadPurchaseScript parses "candidate,price[,owner]" rows. The candidate is
// an id or a name; a first row whose price is not numeric is a header.
func ReadPurchaseScript(r io.Reader) ([]ScriptedPurchase, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	reader.Comment = '#'

	var out []ScriptedPurchase
	for first := true; ; first = false {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		line, _ := reader.FieldPos(0)
		if len(row) < 2 {
			return nil, fmt.Errorf("line %d: want candidate,price[,owner]", line)
		}
		price, err := decimal.NewFromString(strings.TrimSpace(row[1]))
		if err != nil {
			if first {
				continue
			}
			return nil, fmt.Errorf("line %d: invalid price %q", line, row[1])
		}
		p := ScriptedPurchase{
			Line:      line,
			Candidate: strings.TrimSpace(row[0]),
			Price:     price,
		}
		if len(row) > 2 {
			p.Owner = strings.TrimSpace(row[2])
		}
		out = append(out, p)
	}
	if len(out) == 0 {
		return nil, errors.New("script has no purchases")
	}
	return out, nil
}
