package app

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/shopspring/decimal"

	"auction-advisor/internal/alertcfg"
	"auction-advisor/internal/catalog"
	"auction-advisor/internal/ledger"
	"auction-advisor/internal/service"
)

// ErrQuit is returned by Console.Execute when the operator leaves.
var ErrQuit = errors.New("quit")

const consoleHelp = `commands:
  buy <id|name> <price> [owner]   record a sale; no owner means you
  select <id> | clear             put a candidate on the block
  suggest <id>                    explain the maximum bid
  avail [position] [limit]        best unsold candidates
  alerts                          live alerts
  dismiss <alert-id|all>          dismiss alerts
  analyze                         run an analysis pass now
  slots | stats | rivals | market
  phase <P|D|C|A|idle>            position filter
  style <aggressive|balanced|conservative|value_hunter>
  watch new <name> <id>...        create a watch list
  watch ls | watch rm <list-id>   manage watch lists
  reset | save | quit`

// Console turns operator commands into session calls.
type Console struct {
	sess *service.Session
	out  io.Writer
}

// NewConsole binds a console to a session.
func NewConsole(sess *service.Session, out io.Writer) *Console {
	return &Console{sess: sess, out: out}
}

// Serve reads commands until in is exhausted, the context ends or the
// operator quits. Command errors are printed, not returned.
func (c *Console) Serve(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	fmt.Fprint(c.out, "> ")
	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		err := c.Execute(ctx, scanner.Text())
		if errors.Is(err, ErrQuit) {
			return nil
		}
		if err != nil {
			fmt.Fprintf(c.out, "error: %v\n", err)
		}
		fmt.Fprint(c.out, "> ")
	}
	return scanner.Err()
}

// Execute runs one command line.
func (c *Console) Execute(ctx context.Context, line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	cmd, args := strings.ToLower(fields[0]), fields[1:]

	switch cmd {
	case "help", "?":
		fmt.Fprintln(c.out, consoleHelp)
	case "buy":
		return c.buy(ctx, args)
	case "select":
		id, err := intArg(args, 0, "candidate id")
		if err != nil {
			return err
		}
		return c.sess.Select(id)
	case "clear":
		c.sess.ClearSelection()
	case "suggest":
		id, err := intArg(args, 0, "candidate id")
		if err != nil {
			return err
		}
		return c.suggest(id)
	case "avail":
		return c.available(args)
	case "alerts":
		printAlerts(c.out, c.sess.DisplayAlerts())
	case "dismiss":
		if len(args) == 0 {
			return errors.New("usage: dismiss <alert-id|all>")
		}
		if args[0] == "all" {
			c.sess.ClearAlerts()
			return nil
		}
		if !c.sess.Dismiss(args[0]) {
			return fmt.Errorf("no active alert %s", args[0])
		}
	case "analyze":
		printAlerts(c.out, c.sess.AnalyzeNow(ctx))
	case "slots":
		printSlots(c.out, c.sess.SlotsInfo(), c.sess.State().RemainingBudget)
	case "stats":
		printStats(c.out, c.sess.Stats())
	case "rivals":
		printRivals(c.out, c.sess.RivalOverview())
	case "market":
		printMarket(c.out, c.sess.Metrics())
	case "phase":
		if len(args) == 0 {
			return errors.New("usage: phase <position|idle>")
		}
		// anything that is not a position selects idle
		c.sess.SetPhase(ledger.Phase(strings.ToUpper(args[0])))
	case "style":
		if len(args) == 0 {
			return errors.New("usage: style <play style>")
		}
		style, err := alertcfg.ParsePlayStyle(args[0])
		if err != nil {
			return err
		}
		return c.sess.SetPlayStyle(ctx, style)
	case "watch":
		return c.watch(ctx, args)
	case "reset":
		return c.sess.Reset(ctx)
	case "save":
		return c.sess.Save(ctx)
	case "quit", "exit":
		return ErrQuit
	default:
		return fmt.Errorf("unknown command %q (try help)", cmd)
	}
	return nil
}

// buy accepts a numeric id or a multi-word name followed by the price.
func (c *Console) buy(ctx context.Context, args []string) error {
	priceAt := -1
	for i := 1; i < len(args); i++ {
		if _, err := decimal.NewFromString(args[i]); err == nil {
			priceAt = i
			break
		}
	}
	if priceAt < 0 {
		return errors.New("usage: buy <id|name> <price> [owner]")
	}
	price, _ := decimal.NewFromString(args[priceAt])
	return recordPurchase(ctx, c.sess, c.out, strings.Join(args[:priceAt], " "), price, strings.Join(args[priceAt+1:], " "))
}

// recordPurchase resolves candidate as an id, or as a name when it is not
// numeric, and prints the outcome.
func recordPurchase(ctx context.Context, sess *service.Session, out io.Writer, candidate string, price decimal.Decimal, owner string) error {
	var (
		res service.PurchaseResult
		err error
	)
	if id, convErr := strconv.Atoi(candidate); convErr == nil {
		res, err = sess.Purchase(ctx, id, price, owner)
	} else {
		res, err = sess.PurchaseByName(ctx, candidate, price, owner)
	}
	if err != nil {
		return err
	}

	evt := res.Event
	fmt.Fprintf(out, "#%d %s (%s) to %s for %s, expected %s\n",
		evt.Seq, evt.Candidate.Name, evt.Candidate.Position, evt.Owner, evt.Price, evt.Expected)
	if res.OverCapacity {
		fmt.Fprintf(out, "warning: %s slots exceeded\n", evt.Candidate.Position)
	}
	printAlerts(out, res.Alerts)
	return nil
}

func (c *Console) suggest(id int) error {
	calc, err := c.sess.SuggestedPrice(id)
	if err != nil {
		return err
	}
	cand, _ := c.sess.Candidate(id)
	fmt.Fprintf(c.out, "%s (%s): suggested %s\n", cand.Name, cand.Position, calc.Suggested)
	if calc.Reason != "" {
		fmt.Fprintf(c.out, "  %s\n", calc.Reason)
		return nil
	}
	fmt.Fprintf(c.out, "  budget per slot %.1f x convenience %.2f = %.1f\n", calc.AvgBudgetPerSlot, calc.ConvenienceFactor, calc.BasePrice)
	for _, f := range calc.Factors {
		fmt.Fprintf(c.out, "  %-18s x%.2f\n", f.Name, f.Multiplier)
	}
	fmt.Fprintf(c.out, "  adjusted %.1f, ceiling %.1f\n", calc.AdjustedPrice, calc.Ceiling)
	return nil
}

func (c *Console) available(args []string) error {
	var pos catalog.Position
	limit := 10
	for _, arg := range args {
		if n, err := strconv.Atoi(arg); err == nil {
			limit = n
			continue
		}
		p, ok := catalog.ParsePosition(arg)
		if !ok {
			return fmt.Errorf("unknown position %q", arg)
		}
		pos = p
	}

	cands := c.sess.Available(pos)
	if len(cands) > limit {
		cands = cands[:limit]
	}
	w := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tName\tPos\tTeam\tConvenience\tSuggested")
	for _, cand := range cands {
		calc, err := c.sess.SuggestedPrice(cand.ID)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%.1f\t%s\n", cand.ID, cand.Name, cand.Position, cand.Team, cand.ConvenienceScore, calc.Suggested)
	}
	return w.Flush()
}

func (c *Console) watch(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: watch <new|ls|rm> ...")
	}
	switch args[0] {
	case "ls":
		for _, l := range c.sess.WatchLists() {
			fmt.Fprintf(c.out, "%s  %s  priority %d  %d candidates\n", l.ID, l.Name, l.Priority, len(l.CandidateIDs))
		}
	case "rm":
		if len(args) < 2 {
			return errors.New("usage: watch rm <list-id>")
		}
		return c.sess.RemoveWatchList(ctx, args[1])
	case "new":
		if len(args) < 3 {
			return errors.New("usage: watch new <name> <id>...")
		}
		ids := make([]int, 0, len(args)-2)
		for _, raw := range args[2:] {
			id, err := strconv.Atoi(raw)
			if err != nil {
				return fmt.Errorf("invalid candidate id %q", raw)
			}
			ids = append(ids, id)
		}
		l := c.sess.AddWatchList(ctx, args[1], "", 5, ids...)
		fmt.Fprintf(c.out, "watch list %s created\n", l.ID)
	default:
		return fmt.Errorf("unknown watch command %q", args[0])
	}
	return nil
}

func intArg(args []string, i int, name string) (int, error) {
	if len(args) <= i {
		return 0, fmt.Errorf("missing %s", name)
	}
	v, err := strconv.Atoi(args[i])
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", name, args[i])
	}
	return v, nil
}
