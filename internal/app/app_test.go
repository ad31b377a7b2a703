package app

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"auction-advisor/internal/alertcfg"
	"auction-advisor/internal/catalog"
	"auction-advisor/internal/config"
	"auction-advisor/internal/ledger"
	"auction-advisor/internal/service"
	"auction-advisor/internal/storage"
)

const candidatesCSV = `id,name,position,team,convenience_score
1,Mike Maignan,P,Milan,80
2,Yann Sommer,P,Inter,70
11,Alessandro Bastoni,D,Inter,90
12,Federico Dimarco,D,Inter,85
21,Nicolo Barella,C,Inter,88
31,Lautaro Martinez,A,Inter,95
32,Dusan Vlahovic,A,Juventus,75
`

func testSession(t *testing.T) *service.Session {
	t.Helper()
	cands := []catalog.Candidate{
		{ID: 1, Name: "Mike Maignan", Position: catalog.Goalkeeper, ConvenienceScore: 80},
		{ID: 11, Name: "Alessandro Bastoni", Position: catalog.Defender, ConvenienceScore: 90},
		{ID: 21, Name: "Nicolo Barella", Position: catalog.Midfielder, ConvenienceScore: 88},
		{ID: 31, Name: "Lautaro Martinez", Position: catalog.Forward, ConvenienceScore: 95},
	}
	now := time.Date(2025, 8, 20, 21, 0, 0, 0, time.UTC)
	return service.New(service.Options{
		League:      ledger.DefaultConfig(),
		Candidates:  cands,
		AlertConfig: alertcfg.Default(),
		Clock:       func() time.Time { return now },
	}, zerolog.Nop())
}

func testApp(t *testing.T) *App {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "candidates.csv")
	if err := os.WriteFile(path, []byte(candidatesCSV), 0o644); err != nil {
		t.Fatalf("write candidates: %v", err)
	}
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("config.Load: %v", err)
	}
	cfg.Auction.Candidates = []string{path}
	cfg.Export.Dir = filepath.Join(dir, "exports")
	return NewApp(cfg, zerolog.Nop())
}

func TestConsoleBuyByNameAndID(t *testing.T) {
	sess := testSession(t)
	var out bytes.Buffer
	c := NewConsole(sess, &out)
	ctx := context.Background()

	if err := c.Execute(ctx, "buy Lautaro Martinez 60 Team X"); err != nil {
		t.Fatalf("buy by name: %v", err)
	}
	if !strings.Contains(out.String(), "Lautaro Martinez (A) to Team X for 60") {
		t.Fatalf("unexpected output: %q", out.String())
	}
	if err := c.Execute(ctx, "buy 11 25"); err != nil {
		t.Fatalf("buy by id: %v", err)
	}
	if got := sess.State().RemainingBudget; !got.Equal(decimal.NewFromInt(475)) {
		t.Fatalf("remaining %s, want 475", got)
	}

	if err := c.Execute(ctx, "buy 11 10"); !errors.Is(err, ledger.ErrAlreadyOwned) {
		t.Fatalf("expected ErrAlreadyOwned, got %v", err)
	}
	if err := c.Execute(ctx, "buy Nobody"); err == nil {
		t.Fatal("buy without price should fail")
	}
}

func TestConsoleCommands(t *testing.T) {
	sess := testSession(t)
	var out bytes.Buffer
	c := NewConsole(sess, &out)
	ctx := context.Background()

	if err := c.Execute(ctx, "suggest 31"); err != nil {
		t.Fatalf("suggest: %v", err)
	}
	if !strings.Contains(out.String(), "Lautaro Martinez (A): suggested") {
		t.Fatalf("unexpected suggest output: %q", out.String())
	}

	if err := c.Execute(ctx, "select 21"); err != nil {
		t.Fatalf("select: %v", err)
	}
	if sel := sess.State().Selected; sel == nil || sel.ID != 21 {
		t.Fatalf("selection not set: %+v", sel)
	}
	if err := c.Execute(ctx, "phase c"); err != nil {
		t.Fatalf("phase: %v", err)
	}
	if got := sess.State().Phase; got != ledger.Phase(catalog.Midfielder) {
		t.Fatalf("phase %q", got)
	}

	if err := c.Execute(ctx, "style value-hunter"); err != nil {
		t.Fatalf("style: %v", err)
	}
	if sess.AlertConfig().PlayStyle != alertcfg.ValueHunter {
		t.Fatal("play style not applied")
	}

	out.Reset()
	if err := c.Execute(ctx, "watch new strikers 31"); err != nil {
		t.Fatalf("watch new: %v", err)
	}
	if len(sess.WatchLists()) != 1 {
		t.Fatal("watch list not created")
	}

	if err := c.Execute(ctx, "frobnicate"); err == nil {
		t.Fatal("unknown command should fail")
	}
	if err := c.Execute(ctx, "quit"); !errors.Is(err, ErrQuit) {
		t.Fatalf("expected ErrQuit, got %v", err)
	}
}

func TestConsoleServeStopsOnQuit(t *testing.T) {
	sess := testSession(t)
	var out bytes.Buffer
	in := strings.NewReader("buy 1 5 Team Y\nbogus\nquit\nbuy 11 5\n")

	if err := NewConsole(sess, &out).Serve(context.Background(), in); err != nil {
		t.Fatalf("Serve: %v", err)
	}
	if !strings.Contains(out.String(), "error: unknown command") {
		t.Fatalf("command errors should be printed: %q", out.String())
	}
	if len(sess.State().MyTeam) != 0 {
		t.Fatal("commands after quit must not run")
	}
}

func TestReadPurchaseScript(t *testing.T) {
	script := "candidate,price,owner\n# opening bids\n31,60,Team X\nNicolo Barella, 30\n"
	got, err := ReadPurchaseScript(strings.NewReader(script))
	if err != nil {
		t.Fatalf("ReadPurchaseScript: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d purchases", len(got))
	}
	if got[0].Candidate != "31" || got[0].Owner != "Team X" || got[0].Line != 3 {
		t.Fatalf("unexpected first row: %+v", got[0])
	}
	if got[1].Candidate != "Nicolo Barella" || got[1].Owner != "" || !got[1].Price.Equal(decimal.NewFromInt(30)) {
		t.Fatalf("unexpected second row: %+v", got[1])
	}

	if _, err := ReadPurchaseScript(strings.NewReader("31,sixty\n12,abc\n")); err == nil {
		t.Fatal("invalid price after the header should fail")
	}
}

func TestSimulateReplaysScript(t *testing.T) {
	a := testApp(t)
	script := filepath.Join(t.TempDir(), "script.csv")
	body := "candidate,price,owner\nLautaro Martinez,90,Team X\n11,40\n999,5,Team Z\n"
	if err := os.WriteFile(script, []byte(body), 0o644); err != nil {
		t.Fatalf("write script: %v", err)
	}

	var out bytes.Buffer
	err := a.Simulate(context.Background(), SimulateOptions{Script: script, Out: &out})
	if err == nil || !strings.Contains(err.Error(), "1 of 3") {
		t.Fatalf("expected one failed purchase, got %v", err)
	}
	text := out.String()
	for _, want := range []string{"Lautaro Martinez (A) to Team X for 90", "Alessandro Bastoni (D) to me for 40", "line 4:", "final analysis:"} {
		if !strings.Contains(text, want) {
			t.Fatalf("output missing %q:\n%s", want, text)
		}
	}
}

func TestExportWritesPurchaseLog(t *testing.T) {
	a := testApp(t)
	a.Config.Storage.Driver = storage.DriverSQLite
	a.Config.Storage.Path = filepath.Join(t.TempDir(), "sessions.db")
	ctx := context.Background()

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		t.Fatalf("openStore: %v", err)
	}
	sess, err := a.openSession(ctx, store, nil, SessionOptions{})
	if err != nil {
		t.Fatalf("openSession: %v", err)
	}
	for _, line := range []string{"buy 31 90 Team X", "buy 12 30", "buy 21 45 Team Y"} {
		if err := NewConsole(sess, &bytes.Buffer{}).Execute(ctx, line); err != nil {
			t.Fatalf("%s: %v", line, err)
		}
	}
	closeStore()

	csvPath := filepath.Join(t.TempDir(), "out", "purchases.csv")
	if err := a.Export(ctx, ExportOptions{SessionID: sess.ID(), CSVPath: csvPath}); err != nil {
		t.Fatalf("Export: %v", err)
	}

	f, err := os.Open(csvPath)
	if err != nil {
		t.Fatalf("open export: %v", err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	if len(rows) != 4 || rows[0][0] != "seq" {
		t.Fatalf("unexpected rows: %v", rows)
	}
	if rows[1][3] != "Lautaro Martinez" || rows[1][5] != "Team X" || rows[2][5] != "me" {
		t.Fatalf("unexpected purchase rows: %v", rows[1:])
	}
}

func TestDownsamplePurchases(t *testing.T) {
	in := make([]storage.PurchaseRecord, 10)
	for i := range in {
		in[i].Seq = i + 1
	}
	got := downsamplePurchases(in, 4)
	if len(got) != 4 || got[0].Seq != 1 || got[3].Seq != 10 {
		t.Fatalf("unexpected downsample: %+v", got)
	}
	if len(downsamplePurchases(in, 0)) != 10 {
		t.Fatal("zero max keeps every purchase")
	}
}

func TestNewDispatcherChannels(t *testing.T) {
	a := testApp(t)
	if d, err := a.newDispatcher(); err != nil || d != nil {
		t.Fatalf("disabled alerting should yield no dispatcher: %v", err)
	}

	a.Config.Alerting.Enabled = true
	d, err := a.newDispatcher()
	if err != nil {
		t.Fatalf("newDispatcher: %v", err)
	}
	if got := d.Channels(); len(got) != 1 || got[0] != "log" {
		t.Fatalf("channels %v, want [log]", got)
	}

	a.Config.Alerting.Channels = []string{"telegram"}
	if _, err := a.newDispatcher(); err == nil {
		t.Fatal("telegram channel without telegram config should fail")
	}
}

func TestSchedulerFollowsAlertFrequency(t *testing.T) {
	a := testApp(t)
	sess := testSession(t)
	ctx := context.Background()

	opts := a.schedulerOptions(sess)
	if opts.IntervalFunc == nil || opts.Interval != alertcfg.Default().Behavior.Frequency {
		t.Fatalf("default cadence should follow the alert frequency: %+v", opts)
	}

	cfg := sess.AlertConfig()
	cfg.Behavior.Frequency = 42 * time.Second
	if err := sess.SetAlertConfig(ctx, cfg); err != nil {
		t.Fatalf("SetAlertConfig: %v", err)
	}
	if got := opts.IntervalFunc(); got != 42*time.Second {
		t.Fatalf("replaced frequency not visible to the scheduler: %s", got)
	}

	a.Config.Scheduler.Interval = 2 * time.Second
	opts = a.schedulerOptions(sess)
	if opts.IntervalFunc != nil || opts.Interval != 2*time.Second {
		t.Fatalf("explicit scheduler.interval should pin the cadence: %+v", opts)
	}
}

func TestLoadCandidatesKeepsSingleSourceIntact(t *testing.T) {
	a := testApp(t)
	path := filepath.Join(t.TempDir(), "rossi.csv")
	body := "id,name,position,team,convenience_score\n1,Rossi A.,D,Inter,80\n2,Rossi B.,D,Lecce,20\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write candidates: %v", err)
	}
	a.Config.Auction.Candidates = []string{path}

	got, err := a.loadCandidates()
	if err != nil {
		t.Fatalf("loadCandidates: %v", err)
	}
	if len(got) != 2 || got[0].Team != "Inter" || got[1].Team != "Lecce" {
		t.Fatalf("similar names in one file must stay apart: %+v", got)
	}
}
