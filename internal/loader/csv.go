// Package loader turns tabular candidate sources into catalog candidates.
package loader

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"auction-advisor/internal/catalog"
)

// ErrMissingName marks rows without a candidate name.
var ErrMissingName = errors.New("loader: row has no name")

// RowError reports a rejected row.
type RowError struct {
	Line int
	Err  error
}

func (e RowError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e RowError) Unwrap() error { return e.Err }

// Result is the output of one load.
type Result struct {
	Candidates []catalog.Candidate
	// Rejected lists rows that were dropped.
	Rejected []RowError
	// Fallbacks counts rows whose position was not recognised and was
	// replaced by catalog.FallbackPosition.
	Fallbacks int
}

// column aliases, matched case-insensitively after trimming.
var columns = map[string][]string{
	"id":                {"id"},
	"name":              {"name", "nome", "player"},
	"position":          {"position", "role", "ruolo"},
	"team":              {"team", "squadra", "club"},
	"convenience_score": {"convenience_score", "convenienza potenziale", "potential_convenience"},
	"convenience":       {"convenience", "convenienza"},
	"score":             {"score", "punteggio"},
	"quotation":         {"quotation", "quotazione_attuale", "price"},
	"season_average":    {"season_average", "fantamedia anno 2024-2025", "fanta_avg"},
	"previous_average":  {"previous_average", "fantamedia anno 2023-2024"},
	"appearances":       {"appearances", "presenze campionato corrente", "presences"},
	"goals":             {"goals", "gol previsti"},
	"assists":           {"assists", "assist previsti"},
	"xg":                {"xg", "xgfromopenplays"},
	"xa":                {"xa"},
	"composite_index":   {"composite_index", "fantacalciofantaindex", "fantaindex"},
	"deal_score":        {"deal_score", "score_affare"},
	"reliability":       {"reliability", "affidabilita_dati"},
	"yellow_cards":      {"yellow_cards", "yellowcards"},
	"red_cards":         {"red_cards", "redcards"},
	"trend":             {"trend"},
	"injured":           {"injured", "infortunato"},
	"new_signing":       {"new_signing", "nuovo acquisto"},
}

// LoadFile reads candidates from a CSV file.
func LoadFile(path string) (Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return Result{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return ReadCSV(f)
}

// ReadCSV reads a header-mapped CSV stream. Rows without an id column get
// their 1-based row number as ID.
func ReadCSV(r io.Reader) (Result, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return Result{}, nil
		}
		return Result{}, fmt.Errorf("read header: %w", err)
	}
	index := mapHeader(header)
	if _, ok := index["name"]; !ok {
		return Result{}, errors.New("loader: header has no name column")
	}
	if _, ok := index["position"]; !ok {
		return Result{}, errors.New("loader: header has no position column")
	}

	var res Result
	row := 0
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			line := 0
			if errors.As(err, &perr) {
				line = perr.Line
			}
			res.Rejected = append(res.Rejected, RowError{Line: line, Err: err})
			continue
		}
		line, _ := reader.FieldPos(0)
		row++
		get := func(key string) string {
			i, ok := index[key]
			if !ok || i >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[i])
		}

		cand, fallback, err := parseRow(get, row)
		if err != nil {
			res.Rejected = append(res.Rejected, RowError{Line: line, Err: err})
			continue
		}
		if fallback {
			res.Fallbacks++
		}
		res.Candidates = append(res.Candidates, cand)
	}
	return res, nil
}

func mapHeader(header []string) map[string]int {
	index := make(map[string]int, len(columns))
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		for key, aliases := range columns {
			if _, taken := index[key]; taken {
				continue
			}
			for _, alias := range aliases {
				if h == alias {
					index[key] = i
					break
				}
			}
		}
	}
	return index
}

func parseRow(get func(string) string, row int) (catalog.Candidate, bool, error) {
	name := get("name")
	if name == "" {
		return catalog.Candidate{}, false, ErrMissingName
	}
	pos, ok := catalog.ParsePosition(get("position"))

	id := row
	if raw := get("id"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			return catalog.Candidate{}, false, fmt.Errorf("invalid id %q: %w", raw, err)
		}
		id = v
	}

	c := catalog.Candidate{
		ID:               id,
		Name:             name,
		Position:         pos,
		Team:             get("team"),
		ConvenienceScore: parseFloat(get("convenience_score")),
		Convenience:      parseFloat(get("convenience")),
		Score:            parseFloat(get("score")),
		Quotation:        parseFloat(get("quotation")),
		SeasonAverage:    parseFloat(get("season_average")),
		PreviousAverage:  parseFloat(get("previous_average")),
		Appearances:      parseInt(get("appearances")),
		Goals:            parseRange(get("goals")),
		Assists:          parseRange(get("assists")),
		XG:               parseFloat(get("xg")),
		XA:               parseFloat(get("xa")),
		CompositeIndex:   parseFloat(get("composite_index")),
		DealScore:        parseFloat(get("deal_score")),
		Reliability:      parseFloat(get("reliability")),
		YellowCards:      parseInt(get("yellow_cards")),
		RedCards:         parseInt(get("red_cards")),
		Trend:            catalog.ParseTrend(get("trend")),
		Injured:          parseBool(get("injured")),
		NewSigning:       parseBool(get("new_signing")),
		Status:           catalog.StatusAvailable,
	}
	return c, !ok, nil
}

// parseFloat accepts both "." and "," decimal separators; junk reads as 0.
func parseFloat(raw string) float64 {
	if raw == "" {
		return 0
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", "."), 64)
	if err != nil {
		return 0
	}
	return v
}

func parseInt(raw string) int {
	return int(parseFloat(raw))
}

// parseRange reads "min/max" forecasts as their upper bound.
func parseRange(raw string) int {
	if lo, hi, ok := strings.Cut(raw, "/"); ok {
		if v := parseInt(hi); v != 0 {
			return v
		}
		return parseInt(lo)
	}
	return parseInt(raw)
}

func parseBool(raw string) bool {
	switch strings.ToLower(raw) {
	case "true", "1", "yes", "y", "si", "x":
		return true
	default:
		return false
	}
}
