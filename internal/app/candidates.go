package app

import (
	"context"
	"errors"
	"io"
	"os"
	"strconv"

	"auction-advisor/internal/service"
	"auction-advisor/internal/storage"
)

// CandidatesOptions configure the candidates listing.
type CandidatesOptions struct {
	SessionID string
	Position  string
	Limit     int
	Out       io.Writer
}

// Candidates lists unsold candidates with their suggested price. A stored
// session is used when one exists, so prices reflect the auction so far.
func (a *App) Candidates(ctx context.Context, opts CandidatesOptions) error {
	if opts.Out == nil {
		opts.Out = os.Stdout
	}

	var sess *service.Session
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store != nil {
		defer closeStore()
		sess, _, err = a.loadReadOnly(ctx, store, opts.SessionID)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return err
		}
	}
	if sess == nil {
		if sess, err = a.openSession(ctx, nil, nil, SessionOptions{}); err != nil {
			return err
		}
	}

	var args []string
	if opts.Position != "" {
		args = append(args, opts.Position)
	}
	if opts.Limit > 0 {
		args = append(args, strconv.Itoa(opts.Limit))
	}
	return NewConsole(sess, opts.Out).available(args)
}
