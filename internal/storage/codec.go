package storage

import (
	"encoding/json"
	"fmt"

	"auction-advisor/internal/watchlist"
)

// sessionPayload holds the JSON columns of a session row.
type sessionPayload struct {
	snapshot    []byte
	alertConfig []byte
	watchLists  []byte
}

func encodeSession(rec SessionRecord) (sessionPayload, error) {
	var p sessionPayload
	var err error
	if p.snapshot, err = json.Marshal(rec.Snapshot); err != nil {
		return p, fmt.Errorf("encode snapshot: %w", err)
	}
	if p.alertConfig, err = json.Marshal(rec.AlertConfig); err != nil {
		return p, fmt.Errorf("encode alert config: %w", err)
	}
	lists := rec.WatchLists
	if lists == nil {
		lists = []watchlist.List{}
	}
	if p.watchLists, err = json.Marshal(lists); err != nil {
		return p, fmt.Errorf("encode watch lists: %w", err)
	}
	return p, nil
}

func decodeSession(rec *SessionRecord, p sessionPayload) error {
	if err := json.Unmarshal(p.snapshot, &rec.Snapshot); err != nil {
		return fmt.Errorf("decode snapshot: %w", err)
	}
	if len(p.alertConfig) > 0 {
		if err := json.Unmarshal(p.alertConfig, &rec.AlertConfig); err != nil {
			return fmt.Errorf("decode alert config: %w", err)
		}
	}
	if len(p.watchLists) > 0 {
		if err := json.Unmarshal(p.watchLists, &rec.WatchLists); err != nil {
			return fmt.Errorf("decode watch lists: %w", err)
		}
	}
	return nil
}

func encodeChannels(channels []string) ([]byte, error) {
	if channels == nil {
		channels = []string{}
	}
	return json.Marshal(channels)
}

func decodeChannels(raw []byte) ([]string, error) {
	var channels []string
	if len(raw) == 0 {
		return channels, nil
	}
	if err := json.Unmarshal(raw, &channels); err != nil {
		return nil, fmt.Errorf("decode channels: %w", err)
	}
	return channels, nil
}
