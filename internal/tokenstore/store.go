// Slackiveroo - Order Status Relay for Slack
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/slackiveroo

// Package tokenstore persists Slack workspace installations in BadgerDB.
//
// Each successful "Add to Slack" OAuth exchange stores one Installation,
// keyed by team id. The Slack client looks the bot token up before every
// post to that team.
package tokenstore

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/goccy/go-json"

	"github.com/tomtom215/slackiveroo/internal/config"
	"github.com/tomtom215/slackiveroo/internal/logging"
)

const keyPrefix = "team:"

var (
	// ErrTokenNotFound is returned when a team never installed the app.
	ErrTokenNotFound = errors.New("no token stored for team")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("token store closed")
)

// Installation is one workspace that installed the app.
type Installation struct {
	TeamID      string    `json:"team_id"`
	TeamName    string    `json:"team_name,omitempty"`
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type,omitempty"`
	Scope       string    `json:"scope,omitempty"`
	BotUserID   string    `json:"bot_user_id,omitempty"`
	InstalledAt time.Time `json:"installed_at"`
}

// Store is a BadgerDB-backed installation store.
type Store struct {
	db     *badger.DB
	closed atomic.Bool
}

// Open opens the store described by cfg.
func Open(cfg config.StoreConfig) (*Store, error) {
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.Path == "" {
			return nil, errors.New("token store path is required")
		}
		opts = badger.DefaultOptions(cfg.Path)
		opts.SyncWrites = true
	}
	opts.Compression = options.Snappy

	// Reduce logging verbosity
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open BadgerDB: %w", err)
	}

	logging.Info().
		Str("path", cfg.Path).
		Bool("in_memory", cfg.InMemory).
		Msg("Token store opened")
	return &Store{db: db}, nil
}

// Put stores inst, replacing any earlier installation for the same team.
func (s *Store) Put(_ context.Context, inst Installation) error {
	if s.closed.Load() {
		return ErrClosed
	}
	if inst.TeamID == "" || inst.AccessToken == "" {
		return errors.New("installation needs a team id and an access token")
	}
	if inst.InstalledAt.IsZero() {
		inst.InstalledAt = time.Now().UTC()
	}

	data, err := json.Marshal(inst)
	if err != nil {
		return fmt.Errorf("marshal installation: %w", err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(keyPrefix+inst.TeamID), data)
	})
	if err != nil {
		return fmt.Errorf("store installation: %w", err)
	}
	return nil
}

// Get returns the installation for teamID.
func (s *Store) Get(_ context.Context, teamID string) (Installation, error) {
	if s.closed.Load() {
		return Installation{}, ErrClosed
	}

	var inst Installation
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyPrefix + teamID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrTokenNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &inst)
		})
	})
	if err != nil {
		if errors.Is(err, ErrTokenNotFound) {
			return Installation{}, fmt.Errorf("%w: %s", ErrTokenNotFound, teamID)
		}
		return Installation{}, fmt.Errorf("read installation: %w", err)
	}
	return inst, nil
}

// Token returns the bot token for teamID.
func (s *Store) Token(ctx context.Context, teamID string) (string, error) {
	inst, err := s.Get(ctx, teamID)
	if err != nil {
		return "", err
	}
	return inst.AccessToken, nil
}

// Delete forgets teamID. Deleting an unknown team is not an error.
func (s *Store) Delete(_ context.Context, teamID string) error {
	if s.closed.Load() {
		return ErrClosed
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(keyPrefix + teamID))
	})
}

// Count returns the number of installations.
func (s *Store) Count() (int, error) {
	if s.closed.Load() {
		return 0, ErrClosed
	}

	n := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(keyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			n++
		}
		return nil
	})
	return n, err
}

// RunGC triggers BadgerDB value log garbage collection.
func (s *Store) RunGC() error {
	if s.closed.Load() {
		return ErrClosed
	}
	for {
		err := s.db.RunValueLogGC(0.5)
		if errors.Is(err, badger.ErrNoRewrite) || errors.Is(err, badger.ErrGCInMemoryMode) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("run GC: %w", err)
		}
	}
}

// Close flushes and closes the database. It is safe to call twice.
func (s *Store) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close BadgerDB: %w", err)
	}
	logging.Info().Msg("Token store closed")
	return nil
}
