// Rosterline - Fantasy Roster Read-Through Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rosterline

package services

import (
	"context"
	"errors"
	"time"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/tomtom215/rosterline/internal/logging"
)

// BadgerGCService periodically runs value-log garbage collection on
// the credential store. GC errors are non-fatal; ErrNoRewrite just
// means there was nothing to reclaim.
type BadgerGCService struct {
	db       *badger.DB
	interval time.Duration
	gcRatio  float64
}

// NewBadgerGCService creates the GC service. Zero values take
// 10 minutes and a 0.5 rewrite ratio.
func NewBadgerGCService(db *badger.DB, interval time.Duration) *BadgerGCService {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &BadgerGCService{db: db, interval: interval, gcRatio: 0.5}
}

// Serve implements suture.Service.
func (s *BadgerGCService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.runGC(ctx)
		}
	}
}

func (s *BadgerGCService) runGC(ctx context.Context) {
	// Loop until there is nothing left to rewrite.
	for {
		err := s.db.RunValueLogGC(s.gcRatio)
		if errors.Is(err, badger.ErrNoRewrite) {
			return
		}
		if err != nil {
			logging.Ctx(ctx).Debug().Err(err).Msg("Badger value log GC skipped")
			return
		}
	}
}

// String identifies the service in supervision logs.
func (s *BadgerGCService) String() string {
	return "badger-gc"
}
