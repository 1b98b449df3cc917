// Rosterline - Fantasy Roster Read-Through Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rosterline

package services

import (
	"context"
	"fmt"

	"github.com/thejerf/suture/v4"

	"github.com/tomtom215/rosterline/internal/events"
	"github.com/tomtom215/rosterline/internal/logging"
)

// RelayService consumes the attempt stream and turns each record into
// an operator-facing log line. The trail is diagnostic only; dropping
// it never affects request handling.
type RelayService struct {
	bus *events.Bus
}

// NewRelayService creates the relay over the shared event bus.
func NewRelayService(bus *events.Bus) *RelayService {
	return &RelayService{bus: bus}
}

// Serve implements suture.Service.
func (s *RelayService) Serve(ctx context.Context) error {
	msgs, err := s.bus.Subscribe(ctx, events.TopicFetchAttempts)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-msgs:
			if !ok {
				if err := ctx.Err(); err != nil {
					return err
				}
				// Bus closed for good; a restart would just spin.
				return fmt.Errorf("attempt bus closed: %w", suture.ErrDoNotRestart)
			}

			attempt, derr := events.DecodeAttempt(msg)
			if derr != nil {
				logging.Error().Err(derr).Msg("Dropped undecodable attempt event")
				msg.Ack()
				continue
			}

			evt := logging.Info()
			if !attempt.OK {
				evt = logging.Warn()
			}
			evt.
				Str("variant", attempt.Variant).
				Str("path", attempt.Path).
				Int("status", attempt.Status).
				Dur("duration", attempt.Duration).
				Str("request_id", msg.Metadata.Get("request_id")).
				Msg("Upstream fetch attempt")
			msg.Ack()
		}
	}
}

// String identifies the service in supervision logs.
func (s *RelayService) String() string {
	return "attempt-relay"
}
