// Rosterline - Fantasy Roster Read-Through Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rosterline

package events

import (
	"github.com/ThreeDotsLabs/watermill"

	"github.com/tomtom215/rosterline/internal/logging"
)

// loggerAdapter routes watermill's internal logging through the
// application logger. Trace output is suppressed; it is far too
// chatty for a per-request event stream.
type loggerAdapter struct {
	fields watermill.LogFields
}

func newLoggerAdapter() watermill.LoggerAdapter {
	return &loggerAdapter{}
}

func (a *loggerAdapter) Error(msg string, err error, fields watermill.LogFields) {
	evt := logging.Error().Err(err)
	for k, v := range a.fields.Add(fields) {
		evt = evt.Interface(k, v)
	}
	evt.Msg(msg)
}

func (a *loggerAdapter) Info(msg string, fields watermill.LogFields) {
	evt := logging.Debug()
	for k, v := range a.fields.Add(fields) {
		evt = evt.Interface(k, v)
	}
	evt.Msg(msg)
}

func (a *loggerAdapter) Debug(msg string, fields watermill.LogFields) {
	evt := logging.Debug()
	for k, v := range a.fields.Add(fields) {
		evt = evt.Interface(k, v)
	}
	evt.Msg(msg)
}

func (a *loggerAdapter) Trace(_ string, _ watermill.LogFields) {}

func (a *loggerAdapter) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return &loggerAdapter{fields: a.fields.Add(fields)}
}
