// Rosterline - Fantasy Roster Read-Through Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rosterline

package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
)

// credentialKeyPrefix namespaces credential records in BadgerDB.
const credentialKeyPrefix = "token:"

// ErrNotFound indicates no credential record exists for the user.
var ErrNotFound = errors.New("credential record not found")

// Credential is one user's upstream credential record. ExpiresAt is
// already safety-buffered: a record that is not yet expired by this
// field is usable for at least the buffer window on any upstream call.
type Credential struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Valid reports whether the access token can still be used without a
// refresh.
func (c *Credential) Valid(now time.Time) bool {
	return c != nil && c.AccessToken != "" && now.Before(c.ExpiresAt)
}

// Store persists credential records by opaque user ID. The gateway only
// needs get/put-by-key semantics; deletion belongs to the external
// disconnect flow and is included for that collaborator's use.
type Store interface {
	Get(ctx context.Context, userID string) (*Credential, error)
	Put(ctx context.Context, userID string, cred *Credential) error
	Delete(ctx context.Context, userID string) error
}

// BadgerStore implements Store on BadgerDB, with optional AES-GCM
// encryption of the stored records.
type BadgerStore struct {
	db  *badger.DB
	enc *Encryptor
}

// NewBadgerStore creates a BadgerDB-backed credential store.
// enc may be nil (records stored unencrypted).
func NewBadgerStore(db *badger.DB, enc *Encryptor) *BadgerStore {
	return &BadgerStore{db: db, enc: enc}
}

// Get retrieves the credential record for a user.
// Returns ErrNotFound if no record exists.
func (s *BadgerStore) Get(_ context.Context, userID string) (*Credential, error) {
	var encoded []byte

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(credentialKeyPrefix + userID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get credential: %w", err)
		}
		return item.Value(func(val []byte) error {
			encoded = append([]byte(nil), val...)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	plaintext, err := s.enc.Decrypt(string(encoded))
	if err != nil {
		return nil, fmt.Errorf("decrypt credential: %w", err)
	}

	var cred Credential
	if err := json.Unmarshal(plaintext, &cred); err != nil {
		return nil, fmt.Errorf("unmarshal credential: %w", err)
	}
	return &cred, nil
}

// Put stores a credential record, replacing any existing one
// (last-writer-wins on concurrent refreshes).
func (s *BadgerStore) Put(_ context.Context, userID string, cred *Credential) error {
	data, err := json.Marshal(cred)
	if err != nil {
		return fmt.Errorf("marshal credential: %w", err)
	}

	encoded, err := s.enc.Encrypt(data)
	if err != nil {
		return fmt.Errorf("encrypt credential: %w", err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(credentialKeyPrefix+userID), []byte(encoded)); err != nil {
			return fmt.Errorf("set credential: %w", err)
		}
		return nil
	})
}

// Delete removes a credential record. Used by the external disconnect
// operation, never by the gateway itself.
func (s *BadgerStore) Delete(_ context.Context, userID string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		err := txn.Delete([]byte(credentialKeyPrefix + userID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		return err
	})
}
