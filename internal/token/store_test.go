// Rosterline - Fantasy Roster Read-Through Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rosterline

package token

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// openTestDB returns an in-memory BadgerDB that closes with the test.
func openTestDB(t *testing.T) *badger.DB {
	t.Helper()

	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	if err != nil {
		t.Fatalf("Failed to open in-memory badger: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("Failed to close badger: %v", err)
		}
	})
	return db
}

func testMasterKey() string {
	return base64.StdEncoding.EncodeToString([]byte("0123456789abcdef0123456789abcdef"))
}

func TestBadgerStore_RoundTrip(t *testing.T) {
	store := NewBadgerStore(openTestDB(t), nil)
	ctx := context.Background()

	want := &Credential{
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		ExpiresAt:    time.Now().Add(time.Hour).Truncate(time.Second),
	}
	if err := store.Put(ctx, "user-1", want); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, err := store.Get(ctx, "user-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.AccessToken != want.AccessToken || got.RefreshToken != want.RefreshToken {
		t.Errorf("Got %+v, want %+v", got, want)
	}
	if !got.ExpiresAt.Equal(want.ExpiresAt) {
		t.Errorf("ExpiresAt = %v, want %v", got.ExpiresAt, want.ExpiresAt)
	}
}

func TestBadgerStore_NotFound(t *testing.T) {
	store := NewBadgerStore(openTestDB(t), nil)

	_, err := store.Get(context.Background(), "missing-user")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestBadgerStore_EncryptedRoundTrip(t *testing.T) {
	enc, err := NewEncryptor(testMasterKey())
	if err != nil {
		t.Fatalf("NewEncryptor failed: %v", err)
	}
	db := openTestDB(t)
	store := NewBadgerStore(db, enc)
	ctx := context.Background()

	cred := &Credential{AccessToken: "secret-access", RefreshToken: "secret-refresh", ExpiresAt: time.Now().Add(time.Hour)}
	if err := store.Put(ctx, "user-1", cred); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, err := store.Get(ctx, "user-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.AccessToken != "secret-access" {
		t.Errorf("Decrypted access token = %q", got.AccessToken)
	}

	// The raw stored bytes must not contain the plaintext token.
	err = db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(credentialKeyPrefix + "user-1"))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			if string(val) == "secret-access" || containsSubstring(val, "secret-access") {
				t.Error("Stored record contains plaintext access token")
			}
			return nil
		})
	})
	if err != nil {
		t.Fatalf("Raw read failed: %v", err)
	}
}

func containsSubstring(haystack []byte, needle string) bool {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if string(haystack[i:i+len(needle)]) == needle {
			return true
		}
	}
	return false
}

func TestBadgerStore_Overwrite(t *testing.T) {
	store := NewBadgerStore(openTestDB(t), nil)
	ctx := context.Background()

	_ = store.Put(ctx, "user-1", &Credential{AccessToken: "old"})
	_ = store.Put(ctx, "user-1", &Credential{AccessToken: "new"})

	got, err := store.Get(ctx, "user-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.AccessToken != "new" {
		t.Errorf("Expected last write to win, got %q", got.AccessToken)
	}
}

func TestBadgerStore_Delete(t *testing.T) {
	store := NewBadgerStore(openTestDB(t), nil)
	ctx := context.Background()

	_ = store.Put(ctx, "user-1", &Credential{AccessToken: "a"})
	if err := store.Delete(ctx, "user-1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := store.Get(ctx, "user-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound after delete, got %v", err)
	}

	// Deleting a missing record is not an error.
	if err := store.Delete(ctx, "user-1"); err != nil {
		t.Errorf("Second delete failed: %v", err)
	}
}

func TestCredential_Valid(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name string
		cred *Credential
		want bool
	}{
		{"nil record", nil, false},
		{"future expiry", &Credential{AccessToken: "a", ExpiresAt: now.Add(time.Minute)}, true},
		{"past expiry", &Credential{AccessToken: "a", ExpiresAt: now.Add(-time.Minute)}, false},
		{"empty token", &Credential{ExpiresAt: now.Add(time.Minute)}, false},
	}

	for _, tt := range tests {
		if got := tt.cred.Valid(now); got != tt.want {
			t.Errorf("%s: Valid() = %v, want %v", tt.name, got, tt.want)
		}
	}
}
