// Badger-backed guard. Badger entries carry a native TTL, so expiry needs no
// sweeper of its own, and its transactions give the atomic add-if-absent the
// replay-protection invariant requires.

package nonce

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// BadgerGuard stores seen nonces in an embedded Badger database, so recorded
// nonces survive a server restart within the replay window. Badger takes an
// exclusive lock on its directory at open: the store belongs to exactly one
// server process, and a second process pointed at the same directory fails at
// startup rather than silently admitting replays. Deployments running several
// server processes must supply a Guard backed by a genuinely shared store.
type BadgerGuard struct {
	db  *badger.DB
	ttl time.Duration
}

// NewBadgerGuard opens (or creates) the Badger store at path. An empty path
// opens an in-memory store, used by tests.
func NewBadgerGuard(path string, ttl time.Duration) (*BadgerGuard, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	opts := badger.DefaultOptions(path).WithLoggingLevel(badger.ERROR)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	slog.Debug("NewBadgerGuard: opening nonce store", "in_memory", path == "", "ttl", ttl)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open nonce store: %w", err)
	}
	return &BadgerGuard{db: db, ttl: ttl}, nil
}

// CheckAndSet implements Guard. The get-then-set runs in one Update
// transaction; if a concurrent transaction wrote the same nonce first, the
// commit fails with ErrConflict, which means the nonce was seen.
func (g *BadgerGuard) CheckAndSet(keyID, nonce string) (bool, error) {
	key := []byte(keyID + ":" + nonce)
	seen := false
	err := g.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		if err == nil {
			seen = true
			return nil
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		entry := badger.NewEntry(key, []byte{1}).WithTTL(g.ttl)
		return txn.SetEntry(entry)
	})
	if errors.Is(err, badger.ErrConflict) {
		slog.Debug("BadgerGuard.CheckAndSet: conflicting write, nonce treated as seen", "key_id", keyID)
		return true, nil
	}
	if err != nil {
		slog.Error("BadgerGuard.CheckAndSet failed", "error", err, "key_id", keyID)
		return false, fmt.Errorf("nonce check-and-set failed: %w", err)
	}
	return seen, nil
}

// RunGC triggers one value-log garbage collection cycle. The server calls
// this periodically; ErrNoRewrite simply means there was nothing to collect.
func (g *BadgerGuard) RunGC() {
	if err := g.db.RunValueLogGC(0.5); err != nil && !errors.Is(err, badger.ErrNoRewrite) {
		slog.Warn("BadgerGuard.RunGC failed", "error", err)
	}
}

// Close implements Guard.
func (g *BadgerGuard) Close() error {
	return g.db.Close()
}
