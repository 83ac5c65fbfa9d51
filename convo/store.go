// Package convo persists per-game conversation history so analysis prompts
// and window projections can replay recent context.
package convo

import (
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/gamepal-app/gamepal/internal/types"
)

// Store is a badger-backed message log keyed by game. Messages come back in
// insertion order.
type Store struct {
	db  *badger.DB
	seq atomic.Uint64 // breaks ties within one nanosecond tick
}

// Open opens (or creates) the store at dir.
func Open(dir string) (*Store, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open conversation store: %w", err)
	}
	return &Store{db: db}, nil
}

// Close flushes and closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func messageKey(gameID string, ts int64, seq uint64) []byte {
	return []byte(fmt.Sprintf("msg/%s/%020d-%06d", gameID, ts, seq))
}

func gamePrefix(gameID string) []byte {
	return []byte("msg/" + gameID + "/")
}

// Add appends a message to its game's log. A missing ID or timestamp is
// filled in.
func (s *Store) Add(msg types.ChatMessage) (types.ChatMessage, error) {
	if msg.GameID == "" {
		return msg, fmt.Errorf("message has no game id")
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.Timestamp == 0 {
		msg.Timestamp = time.Now().UnixMilli()
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return msg, fmt.Errorf("marshal message: %w", err)
	}

	key := messageKey(msg.GameID, msg.Timestamp, s.seq.Add(1))
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, data)
	})
	if err != nil {
		return msg, fmt.Errorf("store message: %w", err)
	}
	return msg, nil
}

// Recent returns the last n messages for a game in chronological order.
func (s *Store) Recent(gameID string, n int) ([]types.ChatMessage, error) {
	if n <= 0 {
		return nil, nil
	}

	var out []types.ChatMessage
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = gamePrefix(gameID)
		it := txn.NewIterator(opts)
		defer it.Close()

		// Reverse iteration must seek past the prefix range end.
		seek := append(gamePrefix(gameID), 0xFF)
		for it.Seek(seek); it.Valid() && len(out) < n; it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var msg types.ChatMessage
				if err := json.Unmarshal(val, &msg); err != nil {
					return fmt.Errorf("unmarshal message: %w", err)
				}
				out = append(out, msg)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Newest-first from the reverse scan; flip to chronological.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// Clear deletes all messages for a game.
func (s *Store) Clear(gameID string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = gamePrefix(gameID)
		it := txn.NewIterator(opts)
		defer it.Close()

		var keys [][]byte
		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		for _, key := range keys {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
}
