// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package store

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/AleutianAI/threeones/services/finder/catalogue"
	"github.com/AleutianAI/threeones/services/finder/position"
	"github.com/AleutianAI/threeones/services/finder/table"
)

var (
	// ErrNotFound is returned when no table is stored for a size.
	ErrNotFound = errors.New("table not found")

	// ErrCorrupt is returned when stored rows cannot be decoded or do not
	// match their metadata.
	ErrCorrupt = errors.New("stored table is corrupt")
)

// Key layout:
//
//	meta/<n>            JSON Meta
//	table/<n>/<sig>     encoded Entry, sig as 8 big-endian bytes
//
// n is zero padded to four digits so prefix scans return sizes in order.
const (
	metaPrefix  = "meta/"
	tablePrefix = "table/"
	entrySize   = 9
)

func metaKey(n int) []byte {
	return fmt.Appendf(nil, "%s%04d", metaPrefix, n)
}

func entryPrefix(n int) []byte {
	return fmt.Appendf(nil, "%s%04d/", tablePrefix, n)
}

func entryKey(n int, sig uint64) []byte {
	return binary.BigEndian.AppendUint64(entryPrefix(n), sig)
}

// Meta describes one stored table.
type Meta struct {
	N          int       `json:"n"`
	Entries    int       `json:"entries"`
	StartValue int       `json:"start_value"`
	SavedAt    time.Time `json:"saved_at"`
}

// Store is a Badger-backed table repository.
//
// Thread Safety: Safe for concurrent use.
type Store struct {
	db     *badger.DB
	gc     *gcRunner
	logger *slog.Logger
}

// Open opens the database described by cfg and starts value log GC when
// configured.
func Open(cfg Config) (*Store, error) {
	db, err := openDB(cfg)
	if err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &Store{db: db, logger: logger}

	if cfg.GCInterval > 0 && !cfg.InMemory {
		s.gc, err = startGC(db, cfg.GCInterval, cfg.GCDiscardRatio, cfg.Logger)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("create GC runner: %w", err)
		}
	}
	return s, nil
}

// Close stops GC and closes the database.
func (s *Store) Close() error {
	if s.gc != nil {
		s.gc.stop()
	}
	return s.db.Close()
}

// SaveTable replaces whatever is stored for t.N() with t.
//
// Rows go through a WriteBatch since large tables exceed a single
// transaction. The metadata key is written last, so a partially saved
// table is never visible to LoadTable.
func (s *Store) SaveTable(ctx context.Context, t *table.Table) (Meta, error) {
	n := t.N()
	if err := s.DeleteTable(ctx, n); err != nil && !errors.Is(err, ErrNotFound) {
		return Meta{}, err
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()

	var buf [entrySize]byte
	var err error
	for p, e := range t.Each {
		if err = ctx.Err(); err != nil {
			break
		}
		encodeEntry(buf[:], e)
		// The batch keeps references to key and value until Flush.
		if err = wb.Set(entryKey(n, p.Signature()), append([]byte(nil), buf[:]...)); err != nil {
			break
		}
	}
	if err != nil {
		return Meta{}, fmt.Errorf("write table %d: %w", n, err)
	}
	if err := wb.Flush(); err != nil {
		return Meta{}, fmt.Errorf("flush table %d: %w", n, err)
	}

	meta := Meta{
		N:          n,
		Entries:    t.Len(),
		StartValue: t.Start().Value,
		SavedAt:    time.Now().UTC(),
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		return Meta{}, err
	}
	err = s.withTxn(ctx, func(txn *badger.Txn) error {
		return txn.Set(metaKey(n), raw)
	})
	if err != nil {
		return Meta{}, fmt.Errorf("write table %d metadata: %w", n, err)
	}

	s.logger.Info("table saved", slog.Int("n", n), slog.Int("entries", meta.Entries))
	return meta, nil
}

// LoadTable reads the table stored for n.
func (s *Store) LoadTable(ctx context.Context, n int) (*table.Table, Meta, error) {
	var meta Meta
	rows := make(map[position.Position]table.Entry)

	err := s.withReadTxn(ctx, func(txn *badger.Txn) error {
		var err error
		if meta, err = readMeta(txn, n); err != nil {
			return err
		}

		opts := badger.DefaultIteratorOptions
		opts.Prefix = entryPrefix(n)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			key := item.Key()
			if len(key) != len(opts.Prefix)+8 {
				return fmt.Errorf("%w: key %q", ErrCorrupt, key)
			}
			p := position.DecodeSignature(binary.BigEndian.Uint64(key[len(opts.Prefix):]))
			err := item.Value(func(val []byte) error {
				e, err := decodeEntry(val)
				if err != nil {
					return fmt.Errorf("position %s: %w", p, err)
				}
				rows[p] = e
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, Meta{}, err
	}
	if len(rows) != meta.Entries {
		return nil, Meta{}, fmt.Errorf("%w: %d rows stored for n=%d, metadata says %d", ErrCorrupt, len(rows), n, meta.Entries)
	}

	t, err := table.FromEntries(n, rows)
	if err != nil {
		return nil, Meta{}, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	return t, meta, nil
}

// DeleteTable removes the table stored for n.
func (s *Store) DeleteTable(ctx context.Context, n int) error {
	err := s.withTxn(ctx, func(txn *badger.Txn) error {
		if _, err := readMeta(txn, n); err != nil {
			return err
		}
		return txn.Delete(metaKey(n))
	})
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	// Rows may be left behind by an interrupted save even without metadata.
	if dropErr := s.db.DropPrefix(entryPrefix(n)); dropErr != nil {
		return fmt.Errorf("drop table %d rows: %w", n, dropErr)
	}
	return err
}

// ListTables returns metadata for every stored table, ordered by size.
func (s *Store) ListTables(ctx context.Context) ([]Meta, error) {
	var metas []Meta
	err := s.withReadTxn(ctx, func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(metaPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var m Meta
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &m)
			})
			if err != nil {
				return fmt.Errorf("%w: metadata %q: %w", ErrCorrupt, it.Item().Key(), err)
			}
			metas = append(metas, m)
		}
		return nil
	})
	return metas, err
}

func readMeta(txn *badger.Txn, n int) (Meta, error) {
	item, err := txn.Get(metaKey(n))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return Meta{}, fmt.Errorf("%w: n=%d", ErrNotFound, n)
	}
	if err != nil {
		return Meta{}, err
	}
	var m Meta
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &m)
	})
	if err != nil {
		return Meta{}, fmt.Errorf("%w: metadata for n=%d: %w", ErrCorrupt, n, err)
	}
	return m, nil
}

// encodeEntry writes e as value(2) comparison(1) witness u1,u2,u3 (2 each).
func encodeEntry(buf []byte, e table.Entry) {
	binary.BigEndian.PutUint16(buf[0:], uint16(e.Value))
	buf[2] = byte(e.Comparison)
	binary.BigEndian.PutUint16(buf[3:], uint16(e.Witness.U1))
	binary.BigEndian.PutUint16(buf[5:], uint16(e.Witness.U2))
	binary.BigEndian.PutUint16(buf[7:], uint16(e.Witness.U3))
}

func decodeEntry(buf []byte) (table.Entry, error) {
	if len(buf) != entrySize {
		return table.Entry{}, fmt.Errorf("%w: entry of %d bytes", ErrCorrupt, len(buf))
	}
	e := table.Entry{
		Value:      int(binary.BigEndian.Uint16(buf[0:])),
		Comparison: catalogue.ID(buf[2]),
	}
	if e.Terminal() {
		e.Witness = position.Delta{
			U1: int(binary.BigEndian.Uint16(buf[3:])),
			U2: int(binary.BigEndian.Uint16(buf[5:])),
			U3: int(binary.BigEndian.Uint16(buf[7:])),
		}
	} else if int(e.Comparison) >= catalogue.Len() {
		return table.Entry{}, fmt.Errorf("%w: comparison id %d", ErrCorrupt, buf[2])
	}
	return e, nil
}
