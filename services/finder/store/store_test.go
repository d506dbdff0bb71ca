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
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/threeones/services/finder/catalogue"
	"github.com/AleutianAI/threeones/services/finder/position"
	"github.com/AleutianAI/threeones/services/finder/table"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(InMemoryConfig())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func buildTable(t *testing.T, n int) *table.Table {
	t.Helper()
	tbl, _, err := table.Build(context.Background(), n)
	require.NoError(t, err)
	return tbl
}

func rowsOf(tbl *table.Table) map[position.Position]table.Entry {
	rows := make(map[position.Position]table.Entry, tbl.Len())
	for p, e := range tbl.Each {
		rows[p] = e
	}
	return rows
}

func TestStore_SaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	for _, n := range []int{3, 4, 16} {
		want := buildTable(t, n)
		meta, err := s.SaveTable(ctx, want)
		require.NoError(t, err)
		assert.Equal(t, n, meta.N)
		assert.Equal(t, want.Len(), meta.Entries)
		assert.Equal(t, want.Start().Value, meta.StartValue)

		got, gotMeta, err := s.LoadTable(ctx, n)
		require.NoError(t, err)
		assert.Equal(t, meta.Entries, gotMeta.Entries)
		assert.Equal(t, rowsOf(want), rowsOf(got))
		assert.NoError(t, got.Validate(nil))
	}
}

func TestStore_LoadMissing(t *testing.T) {
	s := openTestStore(t)
	_, _, err := s.LoadTable(context.Background(), 10)
	assert.True(t, errors.Is(err, ErrNotFound), "got %v", err)
}

func TestStore_SaveReplaces(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	tbl := buildTable(t, 8)

	_, err := s.SaveTable(ctx, tbl)
	require.NoError(t, err)
	_, err = s.SaveTable(ctx, tbl)
	require.NoError(t, err)

	_, meta, err := s.LoadTable(ctx, 8)
	require.NoError(t, err)
	assert.Equal(t, tbl.Len(), meta.Entries)
}

func TestStore_ListAndDelete(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	for _, n := range []int{12, 4, 7} {
		_, err := s.SaveTable(ctx, buildTable(t, n))
		require.NoError(t, err)
	}

	metas, err := s.ListTables(ctx)
	require.NoError(t, err)
	require.Len(t, metas, 3)
	assert.Equal(t, []int{4, 7, 12}, []int{metas[0].N, metas[1].N, metas[2].N})

	require.NoError(t, s.DeleteTable(ctx, 7))
	_, _, err = s.LoadTable(ctx, 7)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.True(t, errors.Is(s.DeleteTable(ctx, 7), ErrNotFound))

	metas, err = s.ListTables(ctx)
	require.NoError(t, err)
	assert.Len(t, metas, 2)
}

func TestStore_MissingRowIsCorrupt(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	tbl := buildTable(t, 6)
	_, err := s.SaveTable(ctx, tbl)
	require.NoError(t, err)

	// Drop a terminal row; metadata still counts it.
	var p position.Position
	for pos, e := range tbl.Each {
		if e.Terminal() {
			p = pos
			break
		}
	}
	require.Equal(t, 6, p.Total())
	require.NoError(t, s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(entryKey(6, p.Signature()))
	}))

	_, _, err = s.LoadTable(ctx, 6)
	assert.True(t, errors.Is(err, ErrCorrupt), "got %v", err)
}

func TestStore_BadEntryIsCorrupt(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	_, err := s.SaveTable(ctx, buildTable(t, 4))
	require.NoError(t, err)

	start := position.Start(4)
	require.NoError(t, s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(entryKey(4, start.Signature()), []byte{0, 1})
	}))

	_, _, err = s.LoadTable(ctx, 4)
	assert.True(t, errors.Is(err, ErrCorrupt), "got %v", err)
}

func TestStore_CancelledContext(t *testing.T) {
	s := openTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.SaveTable(ctx, buildTable(t, 5))
	assert.ErrorIs(t, err, context.Canceled)
	_, _, err = s.LoadTable(ctx, 5)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStore_Persistent(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	tbl := buildTable(t, 9)

	s, err := Open(DefaultConfig(dir))
	require.NoError(t, err)
	_, err = s.SaveTable(ctx, tbl)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(DefaultConfig(dir))
	require.NoError(t, err)
	defer s.Close()

	got, _, err := s.LoadTable(ctx, 9)
	require.NoError(t, err)
	assert.Equal(t, rowsOf(tbl), rowsOf(got))
}

func TestOpen_RequiresPath(t *testing.T) {
	_, err := Open(Config{})
	assert.Error(t, err)
}

func TestEntryCodec(t *testing.T) {
	cases := []table.Entry{
		{Value: 0, Witness: position.Delta{U1: 1, U3: 2}},
		{Value: 0, Witness: position.Delta{U2: 2}},
		{Value: 147, Comparison: catalogue.ID(catalogue.Len() - 1)},
	}
	var buf [entrySize]byte
	for _, want := range cases {
		encodeEntry(buf[:], want)
		got, err := decodeEntry(buf[:])
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	encodeEntry(buf[:], table.Entry{Value: 3})
	buf[2] = byte(catalogue.Len())
	_, err := decodeEntry(buf[:])
	assert.True(t, errors.Is(err, ErrCorrupt))
}

// bufferObject collects one uploaded object.
type bufferObject struct {
	bytes.Buffer
	closed bool
}

func (b *bufferObject) Close() error {
	b.closed = true
	return nil
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }
func (failingWriter) Close() error              { return nil }

func TestPublisher_Publish(t *testing.T) {
	objects := map[string]*bufferObject{}
	p := NewPublisher("tables-bucket", "dumps", func(_ context.Context, name string) io.WriteCloser {
		obj := &bufferObject{}
		objects[name] = obj
		return obj
	}, nil)

	tbl := buildTable(t, 5)
	url, err := p.Publish(context.Background(), tbl)
	require.NoError(t, err)
	assert.Equal(t, "gs://tables-bucket/dumps/threeones-n0005.txt", url)

	obj, ok := objects["dumps/threeones-n0005.txt"]
	require.True(t, ok)
	assert.True(t, obj.closed)
	assert.True(t, strings.HasPrefix(obj.String(), "# threeones table n=5"))

	parsed, err := table.ReadText(&obj.Buffer)
	require.NoError(t, err)
	assert.Equal(t, rowsOf(tbl), rowsOf(parsed))
	assert.NoError(t, p.Close())
}

func TestPublisher_WriteFailure(t *testing.T) {
	p := NewPublisher("b", "", func(context.Context, string) io.WriteCloser {
		return failingWriter{}
	}, nil)
	_, err := p.Publish(context.Background(), buildTable(t, 4))
	assert.ErrorContains(t, err, "disk full")
}

func TestNewGCSPublisher_Validation(t *testing.T) {
	ctx := context.Background()
	_, err := NewGCSPublisher(ctx, "", "", "", nil)
	assert.ErrorIs(t, err, ErrNoBucket)

	_, err = NewGCSPublisher(ctx, "bucket", "", "/nonexistent/key.json", nil)
	assert.ErrorContains(t, err, "service account key not found")
}
