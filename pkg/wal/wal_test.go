package wal

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type record struct {
	Seq    uint64 `json:"seq"`
	Amount string `json:"amount"`
}

func readRecords(t *testing.T, w *WAL) []record {
	t.Helper()
	var out []record
	require.NoError(t, w.ReadAll(func(raw []byte) error {
		var r record
		if err := json.Unmarshal(raw, &r); err != nil {
			return err
		}
		out = append(out, r)
		return nil
	}))
	return out
}

func TestWAL_WriteFlushReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wal.log")

	w, err := NewWAL(path)
	require.NoError(t, err)
	require.NoError(t, w.Write(record{Seq: 1, Amount: "500"}))
	require.NoError(t, w.Write(record{Seq: 2, Amount: "300"}))
	require.NoError(t, w.Flush())
	require.NoError(t, w.Close())

	w, err = NewWAL(path)
	require.NoError(t, err)
	defer w.Close()

	assert.Equal(t, []record{{1, "500"}, {2, "300"}}, readRecords(t, w))

	// 重新開啟後追加在尾端
	require.NoError(t, w.Write(record{Seq: 3, Amount: "1"}))
	require.NoError(t, w.Flush())
	assert.Len(t, readRecords(t, w), 3)
}

func TestWAL_ReadAllSeesBufferedWrites(t *testing.T) {
	w, err := NewWAL(filepath.Join(t.TempDir(), "wal.log"))
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, w.Write(record{Seq: 1}))
	assert.Len(t, readRecords(t, w), 1)
}

func TestWAL_CallbackError(t *testing.T) {
	w, err := NewWAL(filepath.Join(t.TempDir(), "wal.log"))
	require.NoError(t, err)
	defer w.Close()
	require.NoError(t, w.Write(record{Seq: 1}))

	stop := errors.New("stop")
	assert.ErrorIs(t, w.ReadAll(func([]byte) error { return stop }), stop)
}

func TestWAL_CorruptedTail(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wal.log")
	require.NoError(t, os.WriteFile(path, []byte("{\"seq\":1}\n{\"seq\":"), FileModePrivate))

	w, err := NewWAL(path)
	require.NoError(t, err)
	defer w.Close()

	assert.Error(t, w.ReadAll(func([]byte) error { return nil }))
}

func TestWAL_Closed(t *testing.T) {
	w, err := NewWAL(filepath.Join(t.TempDir(), "wal.log"))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())

	assert.ErrorIs(t, w.Write(record{}), ErrClosed)
	assert.ErrorIs(t, w.Flush(), ErrClosed)
	assert.ErrorIs(t, w.ReadAll(func([]byte) error { return nil }), ErrClosed)
}

// syncFailure 模擬 fsync 失敗的檔案
type syncFailure struct {
	*os.File
}

func (syncFailure) Sync() error {
	return errors.New("input/output error")
}

func TestWAL_FailedFlushTruncatesAndRefusesWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wal.log")
	w, err := NewWAL(path)
	require.NoError(t, err)
	require.NoError(t, w.Write(record{Seq: 1, Amount: "500"}))
	require.NoError(t, w.Flush())

	file := w.file.(*os.File)
	w.file = syncFailure{File: file}
	w.writer.Reset(w.file)

	require.NoError(t, w.Write(record{Seq: 2, Amount: "300"}))
	err = w.Flush()
	require.ErrorIs(t, err, ErrBroken)

	// 寫入已被拒絕
	assert.ErrorIs(t, w.Write(record{Seq: 3}), ErrBroken)
	assert.ErrorIs(t, w.Flush(), ErrBroken)
	require.NoError(t, w.Close())

	// 失敗的那筆不會在重啟時被重播
	w, err = NewWAL(path)
	require.NoError(t, err)
	defer w.Close()
	assert.Equal(t, []record{{1, "500"}}, readRecords(t, w))

	require.NoError(t, w.Write(record{Seq: 2, Amount: "300"}))
	require.NoError(t, w.Flush())
	assert.Len(t, readRecords(t, w), 2)
}
