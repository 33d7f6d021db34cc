package wal

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"sync"
)

// 自己定義常用的權限常量
const (
	// rw-r--r-- (擁有者讀寫，其他人唯讀) - 適用於大多數檔案
	FileModeReadOnly fs.FileMode = 0644

	// rw------- (只有擁有者可讀寫) - 適用於私鑰、機密檔
	FileModePrivate fs.FileMode = 0600
)

var (
	// ErrClosed WAL 已關閉
	ErrClosed = errors.New("wal: closed")
	// ErrBroken 刷入硬碟失敗後 WAL 拒絕再寫入
	ErrBroken = errors.New("wal: broken by a failed flush")
)

// walFile WAL 需要的檔案操作，*os.File 即符合
type walFile interface {
	io.ReadWriteSeeker
	io.Closer
	Sync() error
	Truncate(size int64) error
}

// WAL 以 JSON Lines 格式追加寫入的 Write-Ahead Log
//
// Write 只寫進緩衝區，Flush 才會刷入硬碟 (fsync)
// Flush 失敗時截斷回最後一次成功的位置，並拒絕之後所有寫入
type WAL struct {
	mu     sync.Mutex
	file   walFile
	writer *bufio.Writer
	// synced 最後一次成功 Flush 後的檔案大小
	synced int64
	broken error
	closed bool
}

// NewWAL 開啟或建立一個 WAL 檔案
// O_RDWR讀寫模式
// O_APPEND 每次寫入時自動跳到文件末尾
// O_CREATE 如果文件不存在則建立
func NewWAL(path string) (*WAL, error) {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_RDWR, FileModeReadOnly)
	if err != nil {
		return nil, err
	}
	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, err
	}
	return &WAL{
		file:   file,
		writer: bufio.NewWriter(file),
		synced: info.Size(),
	}, nil
}

// Write 寫入一筆資料到緩衝區
func (w *WAL) Write(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}
	if w.broken != nil {
		return w.broken
	}
	return json.NewEncoder(w.writer).Encode(v)
}

// Flush 將緩衝區寫出並強制刷入硬碟 (關鍵！)
//
// 失敗時未刷入的資料視為沒寫過: 截斷檔案並丟棄緩衝區
// 之後的 Write/Flush 一律回傳 ErrBroken，需重開 WAL 才能繼續
func (w *WAL) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}
	return w.flushLocked()
}

func (w *WAL) flushLocked() error {
	if w.broken != nil {
		return w.broken
	}
	pending := int64(w.writer.Buffered())
	err := w.writer.Flush()
	if err == nil {
		err = w.file.Sync()
	}
	if err != nil {
		w.broken = fmt.Errorf("%w: %v", ErrBroken, err)
		w.writer.Reset(w.file)
		if truncErr := w.file.Truncate(w.synced); truncErr != nil {
			return errors.Join(w.broken, fmt.Errorf("wal: truncate to %d: %w", w.synced, truncErr))
		}
		return w.broken
	}
	w.synced += pending
	return nil
}

// Close 刷出剩餘資料後關閉檔案
func (w *WAL) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	if w.broken != nil {
		return w.file.Close()
	}
	flushErr := w.writer.Flush()
	if flushErr == nil {
		flushErr = w.file.Sync()
	}
	return errors.Join(flushErr, w.file.Close())
}

// ReadAll 讀取所有資料
// callback 是一個函式，接收一個 json.RawMessage
// 這樣可以避免一次將所有資料載入記憶體
func (w *WAL) ReadAll(callback func(jsonRaw []byte) error) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}
	// 尚未刷出的資料也要讀得到
	if err := w.flushLocked(); err != nil {
		return err
	}

	// 確保從頭讀取 (O_APPEND 不影響讀取位置，寫入仍會追加到結尾)
	if _, err := w.file.Seek(0, io.SeekStart); err != nil {
		return err
	}

	decoder := json.NewDecoder(bufio.NewReader(w.file))
	for {
		var raw json.RawMessage
		if err := decoder.Decode(&raw); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return err
		}
		if err := callback(raw); err != nil {
			return err
		}
	}
	return nil
}
