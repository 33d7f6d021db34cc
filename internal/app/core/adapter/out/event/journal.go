package event

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/JoeShih716/go-mem-vault/internal/app/core/domain"
	"github.com/JoeShih716/go-mem-vault/internal/app/core/usecase"
)

// Journal 只能追加的通知日誌
//
// Sequence 依送達順序配發 (1, 2, 3...)，作為 Since 的游標
// 日誌內容依 LedgerSequence (帳本提交順序) 排列，重播結果與帳本狀態一致
type Journal struct {
	mu     sync.RWMutex
	events []domain.Event
	next   uint64
}

func NewJournal() *Journal {
	return &Journal{
		events: make([]domain.Event, 0),
	}
}

// Append 追加一筆通知並回傳配發序號後的通知
func (j *Journal) Append(event domain.Event) domain.Event {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.next++
	event.Sequence = j.next
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}
	// 提交順序相同 (未配發) 時保留送達順序
	i := sort.Search(len(j.events), func(i int) bool {
		return j.events[i].LedgerSequence > event.LedgerSequence
	})
	j.events = slices.Insert(j.events, i, event)
	return event
}

// Publish implements usecase.EventPublisher.
func (j *Journal) Publish(ctx context.Context, event domain.Event) error {
	j.Append(event)
	return nil
}

// Events 回傳所有通知的複本，依帳本提交順序排列
func (j *Journal) Events() []domain.Event {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return slices.Clone(j.events)
}

// Since 回傳送達序號大於 seq 的通知，依帳本提交順序排列
func (j *Journal) Since(seq uint64) []domain.Event {
	j.mu.RLock()
	defer j.mu.RUnlock()
	events := make([]domain.Event, 0)
	if seq >= j.next {
		return events
	}
	for _, event := range j.events {
		if event.Sequence > seq {
			events = append(events, event)
		}
	}
	return events
}

// Len 通知筆數
func (j *Journal) Len() int {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return len(j.events)
}

var _ usecase.EventPublisher = (*Journal)(nil)
