package event

import (
	"context"

	"go.uber.org/zap"

	"github.com/JoeShih716/go-mem-vault/internal/app/core/domain"
	"github.com/JoeShih716/go-mem-vault/internal/app/core/usecase"
)

// Fanout 先寫入 Journal 取得序號，再轉發給其他 sink (例如 Kafka)
// 其他 sink 失敗只記錄，不影響已提交的交易
type Fanout struct {
	journal *Journal
	sinks   []usecase.EventPublisher
	logger  *zap.Logger
}

func NewFanout(journal *Journal, logger *zap.Logger, sinks ...usecase.EventPublisher) *Fanout {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fanout{
		journal: journal,
		sinks:   sinks,
		logger:  logger,
	}
}

func (f *Fanout) Publish(ctx context.Context, event domain.Event) error {
	stamped := f.journal.Append(event)
	for _, sink := range f.sinks {
		if err := sink.Publish(ctx, stamped); err != nil {
			f.logger.Warn("failed to forward event",
				zap.Uint64("seq", stamped.Sequence),
				zap.Uint64("ledger_seq", stamped.LedgerSequence),
				zap.Stringer("kind", stamped.Kind),
				zap.Error(err),
			)
		}
	}
	return nil
}

var _ usecase.EventPublisher = (*Fanout)(nil)
