package usage

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Ingestor decouples the request path from ledger writes: records are
// buffered on a channel and flushed by a single worker, so a slow disk
// never stalls a completion.
type Ingestor interface {
	Recorder
	Start(ctx context.Context)
	Stop()
}

type ingestor struct {
	logger    *zap.Logger
	store     Store
	recChan   chan *Record
	batchSize int
	flushTime time.Duration
}

func NewIngestor(logger *zap.Logger, store Store) Ingestor {
	return &ingestor{
		logger:    logger,
		store:     store,
		recChan:   make(chan *Record, 10000),
		batchSize: 50,
		flushTime: 5 * time.Second,
	}
}

func (i *ingestor) Record(rec *Record) {
	select {
	case i.recChan <- rec:
	default:
		i.logger.Warn("usage buffer full, dropping record", zap.String("request_id", rec.ID))
	}
}

func (i *ingestor) Start(ctx context.Context) {
	go i.worker(ctx)
}

// Stop closes the intake channel; the worker flushes what remains and
// exits.
func (i *ingestor) Stop() {
	close(i.recChan)
}

func (i *ingestor) worker(ctx context.Context) {
	batch := make([]*Record, 0, i.batchSize)
	ticker := time.NewTicker(i.flushTime)
	defer ticker.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		for _, rec := range batch {
			if err := i.store.Insert(context.Background(), rec); err != nil {
				i.logger.Error("failed to persist usage record", zap.String("id", rec.ID), zap.Error(err))
			}
		}
		batch = batch[:0]
	}

	for {
		select {
		case rec, ok := <-i.recChan:
			if !ok {
				flush()
				return
			}
			batch = append(batch, rec)
			if len(batch) >= i.batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-ctx.Done():
			flush()
			return
		}
	}
}
