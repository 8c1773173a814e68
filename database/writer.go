package database

import (
	"context"
	"fmt"
	"sync"

	"github.com/activecm/beaconwatch/config"
	"github.com/activecm/beaconwatch/logger"

	clickhouse "github.com/ClickHouse/clickhouse-go/v2"
	driver "github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

type (
	Data any

	// Database is the subset of *DB a BulkWriter needs, letting it be driven
	// by either a live connection or a test double.
	Database interface {
		getConn() driver.Conn
		GetContext() context.Context
		QueryParameters(clickhouse.Parameters) context.Context
	}

	// BulkWriter batches rows written to a channel and flushes them to a
	// ClickHouse table via PrepareBatch/AppendStruct/Send. Unlike a one-shot
	// importer, a failed batch here is logged and dropped rather than fatal:
	// the ingester and scheduler are long-running and must outlive a
	// transient store outage.
	BulkWriter struct {
		db           Database
		WriteChannel chan Data
		ProgChannel  chan int
		WriteWg      *errgroup.Group
		writerName   string
		batchSize    int32
		query        string
		limiter      *rate.Limiter
		withProgress bool
		database     string
		closed       bool
		ctx          context.Context
		numWorkers   int
		batches      []int32
		mu           sync.Mutex
		cond         *sync.Cond
	}
)

// NewBulkWriter creates a new writer that streams rows into the given table.
func NewBulkWriter(db Database, conf *config.Config, numWorkers int, database string, writerName string, query string, limiter *rate.Limiter, withProgress bool) *BulkWriter {
	writeErrGroup, ctx := errgroup.WithContext(context.Background())
	writer := &BulkWriter{
		db:           db,
		database:     database,
		WriteChannel: make(chan Data),
		ProgChannel:  make(chan int),
		WriteWg:      writeErrGroup,
		writerName:   writerName,
		batchSize:    conf.Database.BatchSize,
		query:        query,
		limiter:      limiter,
		withProgress: withProgress,
		numWorkers:   numWorkers,
		ctx:          ctx,
		batches:      make([]int32, numWorkers),
	}
	writer.cond = sync.NewCond(&writer.mu)
	return writer
}

// shouldReadData returns whether or not the thread with the passed in ID should read data from the write channel
func (w *BulkWriter) shouldReadData(id int, empty bool) bool {
	if w.numWorkers == 1 {
		return true
	}

	var numInProgress int
	for i, b := range w.batches {
		if i != id {
			// batch is in progress if it has at least 1 item, but less than the batch size
			if b > 0 && b < w.batchSize {
				numInProgress++
			}
		}
	}
	// we don't want a worker that's not currently in progress to read the rest of the items from the channel after it's closed
	// because then the leftover data will get distributed between all of the workers, making several tiny batches instead of one
	if w.closed {
		if empty {
			return true
		}
		return w.batches[id] > 0 || numInProgress == 0
	}

	return numInProgress == 0 || w.batches[id] > 0
}

// Close waits for the write threads to finish and returns the first error
// any of them encountered, if any.
func (w *BulkWriter) Close() error {
	close(w.WriteChannel)
	w.closed = true
	w.cond.Broadcast()

	err := w.WriteWg.Wait()
	close(w.ProgChannel)
	return err
}

// Start kicks off a new write thread
func (w *BulkWriter) Start(id int) {
	w.WriteWg.Go(func() error {
		zlog := logger.GetLogger()

		conn := w.db.getConn()
		chCtx := w.db.QueryParameters(clickhouse.Parameters{
			"database": w.database,
		})

		var batchCount int32
		var items []Data

		flush := func(stage string) error {
			batch, err := conn.PrepareBatch(chCtx, w.query)
			if err != nil {
				zlog.Error().Err(err).Str("writer", w.writerName).Str("stage", stage+"_prepare").Msg("unable to prepare batch, dropping batch")
				return fmt.Errorf("prepare batch: %w", err)
			}
			for _, item := range items {
				if err := batch.AppendStruct(item); err != nil {
					zlog.Error().Err(err).Str("writer", w.writerName).Str("stage", stage+"_append").Msg("unable to append row, dropping batch")
					return fmt.Errorf("append row: %w", err)
				}
			}
			if err := w.limiter.Wait(w.db.GetContext()); err != nil {
				return fmt.Errorf("rate limiter: %w", err)
			}
			if err := batch.Send(); err != nil {
				zlog.Error().Err(err).Str("writer", w.writerName).Str("stage", stage+"_send").Msg("unable to send batch")
				return fmt.Errorf("send batch: %w", err)
			}
			if w.withProgress {
				w.ProgChannel <- int(batchCount)
			}
			return nil
		}

		for {
			w.mu.Lock()
			for !w.shouldReadData(id, len(w.WriteChannel) == 0) {
				w.cond.Wait()
			}

			select {
			case <-w.ctx.Done():
				w.mu.Unlock()
				return nil
			default:
			}

			change, ok := <-w.WriteChannel
			if !ok {
				w.mu.Unlock()
				break
			}
			w.batches[id]++
			batchCount++
			w.mu.Unlock()

			items = append(items, change)

			if batchCount >= w.batchSize {
				w.cond.Broadcast()

				if err := flush("batch"); err != nil {
					w.mu.Lock()
					w.batches[id] = 0
					w.cond.Broadcast()
					w.mu.Unlock()
					batchCount = 0
					items = nil
					continue
				}

				w.mu.Lock()
				w.batches[id] = 0
				w.cond.Broadcast()
				w.mu.Unlock()
				batchCount = 0
				items = nil
			}
		}

		if batchCount > 0 {
			if err := flush("final"); err != nil {
				zlog.Error().Err(err).Str("writer", w.writerName).Msg("dropped final partial batch")
			}
		}
		return nil
	})
}
