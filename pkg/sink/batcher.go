// Copyright 2025 ZapStats Authors
// SPDX-License-Identifier: Apache-2.0

package sink

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/LeeDigitalWorks/zapstats/pkg/logger"
	"github.com/LeeDigitalWorks/zapstats/pkg/tracking"
)

// ErrBufferFull is returned by Record when the batching buffer is saturated.
var ErrBufferFull = errors.New("sink: buffer full, event dropped")

type insertFunc func(ctx context.Context, batch []tracking.Event) error

// batcher buffers events and hands them to insert in batches of up to
// batchSize, or whatever accumulated when flushInterval elapses.
type batcher struct {
	name          string
	insert        insertFunc
	batchSize     int
	flushInterval time.Duration

	buffer   chan tracking.Event
	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

func newBatcher(name string, batchSize, bufferSize int, flushInterval time.Duration, insert insertFunc) *batcher {
	return &batcher{
		name:          name,
		insert:        insert,
		batchSize:     batchSize,
		flushInterval: flushInterval,
		buffer:        make(chan tracking.Event, bufferSize),
		done:          make(chan struct{}),
	}
}

func (b *batcher) enqueue(ev tracking.Event) error {
	select {
	case b.buffer <- ev:
		EventsTotal.WithLabelValues(b.name, "buffered").Inc()
		return nil
	default:
		EventsTotal.WithLabelValues(b.name, "dropped").Inc()
		return ErrBufferFull
	}
}

func (b *batcher) start(ctx context.Context) {
	b.wg.Add(1)
	go b.loop(ctx)
	logger.Info().
		Str("sink", b.name).
		Int("batch_size", b.batchSize).
		Dur("flush_interval", b.flushInterval).
		Msg("pageview batcher started")
}

// stop flushes pending events and waits for the loop to exit.
func (b *batcher) stop() {
	b.stopOnce.Do(func() {
		close(b.done)
		b.wg.Wait()
	})
}

func (b *batcher) loop(ctx context.Context) {
	defer b.wg.Done()

	ticker := time.NewTicker(b.flushInterval)
	defer ticker.Stop()

	batch := make([]tracking.Event, 0, b.batchSize)

	for {
		select {
		case <-ctx.Done():
			b.flush(context.Background(), append(batch, b.drain()...))
			return

		case <-b.done:
			b.flush(context.Background(), append(batch, b.drain()...))
			return

		case ev := <-b.buffer:
			batch = append(batch, ev)
			if len(batch) >= b.batchSize {
				b.flush(ctx, batch)
				batch = batch[:0]
			}

		case <-ticker.C:
			b.flush(ctx, batch)
			batch = batch[:0]
		}
	}
}

func (b *batcher) drain() []tracking.Event {
	var events []tracking.Event
	for {
		select {
		case ev := <-b.buffer:
			events = append(events, ev)
		default:
			return events
		}
	}
}

func (b *batcher) flush(ctx context.Context, batch []tracking.Event) {
	if len(batch) == 0 {
		return
	}

	start := time.Now()
	if err := b.insert(ctx, batch); err != nil {
		EventsTotal.WithLabelValues(b.name, "failed").Add(float64(len(batch)))
		logger.Error().Err(err).Str("sink", b.name).Int("count", len(batch)).Msg("failed to flush pageviews")
		return
	}

	EventsTotal.WithLabelValues(b.name, "sent").Add(float64(len(batch)))
	FlushDuration.WithLabelValues(b.name).Observe(time.Since(start).Seconds())
	logger.Debug().Str("sink", b.name).Int("count", len(batch)).Msg("flushed pageviews")
}
