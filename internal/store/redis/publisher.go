package redis

import (
	"context"
	"sync"

	goredis "github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"fxscanner/internal/model"
)

const (
	// DefaultSignalStream is the stream emitted signals are appended to.
	DefaultSignalStream = "fxscan:signals"

	signalStreamMaxLen = 10000
	latestKeyPrefix    = "fxscan:signal:latest:"
	pubsubChannel      = "pub:fxscan:signals"
)

// StreamPublisher appends emitted signals to a Redis stream, keeps the
// latest signal per instrument and publishes it for live subscribers.
// While the breaker is open records are buffered (oldest dropped beyond
// maxBuf) and replayed when it closes.
type StreamPublisher struct {
	client *goredis.Client
	cb     *CircuitBreaker
	stream string
	logger zerolog.Logger

	mu     sync.Mutex
	buffer []model.SignalRecord
	maxBuf int

	// Callbacks (optional)
	OnBuffer func()
	OnFlush  func(count int)
}

// NewStreamPublisher creates a publisher. It chains onto cb.OnStateChange
// to flush buffered records when the breaker closes.
func NewStreamPublisher(client *goredis.Client, cb *CircuitBreaker, stream string, maxBuf int) *StreamPublisher {
	if stream == "" {
		stream = DefaultSignalStream
	}
	if maxBuf <= 0 {
		maxBuf = 1000
	}
	p := &StreamPublisher{
		client: client,
		cb:     cb,
		stream: stream,
		maxBuf: maxBuf,
		logger: log.With().Str("component", "signal-stream").Logger(),
	}

	prev := cb.OnStateChange
	cb.OnStateChange = func(from, to State) {
		if prev != nil {
			prev(from, to)
		}
		if to == StateClosed {
			go p.flush(context.Background())
		}
	}
	return p
}

// Name implements model.SignalSink.
func (p *StreamPublisher) Name() string { return "redis-stream" }

// PublishSignal writes rec, or buffers it while the breaker is open.
func (p *StreamPublisher) PublishSignal(ctx context.Context, rec model.SignalRecord) error {
	err := p.cb.Execute(func() error { return p.write(ctx, rec) })
	if err == ErrCircuitOpen {
		p.bufferRecord(rec)
		return nil
	}
	return err
}

func (p *StreamPublisher) write(ctx context.Context, rec model.SignalRecord) error {
	data := string(rec.JSON())
	pipe := p.client.Pipeline()

	pipe.XAdd(ctx, &goredis.XAddArgs{
		Stream: p.stream,
		MaxLen: signalStreamMaxLen,
		Approx: true,
		Values: map[string]interface{}{
			"id":         rec.ID,
			"instrument": rec.Instrument,
			"data":       data,
		},
	})
	pipe.Set(ctx, latestKeyPrefix+rec.Instrument+":"+rec.Timeframe.String(), data, 0)
	pipe.Publish(ctx, pubsubChannel, data)

	_, err := pipe.Exec(ctx)
	return err
}

func (p *StreamPublisher) bufferRecord(rec model.SignalRecord) {
	p.mu.Lock()
	if len(p.buffer) >= p.maxBuf {
		p.buffer = p.buffer[1:]
	}
	p.buffer = append(p.buffer, rec)
	p.mu.Unlock()

	if p.OnBuffer != nil {
		p.OnBuffer()
	}
}

// flush replays buffered records. Records that fail again are dropped
// with a log line; the journal still holds them.
func (p *StreamPublisher) flush(ctx context.Context) {
	p.mu.Lock()
	pending := p.buffer
	p.buffer = nil
	p.mu.Unlock()
	if len(pending) == 0 {
		return
	}

	flushed := 0
	for _, rec := range pending {
		if err := p.write(ctx, rec); err != nil {
			p.logger.Error().Err(err).Str("id", rec.ID).Msg("replay failed")
			continue
		}
		flushed++
	}
	p.logger.Info().Int("count", flushed).Msg("flushed buffered signals")
	if p.OnFlush != nil {
		p.OnFlush(flushed)
	}
}

// PendingCount returns the number of buffered records.
func (p *StreamPublisher) PendingCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.buffer)
}
