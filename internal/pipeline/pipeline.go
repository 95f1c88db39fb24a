// Package pipeline drains raw messages from a feed source and lands
// validated, enriched spots in durable storage. One bad message never stops
// the flow: parse and enrichment failures drop the message, count it, and
// processing resumes.
package pipeline

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/n1fdx/spotstream/internal/enrich"
	"github.com/n1fdx/spotstream/internal/feed"
	"github.com/n1fdx/spotstream/internal/observability"
	"github.com/n1fdx/spotstream/internal/parser"
	"github.com/n1fdx/spotstream/internal/stats"
	"github.com/n1fdx/spotstream/internal/types"
)

// persistTimeout bounds one batch write to the store.
const persistTimeout = 30 * time.Second

// SpotStore is the durable sink for enriched spot batches
type SpotStore interface {
	SaveSpotBatch(ctx context.Context, spots []types.Spot) error
}

// Config holds the pipeline tuning parameters
type Config struct {
	BatchSize      int
	BatchTimeout   time.Duration
	BufferCapacity int
	Parallelism    int
	DrainTimeout   time.Duration
}

// Pipeline wires feed -> parse -> enrich -> bounded buffer -> batch -> store
type Pipeline struct {
	source  *feed.Source
	store   SpotStore
	cfg     Config
	clock   clockwork.Clock
	stats   *stats.Stats
	metrics *observability.Metrics

	rawCh  chan types.RawMessage
	spotCh chan types.Spot
	rawMu  sync.Mutex
	spotMu sync.Mutex

	accepting atomic.Bool
	workers   sync.WaitGroup
	batcher   sync.WaitGroup
	stopOnce  sync.Once
}

// New creates a Pipeline over the given source and store
func New(source *feed.Source, store SpotStore, cfg Config, metrics *observability.Metrics) *Pipeline {
	return newPipeline(source, store, cfg, metrics, clockwork.NewRealClock())
}

func newPipeline(source *feed.Source, store SpotStore, cfg Config, metrics *observability.Metrics, clock clockwork.Clock) *Pipeline {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.BatchTimeout <= 0 {
		cfg.BatchTimeout = 5 * time.Second
	}
	if cfg.BufferCapacity <= 0 {
		cfg.BufferCapacity = 1000
	}
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = 4
	}
	if cfg.DrainTimeout <= 0 {
		cfg.DrainTimeout = 10 * time.Second
	}

	return &Pipeline{
		source:  source,
		store:   store,
		cfg:     cfg,
		clock:   clock,
		stats:   stats.New(),
		metrics: metrics,
		rawCh:   make(chan types.RawMessage, cfg.Parallelism*2),
		spotCh:  make(chan types.Spot, cfg.BufferCapacity),
	}
}

// Start registers the message handler, launches the workers and batcher,
// and opens the feed connection.
func (p *Pipeline) Start() {
	p.accepting.Store(true)

	for i := 0; i < p.cfg.Parallelism; i++ {
		p.workers.Add(1)
		go p.worker()
	}
	p.batcher.Add(1)
	go p.runBatcher()

	p.source.SetMessageHandler(p.handleRaw)
	p.source.Connect()
}

// Stop performs a graceful drain: no new input is accepted, in-flight spots
// are batched and persisted within the drain timeout, then resources are
// released.
func (p *Pipeline) Stop() {
	p.stopOnce.Do(func() {
		p.accepting.Store(false)
		p.source.Close()

		// Taking rawMu here fences out any handler invocation that passed
		// the accepting check before it flipped.
		p.rawMu.Lock()
		close(p.rawCh)
		p.rawMu.Unlock()
		p.workers.Wait()
		close(p.spotCh)

		done := make(chan struct{})
		go func() {
			p.batcher.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(p.cfg.DrainTimeout):
			log.Printf("pipeline: drain timeout after %s, abandoning in-flight batch", p.cfg.DrainTimeout)
		}
	})
}

// GetSpotsProcessed returns the count of spots parsed, enriched, and persisted
func (p *Pipeline) GetSpotsProcessed() uint64 { return p.stats.GetSpotsProcessed() }

// GetBatchesPersisted returns the count of batches written to the store
func (p *Pipeline) GetBatchesPersisted() uint64 { return p.stats.GetBatchesPersisted() }

// GetDroppedMessages returns the count of messages dropped for any reason
func (p *Pipeline) GetDroppedMessages() uint64 { return p.stats.GetDroppedMessages() }

// handleRaw is invoked by the feed source once per received message. It must
// never block the transport's read loop: when the raw channel is full the
// oldest pending message is evicted.
func (p *Pipeline) handleRaw(msg types.RawMessage) {
	p.rawMu.Lock()
	defer p.rawMu.Unlock()
	if !p.accepting.Load() {
		return
	}
	for {
		select {
		case p.rawCh <- msg:
			return
		default:
			select {
			case <-p.rawCh:
				p.recordDrop("overflow")
			default:
			}
		}
	}
}

// worker parses and enriches messages, then offers them to the bounded
// buffer. A panic from any stage drops the message and the worker resumes.
func (p *Pipeline) worker() {
	defer p.workers.Done()
	for msg := range p.rawCh {
		p.processMessage(msg)
	}
}

func (p *Pipeline) processMessage(msg types.RawMessage) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("pipeline: enrichment panic, dropping message: %v", r)
			p.recordDrop("enrich")
		}
	}()

	spot, err := parser.ParseMessage(msg.Raw)
	if err != nil {
		p.stats.IncrementParseFailures()
		if p.metrics != nil {
			p.metrics.MessagesDropped.WithLabelValues("parse").Inc()
		}
		return
	}
	spot.Source = msg.Source

	enriched := enrich.Continent(enrich.Distance(*spot))
	p.offerSpot(enriched)
}

// offerSpot inserts a spot into the bounded buffer, evicting the oldest
// buffered spot when full. Freshness wins over completeness on a live feed.
func (p *Pipeline) offerSpot(spot types.Spot) {
	p.spotMu.Lock()
	defer p.spotMu.Unlock()
	for {
		select {
		case p.spotCh <- spot:
			return
		default:
			select {
			case <-p.spotCh:
				p.recordDrop("overflow")
			default:
			}
		}
	}
}

func (p *Pipeline) recordDrop(reason string) {
	p.stats.IncrementDroppedMessages()
	if p.metrics != nil {
		p.metrics.MessagesDropped.WithLabelValues(reason).Inc()
	}
}

// runBatcher groups buffered spots into batches by size or timeout,
// whichever comes first, and persists each batch as a single write.
func (p *Pipeline) runBatcher() {
	defer p.batcher.Done()

	var pending []types.Spot
	var timer clockwork.Timer

	stopTimer := func() {
		if timer != nil {
			timer.Stop()
			timer = nil
		}
	}

	for {
		var timeout <-chan time.Time
		if timer != nil {
			timeout = timer.Chan()
		}

		select {
		case spot, ok := <-p.spotCh:
			if !ok {
				stopTimer()
				p.persistBatch(pending)
				return
			}
			pending = append(pending, spot)
			if len(pending) == 1 {
				timer = p.clock.NewTimer(p.cfg.BatchTimeout)
			}
			if len(pending) >= p.cfg.BatchSize {
				stopTimer()
				p.persistBatch(pending)
				pending = nil
			}
		case <-timeout:
			timer = nil
			p.persistBatch(pending)
			pending = nil
		}
	}
}

// persistBatch writes one batch to the store. A failed batch is logged and
// lost; the pipeline continues with the next one.
func (p *Pipeline) persistBatch(batch []types.Spot) {
	if len(batch) == 0 {
		return
	}

	batchID := uuid.New().String()
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	start := time.Now()
	if err := p.store.SaveSpotBatch(ctx, batch); err != nil {
		log.Printf("pipeline: failed to persist batch %s (%d spots): %v", batchID, len(batch), err)
		p.stats.IncrementPersistFailures()
		if p.metrics != nil {
			p.metrics.PersistFailures.Inc()
		}
		return
	}

	p.stats.AddSpotsProcessed(len(batch))
	p.stats.IncrementBatchesPersisted()
	p.stats.UpdateLastSpotTime(batch[len(batch)-1].Timestamp)
	if p.metrics != nil {
		p.metrics.SpotsProcessed.Add(float64(len(batch)))
		p.metrics.BatchesPersisted.Inc()
		p.metrics.BatchSize.Observe(float64(len(batch)))
		p.metrics.PersistDuration.Observe(time.Since(start).Seconds())
	}
}
