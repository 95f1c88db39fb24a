package stats

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// Stats tracks pipeline processing statistics
type Stats struct {
	SpotsProcessed   uint64
	BatchesPersisted uint64
	DroppedMessages  uint64
	ParseFailures    uint64
	PersistFailures  uint64

	mu           sync.RWMutex
	lastSpotTime time.Time
}

// New creates a new Stats instance
func New() *Stats {
	return &Stats{}
}

// AddSpotsProcessed adds to the processed spot counter
func (s *Stats) AddSpotsProcessed(n int) {
	atomic.AddUint64(&s.SpotsProcessed, uint64(n))
}

// IncrementBatchesPersisted increments the persisted batch counter
func (s *Stats) IncrementBatchesPersisted() {
	atomic.AddUint64(&s.BatchesPersisted, 1)
}

// IncrementDroppedMessages increments the dropped message counter
func (s *Stats) IncrementDroppedMessages() {
	atomic.AddUint64(&s.DroppedMessages, 1)
}

// IncrementParseFailures increments the parse failure counter.
// A parse failure is also a dropped message.
func (s *Stats) IncrementParseFailures() {
	atomic.AddUint64(&s.ParseFailures, 1)
	atomic.AddUint64(&s.DroppedMessages, 1)
}

// IncrementPersistFailures increments the persistence failure counter
func (s *Stats) IncrementPersistFailures() {
	atomic.AddUint64(&s.PersistFailures, 1)
}

// UpdateLastSpotTime records the time the most recent spot was processed
func (s *Stats) UpdateLastSpotTime(t time.Time) {
	s.mu.Lock()
	s.lastSpotTime = t
	s.mu.Unlock()
}

// GetSpotsProcessed returns the processed spot count
func (s *Stats) GetSpotsProcessed() uint64 {
	return atomic.LoadUint64(&s.SpotsProcessed)
}

// GetBatchesPersisted returns the persisted batch count
func (s *Stats) GetBatchesPersisted() uint64 {
	return atomic.LoadUint64(&s.BatchesPersisted)
}

// GetDroppedMessages returns the dropped message count
func (s *Stats) GetDroppedMessages() uint64 {
	return atomic.LoadUint64(&s.DroppedMessages)
}

// GetParseFailures returns the parse failure count
func (s *Stats) GetParseFailures() uint64 {
	return atomic.LoadUint64(&s.ParseFailures)
}

// GetPersistFailures returns the persistence failure count
func (s *Stats) GetPersistFailures() uint64 {
	return atomic.LoadUint64(&s.PersistFailures)
}

// GetLastSpotTime returns the time the most recent spot was processed
func (s *Stats) GetLastSpotTime() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastSpotTime
}

// String returns a string representation of the statistics
func (s *Stats) String() string {
	return fmt.Sprintf(
		"Spots Processed: %d\n"+
			"Batches Persisted: %d\n"+
			"Dropped Messages: %d\n"+
			"Parse Failures: %d\n"+
			"Persist Failures: %d\n"+
			"Last Spot Time: %s",
		s.GetSpotsProcessed(),
		s.GetBatchesPersisted(),
		s.GetDroppedMessages(),
		s.GetParseFailures(),
		s.GetPersistFailures(),
		s.GetLastSpotTime(),
	)
}
