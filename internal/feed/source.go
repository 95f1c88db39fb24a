// Package feed maintains one resilient connection to an external real-time
// spot feed. The reconnect, backoff, and stale-connection logic lives in
// Source; transport-specific primitives live behind the Transport interface.
package feed

import (
	"log"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/n1fdx/spotstream/internal/types"
)

// Transport is the narrow contract a concrete feed backend implements.
// Connect must deliver every received message to onMessage and report a lost
// connection through onLost.
type Transport interface {
	Connect(onMessage func(data []byte), onLost func(err error)) error
	Disconnect() error
	Connected() bool
	Name() string
}

// State is the connection lifecycle state of a Source
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateReconnectScheduled
)

const (
	baseBackoff    = 1 * time.Second
	maxBackoff     = 60 * time.Second
	watchdogPeriod = 5 * time.Second
	gracePeriod    = 60 * time.Second
	staleThreshold = 30 * time.Second
)

// Source owns one logical feed connection and keeps it alive
type Source struct {
	transport Transport
	clock     clockwork.Clock

	mu          sync.Mutex
	state       State
	failures    int
	handler     func(types.RawMessage)
	reconnect   clockwork.Timer
	connectedAt time.Time
	lastMessage time.Time

	done     chan struct{}
	doneOnce sync.Once
}

// NewSource creates a Source over the given transport and starts its
// stale-connection watchdog. Call Close to release it.
func NewSource(transport Transport) *Source {
	return newSource(transport, clockwork.NewRealClock())
}

func newSource(transport Transport, clock clockwork.Clock) *Source {
	s := &Source{
		transport: transport,
		clock:     clock,
		done:      make(chan struct{}),
	}
	go s.watchdog()
	return s
}

// SetMessageHandler registers the callback invoked once per received
// message. Safe to call before or after Connect; with no handler set,
// messages are discarded.
func (s *Source) SetMessageHandler(handler func(types.RawMessage)) {
	s.mu.Lock()
	s.handler = handler
	s.mu.Unlock()
}

// Connect attempts to open the feed connection. A call while already
// connecting or connected is a no-op. Failures are not returned; they are
// logged and a reconnect is scheduled with exponential backoff.
func (s *Source) Connect() {
	s.mu.Lock()
	if s.state == StateConnecting || s.state == StateConnected {
		s.mu.Unlock()
		return
	}
	s.state = StateConnecting
	s.mu.Unlock()

	err := s.transport.Connect(s.onMessage, s.onConnectionLost)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		log.Printf("feed %s: connect failed: %v", s.transport.Name(), err)
		s.state = StateDisconnected
		s.scheduleReconnectLocked()
		return
	}
	s.state = StateConnected
	s.failures = 0
	s.connectedAt = s.clock.Now()
	s.lastMessage = time.Time{}
	log.Printf("feed %s: connected", s.transport.Name())
}

// Disconnect cancels any pending reconnect and tears down the connection.
// Idempotent.
func (s *Source) Disconnect() {
	s.mu.Lock()
	if s.reconnect != nil {
		s.reconnect.Stop()
		s.reconnect = nil
	}
	s.state = StateDisconnected
	s.mu.Unlock()

	if err := s.transport.Disconnect(); err != nil {
		log.Printf("feed %s: disconnect failed: %v", s.transport.Name(), err)
	}
}

// Close disconnects and stops the watchdog. The Source cannot be reused.
func (s *Source) Close() {
	s.Disconnect()
	s.doneOnce.Do(func() { close(s.done) })
}

// IsConnected reports whether the source is in the connected state
func (s *Source) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == StateConnected
}

// IsReceivingMessages reports whether the connection is believed healthy:
// connected and either still within the initial grace period with no
// messages yet, or with a message inside the stale threshold.
func (s *Source) IsReceivingMessages() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateConnected {
		return false
	}
	now := s.clock.Now()
	if s.lastMessage.IsZero() {
		return now.Sub(s.connectedAt) <= gracePeriod
	}
	return now.Sub(s.lastMessage) <= staleThreshold
}

// SourceName returns the transport's feed name
func (s *Source) SourceName() string {
	return s.transport.Name()
}

func (s *Source) onMessage(data []byte) {
	s.mu.Lock()
	s.lastMessage = s.clock.Now()
	handler := s.handler
	s.mu.Unlock()

	if handler == nil {
		return
	}
	handler(types.RawMessage{
		Raw:       string(data),
		Timestamp: s.clock.Now().UTC(),
		Source:    s.transport.Name(),
	})
}

// onConnectionLost is invoked by the transport. A nil cause is tolerated.
func (s *Source) onConnectionLost(cause error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateConnected {
		return
	}
	log.Printf("feed %s: connection lost: %v", s.transport.Name(), cause)
	s.state = StateDisconnected
	s.scheduleReconnectLocked()
}

// scheduleReconnectLocked arms the backoff timer. Caller holds s.mu.
func (s *Source) scheduleReconnectLocked() {
	s.failures++
	delay := backoffDelay(s.failures)
	s.state = StateReconnectScheduled

	if s.reconnect != nil {
		s.reconnect.Stop()
	}
	s.reconnect = s.clock.AfterFunc(delay, func() {
		s.mu.Lock()
		if s.state != StateReconnectScheduled {
			s.mu.Unlock()
			return
		}
		s.state = StateDisconnected
		s.mu.Unlock()
		s.Connect()
	})
	log.Printf("feed %s: reconnect scheduled in %s (failure %d)", s.transport.Name(), delay, s.failures)
}

// backoffDelay returns the reconnect delay for the nth consecutive failure:
// 1s, 2s, 4s, ... capped at maxBackoff.
func backoffDelay(failures int) time.Duration {
	delay := baseBackoff
	for i := 1; i < failures; i++ {
		delay *= 2
		if delay >= maxBackoff {
			return maxBackoff
		}
	}
	return delay
}

// watchdog periodically checks for zombie connections that report connected
// but deliver nothing.
func (s *Source) watchdog() {
	ticker := s.clock.NewTicker(watchdogPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.Chan():
			s.checkStale()
		}
	}
}

// checkStale forces a reconnect when a previously chatty connection has
// gone silent past the stale threshold. A connection that has never
// delivered a message is left alone.
func (s *Source) checkStale() {
	s.mu.Lock()
	if s.state != StateConnected {
		s.mu.Unlock()
		return
	}
	if s.lastMessage.IsZero() {
		s.mu.Unlock()
		return
	}
	silence := s.clock.Now().Sub(s.lastMessage)
	if silence <= staleThreshold {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	log.Printf("feed %s: no messages for %s, forcing reconnect", s.transport.Name(), silence)
	if err := s.transport.Disconnect(); err != nil {
		log.Printf("feed %s: disconnect during forced reconnect failed: %v", s.transport.Name(), err)
	}

	s.mu.Lock()
	if s.state == StateConnected {
		s.state = StateDisconnected
		s.scheduleReconnectLocked()
	}
	s.mu.Unlock()
}
