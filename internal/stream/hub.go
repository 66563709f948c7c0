// Package stream distributes candle events from the ingestion layer to
// registered consumers. The hub decouples the stream connection from
// analysis: publishes never block, and each consumer drains its own
// buffered channel on a dedicated goroutine so event order is preserved
// per consumer.
package stream

import (
	"context"
	"sync"

	"bybit-sentinel/internal/models"
)

// CandleEvent is one candle update for a (symbol, timeframe) pair.
// Candle.IsClosed distinguishes confirmed closes from forming updates.
type CandleEvent struct {
	Symbol    string
	Timeframe models.Timeframe
	Candle    models.Candle
}

// Consumer handles candle events delivered by the hub. OnCandle is
// called from a single goroutine per consumer, so events for a given
// (symbol, timeframe) arrive in publish order. Symbols returns the
// symbol filter; nil or empty means all symbols.
type Consumer interface {
	OnCandle(ev CandleEvent)
	Symbols() []string
}

// HubConfig holds configuration for the event hub.
type HubConfig struct {
	// BufferSize is the size of the internal event channel buffer.
	BufferSize int
	// ConsumerBufferSize is the size of each consumer's channel buffer.
	ConsumerBufferSize int
}

// DefaultHubConfig returns the default hub configuration.
func DefaultHubConfig() HubConfig {
	return HubConfig{
		BufferSize:         1000,
		ConsumerBufferSize: 256,
	}
}

// Hub fans candle events out to consumers. Publishes and per-consumer
// deliveries are non-blocking; overflow is counted, never waited on.
type Hub struct {
	config HubConfig

	mu        sync.RWMutex
	started   bool
	consumers []*consumerWorker

	events       chan CandleEvent
	done         chan struct{}
	dispatchDone chan struct{}
	wg           sync.WaitGroup

	metricsMu       sync.RWMutex
	eventsPublished uint64
	eventsDelivered uint64
	eventsDropped   uint64
}

type consumerWorker struct {
	consumer Consumer
	ch       chan CandleEvent
	dropped  uint64 // guarded by the hub's metricsMu
}

// NewHub creates a hub with default configuration.
func NewHub() *Hub {
	return NewHubWithConfig(DefaultHubConfig())
}

// NewHubWithConfig creates a hub with custom configuration.
func NewHubWithConfig(config HubConfig) *Hub {
	if config.BufferSize <= 0 {
		config.BufferSize = DefaultHubConfig().BufferSize
	}
	if config.ConsumerBufferSize <= 0 {
		config.ConsumerBufferSize = DefaultHubConfig().ConsumerBufferSize
	}
	return &Hub{
		config:       config,
		events:       make(chan CandleEvent, config.BufferSize),
		done:         make(chan struct{}),
		dispatchDone: make(chan struct{}),
	}
}

// RegisterConsumer adds a consumer. When the hub is already running the
// consumer's worker starts immediately; otherwise it starts with Start.
func (h *Hub) RegisterConsumer(consumer Consumer) {
	w := &consumerWorker{
		consumer: consumer,
		ch:       make(chan CandleEvent, h.config.ConsumerBufferSize),
	}

	h.mu.Lock()
	h.consumers = append(h.consumers, w)
	started := h.started
	h.mu.Unlock()

	if started {
		h.startWorker(w)
	}
}

// Start begins the dispatch loop and the consumer workers. Calling
// Start on a running hub is a no-op.
func (h *Hub) Start(ctx context.Context) {
	h.mu.Lock()
	if h.started {
		h.mu.Unlock()
		return
	}
	h.started = true
	workers := make([]*consumerWorker, len(h.consumers))
	copy(workers, h.consumers)
	h.mu.Unlock()

	for _, w := range workers {
		h.startWorker(w)
	}
	go h.dispatchLoop(ctx)
}

func (h *Hub) startWorker(w *consumerWorker) {
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		for ev := range w.ch {
			w.consumer.OnCandle(ev)
		}
	}()
}

// dispatchLoop moves events from the publish channel to the consumer
// channels. It is the only sender on consumer channels, which lets Stop
// close them safely once this loop has exited.
func (h *Hub) dispatchLoop(ctx context.Context) {
	defer close(h.dispatchDone)
	for {
		select {
		case <-ctx.Done():
			return
		case <-h.done:
			return
		case ev := <-h.events:
			h.dispatch(ev)
		}
	}
}

func (h *Hub) dispatch(ev CandleEvent) {
	h.mu.RLock()
	workers := make([]*consumerWorker, len(h.consumers))
	copy(workers, h.consumers)
	h.mu.RUnlock()

	for _, w := range workers {
		if !wantsSymbol(w.consumer.Symbols(), ev.Symbol) {
			continue
		}
		select {
		case w.ch <- ev:
			h.metricsMu.Lock()
			h.eventsDelivered++
			h.metricsMu.Unlock()
		default:
			h.metricsMu.Lock()
			w.dropped++
			h.eventsDropped++
			h.metricsMu.Unlock()
		}
	}
}

// Publish hands a candle event to the hub. Non-blocking: when the
// internal buffer is full the event is dropped and counted.
func (h *Hub) Publish(ev CandleEvent) {
	h.metricsMu.Lock()
	h.eventsPublished++
	h.metricsMu.Unlock()

	select {
	case h.events <- ev:
	default:
		h.metricsMu.Lock()
		h.eventsDropped++
		h.metricsMu.Unlock()
	}
}

// Stop shuts the hub down: the dispatch loop exits, consumer channels
// are closed, and Stop blocks until every worker has drained its
// remaining buffered events.
func (h *Hub) Stop() {
	h.mu.Lock()
	if !h.started {
		h.mu.Unlock()
		return
	}
	h.started = false
	close(h.done)
	h.mu.Unlock()

	<-h.dispatchDone

	h.mu.Lock()
	for _, w := range h.consumers {
		close(w.ch)
	}
	h.mu.Unlock()

	h.wg.Wait()
}

// IsStarted reports whether the hub is running.
func (h *Hub) IsStarted() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.started
}

// HubMetrics contains hub throughput counters.
type HubMetrics struct {
	EventsPublished uint64
	EventsDelivered uint64
	EventsDropped   uint64
	Consumers       int
}

// Metrics returns a snapshot of the hub counters.
func (h *Hub) Metrics() HubMetrics {
	h.mu.RLock()
	consumers := len(h.consumers)
	h.mu.RUnlock()

	h.metricsMu.RLock()
	defer h.metricsMu.RUnlock()
	return HubMetrics{
		EventsPublished: h.eventsPublished,
		EventsDelivered: h.eventsDelivered,
		EventsDropped:   h.eventsDropped,
		Consumers:       consumers,
	}
}

func wantsSymbol(filter []string, symbol string) bool {
	if len(filter) == 0 {
		return true
	}
	for _, s := range filter {
		if s == symbol {
			return true
		}
	}
	return false
}

// ConsumerFunc adapts a function to the Consumer interface.
type ConsumerFunc struct {
	symbols []string
	fn      func(CandleEvent)
}

// NewConsumerFunc creates a ConsumerFunc with an optional symbol filter.
func NewConsumerFunc(symbols []string, fn func(CandleEvent)) *ConsumerFunc {
	return &ConsumerFunc{symbols: symbols, fn: fn}
}

// OnCandle implements Consumer.
func (c *ConsumerFunc) OnCandle(ev CandleEvent) {
	if c.fn != nil {
		c.fn(ev)
	}
}

// Symbols implements Consumer.
func (c *ConsumerFunc) Symbols() []string {
	return c.symbols
}
