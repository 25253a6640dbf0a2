package event

import (
	"sync"
)

// TickEvent pool reduces GC pressure on the hotpath: the stream worker
// acquires one event per message and the engine releases it after processing.
//
// Usage:
//
//	ev := AcquireTickEvent()
//	ev.Symbol = "SSI"
//	// ... enqueue, process ...
//	ReleaseTickEvent(ev)
var tickEventPool = sync.Pool{
	New: func() interface{} {
		return &TickEvent{}
	},
}

// AcquireTickEvent gets a TickEvent from the pool.
// The returned event has zero values and must be initialized.
func AcquireTickEvent() *TickEvent {
	return tickEventPool.Get().(*TickEvent)
}

// ReleaseTickEvent returns a TickEvent to the pool.
// The event is reset to zero values before being pooled.
func ReleaseTickEvent(ev *TickEvent) {
	if ev == nil {
		return
	}
	ev.Symbol = ""
	ev.Epoch = 0
	ev.Ts = 0
	ev.Tick = nil
	ev.Quote = nil
	ev.Duplicate = false

	tickEventPool.Put(ev)
}

// Warmup pre-allocates event objects to reduce GC pressure at startup.
func Warmup() {
	const batchSize = 1000

	evs := make([]*TickEvent, 0, batchSize)
	for i := 0; i < batchSize; i++ {
		evs = append(evs, AcquireTickEvent())
	}
	for _, ev := range evs {
		ReleaseTickEvent(ev)
	}
}
