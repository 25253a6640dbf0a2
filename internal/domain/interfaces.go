package domain

import "context"

// StreamWorker defines the interface for market-stream connectors
type StreamWorker interface {
	Connect(ctx context.Context) error
	Disconnect()
	IsConnected() bool
}

// SnapshotProvider defines the interface for the point-in-time snapshot poller
type SnapshotProvider interface {
	Start(ctx context.Context) error
	Stop()
}

// PrintSink receives accepted trade prints (for persistence or fan-out)
type PrintSink interface {
	Accept(tick Tick)
}
