package storage

import "time"

// NoopEventLog discards all writes. Used when persistence is not configured
// and in event-store tests.
type NoopEventLog struct{}

func NewNoopEventLog() *NoopEventLog { return &NoopEventLog{} }

func (n *NoopEventLog) AppendEvent(_ StoredEvent) error { return nil }

func (n *NoopEventLog) AppendRawEnvelope(_ int64, _ []byte) error { return nil }

func (n *NoopEventLog) LoadEvents() ([]StoredEvent, error) { return nil, nil }

func (n *NoopEventLog) PruneRawEnvelopes(_ time.Time) (int64, error) { return 0, nil }
