package storage

import (
	"time"

	"TradePulse/internal/model"
)

// StoredEvent is one event row in the durable log, denormalized with its
// series coordinates so the in-memory store can be rebuilt on boot.
type StoredEvent struct {
	InstanceID string
	Key        model.MetricKey
	Value      any
	Time       int64
	ServerTime int64
}

// EventLog persists telemetry for replay and audit. The in-memory event
// store stays authoritative; implementations must not be on the read path.
type EventLog interface {
	AppendEvent(evt StoredEvent) error
	AppendRawEnvelope(receivedAt int64, body []byte) error
	LoadEvents() ([]StoredEvent, error)
	PruneRawEnvelopes(olderThan time.Time) (int64, error)
}

// UserStore persists users and positions for the ledger. RecordBuy and
// RecordSell each commit a position write and its balance write atomically:
// a storage fault must never leave one without the other.
type UserStore interface {
	GetUser(email string) (*model.User, error)
	CreateUser(u *model.User) error
	TouchLogin(email string, ts int64) error
	RecordBuy(p *model.Position) error
	RecordSell(email string, t model.PositionType, closedAt int64, proceeds float64) error
	FindOpenPosition(email string, t model.PositionType) (*model.Position, error)
	FindAnyOpenPosition(email string) (*model.Position, error)
}

// Store combines the durable concerns behind a single handle.
type Store interface {
	EventLog
	UserStore
	Close() error
}
