package eventstore

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"TradePulse/internal/model"
	"TradePulse/internal/storage"
)

// Store owns the per-instance, per-metric event series. The in-memory map is
// authoritative for all reads; the event log behind it is best-effort
// write-behind and never sits on the read path.
type Store struct {
	mu             sync.RWMutex
	events         model.EventMap
	lastServerTime int64

	persistCh chan storage.StoredEvent
	drained   chan struct{}
	closeOnce sync.Once

	log zerolog.Logger
	now func() time.Time
}

// New creates a Store backed by the given event log and starts its
// write-behind worker.
func New(eventLog storage.EventLog, logger zerolog.Logger) *Store {
	s := &Store{
		events:    make(model.EventMap),
		persistCh: make(chan storage.StoredEvent, 1024),
		drained:   make(chan struct{}),
		log:       logger.With().Str("component", "eventstore").Logger(),
		now:       time.Now,
	}
	go s.persistLoop(eventLog)
	return s
}

// Append inserts an event into the (instanceID, key) series at the position
// that preserves ascending time order, assigns a process-monotonic
// serverTime, and queues the event for persistence.
func (s *Store) Append(instanceID string, key model.MetricKey, value any, ts int64) {
	s.mu.Lock()
	serverTime := s.nextServerTime()
	s.insertLocked(instanceID, key, model.Event{Value: value, Time: ts, ServerTime: serverTime})
	s.mu.Unlock()

	select {
	case s.persistCh <- storage.StoredEvent{
		InstanceID: instanceID,
		Key:        key,
		Value:      value,
		Time:       ts,
		ServerTime: serverTime,
	}:
	default:
		s.log.Warn().Str("instance", instanceID).Str("key", string(key)).
			Msg("persist queue full, dropping event from durable log")
	}
}

// Replay re-inserts persisted events with their original serverTime, without
// re-persisting them. Called once on boot before any Append.
func (s *Store) Replay(events []storage.StoredEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, evt := range events {
		s.insertLocked(evt.InstanceID, evt.Key, model.Event{
			Value:      evt.Value,
			Time:       evt.Time,
			ServerTime: evt.ServerTime,
		})
		if evt.ServerTime > s.lastServerTime {
			s.lastServerTime = evt.ServerTime
		}
	}
	s.log.Info().Int("events", len(events)).Msg("replayed persisted events")
}

// insertLocked scans backward from the tail; series are typically appended
// near-in-order, so the scan is short in the common case.
func (s *Store) insertLocked(instanceID string, key model.MetricKey, evt model.Event) {
	instance, ok := s.events[instanceID]
	if !ok {
		instance = make(model.InstanceSnapshot)
		s.events[instanceID] = instance
	}
	series := instance[key]

	i := len(series) - 1
	for i >= 0 && series[i].Time > evt.Time {
		i--
	}
	series = append(series, model.Event{})
	copy(series[i+2:], series[i+1:])
	series[i+1] = evt
	instance[key] = series
}

// nextServerTime returns wall-clock millis, bumped to stay strictly
// monotonic within the process.
func (s *Store) nextServerTime() int64 {
	ts := s.now().UnixMilli()
	if ts <= s.lastServerTime {
		ts = s.lastServerTime + 1
	}
	s.lastServerTime = ts
	return ts
}

// Snapshot returns a deep copy of the full instance → metric → series map.
func (s *Store) Snapshot() model.EventMap {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(model.EventMap, len(s.events))
	for instanceID, instance := range s.events {
		snap := make(model.InstanceSnapshot, len(instance))
		for key, series := range instance {
			cp := make(model.Series, len(series))
			copy(cp, series)
			snap[key] = cp
		}
		out[instanceID] = snap
	}
	return out
}

// Delta returns, per instance and metric, only the events whose serverTime
// exceeds the cursor, plus the new cursor. Metrics with no new events are
// omitted; the returned cursor never regresses below the input.
func (s *Store) Delta(since int64) (model.EventMap, int64) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(model.EventMap)
	cursor := since
	for instanceID, instance := range s.events {
		for key, series := range instance {
			var fresh model.Series
			for _, evt := range series {
				if evt.ServerTime > since {
					fresh = append(fresh, evt)
					if evt.ServerTime > cursor {
						cursor = evt.ServerTime
					}
				}
			}
			if len(fresh) > 0 {
				if out[instanceID] == nil {
					out[instanceID] = make(model.InstanceSnapshot)
				}
				out[instanceID][key] = fresh
			}
		}
	}
	return out, cursor
}

func (s *Store) persistLoop(eventLog storage.EventLog) {
	defer close(s.drained)
	for evt := range s.persistCh {
		if err := eventLog.AppendEvent(evt); err != nil {
			s.log.Error().Err(err).Str("instance", evt.InstanceID).
				Str("key", string(evt.Key)).Msg("persist event failed")
		}
	}
}

// Close stops the write-behind worker after draining queued events.
func (s *Store) Close() {
	s.closeOnce.Do(func() {
		close(s.persistCh)
		<-s.drained
	})
}
