package core

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Outcome is the result of a reconciliation cycle
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// CycleRecord summarizes one reconciliation cycle. Records live in memory only.
type CycleRecord struct {
	ID         string        `json:"id"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Duration   time.Duration `json:"duration_ns"`
	Outcome    Outcome       `json:"outcome"`
	Error      string        `json:"error,omitempty"`
	Cameras    int           `json:"cameras"`
	Monitors   int           `json:"monitors"`
	Created    int           `json:"created"`
	Updated    int           `json:"updated"`
	Unchanged  int           `json:"unchanged"`
	Failed     int           `json:"failed"`
}

// StatusSubscriber receives every finished cycle record
type StatusSubscriber interface {
	OnCycle(record CycleRecord)
	GetID() string
}

// StatusSnapshot is a point-in-time view of the store
type StatusSnapshot struct {
	LastOutcome Outcome       `json:"last_outcome,omitempty"`
	NextDelay   time.Duration `json:"next_delay_ns"`
	TotalCycles uint64        `json:"total_cycles"`
	Failures    uint64        `json:"failures"`
	Recent      []CycleRecord `json:"recent"`
}

// StatusStore keeps the most recent cycle records and fans them out to subscribers
type StatusStore struct {
	logger   *zap.Logger
	capacity int

	records     []CycleRecord
	totalCycles uint64
	failures    uint64
	nextDelay   time.Duration
	mutex       sync.RWMutex

	subscribers map[string]StatusSubscriber
	subMutex    sync.RWMutex
}

// NewStatusStore creates a store keeping at most capacity records
func NewStatusStore(capacity int, logger *zap.Logger) *StatusStore {
	if capacity <= 0 {
		capacity = 20
	}

	return &StatusStore{
		logger:      logger,
		capacity:    capacity,
		records:     make([]CycleRecord, 0, capacity),
		subscribers: make(map[string]StatusSubscriber),
	}
}

// Record stores a finished cycle and notifies subscribers
func (s *StatusStore) Record(record CycleRecord) {
	s.mutex.Lock()
	if len(s.records) == s.capacity {
		copy(s.records, s.records[1:])
		s.records = s.records[:len(s.records)-1]
	}
	s.records = append(s.records, record)
	s.totalCycles++
	if record.Outcome == OutcomeFailure {
		s.failures++
	}
	s.mutex.Unlock()

	s.subMutex.RLock()
	subscribers := make([]StatusSubscriber, 0, len(s.subscribers))
	for _, sub := range s.subscribers {
		subscribers = append(subscribers, sub)
	}
	s.subMutex.RUnlock()

	for _, sub := range subscribers {
		sub.OnCycle(record)
	}
}

// SetNextDelay records the delay chosen for the running cycle
func (s *StatusStore) SetNextDelay(delay time.Duration) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.nextDelay = delay
}

// Snapshot returns a copy of the current state, newest record first
func (s *StatusStore) Snapshot() StatusSnapshot {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	snapshot := StatusSnapshot{
		NextDelay:   s.nextDelay,
		TotalCycles: s.totalCycles,
		Failures:    s.failures,
		Recent:      make([]CycleRecord, 0, len(s.records)),
	}
	for i := len(s.records) - 1; i >= 0; i-- {
		snapshot.Recent = append(snapshot.Recent, s.records[i])
	}
	if len(s.records) > 0 {
		snapshot.LastOutcome = s.records[len(s.records)-1].Outcome
	}
	return snapshot
}

// Subscribe registers a subscriber
func (s *StatusStore) Subscribe(sub StatusSubscriber) {
	s.subMutex.Lock()
	defer s.subMutex.Unlock()

	s.subscribers[sub.GetID()] = sub
	s.logger.Debug("Status subscriber added",
		zap.String("subscriber_id", sub.GetID()),
		zap.Int("total_subscribers", len(s.subscribers)),
	)
}

// Unsubscribe removes a subscriber
func (s *StatusStore) Unsubscribe(id string) {
	s.subMutex.Lock()
	defer s.subMutex.Unlock()

	delete(s.subscribers, id)
}

// GetSubscriberCount returns the number of subscribers
func (s *StatusStore) GetSubscriberCount() int {
	s.subMutex.RLock()
	defer s.subMutex.RUnlock()
	return len(s.subscribers)
}
