package testkit

import (
	"context"
	"sync"

	"github.com/mmdatafocus/teller_backend/models"
)

// PassThroughTx runs fn without a transaction.
type PassThroughTx struct{}

func (PassThroughTx) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// RecordingPublisher keeps the topics of published events.
type RecordingPublisher struct {
	mu     sync.Mutex
	topics []string
}

func (p *RecordingPublisher) Publish(ctx context.Context, record *models.BatchEventRecord) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, record.Topic)
	return nil
}

func (p *RecordingPublisher) Topics() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.topics...)
}

func (p *RecordingPublisher) Has(topic string) bool {
	for _, t := range p.Topics() {
		if t == topic {
			return true
		}
	}
	return false
}

// MemSession remembers each employee's current batch in memory.
type MemSession struct {
	mu      sync.Mutex
	current map[int]int
}

func NewMemSession() *MemSession {
	return &MemSession{current: map[int]int{}}
}

func (s *MemSession) Remember(employeeId, batchId int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current[employeeId] = batchId
}

func (s *MemSession) Lookup(employeeId int) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.current[employeeId]
	return id, ok
}

func (s *MemSession) Forget(employeeId int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.current, employeeId)
}

// StaticCatalog is a fixed denomination catalog.
type StaticCatalog []models.Denomination

func (c StaticCatalog) GetDenominations(ctx context.Context, countryCode string) ([]models.Denomination, error) {
	var out []models.Denomination
	for _, d := range c {
		if d.CountryCode == countryCode {
			out = append(out, d)
		}
	}
	return out, nil
}
