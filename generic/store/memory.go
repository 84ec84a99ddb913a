// Package store provides in-memory implementations of the generic source
// and ledger interfaces.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/warp/payout-engine/generic"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu          sync.RWMutex
	lessons     []generic.Lesson
	coaches     map[generic.CoachID]generic.Coach
	payouts     []generic.PayoutTransaction
	idempotency map[string]bool
}

var (
	_ generic.LessonSource = (*Memory)(nil)
	_ generic.CoachStore   = (*Memory)(nil)
	_ generic.PayoutStore  = (*Memory)(nil)
)

func NewMemory() *Memory {
	return &Memory{
		coaches:     make(map[generic.CoachID]generic.Coach),
		idempotency: make(map[string]bool),
	}
}

// =============================================================================
// LESSONS
// =============================================================================

// AddLessons inserts lessons keeping LessonDate order.
func (m *Memory) AddLessons(lessons ...generic.Lesson) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range lessons {
		// Binary search for insertion point; equal dates keep insertion order.
		i := sort.Search(len(m.lessons), func(i int) bool {
			return m.lessons[i].LessonDate.After(l.LessonDate)
		})
		m.lessons = append(m.lessons, generic.Lesson{})
		copy(m.lessons[i+1:], m.lessons[i:])
		m.lessons[i] = l
	}
}

func (m *Memory) Lessons(_ context.Context, q generic.LessonQuery) ([]generic.Lesson, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []generic.Lesson
	for _, l := range m.lessons {
		if q.Matches(l) {
			result = append(result, l)
		}
	}
	return result, nil
}

// =============================================================================
// COACHES
// =============================================================================

func (m *Memory) Coach(_ context.Context, id generic.CoachID) (generic.Coach, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.coaches[id]
	if !ok {
		return generic.Coach{}, generic.ErrCoachNotFound
	}
	return c, nil
}

func (m *Memory) Coaches(_ context.Context) ([]generic.Coach, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]generic.Coach, 0, len(m.coaches))
	for _, c := range m.coaches {
		result = append(result, c)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].FullName != result[j].FullName {
			return result[i].FullName < result[j].FullName
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

func (m *Memory) SaveCoach(_ context.Context, c generic.Coach) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.coaches[c.ID] = c
	return nil
}

func (m *Memory) SaveTaxSettings(_ context.Context, id generic.CoachID, s generic.TaxSettings) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.coaches[id]
	if !ok {
		return generic.ErrCoachNotFound
	}
	c.InvoiceRegistered = s.InvoiceRegistered
	c.WithholdingEnabled = s.WithholdingEnabled
	m.coaches[id] = c
	return nil
}

// =============================================================================
// PAYOUTS
// =============================================================================

func (m *Memory) Payouts(_ context.Context, q generic.PayoutQuery) ([]generic.PayoutTransaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []generic.PayoutTransaction
	for _, p := range m.payouts {
		if q.Matches(p) {
			result = append(result, p)
		}
	}
	return result, nil
}

func (m *Memory) GetPayout(_ context.Context, id generic.PayoutID) (generic.PayoutTransaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if i := m.indexLocked(id); i >= 0 {
		return m.payouts[i], nil
	}
	return generic.PayoutTransaction{}, generic.ErrPayoutNotFound
}

func (m *Memory) InsertPayout(_ context.Context, p generic.PayoutTransaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if p.IdempotencyKey != "" && m.idempotency[p.IdempotencyKey] {
		return generic.ErrDuplicateIdempotencyKey
	}
	m.payouts = append(m.payouts, p)
	if p.IdempotencyKey != "" {
		m.idempotency[p.IdempotencyKey] = true
	}
	return nil
}

func (m *Memory) UpdatePayoutStatus(_ context.Context, id generic.PayoutID, status generic.PayoutStatus, paidAt *time.Time, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.indexLocked(id)
	if i < 0 {
		return generic.ErrPayoutNotFound
	}
	m.payouts[i].Status = status
	m.payouts[i].PaidAt = paidAt
	m.payouts[i].UpdatedAt = at
	return nil
}

func (m *Memory) DeletePayout(_ context.Context, id generic.PayoutID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.indexLocked(id)
	if i < 0 {
		return generic.ErrPayoutNotFound
	}
	m.payouts = append(m.payouts[:i], m.payouts[i+1:]...)
	return nil
}

func (m *Memory) indexLocked(id generic.PayoutID) int {
	for i, p := range m.payouts {
		if p.ID == id {
			return i
		}
	}
	return -1
}
