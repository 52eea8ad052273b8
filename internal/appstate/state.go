// Package appstate holds the per-user state shared by the aggregator, the
// reminder scheduler and the controller that owns them.
package appstate

import (
	"sync"

	"github.com/bs3vcenk/Netrix-sub000/internal/model"
)

type State struct {
	mu sync.RWMutex

	token       string
	activeClass int
	offline     bool
	classes     []model.Class
	aggregates  map[int]*model.ClassAggregate
	scheduled   map[string]struct{}
}

func New(token string) *State {
	return &State{
		token:      token,
		aggregates: make(map[int]*model.ClassAggregate),
		scheduled:  make(map[string]struct{}),
	}
}

func (s *State) Token() string {
	return s.token
}

func (s *State) ActiveClass() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeClass
}

func (s *State) SetActiveClass(i int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activeClass = i
}

// Offline reports whether the data in the state came from cache after the
// portal could not be reached.
func (s *State) Offline() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.offline
}

func (s *State) SetOffline(offline bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.offline = offline
}

func (s *State) Classes() []model.Class {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.Class(nil), s.classes...)
}

func (s *State) SetClasses(classes []model.Class) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.classes = append([]model.Class(nil), classes...)
}

func (s *State) Aggregate(classIndex int) (*model.ClassAggregate, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	agg, ok := s.aggregates[classIndex]
	return agg, ok
}

func (s *State) PutAggregate(classIndex int, agg *model.ClassAggregate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.aggregates[classIndex] = agg
}

// Exams returns the exams of the active class.
func (s *State) Exams() []model.Exam {
	s.mu.RLock()
	defer s.mu.RUnlock()
	agg, ok := s.aggregates[s.activeClass]
	if !ok {
		return nil
	}
	return append([]model.Exam(nil), agg.Exams...)
}

// ReplaceScheduled replaces the set of reminder ids known to be scheduled.
func (s *State) ReplaceScheduled(ids []string) {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.scheduled = set
}

func (s *State) IsScheduled(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.scheduled[id]
	return ok
}

func (s *State) ScheduledCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.scheduled)
}
