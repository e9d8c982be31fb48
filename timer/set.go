package timer

import (
	"sort"
	"sync"
	"time"
)

// Dispatcher runs fn on the owner's serialized execution context.
type Dispatcher func(fn func())

// Set is a group of named one-shot timers owned by a single component.
// Scheduling a name that is already pending replaces it. A fired callback is
// delivered through the dispatcher and only runs if its timer was not
// cancelled or replaced in the meantime, so a callback that raced with
// Cancel on the owner's queue is dropped.
type Set struct {
	manager  *TimerManager
	dispatch Dispatcher
	mutex    sync.Mutex
	tasks    map[string]*entry
}

type entry struct {
	id int64
}

func NewSet(manager *TimerManager, dispatch Dispatcher) *Set {
	return &Set{
		manager:  manager,
		dispatch: dispatch,
		tasks:    make(map[string]*entry),
	}
}

// Schedule arms the timer called name to run fn after delay.
func (s *Set) Schedule(name string, delay time.Duration, fn func()) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if old, ok := s.tasks[name]; ok {
		s.manager.RemoveTimer(old.id)
	}

	e := &entry{}
	s.tasks[name] = e
	e.id = s.manager.AddTimer(delay, 0, func() {
		s.dispatch(func() {
			if s.claim(name, e) {
				fn()
			}
		})
	})
}

// Cancel disarms the named timer and reports whether it was pending.
func (s *Set) Cancel(name string) bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	e, ok := s.tasks[name]
	if !ok {
		return false
	}
	s.manager.RemoveTimer(e.id)
	delete(s.tasks, name)
	return true
}

// CancelAll disarms every pending timer in the set.
func (s *Set) CancelAll() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	for name, e := range s.tasks {
		s.manager.RemoveTimer(e.id)
		delete(s.tasks, name)
	}
}

// Pending returns the names of armed timers in sorted order.
func (s *Set) Pending() []string {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	names := make([]string, 0, len(s.tasks))
	for name := range s.tasks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *Set) claim(name string, e *entry) bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if current, ok := s.tasks[name]; !ok || current != e {
		return false
	}
	delete(s.tasks, name)
	return true
}
