// timer/timer.go
package timer

import (
	"container/heap"
	"sync"
	"time"
)

type TimerTask struct {
	Id       int64
	Execute  time.Time
	Interval time.Duration
	Callback func()
	index    int
}

type TimerQueue []*TimerTask

func (q TimerQueue) Len() int { return len(q) }

func (q TimerQueue) Less(i, j int) bool {
	return q[i].Execute.Before(q[j].Execute)
}

func (q TimerQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *TimerQueue) Push(x interface{}) {
	n := len(*q)
	task := x.(*TimerTask)
	task.index = n
	*q = append(*q, task)
}

func (q *TimerQueue) Pop() interface{} {
	old := *q
	n := len(old)
	task := old[n-1]
	task.index = -1
	*q = old[0 : n-1]
	return task
}

// TimerManager runs callbacks at their deadline. One manager is shared by
// every room in the process; callbacks are started on their own goroutine
// and must hand their work to whatever serializes the owner's state.
type TimerManager struct {
	queue  TimerQueue
	mutex  sync.Mutex
	nextId int64
	wake   chan struct{}
	done   chan struct{}
	once   sync.Once
}

func NewTimerManager() *TimerManager {
	manager := &TimerManager{
		queue:  make(TimerQueue, 0),
		nextId: 1,
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	heap.Init(&manager.queue)
	go manager.process()
	return manager
}

// AddTimer schedules callback after delay. A positive interval makes the
// task repeat until removed.
func (m *TimerManager) AddTimer(delay time.Duration, interval time.Duration, callback func()) int64 {
	m.mutex.Lock()
	task := &TimerTask{
		Id:       m.nextId,
		Execute:  time.Now().Add(delay),
		Interval: interval,
		Callback: callback,
	}
	m.nextId++
	heap.Push(&m.queue, task)
	m.mutex.Unlock()

	m.poke()
	return task.Id
}

// RemoveTimer cancels a pending task. It reports whether the task was still
// queued.
func (m *TimerManager) RemoveTimer(timerId int64) bool {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	for i, task := range m.queue {
		if task.Id == timerId {
			heap.Remove(&m.queue, i)
			return true
		}
	}
	return false
}

// Len returns the number of queued tasks.
func (m *TimerManager) Len() int {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.queue.Len()
}

// Stop terminates the processing goroutine. Pending tasks never fire.
func (m *TimerManager) Stop() {
	m.once.Do(func() { close(m.done) })
}

func (m *TimerManager) poke() {
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

func (m *TimerManager) process() {
	wait := time.NewTimer(time.Hour)
	defer wait.Stop()

	for {
		m.mutex.Lock()
		now := time.Now()
		for m.queue.Len() > 0 {
			task := m.queue[0]
			if task.Execute.After(now) {
				break
			}

			heap.Pop(&m.queue)
			go task.Callback()

			if task.Interval > 0 {
				task.Execute = now.Add(task.Interval)
				heap.Push(&m.queue, task)
			}
		}

		next := time.Hour
		if m.queue.Len() > 0 {
			next = time.Until(m.queue[0].Execute)
		}
		m.mutex.Unlock()

		if !wait.Stop() {
			select {
			case <-wait.C:
			default:
			}
		}
		wait.Reset(next)

		select {
		case <-wait.C:
		case <-m.wake:
		case <-m.done:
			return
		}
	}
}
