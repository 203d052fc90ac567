// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package parallel runs independent workgroups on a pool of goroutines.
//
// Each worker owns a queue and steals from its neighbours when the queue runs
// dry, so uneven workgroups (edge groups, cancelled groups) do not leave
// workers idle.
//
// Thread safety: Scheduler is safe for concurrent use.
package parallel

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
)

// ErrClosed is returned by Run when the scheduler has been closed.
var ErrClosed = errors.New("parallel: scheduler closed")

// Scheduler is a work-stealing pool of goroutines.
type Scheduler struct {
	// workers is the number of worker goroutines.
	workers int

	// queues holds per-worker task queues.
	queues []chan func()

	// done signals workers to stop.
	done chan struct{}

	// wg waits for all workers to finish.
	wg sync.WaitGroup

	// mu is held for reading by Run and for writing by Close, so Close
	// waits for in-flight runs and no task is queued after the workers stop.
	mu sync.RWMutex

	// running indicates whether the scheduler is accepting work.
	running bool
}

// NewScheduler starts a scheduler with the given number of workers.
// If workers is 0 or negative, GOMAXPROCS is used.
func NewScheduler(workers int) *Scheduler {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	queueSize := max(workers*4, 8)

	s := &Scheduler{
		workers: workers,
		queues:  make([]chan func(), workers),
		done:    make(chan struct{}),
	}
	for i := range workers {
		s.queues[i] = make(chan func(), queueSize)
	}

	s.running = true

	s.wg.Add(workers)
	for i := range workers {
		go s.worker(i)
	}

	return s
}

func (s *Scheduler) worker(id int) {
	defer s.wg.Done()

	own := s.queues[id]

	for {
		select {
		case <-s.done:
			s.drain(own)
			return

		case task := <-own:
			task()

		default:
			if stolen := s.steal(id); stolen != nil {
				stolen()
				continue
			}
			select {
			case <-s.done:
				s.drain(own)
				return
			case task := <-own:
				task()
			}
		}
	}
}

// drain executes all remaining tasks in a queue.
func (s *Scheduler) drain(queue chan func()) {
	for {
		select {
		case task := <-queue:
			task()
		default:
			return
		}
	}
}

// steal takes one task from another worker's queue, or returns nil.
func (s *Scheduler) steal(id int) func() {
	for i := range s.workers {
		if i == id {
			continue
		}
		select {
		case task := <-s.queues[i]:
			return task
		default:
		}
	}
	return nil
}

// Run executes fn(i) for every i in [0, n) and waits for completion.
//
// Tasks are distributed round-robin and may run in any order. Once ctx is
// done, tasks that have not started are skipped and ctx.Err() is returned.
// Tasks already running are not interrupted.
//
// Run must not be called from inside a task of the same scheduler.
func (s *Scheduler) Run(ctx context.Context, n int, fn func(i int)) error {
	if n <= 0 {
		return nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.running {
		return ErrClosed
	}

	var (
		pending sync.WaitGroup
		skipped atomic.Bool
	)
	pending.Add(n)

	for i := range n {
		task := func() {
			defer pending.Done()
			if ctx.Err() != nil {
				skipped.Store(true)
				return
			}
			fn(i)
		}

		s.queues[i%s.workers] <- task
	}

	pending.Wait()

	if skipped.Load() {
		return ctx.Err()
	}
	return nil
}

// Close waits for in-flight runs, stops accepting work and stops the
// workers. Run after Close returns ErrClosed. Close is idempotent.
func (s *Scheduler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.running = false
	close(s.done)
	s.wg.Wait()
}

// Workers returns the number of workers.
func (s *Scheduler) Workers() int {
	return s.workers
}
