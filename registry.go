// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package flip

import (
	"fmt"
	"slices"
	"sync"
)

// DispatcherFactory creates a dispatcher from options.
type DispatcherFactory func(opts ...Option) (Dispatcher, error)

// DispatcherCPU is the registered name of the CPU dispatcher.
const DispatcherCPU = "cpu"

var (
	registryMu  sync.RWMutex
	dispatchers = map[string]DispatcherFactory{
		DispatcherCPU: func(opts ...Option) (Dispatcher, error) {
			return NewCPUDispatcher(opts...), nil
		},
	}
)

// Register registers a dispatcher factory under name, replacing any
// existing registration. GPU packages call it from init().
func Register(name string, factory DispatcherFactory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	dispatchers[name] = factory
}

// Unregister removes a dispatcher registration.
func Unregister(name string) {
	registryMu.Lock()
	defer registryMu.Unlock()
	delete(dispatchers, name)
}

// Available returns the sorted names of registered dispatchers.
func Available() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(dispatchers))
	for name := range dispatchers {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// NewDispatcher creates the dispatcher registered under name.
func NewDispatcher(name string, opts ...Option) (Dispatcher, error) {
	registryMu.RLock()
	factory, ok := dispatchers[name]
	registryMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %v)", ErrUnknownDispatcher, name, Available())
	}
	return factory(opts...)
}
