package config

import "sync"

// ConfigCallback fans a loaded configuration out to packages that were
// initialised with defaults (the logger, for instance).
type ConfigCallback[T any] struct {
	mu        sync.Mutex
	callbacks []func(T)
}

func (cc *ConfigCallback[T]) AddCallback(f func(T)) {
	cc.mu.Lock()
	defer cc.mu.Unlock()

	cc.callbacks = append(cc.callbacks, f)
}

func (cc *ConfigCallback[T]) Call(value T) {
	cc.mu.Lock()
	callbacks := make([]func(T), len(cc.callbacks))
	copy(callbacks, cc.callbacks)
	cc.mu.Unlock()

	for _, f := range callbacks {
		f(value)
	}
}
