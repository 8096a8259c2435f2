// Package lazy provides a publish-once cell for derived metadata caches.
//
// A Value may be computed concurrently by several goroutines on first access.
// Exactly one result is published and every reader observes that instance
// afterwards. No lock is held while computing, so the compute function must be
// free of externally visible side effects.
package lazy

import "sync/atomic"

// Value is a race-tolerant compute-once cell. The zero value is empty and ready to use.
type Value[T any] struct {
	p atomic.Pointer[T]
}

// Get returns the published value, if any
func (v *Value[T]) Get() (T, bool) {
	if p := v.p.Load(); p != nil {
		return *p, true
	}
	var zero T
	return zero, false
}

// EnsureInitialized returns the published value, computing and publishing it if absent.
func (v *Value[T]) EnsureInitialized(compute func() T) T {
	if p := v.p.Load(); p != nil {
		return *p
	}
	computed := compute()
	if v.p.CompareAndSwap(nil, &computed) {
		return computed
	}
	return *v.p.Load()
}

// EnsureInitializedErr is EnsureInitialized for fallible computations.
// Nothing is published when compute returns an error.
func (v *Value[T]) EnsureInitializedErr(compute func() (T, error)) (T, error) {
	if p := v.p.Load(); p != nil {
		return *p, nil
	}
	computed, err := compute()
	if err != nil {
		var zero T
		return zero, err
	}
	if v.p.CompareAndSwap(nil, &computed) {
		return computed, nil
	}
	return *v.p.Load(), nil
}

// Reset discards the published value. Only safe while the owner is not shared.
func (v *Value[T]) Reset() {
	v.p.Store(nil)
}
