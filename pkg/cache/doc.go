// Package cache provides a generic LRU cache used to keep compiled `when`
// expressions and regular expressions around between evaluations.
//
// Statistics are always collected; Prometheus export is opt-in:
//
//	compiled, err := cache.NewLRU[*Compiled](256,
//		cache.WithMetrics[*Compiled](registry, "expression"),
//	)
//
// Eviction callbacks run outside the cache lock, so they may call back into the
// cache.
package cache
