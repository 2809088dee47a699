// Package rate throttles failed login attempts with Redis fixed-window counters.
//
// Throttling is opt-in: a [Limiter] with MaxLoginAttempts <= 0 allows everything and
// never touches Redis.
package rate
