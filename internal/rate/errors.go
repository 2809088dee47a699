package rate

import "errors"

var (
	// ErrRateLimited is returned once an identifier or IP exhausted its attempt budget.
	ErrRateLimited = errors.New("rate limited")
	// ErrRedisUnavailable wraps Redis command failures.
	ErrRedisUnavailable = errors.New("redis unavailable")
)
