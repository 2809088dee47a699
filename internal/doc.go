// Package internal holds helpers private to sessiontrust: challenge secret generation
// and hashing.
//
// # Sub-packages
//
//   - audit: async event dispatch (Dispatcher + Sink implementations)
//   - flows: flow orchestrators behind every Engine operation
//   - rate: Redis fixed-window login throttle
package internal
