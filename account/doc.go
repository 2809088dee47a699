// Package account defines the persisted account record, the immutable principal view
// handed to callers after authentication, and the storage port the engine mutates
// accounts through.
//
// # Architecture boundaries
//
// This package is a leaf: it imports no other sessiontrust package so that storage
// adapters can implement [Store] without import cycles.
package account
