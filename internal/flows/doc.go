// Package flows contains the orchestration behind every Engine operation.
//
// Each Run* function takes a dependency struct of closures built once by the engine
// and holds no state between calls. Flows decide ordering, error precedence, audit
// events, and metrics; the engine owns the stores, signer, hasher, and notifier.
//
// This package must not import the root sessiontrust package.
package flows
