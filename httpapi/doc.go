// Package httpapi exposes the engine over HTTP under /auth using gorilla/mux.
//
// Sessions travel in the USER_SESSION cookie. Errors are JSON objects
// {"status", "error", "message"}.
package httpapi
