// Package notify delivers the emails of the login and password reset flows.
//
// [ResendNotifier] sends HTML mail through the Resend REST API. [LogNotifier]
// writes the messages to a logger and is meant for development servers.
package notify
