// Package notify decouples OTP delivery from the request path.
//
// A [Notifier] performs the actual delivery (SMTP, filesystem, tests).
// [Dispatcher] wraps a Notifier with a bounded queue and a worker
// goroutine so that slow mail servers never block code generation.
// [Relay] does the same over a watermill in-process pub/sub channel for
// deployments that want a message-bus seam instead of a plain queue.
package notify
