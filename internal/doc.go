// Package internal holds the kbdebug implementation packages.
//
// Request flow: the debug middleware creates a session, attaches it to the
// request context as the active notice handler and hook observer, serves the
// request, fires the shutdown hook and injects the rendered report.
//
//   - notice, hooks: the two interception points
//   - session: per-request collection
//   - report: HTML rendering
//   - middleware, console: delivery
//   - config, flags, constants, roles, watcher: configuration and maintenance
package internal
