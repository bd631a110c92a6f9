// Package notifications delivers job lifecycle events. Push notifications go
// to an ntfy topic when one is configured; the final job result is POSTed as
// JSON to the manifest's callback URL. Both surfaces are best-effort: a
// delivery failure never fails the job that triggered it.
package notifications
