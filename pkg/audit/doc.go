// Package audit persists a privacy-aware request log.
//
// Each handled protocol request becomes one row: method, tenant, model,
// outcome and duration. Message payloads are never stored, and the
// error column carries the already-sanitized protocol message, so the
// log is safe to keep on disk. Whether the log is written at all is the
// operator's choice; the privacy configuration's request-logging toggle
// gates the wiring.
//
// Rows age out under the retention policy: a cron-scheduled pruner
// deletes everything older than the configured number of days.
package audit
