// Package audit records security-relevant events: derived-role
// assignments and removals, refused synchronizations, access denials
// and security validation runs.
//
// Events are persisted through the Logger interface. The default
// implementation writes to the audit_events table; a no-op logger is
// available for tests and for callers that opt out. The security
// validator reads recent events back through Search to confirm the
// trail is being written.
package audit
