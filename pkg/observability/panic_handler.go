package observability

import (
	"runtime/debug"
)

// RecoverPanic recovers from a panic and logs it with the stack trace.
//
// Usage in defer statements:
//
//	func scheduledJob() {
//	    defer observability.RecoverPanic(logger, "nightly reconcile")
//	    // ... code that might panic
//	}
//
// After logging, the panic is NOT re-raised. This keeps a panicking
// scheduled job from taking down the process.
func RecoverPanic(logger *Logger, context string) {
	if r := recover(); r != nil {
		logger.WithField("panic", r).
			WithField("stack", string(debug.Stack())).
			WithField("context", context).
			Error("PANIC recovered")
	}
}
