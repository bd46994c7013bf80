package observability

import (
	"fmt"
	"runtime/debug"
)

// RecoverPanic recovers from a panic in the calling goroutine, logs it with the stack,
// and stores an error in *errp when errp is not nil. Use it directly in a defer:
//
//	defer observability.RecoverPanic(logger, "billing worker", &err)
func RecoverPanic(logger *Logger, component string, errp *error) {
	r := recover()
	if r == nil {
		return
	}
	logger.WithFields(map[string]interface{}{
		"panic":     fmt.Sprint(r),
		"stack":     string(debug.Stack()),
		"component": component,
	}).Error("PANIC recovered")
	if errp != nil {
		*errp = fmt.Errorf("panic in %s: %v", component, r)
	}
}
