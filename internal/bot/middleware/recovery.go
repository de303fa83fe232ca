package middleware

import (
	"fmt"
	"runtime/debug"

	log "github.com/sirupsen/logrus"

	"freeloot.dev/lootscraper/internal/logging"
)

// RecoverFromPanic is deferred by update handlers. The panic is logged as
// critical so it reaches the developer chat.
func RecoverFromPanic() {
	if r := recover(); r != nil {
		logging.Critical().WithFields(log.Fields{
			"component": "panic_recovery",
			"panic":     fmt.Sprintf("%v", r),
			"stack":     string(debug.Stack()),
		}).Error("Panic in update handler, recovered")
	}
}
