package testsupport

import (
	"github.com/apex/log"
	"github.com/apex/log/handlers/discard"
)

// QuietLogger returns a logger that drops everything, keeping test output
// readable while exercising code paths that log.
func QuietLogger() log.Interface {
	return &log.Logger{
		Handler: discard.New(),
		Level:   log.ErrorLevel,
	}
}
