package lib

import (
	"fmt"
	"os"

	"github.com/gravitational/trace"
	log "github.com/sirupsen/logrus"
)

// Bail logs the error, prints its user-facing message to stderr and exits
// with a nonzero code. Aggregates are reported one error per line.
func Bail(err error) {
	errs := []error{err}
	if agg, ok := trace.Unwrap(err).(trace.Aggregate); ok {
		errs = agg.Errors()
	}
	for _, err := range errs {
		log.WithError(err).Debug("Terminating...")
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", trace.UserMessage(err))
	}
	os.Exit(1)
}
