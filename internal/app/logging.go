package app

import (
	"os"

	log "github.com/sirupsen/logrus"
)

// ConfigureLogging sets up logrus: text output with full timestamps on
// stderr, at the given level. Unknown levels fall back to info.
func ConfigureLogging(level string) {
	log.SetOutput(os.Stderr)
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	lvl, err := log.ParseLevel(level)
	if err != nil {
		log.WithError(err).Warnf("app: unknown log level %q, using info", level)
		lvl = log.InfoLevel
	}
	log.SetLevel(lvl)
}
