package logger

import (
	"fmt"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
)

// Log is the subset of logrus handed to packages that take a logger rather than use the global one.
type Log interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	WithField(key string, value interface{}) *log.Entry
}

var _ Log = log.StandardLogger()

// Configure sets the global logrus level and formatter. format is "text" or "json".
func Configure(level string, format string) error {
	if len(level) == 0 {
		level = "info"
	}
	l, err := log.ParseLevel(level)
	if err != nil {
		return err
	}
	log.SetLevel(l)
	log.SetOutput(os.Stderr)
	switch strings.ToLower(format) {
	case "", "text":
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	case "json":
		log.SetFormatter(&log.JSONFormatter{})
	default:
		return fmt.Errorf("unknown log format %s", format)
	}
	return nil
}
