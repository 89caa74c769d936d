package logger

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

var log *logrus.Logger

// Init configures the process-wide logger. Unknown levels fall back to info,
// unknown formats to text.
func Init(level, format string) error {
	return InitWithOutput(level, format, os.Stderr)
}

func InitWithOutput(level, format string, out io.Writer) error {
	l := logrus.New()

	switch level {
	case "debug":
		l.SetLevel(logrus.DebugLevel)
	case "info", "":
		l.SetLevel(logrus.InfoLevel)
	case "warn":
		l.SetLevel(logrus.WarnLevel)
	case "error":
		l.SetLevel(logrus.ErrorLevel)
	default:
		return fmt.Errorf("unknown log level %q", level)
	}

	switch format {
	case "json":
		l.SetFormatter(&logrus.JSONFormatter{})
	default:
		l.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}

	l.SetOutput(out)
	log = l

	return nil
}

// WithFields returns an entry carrying structured context. Before Init it
// writes through a throwaway stderr logger so callers never need a nil check.
func WithFields(fields logrus.Fields) *logrus.Entry {
	if log == nil {
		return logrus.NewEntry(logrus.StandardLogger()).WithFields(fields)
	}
	return log.WithFields(fields)
}

func Debugf(format string, args ...interface{}) {
	if log != nil {
		log.Debugf(format, args...)
	}
}

func Infof(format string, args ...interface{}) {
	if log != nil {
		log.Infof(format, args...)
	}
}

func Warnf(format string, args ...interface{}) {
	if log != nil {
		log.Warnf(format, args...)
	} else {
		fmt.Fprintf(os.Stderr, "WARN: "+format+"\n", args...)
	}
}

func Errorf(format string, args ...interface{}) {
	if log != nil {
		log.Errorf(format, args...)
	} else {
		fmt.Fprintf(os.Stderr, "ERROR: "+format+"\n", args...)
	}
}

func Fatalf(format string, args ...interface{}) {
	if log != nil {
		log.Fatalf(format, args...)
	} else {
		fmt.Fprintf(os.Stderr, "FATAL: "+format+"\n", args...)
		os.Exit(1)
	}
}
