package logger

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Fields is a set of structured log fields.
type Fields = logrus.Fields

var log = logrus.New()

// Init configures the package logger for JSON output on stdout at the given level.
// An empty or unknown level falls back to info.
func Init(level ...string) {
	l := New(os.Stdout)
	if len(level) > 0 {
		if parsed, err := logrus.ParseLevel(level[0]); err == nil {
			l.SetLevel(parsed)
		}
	}
	log = l
}

// New builds a JSON logger writing to w.
func New(w io.Writer) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(w)
	l.SetFormatter(&logrus.JSONFormatter{})
	l.SetLevel(logrus.InfoLevel)
	return l
}

// SetLogger replaces the package logger. Used by tests to capture output.
func SetLogger(l *logrus.Logger) {
	log = l
}

// Logger returns the package logger.
func Logger() *logrus.Logger {
	return log
}

// Info logs msg with optional key/value pairs.
func Info(msg string, kv ...interface{}) {
	entry(kv).Info(msg)
}

func Infof(format string, v ...interface{}) {
	log.Infof(format, v...)
}

func Warn(msg string, kv ...interface{}) {
	entry(kv).Warn(msg)
}

func Warnf(format string, v ...interface{}) {
	log.Warnf(format, v...)
}

func Error(msg string, kv ...interface{}) {
	entry(kv).Error(msg)
}

func Errorf(format string, v ...interface{}) {
	log.Errorf(format, v...)
}

func Debug(msg string, kv ...interface{}) {
	entry(kv).Debug(msg)
}

func Debugf(format string, v ...interface{}) {
	log.Debugf(format, v...)
}

func Fatal(msg string) {
	log.Fatal(msg)
}

func Fatalf(format string, v ...interface{}) {
	log.Fatalf(format, v...)
}

// WithError returns an entry carrying err under the "error" key.
func WithError(err error) *logrus.Entry {
	return log.WithError(err)
}

// WithFields returns an entry carrying the given fields.
func WithFields(fields map[string]interface{}) *logrus.Entry {
	return log.WithFields(logrus.Fields(fields))
}

// entry turns alternating key/value arguments into logrus fields.
// A trailing key without a value is logged under "!BADKEY".
func entry(kv []interface{}) *logrus.Entry {
	if len(kv) == 0 {
		return logrus.NewEntry(log)
	}
	fields := make(logrus.Fields, len(kv)/2+1)
	for i := 0; i < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			key = "!BADKEY"
		}
		if i+1 >= len(kv) {
			fields["!BADKEY"] = kv[i]
			break
		}
		fields[key] = kv[i+1]
	}
	return log.WithFields(fields)
}
