package logger

import (
	"io"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// RequestIDHeader is read from incoming requests and echoed to collaborators.
const RequestIDHeader = "X-Request-ID"

type Logger struct {
	*logrus.Entry
}

// New builds a logger from ENVIRONMENT and LOG_LEVEL.
func New() *Logger {
	return NewWith(os.Getenv("ENVIRONMENT"), os.Getenv("LOG_LEVEL"), os.Stdout)
}

// NewWith builds a logger for an explicit environment and level.
// Local env = pretty console; others = JSON
func NewWith(env, level string, out io.Writer) *Logger {
	base := logrus.New()

	if env == "" || env == "local" {
		base.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.RFC3339Nano,
			ForceColors:     out == os.Stdout,
		})
	} else {
		base.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
		})
	}

	base.SetOutput(out)
	base.SetLevel(parseLevel(level))

	return &Logger{Entry: logrus.NewEntry(base).WithField("service", "healthcare-call-insights")}
}

// Discard returns a logger that writes nowhere. Used by tests and by
// constructors that receive a nil logger.
func Discard() *Logger {
	return NewWith("test", "error", io.Discard)
}

// OrDiscard returns l, or a discarding logger when l is nil.
func OrDiscard(l *Logger) *Logger {
	if l == nil {
		return Discard()
	}
	return l
}

func parseLevel(level string) logrus.Level {
	switch level {
	case "debug":
		return logrus.DebugLevel
	case "warn":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

// Component returns a child logger tagged with a component name.
func (l *Logger) Component(name string) *Logger {
	return &Logger{Entry: l.Entry.WithField("component", name)}
}

// WithRequest attaches request metadata and returns an entry
func (l *Logger) WithRequest(r *http.Request) *logrus.Entry {
	return l.WithFields(logrus.Fields{
		"req_id":     RequestID(r),
		"method":     r.Method,
		"path":       r.URL.Path,
		"remote_ip":  r.RemoteAddr,
		"user_agent": r.UserAgent(),
	})
}

// RequestID returns the caller supplied request id or a fresh one.
func RequestID(r *http.Request) string {
	if id := r.Header.Get(RequestIDHeader); id != "" {
		return id
	}
	return uuid.New().String()
}

// WithError standardizes error logging
func (l *Logger) WithError(err error) *logrus.Entry {
	if err == nil {
		return l.Entry
	}
	return l.Entry.WithField("error", err.Error())
}
