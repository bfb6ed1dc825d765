// Package logging builds the service logger and carries a request-scoped
// entry through context.Context.
package logging

import (
	"context"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

type ctxKey struct{}

// New returns a logger configured for env ("local" gets a text formatter
// and debug level, everything else JSON at info).
func New(env string) *logrus.Logger {
	return NewWithOutput(env, os.Stdout)
}

func NewWithOutput(env string, out io.Writer) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(out)
	if env == "local" {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
		l.SetLevel(logrus.DebugLevel)
	} else {
		l.SetFormatter(&logrus.JSONFormatter{})
		l.SetLevel(logrus.InfoLevel)
	}
	return l
}

// Into stores entry in ctx.
func Into(ctx context.Context, entry *logrus.Entry) context.Context {
	return context.WithValue(ctx, ctxKey{}, entry)
}

// From returns the entry stored by Into, or a discarding entry when there is
// none, so callers never need a nil check.
func From(ctx context.Context) *logrus.Entry {
	if ctx != nil {
		if e, ok := ctx.Value(ctxKey{}).(*logrus.Entry); ok && e != nil {
			return e.WithContext(ctx)
		}
	}
	return logrus.NewEntry(discard)
}

var discard = func() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}()
