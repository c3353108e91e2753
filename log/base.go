// Package log defines standard logging for the consensus diagnostics engine.
package log

import (
	"github.com/inconshreveable/log15"
)

// Logger is the logging interface used throughout the project.
type Logger interface {
	With(ctx ...interface{}) Logger

	Debug(msg string, ctx ...interface{})
	Info(msg string, ctx ...interface{})
	Notice(msg string, ctx ...interface{})
	Warn(msg string, ctx ...interface{})
	Error(msg string, ctx ...interface{})
}

type log15Adaptor struct {
	log15.Logger
}

func (l log15Adaptor) With(ctx ...interface{}) Logger {
	return log15Adaptor{
		Logger: l.New(ctx...),
	}
}

func (l log15Adaptor) Notice(msg string, ctx ...interface{}) {
	l.Info(msg, ctx...)
}

// NewLog15 adapts a log15.Logger to the Logger interface.
func NewLog15(l log15.Logger) Logger {
	return log15Adaptor{
		Logger: l,
	}
}

// NewDebug builds a logger writing everything to standard output.
func NewDebug() Logger {
	return log15Adaptor{
		Logger: log15.New(),
	}
}

// NewNop builds a logger that discards everything.
func NewNop() Logger {
	l := log15.New()
	l.SetHandler(log15.DiscardHandler())
	return log15Adaptor{
		Logger: l,
	}
}
