// Package notify delivers operator messages: commit announcements and fatal
// error reports.
package notify

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
)

type Notifier interface {
	Notify(ctx context.Context, message string) error
}

// Func adapts a function to Notifier.
type Func func(ctx context.Context, message string) error

func (f Func) Notify(ctx context.Context, message string) error { return f(ctx, message) }

type Nop struct{}

func (Nop) Notify(context.Context, string) error { return nil }

// Log writes messages to a logger at info level.
type Log struct {
	log zerolog.Logger
}

func NewLog(log zerolog.Logger) *Log {
	return &Log{log: log.With().Str("component", "notify").Logger()}
}

func (l *Log) Notify(_ context.Context, message string) error {
	l.log.Info().Msg(message)
	return nil
}

// Multi fans a message out to every notifier and joins their errors.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, message string) error {
	var errs []error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.Notify(ctx, message); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
