package logger

import (
	"fmt"

	"go.uber.org/zap"
)

// Channel is a named logger for one workflow. Diagnostic detail for errors
// goes to a separate "<name>.stack" logger so it can be filtered on its own.
type Channel struct {
	name  string
	log   *zap.SugaredLogger
	stack *zap.SugaredLogger
}

// NewChannel returns a channel named name on base. A nil base discards
// everything.
func NewChannel(base *zap.Logger, name string) *Channel {
	if base == nil {
		base = zap.NewNop()
	}
	named := base.Named(name)
	return &Channel{
		name:  name,
		log:   named.Sugar(),
		stack: named.Named("stack").Sugar(),
	}
}

// Name returns the channel name.
func (c *Channel) Name() string {
	return c.name
}

// With returns a channel that adds keysAndValues to every record.
func (c *Channel) With(keysAndValues ...interface{}) *Channel {
	return &Channel{
		name:  c.name,
		log:   c.log.With(keysAndValues...),
		stack: c.stack.With(keysAndValues...),
	}
}

func (c *Channel) Debug(msg string, keysAndValues ...interface{}) {
	c.log.Debugw(msg, keysAndValues...)
}

func (c *Channel) Info(msg string, keysAndValues ...interface{}) {
	c.log.Infow(msg, keysAndValues...)
}

func (c *Channel) Warn(msg string, keysAndValues ...interface{}) {
	c.log.Warnw(msg, keysAndValues...)
}

func (c *Channel) Error(msg string, keysAndValues ...interface{}) {
	c.log.Errorw(msg, keysAndValues...)
}

// Stack logs the full "%+v" rendering of err, which includes the stack
// trace and values for errors that carry them.
func (c *Channel) Stack(err error) {
	if err == nil {
		return
	}
	c.stack.Errorw(err.Error(), "detail", fmt.Sprintf("%+v", err))
}

// Sync flushes buffered records.
func (c *Channel) Sync() error {
	return c.log.Sync()
}
