package builtin

import (
	"fmt"
)

// Accumulates a sequence of messages (e.g. invariant violations).
// An accumulator created by WithPrefix shares its messages with the parent.
type MessageAccumulator struct {
	prefix string
	msgs   *[]string
}

func (ma *MessageAccumulator) IsEmpty() bool {
	return ma.msgs == nil || len(*ma.msgs) == 0
}

func (ma *MessageAccumulator) Messages() []string {
	if ma.msgs == nil {
		return nil
	}
	return (*ma.msgs)[:]
}

// Returns an accumulator that prefixes every message added through it.
func (ma *MessageAccumulator) WithPrefix(format string, args ...interface{}) *MessageAccumulator {
	ma.init()
	return &MessageAccumulator{
		prefix: ma.prefix + fmt.Sprintf(format, args...),
		msgs:   ma.msgs,
	}
}

// Adds messages to the accumulator.
func (ma *MessageAccumulator) Add(msgs ...string) {
	ma.init()
	for _, msg := range msgs {
		*ma.msgs = append(*ma.msgs, ma.prefix+msg)
	}
}

func (ma *MessageAccumulator) Addf(msg string, args ...interface{}) {
	ma.Add(fmt.Sprintf(msg, args...))
}

// Adds messages from another accumulator to this one, under this accumulator's prefix.
func (ma *MessageAccumulator) AddAll(other *MessageAccumulator) {
	ma.Add(other.Messages()...)
}

// Adds a message if predicate is false.
func (ma *MessageAccumulator) Require(predicate bool, msg string, args ...interface{}) {
	if !predicate {
		ma.Addf(msg, args...)
	}
}

// Adds a message if err is non-nil.
func (ma *MessageAccumulator) RequireNoError(err error, msg string, args ...interface{}) {
	if err != nil {
		ma.Addf(msg+": %v", append(args, err)...)
	}
}

func (ma *MessageAccumulator) init() {
	if ma.msgs == nil {
		ma.msgs = &[]string{}
	}
}
