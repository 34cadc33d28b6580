package log

import "errors"

var (
	// ErrInvalidArgument indicates an invalid argument was provided.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrInvalidLevel indicates an unrecognized level name or rank.
	ErrInvalidLevel = errors.New("invalid log level")
	// ErrUnknownLogFormat indicates an unrecognized log format string.
	ErrUnknownLogFormat = errors.New("unknown log format")
	// ErrHandlerNotFound indicates that no handler with the given name is
	// attached to the logger.
	ErrHandlerNotFound = errors.New("handler not found")
	// ErrSerialization indicates that a record field could not be rendered
	// by a [Formatter].
	ErrSerialization = errors.New("serialization failed")
	// ErrDelivery indicates that a handler could not deliver a formatted
	// record to its sink. A [Logger] never returns it from a logging call;
	// it is reported to the registry's diagnostics logger instead.
	ErrDelivery = errors.New("delivery failed")
)
