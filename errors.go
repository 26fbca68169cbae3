package eventbus

import "errors"

var (
	// ErrBusClosed is returned when publishing to a bus that has been shut down.
	ErrBusClosed = errors.New("event bus is closed")

	// ErrBusNotStarted is returned by health checks when the bus is not running.
	ErrBusNotStarted = errors.New("event bus not started")

	// ErrUnsupportedPattern is returned by SubscribePattern for an unknown pattern kind.
	ErrUnsupportedPattern = errors.New("unsupported pattern kind")

	// ErrInvalidPattern is returned when a glob or regex pattern fails to compile.
	ErrInvalidPattern = errors.New("invalid pattern")

	// ErrNilHandler is returned when subscribing with a nil handler.
	ErrNilHandler = errors.New("handler must not be nil")

	// ErrAsyncHandlerInSync is recorded when EmitSync meets a subscription
	// configured for asynchronous processing.
	ErrAsyncHandlerInSync = errors.New("synchronous execution cannot handle async handler")

	// ErrHandlerTimeout is recorded when a handler exceeds its configured timeout.
	ErrHandlerTimeout = errors.New("handler execution timed out")

	// ErrHandlerPanic is recorded when a handler panics during execution.
	ErrHandlerPanic = errors.New("handler panicked")

	// ErrHealthcheckFailed is returned when the bus health check fails.
	ErrHealthcheckFailed = errors.New("event bus healthcheck failed")
)
