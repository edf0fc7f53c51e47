package opcn3

import (
	"errors"
	"fmt"
)

var (
	// ErrNotReady means the device did not answer a probe with the ready
	// pattern. The driver retries it internally.
	ErrNotReady = errors.New("opcn3: device not ready")

	// ErrMalformedFrame means a payload did not strip to the expected length.
	// Retry accounting treats it exactly like ErrNotReady.
	ErrMalformedFrame = errors.New("opcn3: malformed frame")

	// ErrCooldownLimit is returned by the power commands only when a maximum
	// number of cooldown cycles was configured and the device never became
	// ready within it.
	ErrCooldownLimit = errors.New("opcn3: cooldown limit reached")
)

// ChannelError reports a failure of the byte channel itself, such as an
// unplugged adapter. It is never retried by the driver.
type ChannelError struct {
	Op  string // "write" or "read"
	Err error
}

func (e *ChannelError) Error() string {
	return fmt.Sprintf("opcn3: channel %s failed: %v", e.Op, e.Err)
}

func (e *ChannelError) Unwrap() error {
	return e.Err
}

// IsChannelError reports whether err is, or wraps, a *ChannelError.
func IsChannelError(err error) bool {
	var ce *ChannelError
	return errors.As(err, &ce)
}

func wrapChannel(op string, err error) error {
	if err == nil {
		return nil
	}
	var ce *ChannelError
	if errors.As(err, &ce) {
		return err
	}
	return &ChannelError{Op: op, Err: err}
}
