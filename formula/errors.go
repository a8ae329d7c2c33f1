package formula

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedPlatform is returned when a formula has no artifact for an OS.
	ErrUnsupportedPlatform = errors.New("platform not supported")
	// ErrUnknownChannel is returned for channels a formula does not define.
	ErrUnknownChannel = errors.New("unknown channel")
)

// PlatformError reports an OS without a matching artifact.
type PlatformError struct {
	Formula string
	Channel Channel
	OS      OS
}

func (e *PlatformError) Error() string {
	if e.Formula == "" {
		return fmt.Sprintf("platform %q not supported", string(e.OS))
	}
	return fmt.Sprintf("platform %q not supported by %s (%s)", string(e.OS), e.Formula, e.Channel)
}

func (e *PlatformError) Unwrap() error { return ErrUnsupportedPlatform }

// ChannelError reports a channel missing from a formula.
type ChannelError struct {
	Formula string
	Channel Channel
}

func (e *ChannelError) Error() string {
	if e.Formula == "" {
		return fmt.Sprintf("unknown channel %q", string(e.Channel))
	}
	return fmt.Sprintf("channel %q not defined by %s", string(e.Channel), e.Formula)
}

func (e *ChannelError) Unwrap() error { return ErrUnknownChannel }
