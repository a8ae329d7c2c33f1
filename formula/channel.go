package formula

import "strings"

// Channel is a named release track with its own version and artifacts.
type Channel string

// Release channels.
const (
	Stable Channel = "stable"
	Devel  Channel = "devel"
)

// DefaultChannel is selected unless devel is explicitly requested.
const DefaultChannel = Stable

// Channels returns all channels in resolution order.
func Channels() []Channel {
	return []Channel{Stable, Devel}
}

func (c Channel) String() string { return string(c) }

// Known reports whether c is one of the defined channels.
func (c Channel) Known() bool {
	return c == Stable || c == Devel
}

// ParseChannel converts a channel name into a Channel.
// The empty string selects DefaultChannel.
func ParseChannel(s string) (Channel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "stable", "master":
		return Stable, nil
	case "devel", "develop", "development":
		return Devel, nil
	default:
		return "", &ChannelError{Channel: Channel(s)}
	}
}

// ChannelFor maps the --devel style toggle onto a channel.
func ChannelFor(devel bool) Channel {
	if devel {
		return Devel
	}
	return DefaultChannel
}
