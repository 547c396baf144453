package ring

import "errors"

// ErrNoChannel indicates a node was started without a channel.
var ErrNoChannel = errors.New("no channel")
