package eventstream

import "errors"

// ErrNilTreeEvent indicates a nil tree event payload was provided to a publisher.
var ErrNilTreeEvent = errors.New("nil tree event")
