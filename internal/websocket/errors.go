package websocket

import "errors"

var (
	ErrConnectionClosed           = errors.New("connection is closed")
	ErrInvalidJSON                = errors.New("failed to marshal JSON")
	ErrWriteBufferFull            = errors.New("write buffer full")
	ErrNilConnection              = errors.New("connection is nil")
	ErrConnectionNotAuthenticated = errors.New("connection is not authenticated")
)
