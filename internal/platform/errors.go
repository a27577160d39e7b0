package platform

import "errors"

var (
	ErrUnsupported    = errors.New("operation not supported by backend")
	ErrBufferActive   = errors.New("buffer already active")
	ErrFlipPending    = errors.New("page flip pending")
	ErrNoActiveBuffer = errors.New("no active buffer")
	ErrNoFreeBuffer   = errors.New("no free buffer")
	ErrNoOutput       = errors.New("no usable output")
	ErrNoBackend      = errors.New("no display backend available")
	ErrClosed         = errors.New("display closed")
	ErrWrongSurface   = errors.New("window has a different surface type")
)
