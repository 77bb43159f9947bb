package domain

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrSessionBusy       = errors.New("session busy")
	ErrNoFrame           = errors.New("no extracted frame")
	ErrEmptyDescription  = errors.New("empty description")
	ErrUnsupportedMedia  = errors.New("unsupported media type")
	ErrNoDecoder         = errors.New("video decoder unavailable")
	ErrZeroDimensions    = errors.New("video reports zero dimensions")
	ErrMissingCredential = errors.New("missing api credential")
	ErrOperationLost     = errors.New("operation lost")
	ErrNoVideoResult     = errors.New("no video result")
)
