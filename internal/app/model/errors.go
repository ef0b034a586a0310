package model

import "errors"

// Failure taxonomy for lifecycle operations. Handlers map these to HTTP
// statuses with errors.Is; anything unmatched is a 500.
var (
	ErrVideoNotFound      = errors.New("video not found")
	ErrLinkNotFound       = errors.New("shared link not found")
	ErrLinkExpired        = errors.New("shared link has expired")
	ErrPayloadTooLarge    = errors.New("file size exceeds the allowed limit")
	ErrInvalidMedia       = errors.New("invalid video file")
	ErrDurationOutOfRange = errors.New("video duration outside the allowed range")
	ErrInvalidRange       = errors.New("invalid trim range")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrConflict           = errors.New("video was modified concurrently")
)
