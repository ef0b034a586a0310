// Package media wraps the external decode/encode engine. The service only
// ever sees the Engine interface; the ffmpeg-backed implementation lives in
// this package too.
package media

import "context"

// Info describes the video stream of a media file.
type Info struct {
	FPS        float64
	FrameCount int
	Width      int
	Height     int
}

// Duration returns the playable length in seconds.
func (i Info) Duration() float64 {
	if i.FPS <= 0 {
		return 0
	}
	return float64(i.FrameCount) / i.FPS
}

// EncodeParams carries the output parameters for an encode.
type EncodeParams struct {
	FPS    float64
	Width  int
	Height int
}

// Engine is the decode/encode capability the lifecycle manager depends on.
type Engine interface {
	// Probe opens the file at path and reports its video stream info.
	Probe(ctx context.Context, path string) (Info, error)
	// Trim writes frames [startFrame, endFrame] inclusive of src to dst,
	// keeping the source fps and resolution.
	Trim(ctx context.Context, src, dst string, startFrame, endFrame int) error
	// Merge concatenates every frame of srcs, in order, into dst encoded
	// with params.
	Merge(ctx context.Context, dst string, srcs []string, params EncodeParams) error
}
