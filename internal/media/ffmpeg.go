package media

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// FFmpeg runs ffprobe/ffmpeg as subprocesses. Commands inherit the caller's
// context, so a cancelled request kills the encode.
type FFmpeg struct {
	ffmpegPath  string
	ffprobePath string
}

// NewFFmpeg returns an engine using the given binary paths; empty paths fall
// back to whatever is on PATH.
func NewFFmpeg(ffmpegPath, ffprobePath string) *FFmpeg {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &FFmpeg{ffmpegPath: ffmpegPath, ffprobePath: ffprobePath}
}

type probeOutput struct {
	Streams []struct {
		Width        int    `json:"width"`
		Height       int    `json:"height"`
		AvgFrameRate string `json:"avg_frame_rate"`
		ReadPackets  string `json:"nb_read_packets"`
	} `json:"streams"`
}

func (f *FFmpeg) Probe(ctx context.Context, path string) (Info, error) {
	out, err := f.run(ctx, f.ffprobePath,
		"-v", "error",
		"-select_streams", "v:0",
		"-count_packets",
		"-show_entries", "stream=width,height,avg_frame_rate,nb_read_packets",
		"-of", "json",
		path,
	)
	if err != nil {
		return Info{}, fmt.Errorf("ffprobe %s: %w", filepath.Base(path), err)
	}

	var probe probeOutput
	if err := json.Unmarshal(out, &probe); err != nil {
		return Info{}, fmt.Errorf("ffprobe output: %w", err)
	}
	if len(probe.Streams) == 0 {
		return Info{}, fmt.Errorf("ffprobe %s: no video stream", filepath.Base(path))
	}

	s := probe.Streams[0]
	fps, err := parseRate(s.AvgFrameRate)
	if err != nil {
		return Info{}, fmt.Errorf("ffprobe %s: %w", filepath.Base(path), err)
	}
	frames, err := strconv.Atoi(s.ReadPackets)
	if err != nil {
		return Info{}, fmt.Errorf("ffprobe %s: frame count: %w", filepath.Base(path), err)
	}

	return Info{FPS: fps, FrameCount: frames, Width: s.Width, Height: s.Height}, nil
}

func (f *FFmpeg) Trim(ctx context.Context, src, dst string, startFrame, endFrame int) error {
	_, err := f.run(ctx, f.ffmpegPath, trimArgs(src, dst, startFrame, endFrame)...)
	if err != nil {
		return fmt.Errorf("ffmpeg trim %s: %w", filepath.Base(src), err)
	}
	return nil
}

func (f *FFmpeg) Merge(ctx context.Context, dst string, srcs []string, params EncodeParams) error {
	list, err := writeConcatList(srcs)
	if err != nil {
		return fmt.Errorf("ffmpeg merge: %w", err)
	}
	defer os.Remove(list)

	_, err = f.run(ctx, f.ffmpegPath, mergeArgs(list, dst, params)...)
	if err != nil {
		return fmt.Errorf("ffmpeg merge: %w", err)
	}
	return nil
}

func trimArgs(src, dst string, startFrame, endFrame int) []string {
	// Frame-exact selection, bounds inclusive; setpts rebases timestamps so
	// the output starts at zero at the original rate.
	filter := fmt.Sprintf("select=between(n\\,%d\\,%d),setpts=N/FRAME_RATE/TB", startFrame, endFrame)
	return []string{
		"-y",
		"-i", src,
		"-vf", filter,
		"-an",
		dst,
	}
}

func mergeArgs(listPath, dst string, params EncodeParams) []string {
	args := []string{
		"-y",
		"-f", "concat",
		"-safe", "0",
		"-i", listPath,
	}
	if params.Width > 0 && params.Height > 0 {
		args = append(args, "-vf", fmt.Sprintf("scale=%d:%d", params.Width, params.Height))
	}
	if params.FPS > 0 {
		args = append(args, "-r", strconv.FormatFloat(params.FPS, 'f', -1, 64))
	}
	return append(args, "-an", dst)
}

func writeConcatList(srcs []string) (string, error) {
	tmp, err := os.CreateTemp("", "concat-*.txt")
	if err != nil {
		return "", err
	}
	var b strings.Builder
	for _, src := range srcs {
		abs, err := filepath.Abs(src)
		if err != nil {
			abs = src
		}
		fmt.Fprintf(&b, "file '%s'\n", strings.ReplaceAll(abs, "'", `'\''`))
	}
	if _, err := tmp.WriteString(b.String()); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	return tmp.Name(), nil
}

func (f *FFmpeg) run(ctx context.Context, bin string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, bin, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %s", err, lastLine(stderr.String()))
	}
	return stdout.Bytes(), nil
}

// parseRate parses ffprobe's rational frame rates ("30000/1001", "25/1").
func parseRate(rate string) (float64, error) {
	num, den, found := strings.Cut(rate, "/")
	if !found {
		v, err := strconv.ParseFloat(rate, 64)
		if err != nil || v <= 0 {
			return 0, fmt.Errorf("frame rate %q", rate)
		}
		return v, nil
	}
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, fmt.Errorf("frame rate %q", rate)
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil || d == 0 || n <= 0 {
		return 0, fmt.Errorf("frame rate %q", rate)
	}
	return n / d, nil
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) == 0 {
		return ""
	}
	return strings.TrimSpace(lines[len(lines)-1])
}
