package media

import (
	"strings"
	"testing"
)

func TestParseRate(t *testing.T) {
	cases := []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{in: "25/1", want: 25},
		{in: "30000/1001", want: 29.97002997002997},
		{in: "24", want: 24},
		{in: "0/0", wantErr: true},
		{in: "", wantErr: true},
		{in: "abc", wantErr: true},
	}

	for _, tc := range cases {
		got, err := parseRate(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("parseRate(%q): expected error, got %v", tc.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseRate(%q): %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("parseRate(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestTrimArgsSelectsInclusiveFrameRange(t *testing.T) {
	args := trimArgs("in.mp4", "out.mp4", 30, 89)
	joined := strings.Join(args, " ")

	if !strings.Contains(joined, `select=between(n\,30\,89)`) {
		t.Fatalf("trim filter missing inclusive frame bounds: %s", joined)
	}
	if args[len(args)-1] != "out.mp4" {
		t.Fatalf("expected destination as final arg, got %s", args[len(args)-1])
	}
}

func TestMergeArgsCarryEncodeParams(t *testing.T) {
	args := mergeArgs("list.txt", "merged.mp4", EncodeParams{FPS: 29.97, Width: 1280, Height: 720})
	joined := strings.Join(args, " ")

	if !strings.Contains(joined, "-f concat") {
		t.Fatalf("expected concat demuxer args: %s", joined)
	}
	if !strings.Contains(joined, "scale=1280:720") {
		t.Fatalf("expected scale filter from first input: %s", joined)
	}
	if !strings.Contains(joined, "-r 29.97") {
		t.Fatalf("expected output frame rate: %s", joined)
	}
}

func TestInfoDuration(t *testing.T) {
	info := Info{FPS: 25, FrameCount: 75}
	if got := info.Duration(); got != 3 {
		t.Fatalf("Duration = %v, want 3", got)
	}

	if got := (Info{FrameCount: 10}).Duration(); got != 0 {
		t.Fatalf("zero fps should yield zero duration, got %v", got)
	}
}
