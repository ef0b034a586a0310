package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/clipvault/clipvault/internal/app/model"
	"github.com/clipvault/clipvault/internal/app/service"
)

type mockVideoService struct {
	uploadFn  func(ctx context.Context, input service.UploadInput) (*model.Video, error)
	trimFn    func(ctx context.Context, input service.TrimInput) (*model.Video, error)
	mergeFn   func(ctx context.Context, input service.MergeInput) (*model.Video, error)
	shareFn   func(ctx context.Context, input service.ShareInput) (*model.SharedLink, error)
	resolveFn func(ctx context.Context, linkID string) (*service.Download, error)
	markFn    func(videoID, linkID string)
}

func (m *mockVideoService) Upload(ctx context.Context, input service.UploadInput) (*model.Video, error) {
	if m.uploadFn != nil {
		return m.uploadFn(ctx, input)
	}
	return nil, model.ErrInvalidMedia
}

func (m *mockVideoService) Trim(ctx context.Context, input service.TrimInput) (*model.Video, error) {
	if m.trimFn != nil {
		return m.trimFn(ctx, input)
	}
	return nil, model.ErrVideoNotFound
}

func (m *mockVideoService) Merge(ctx context.Context, input service.MergeInput) (*model.Video, error) {
	if m.mergeFn != nil {
		return m.mergeFn(ctx, input)
	}
	return nil, model.ErrVideoNotFound
}

func (m *mockVideoService) Share(ctx context.Context, input service.ShareInput) (*model.SharedLink, error) {
	if m.shareFn != nil {
		return m.shareFn(ctx, input)
	}
	return nil, model.ErrVideoNotFound
}

func (m *mockVideoService) ResolveDownload(ctx context.Context, linkID string) (*service.Download, error) {
	if m.resolveFn != nil {
		return m.resolveFn(ctx, linkID)
	}
	return nil, model.ErrLinkNotFound
}

func (m *mockVideoService) MarkDownloaded(videoID, linkID string) {
	if m.markFn != nil {
		m.markFn(videoID, linkID)
	}
}

func (m *mockVideoService) WarmLinkFilter(ctx context.Context) error { return nil }

func newAPIApp(svc service.VideoService) *fiber.App {
	app := fiber.New()
	h := NewAPIHandler(APIDeps{Videos: svc})
	h.Register(app)
	return app
}

func jsonRequest(method, target string, body any) *http.Request {
	data, _ := json.Marshal(body)
	req := httptest.NewRequest(method, target, bytes.NewReader(data))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return req
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func TestCheckToken(t *testing.T) {
	app := newAPIApp(&mockVideoService{})

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/check_api_token", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	if body["authorized"] != true {
		t.Fatalf("expected authorized true, got %v", body)
	}
}

func TestUpload(t *testing.T) {
	svc := &mockVideoService{
		uploadFn: func(ctx context.Context, input service.UploadInput) (*model.Video, error) {
			if input.Filename != "clip.mp4" {
				t.Fatalf("unexpected filename %q", input.Filename)
			}
			data, err := io.ReadAll(input.Content)
			if err != nil || string(data) != "videodata" {
				t.Fatalf("unexpected content %q err %v", data, err)
			}
			return &model.Video{ID: "vid-1", Filename: "vid-1.mp4"}, nil
		},
	}
	app := newAPIApp(svc)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, _ := mw.CreateFormFile("file", "clip.mp4")
	fmt.Fprint(part, "videodata")
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/upload", &buf)
	req.Header.Set(fiber.HeaderContentType, mw.FormDataContentType())

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	if body["video_id"] != "vid-1" || body["filename"] != "vid-1.mp4" {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestUpload_MissingFile(t *testing.T) {
	app := newAPIApp(&mockVideoService{})

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/upload", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestTrim_PassesOptionalEndTime(t *testing.T) {
	svc := &mockVideoService{
		trimFn: func(ctx context.Context, input service.TrimInput) (*model.Video, error) {
			if input.VideoID != "vid-1" || input.StartTime != 1.5 {
				t.Fatalf("unexpected input %+v", input)
			}
			if input.EndTime == nil || *input.EndTime != 4.5 {
				t.Fatalf("expected end_time 4.5, got %v", input.EndTime)
			}
			return &model.Video{ID: "vid-1", Filename: "trimmed_vid-1.mp4"}, nil
		},
	}
	app := newAPIApp(svc)

	resp, err := app.Test(jsonRequest(http.MethodPost, "/trim", TrimRequest{
		VideoID:   "vid-1",
		StartTime: 1.5,
		EndTime:   ptr(4.5),
	}))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	if body["filename"] != "trimmed_vid-1.mp4" {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestTrim_OmittedEndTimeStaysNil(t *testing.T) {
	svc := &mockVideoService{
		trimFn: func(ctx context.Context, input service.TrimInput) (*model.Video, error) {
			if input.EndTime != nil {
				t.Fatalf("expected nil end_time, got %v", *input.EndTime)
			}
			return &model.Video{ID: "vid-1", Filename: "trimmed_vid-1.mp4"}, nil
		},
	}
	app := newAPIApp(svc)

	req := httptest.NewRequest(http.MethodPost, "/trim", strings.NewReader(`{"video_id":"vid-1","start_time":2}`))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestTrim_InvalidRangeIsBadRequest(t *testing.T) {
	svc := &mockVideoService{
		trimFn: func(ctx context.Context, input service.TrimInput) (*model.Video, error) {
			return nil, fmt.Errorf("%w: end_time 20.00s exceeds video duration 10.00s", model.ErrInvalidRange)
		},
	}
	app := newAPIApp(svc)

	resp, err := app.Test(jsonRequest(http.MethodPost, "/trim", TrimRequest{VideoID: "vid-1", EndTime: ptr(20.0)}))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	if msg, _ := body["error"].(string); !strings.Contains(msg, "end_time") {
		t.Fatalf("error should name end_time, got %v", body)
	}
}

func TestTrim_MissingVideoID(t *testing.T) {
	app := newAPIApp(&mockVideoService{})

	resp, err := app.Test(jsonRequest(http.MethodPost, "/trim", TrimRequest{}))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestMerge(t *testing.T) {
	svc := &mockVideoService{
		mergeFn: func(ctx context.Context, input service.MergeInput) (*model.Video, error) {
			if len(input.VideoIDs) != 2 || input.VideoIDs[0] != "b" || input.VideoIDs[1] != "a" {
				t.Fatalf("merge must preserve order, got %v", input.VideoIDs)
			}
			return &model.Video{ID: "vid-9", Filename: "merged_vid-9.mp4"}, nil
		},
	}
	app := newAPIApp(svc)

	resp, err := app.Test(jsonRequest(http.MethodPost, "/merge", MergeRequest{VideoIDs: []string{"b", "a"}}))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestMerge_UnknownVideoIs404(t *testing.T) {
	svc := &mockVideoService{
		mergeFn: func(ctx context.Context, input service.MergeInput) (*model.Video, error) {
			return nil, fmt.Errorf("video ghost: %w", model.ErrVideoNotFound)
		},
	}
	app := newAPIApp(svc)

	resp, err := app.Test(jsonRequest(http.MethodPost, "/merge", MergeRequest{VideoIDs: []string{"ghost"}}))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	if msg, _ := body["error"].(string); !strings.Contains(msg, "ghost") {
		t.Fatalf("error should name the missing id, got %v", body)
	}
}

func TestMerge_EmptyList(t *testing.T) {
	app := newAPIApp(&mockVideoService{})

	resp, err := app.Test(jsonRequest(http.MethodPost, "/merge", MergeRequest{}))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestShare(t *testing.T) {
	expires := time.Date(2026, 3, 1, 13, 0, 0, 0, time.UTC)
	svc := &mockVideoService{
		shareFn: func(ctx context.Context, input service.ShareInput) (*model.SharedLink, error) {
			if input.VideoID != "vid-1" || input.ExpirySec != 600 {
				t.Fatalf("unexpected input %+v", input)
			}
			return &model.SharedLink{ID: "link-1", VideoID: "vid-1", ExpiresAt: expires}, nil
		},
	}
	app := newAPIApp(svc)

	resp, err := app.Test(jsonRequest(http.MethodPost, "/share", ShareRequest{VideoID: "vid-1", ExpirySec: 600}))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	if body["link_id"] != "link-1" || body["video_id"] != "vid-1" {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{model.ErrVideoNotFound, http.StatusNotFound},
		{model.ErrLinkNotFound, http.StatusNotFound},
		{model.ErrLinkExpired, http.StatusGone},
		{model.ErrPayloadTooLarge, http.StatusBadRequest},
		{model.ErrInvalidMedia, http.StatusBadRequest},
		{model.ErrDurationOutOfRange, http.StatusBadRequest},
		{model.ErrInvalidRange, http.StatusBadRequest},
		{model.ErrInvalidArgument, http.StatusBadRequest},
		{model.ErrConflict, http.StatusConflict},
		{fmt.Errorf("wrapped: %w", model.ErrLinkExpired), http.StatusGone},
		{fmt.Errorf("disk on fire"), http.StatusInternalServerError},
	}
	for _, c := range cases {
		if got := StatusFor(c.err); got != c.want {
			t.Errorf("StatusFor(%v) = %d, want %d", c.err, got, c.want)
		}
	}
}

func ptr(f float64) *float64 { return &f }
