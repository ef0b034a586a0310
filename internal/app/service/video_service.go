package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/clipvault/clipvault/internal/app/model"
	"github.com/clipvault/clipvault/internal/app/repository"
	metrics "github.com/clipvault/clipvault/internal/infra/prometheus"
	"github.com/clipvault/clipvault/internal/infra/storage"
	"github.com/clipvault/clipvault/internal/media"
)

const (
	defaultTranscodeSlots = 2
	linkCachePrefix       = "sharedlink:"
	linkCacheMaxTTL       = 10 * time.Minute
)

// VideoService is the lifecycle manager for stored videos: it owns every
// write to the videos/shared_links relations and to the upload directory.
type VideoService interface {
	Upload(ctx context.Context, input UploadInput) (*model.Video, error)
	Trim(ctx context.Context, input TrimInput) (*model.Video, error)
	Merge(ctx context.Context, input MergeInput) (*model.Video, error)
	Share(ctx context.Context, input ShareInput) (*model.SharedLink, error)
	ResolveDownload(ctx context.Context, linkID string) (*Download, error)
	// MarkDownloaded records a completed redemption; call it only after
	// the bytes actually reached the client.
	MarkDownloaded(videoID, linkID string)
	// WarmLinkFilter seeds the negative-lookup filter with every stored
	// link id; call once at startup, before serving downloads.
	WarmLinkFilter(ctx context.Context) error
}

// Limits carries the media acceptance window from configuration.
type Limits struct {
	MaxUploadBytes        int64
	MinDurationSec        float64
	MaxDurationSec        float64
	DefaultShareExpirySec int
}

// EventPublisher emits lifecycle events; satisfied by LifecyclePublisher.
type EventPublisher interface {
	Publish(videoID, action, detail string) error
}

// Deps bundles everything the lifecycle manager needs. Cache and Events are
// optional; a nil value disables that concern.
type Deps struct {
	Logger                  *zap.Logger
	Videos                  repository.VideoRepository
	Links                   repository.SharedLinkRepository
	Store                   *storage.Store
	Engine                  media.Engine
	Cache                   *redis.Client
	Events                  EventPublisher
	Limits                  Limits
	MaxConcurrentTranscodes int64
}

type videoService struct {
	logger *zap.Logger
	videos repository.VideoRepository
	links  repository.SharedLinkRepository
	store  *storage.Store
	engine media.Engine
	cache  *redis.Client
	events EventPublisher
	limits Limits

	locks  *keyedMutex
	filter *linkFilter
	sem    *semaphore.Weighted

	clock func() time.Time
	idGen func() uuid.UUID
}

// NewVideoService returns a lifecycle manager backed by the given dependencies.
func NewVideoService(deps Deps) VideoService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	slots := deps.MaxConcurrentTranscodes
	if slots <= 0 {
		slots = defaultTranscodeSlots
	}
	return &videoService{
		logger: logger,
		videos: deps.Videos,
		links:  deps.Links,
		store:  deps.Store,
		engine: deps.Engine,
		cache:  deps.Cache,
		events: deps.Events,
		limits: deps.Limits,
		locks:  newKeyedMutex(),
		filter: newLinkFilter(),
		sem:    semaphore.NewWeighted(slots),
		clock:  time.Now,
		idGen:  uuid.New,
	}
}

func (s *videoService) WarmLinkFilter(ctx context.Context) error {
	ids, err := s.links.ListIDs(ctx)
	if err != nil {
		return fmt.Errorf("warm link filter: %w", err)
	}
	for _, id := range ids {
		s.filter.Add(id)
	}
	s.logger.Info("link filter warmed", zap.Int("links", len(ids)))
	return nil
}

// UploadInput carries one multipart upload.
type UploadInput struct {
	Filename string
	Size     int64
	Content  io.Reader
}

func (s *videoService) Upload(ctx context.Context, input UploadInput) (video *model.Video, err error) {
	defer func() { metrics.ObserveOperation("upload", err) }()

	if input.Size > s.limits.MaxUploadBytes {
		return nil, fmt.Errorf("%w of %d bytes", model.ErrPayloadTooLarge, s.limits.MaxUploadBytes)
	}

	id := s.idGen().String()
	name := id + storageExt(input.Filename)

	// The declared size can lie, so the write itself is capped too.
	written, err := s.store.Save(name, io.LimitReader(input.Content, s.limits.MaxUploadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("store upload: %w", err)
	}
	if written > s.limits.MaxUploadBytes {
		s.discard(name)
		return nil, fmt.Errorf("%w of %d bytes", model.ErrPayloadTooLarge, s.limits.MaxUploadBytes)
	}

	path, err := s.store.Path(name)
	if err != nil {
		s.discard(name)
		return nil, err
	}

	info, err := s.probe(ctx, path)
	if err != nil {
		s.discard(name)
		return nil, fmt.Errorf("%w: %s", model.ErrInvalidMedia, input.Filename)
	}

	duration := info.Duration()
	if duration < s.limits.MinDurationSec || duration > s.limits.MaxDurationSec {
		s.discard(name)
		return nil, fmt.Errorf("%w: only %gs to %gs allowed",
			model.ErrDurationOutOfRange, s.limits.MinDurationSec, s.limits.MaxDurationSec)
	}

	now := s.clock()
	video = &model.Video{
		ID:           id,
		Filename:     name,
		OriginalName: clientName(input.Filename, name),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err = s.videos.Create(ctx, video); err != nil {
		s.discard(name)
		return nil, fmt.Errorf("create video record: %w", err)
	}

	s.publish(video.ID, model.ActionUploaded, fmt.Sprintf("duration=%.2fs", duration))
	s.logger.Info("video uploaded",
		zap.String("video_id", video.ID),
		zap.String("filename", name),
		zap.Float64("duration_sec", duration),
	)
	return video, nil
}

// TrimInput carries a trim request; a nil EndTime means "to the end".
type TrimInput struct {
	VideoID   string
	StartTime float64
	EndTime   *float64
}

func (s *videoService) Trim(ctx context.Context, input TrimInput) (video *model.Video, err error) {
	defer func() { metrics.ObserveOperation("trim", err) }()

	// At most one trim in flight per video.
	unlock := s.locks.Lock(input.VideoID)
	defer unlock()

	video, err = s.videos.GetByID(ctx, input.VideoID)
	if err != nil {
		return nil, fmt.Errorf("video %s: %w", input.VideoID, err)
	}

	srcPath, err := s.store.Path(video.Filename)
	if err != nil {
		return nil, err
	}

	info, err := s.probe(ctx, srcPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", model.ErrInvalidMedia, input.VideoID)
	}
	duration := info.Duration()

	if input.StartTime < 0 {
		return nil, fmt.Errorf("%w: start_time must not be negative", model.ErrInvalidRange)
	}
	end := duration
	if input.EndTime != nil {
		end = *input.EndTime
	}
	if end > duration {
		return nil, fmt.Errorf("%w: end_time %.2fs exceeds video duration %.2fs",
			model.ErrInvalidRange, end, duration)
	}
	if end <= input.StartTime {
		return nil, fmt.Errorf("%w: end_time must be greater than start_time", model.ErrInvalidRange)
	}

	startFrame := int(input.StartTime * info.FPS)
	endFrame := int(end * info.FPS)
	if endFrame > info.FrameCount-1 {
		endFrame = info.FrameCount - 1
	}

	newName := "trimmed_" + video.Filename
	dstPath, err := s.store.Path(newName)
	if err != nil {
		return nil, err
	}

	if err = s.transcode(ctx, func(ctx context.Context) error {
		return s.engine.Trim(ctx, srcPath, dstPath, startFrame, endFrame)
	}); err != nil {
		s.discard(newName)
		return nil, fmt.Errorf("trim video %s: %w", input.VideoID, err)
	}

	// Swap the record only after the new file is fully on disk; delete the
	// old file only after the swap commits. A failure at any point leaves
	// the record pointing at a file that exists.
	now := s.clock()
	if err = s.videos.UpdateFilename(ctx, video.ID, newName, video.UpdatedAt, now); err != nil {
		s.discard(newName)
		return nil, fmt.Errorf("update video %s: %w", input.VideoID, err)
	}
	oldName := video.Filename
	video.Filename = newName
	video.UpdatedAt = now
	s.discard(oldName)

	s.publish(video.ID, model.ActionTrimmed,
		fmt.Sprintf("frames=[%d,%d] fps=%.3f", startFrame, endFrame, info.FPS))
	s.logger.Info("video trimmed",
		zap.String("video_id", video.ID),
		zap.String("filename", newName),
		zap.Int("start_frame", startFrame),
		zap.Int("end_frame", endFrame),
	)
	return video, nil
}

// MergeInput carries an ordered list of source videos.
type MergeInput struct {
	VideoIDs []string
}

func (s *videoService) Merge(ctx context.Context, input MergeInput) (video *model.Video, err error) {
	defer func() { metrics.ObserveOperation("merge", err) }()

	if len(input.VideoIDs) == 0 {
		return nil, fmt.Errorf("%w: video_ids must not be empty", model.ErrInvalidArgument)
	}

	// Resolve every input up front; any unknown id aborts before encoding.
	paths := make([]string, 0, len(input.VideoIDs))
	for _, id := range input.VideoIDs {
		src, err := s.videos.GetByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("video %s: %w", id, err)
		}
		path, err := s.store.Path(src.Filename)
		if err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}

	// Output parameters come from the first input.
	first, err := s.probe(ctx, paths[0])
	if err != nil {
		return nil, fmt.Errorf("%w: %s", model.ErrInvalidMedia, input.VideoIDs[0])
	}
	params := media.EncodeParams{FPS: first.FPS, Width: first.Width, Height: first.Height}

	id := s.idGen().String()
	name := "merged_" + id + ".mp4"
	dstPath, err := s.store.Path(name)
	if err != nil {
		return nil, err
	}

	if err = s.transcode(ctx, func(ctx context.Context) error {
		return s.engine.Merge(ctx, dstPath, paths, params)
	}); err != nil {
		s.discard(name)
		return nil, fmt.Errorf("merge videos: %w", err)
	}

	now := s.clock()
	video = &model.Video{
		ID:           id,
		Filename:     name,
		OriginalName: name,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err = s.videos.Create(ctx, video); err != nil {
		s.discard(name)
		return nil, fmt.Errorf("create merged video record: %w", err)
	}

	s.publish(video.ID, model.ActionMerged, "inputs="+strings.Join(input.VideoIDs, ","))
	s.logger.Info("videos merged",
		zap.String("video_id", video.ID),
		zap.Strings("inputs", input.VideoIDs),
	)
	return video, nil
}

// ShareInput carries a share request; non-positive ExpirySec selects the
// configured default.
type ShareInput struct {
	VideoID   string
	ExpirySec int
}

func (s *videoService) Share(ctx context.Context, input ShareInput) (link *model.SharedLink, err error) {
	defer func() { metrics.ObserveOperation("share", err) }()

	if _, err = s.videos.GetByID(ctx, input.VideoID); err != nil {
		return nil, fmt.Errorf("video %s: %w", input.VideoID, err)
	}

	expiry := input.ExpirySec
	if expiry <= 0 {
		expiry = s.limits.DefaultShareExpirySec
	}

	now := s.clock()
	link = &model.SharedLink{
		ID:        s.idGen().String(),
		VideoID:   input.VideoID,
		CreatedAt: now,
		ExpiresAt: now.Add(time.Duration(expiry) * time.Second),
	}
	if err = s.links.Create(ctx, link); err != nil {
		return nil, fmt.Errorf("create shared link: %w", err)
	}

	s.filter.Add(link.ID)
	s.cacheLink(ctx, link)

	s.publish(input.VideoID, model.ActionShared, "link="+link.ID)
	s.logger.Info("video shared",
		zap.String("video_id", input.VideoID),
		zap.String("link_id", link.ID),
		zap.Time("expires_at", link.ExpiresAt),
	)
	return link, nil
}

// Download describes a redeemable file stream. Filename is the suggested
// client-facing name, not the storage name.
type Download struct {
	VideoID     string
	Path        string
	Filename    string
	ContentType string
}

func (s *videoService) ResolveDownload(ctx context.Context, linkID string) (dl *Download, err error) {
	defer func() { metrics.ObserveOperation("download", err) }()

	// Definitely-unknown ids are rejected without a database round trip.
	if !s.filter.MayContain(linkID) {
		return nil, fmt.Errorf("link %s: %w", linkID, model.ErrLinkNotFound)
	}

	link, err := s.loadLink(ctx, linkID)
	if err != nil {
		return nil, err
	}
	if link.Expired(s.clock()) {
		return nil, fmt.Errorf("link %s expired at %s: %w",
			linkID, link.ExpiresAt.Format(time.RFC3339), model.ErrLinkExpired)
	}

	video, err := s.videos.GetByID(ctx, link.VideoID)
	if err != nil {
		return nil, fmt.Errorf("video %s: %w", link.VideoID, err)
	}

	// Always the current file: a trim after sharing changes what the link
	// serves.
	path, err := s.store.Path(video.Filename)
	if err != nil {
		return nil, err
	}
	if !s.store.Exists(video.Filename) {
		return nil, fmt.Errorf("video %s: file %s missing from storage", video.ID, video.Filename)
	}

	return &Download{
		VideoID:     video.ID,
		Path:        path,
		Filename:    suggestedName(video),
		ContentType: contentTypeFor(video.Filename),
	}, nil
}

// MarkDownloaded emits the downloaded event once the stream has completed.
// Resolving a link is not a download; a client can redeem and then drop the
// connection.
func (s *videoService) MarkDownloaded(videoID, linkID string) {
	s.publish(videoID, model.ActionDownloaded, "link="+linkID)
}

// transcode runs fn under the encode concurrency budget.
func (s *videoService) transcode(ctx context.Context, fn func(context.Context) error) error {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer s.sem.Release(1)
	return fn(ctx)
}

func (s *videoService) probe(ctx context.Context, path string) (media.Info, error) {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return media.Info{}, err
	}
	defer s.sem.Release(1)
	return s.engine.Probe(ctx, path)
}

func (s *videoService) loadLink(ctx context.Context, linkID string) (*model.SharedLink, error) {
	if cached := s.cachedLink(ctx, linkID); cached != nil {
		return cached, nil
	}
	link, err := s.links.GetByID(ctx, linkID)
	if err != nil {
		if errors.Is(err, model.ErrLinkNotFound) {
			return nil, fmt.Errorf("link %s: %w", linkID, err)
		}
		return nil, fmt.Errorf("load link %s: %w", linkID, err)
	}
	s.cacheLink(ctx, link)
	return link, nil
}

func (s *videoService) cachedLink(ctx context.Context, linkID string) *model.SharedLink {
	if s.cache == nil {
		return nil
	}
	data, err := s.cache.Get(ctx, linkCachePrefix+linkID).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.Warn("link cache read failed", zap.Error(err), zap.String("link_id", linkID))
		}
		return nil
	}
	var link model.SharedLink
	if err := json.Unmarshal(data, &link); err != nil {
		s.logger.Warn("link cache entry corrupt", zap.Error(err), zap.String("link_id", linkID))
		return nil
	}
	return &link
}

// cacheLink is best effort; links are immutable so the entry can never go
// stale, only expire.
func (s *videoService) cacheLink(ctx context.Context, link *model.SharedLink) {
	if s.cache == nil {
		return
	}
	ttl := time.Until(link.ExpiresAt)
	if ttl <= 0 {
		return
	}
	if ttl > linkCacheMaxTTL {
		ttl = linkCacheMaxTTL
	}
	data, err := json.Marshal(link)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, linkCachePrefix+link.ID, data, ttl).Err(); err != nil {
		s.logger.Warn("link cache write failed", zap.Error(err), zap.String("link_id", link.ID))
	}
}

// publish dispatches the event off the request path; operations never wait on
// the broker.
func (s *videoService) publish(videoID, action, detail string) {
	if s.events == nil {
		return
	}
	go func() {
		if err := s.events.Publish(videoID, action, detail); err != nil {
			s.logger.Error("failed to publish lifecycle event",
				zap.Error(err),
				zap.String("video_id", videoID),
				zap.String("action", action),
			)
		}
	}()
}

func (s *videoService) discard(name string) {
	if err := s.store.Remove(name); err != nil {
		s.logger.Warn("failed to remove file", zap.Error(err), zap.String("filename", name))
	}
}

// storageExt extracts a safe lowercase extension from a client filename.
func storageExt(filename string) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(filename)))
	if len(ext) < 2 || len(ext) > 8 || strings.ContainsAny(ext, `/\`) {
		return ".mp4"
	}
	for _, r := range ext[1:] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return ".mp4"
		}
	}
	return ext
}

// clientName keeps the uploader's own filename, reduced to its base, for use
// as the suggested download name. Anything path-like falls back to the
// storage name.
func clientName(filename, fallback string) string {
	base := filepath.Base(strings.ReplaceAll(filename, `\`, "/"))
	if base == "" || base == "." || base == ".." || base == "/" {
		return fallback
	}
	return base
}

// suggestedName prefers the name the client uploaded under; derived videos
// (merge) carry their storage name.
func suggestedName(video *model.Video) string {
	if video.OriginalName != "" {
		return video.OriginalName
	}
	return video.Filename
}

func contentTypeFor(filename string) string {
	if ct := mime.TypeByExtension(filepath.Ext(filename)); ct != "" {
		return ct
	}
	return "video/mp4"
}
