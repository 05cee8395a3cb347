package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	"github.com/dwsmith1983/vidtrend/pkg/types"
)

const (
	defaultRegion     = "US"
	defaultMaxResults = 50
	requestTimeout    = 30 * time.Second
)

var videoParts = []string{"snippet", "contentDetails", "statistics"}

// YouTube fetches the mostPopular chart, once across all categories (stored
// under id 0) and once per configured category.
type YouTube struct {
	svc        *youtube.Service
	region     string
	maxResults int64
	categories []types.Category
	names      map[int]string
	logger     *slog.Logger
	now        func() time.Time
	clientOpts []option.ClientOption
}

// YouTubeOption configures a YouTube source.
type YouTubeOption func(*YouTube)

// WithClientOptions appends Google API client options, after the API key and
// endpoint derived from config.
func WithClientOptions(opts ...option.ClientOption) YouTubeOption {
	return func(y *YouTube) { y.clientOpts = append(y.clientOpts, opts...) }
}

// WithLogger sets the source logger.
func WithLogger(l *slog.Logger) YouTubeOption {
	return func(y *YouTube) { y.logger = l }
}

// WithClock overrides the extraction clock.
func WithClock(now func() time.Time) YouTubeOption {
	return func(y *YouTube) { y.now = now }
}

// NewYouTube creates a YouTube Data API source from cfg. cfg.APIKey is
// required; cfg.BaseURL overrides the API endpoint.
func NewYouTube(ctx context.Context, cfg types.SourceConfig, opts ...YouTubeOption) (*YouTube, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("youtube source: YOUTUBE_API_KEY is not set")
	}
	y := &YouTube{
		region:     cfg.RegionCode,
		maxResults: int64(cfg.MaxResults),
		categories: cfg.Categories,
		names:      make(map[int]string, len(cfg.Categories)),
		logger:     slog.New(slog.DiscardHandler),
		now:        time.Now,
	}
	if y.region == "" {
		y.region = defaultRegion
	}
	if y.maxResults <= 0 || y.maxResults > defaultMaxResults {
		y.maxResults = defaultMaxResults
	}
	for _, c := range cfg.Categories {
		y.names[c.ID] = c.Name
	}
	for _, o := range opts {
		o(y)
	}

	clientOpts := []option.ClientOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithEndpoint(strings.TrimRight(cfg.BaseURL, "/")+"/"))
	}
	svc, err := youtube.NewService(ctx, append(clientOpts, y.clientOpts...)...)
	if err != nil {
		return nil, fmt.Errorf("youtube source: creating client: %w", err)
	}
	y.svc = svc
	return y, nil
}

// Fetch returns the all-category chart under id 0 plus one entry per
// configured category. A failure of the all-category request is returned;
// per-category failures are logged and the category is omitted.
func (y *YouTube) Fetch(ctx context.Context) (map[int][]types.RawRecord, error) {
	out := make(map[int][]types.RawRecord, len(y.categories)+1)
	all, err := y.chart(ctx, 0)
	if err != nil {
		return nil, err
	}
	out[0] = all

	for _, c := range y.categories {
		if c.ID == 0 {
			continue
		}
		records, err := y.chart(ctx, c.ID)
		if err != nil {
			y.logger.Warn("category fetch failed, skipping", "category_id", c.ID, "error", err)
			continue
		}
		out[c.ID] = records
	}
	return out, nil
}

func (y *YouTube) chart(ctx context.Context, categoryID int) ([]types.RawRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	call := y.svc.Videos.List(videoParts).
		Chart("mostPopular").
		RegionCode(y.region).
		MaxResults(y.maxResults)
	if categoryID != 0 {
		call = call.VideoCategoryId(strconv.Itoa(categoryID))
	}

	y.logger.Info("fetching trending videos", "region", y.region, "category_id", categoryID)
	resp, err := call.Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("youtube: videos.list category %d: %w", categoryID, err)
	}

	extractedAt := y.now().UTC().Format(time.RFC3339Nano)
	records := make([]types.RawRecord, 0, len(resp.Items))
	for _, item := range resp.Items {
		records = append(records, y.record(item, extractedAt))
	}
	y.logger.Info("fetched trending videos", "category_id", categoryID, "videos", len(records))
	return records, nil
}

func (y *YouTube) record(item *youtube.Video, extractedAt string) types.RawRecord {
	rec := types.RawRecord{
		types.FieldVideoID:     item.Id,
		types.FieldExtractedAt: extractedAt,
	}

	if sn := item.Snippet; sn != nil {
		tags := sn.Tags
		if tags == nil {
			tags = []string{}
		}
		encodedTags, _ := json.Marshal(tags)

		catID, _ := strconv.Atoi(sn.CategoryId)
		name, ok := y.names[catID]
		if !ok {
			name = "Unknown"
		}

		rec[types.FieldTitle] = sn.Title
		rec[types.FieldChannelID] = sn.ChannelId
		rec[types.FieldChannelTitle] = sn.ChannelTitle
		rec[types.FieldPublishTime] = sn.PublishedAt
		rec[types.FieldDescription] = sn.Description
		rec[types.FieldTags] = string(encodedTags)
		rec[types.FieldCategoryID] = catID
		rec[types.FieldCategoryName] = name
		if sn.Thumbnails != nil && sn.Thumbnails.High != nil {
			rec[types.FieldThumbnailURL] = sn.Thumbnails.High.Url
		}
	}
	if cd := item.ContentDetails; cd != nil {
		rec[types.FieldDuration] = cd.Duration
	}
	// Statistics the channel hides come back as zero and are left out; they
	// default to zero downstream.
	if st := item.Statistics; st != nil {
		for field, val := range map[string]uint64{
			types.FieldViewCount:    st.ViewCount,
			types.FieldLikeCount:    st.LikeCount,
			types.FieldCommentCount: st.CommentCount,
		} {
			if val > 0 {
				rec[field] = val
			}
		}
	}
	return rec
}
