package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"streamwatch/internal/model"
)

const youtubeSearchURL = "https://www.googleapis.com/youtube/v3/search"

type youtubeSearchResponse struct {
	// Items stays nil when the key is absent, which is not the same as
	// an empty result.
	Items []struct {
		ID struct {
			VideoID string `json:"videoId"`
		} `json:"id"`
		Snippet struct {
			PublishedAt  time.Time `json:"publishedAt"`
			ChannelID    string    `json:"channelId"`
			Title        string    `json:"title"`
			ChannelTitle string    `json:"channelTitle"`
		} `json:"snippet"`
	} `json:"items"`
}

func watchURL(videoID string) string {
	return "https://www.youtube.com/watch?v=" + url.QueryEscape(videoID)
}

// PublishedAfter returns the lower bound of a video window ending at now.
func PublishedAfter(now time.Time, window time.Duration) string {
	return now.Add(-window).UTC().Format("2006-01-02T15:04:05Z")
}

func (f *Fetcher) youtubeSearch(ctx context.Context, src model.Source, extra url.Values) (*youtubeSearchResponse, error) {
	q := url.Values{}
	q.Set("part", "snippet")
	q.Set("type", "video")
	q.Set("maxResults", "50")
	q.Set("order", "date")
	q.Set("q", src.Query)
	q.Set("key", f.cfg.GoogleAPIKey)
	for k, vs := range extra {
		q[k] = vs
	}

	body, err := f.get(ctx, f.client, youtubeSearchURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	var resp youtubeSearchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode youtube search: %w", err)
	}
	if resp.Items == nil {
		return nil, ErrNoData
	}
	return &resp, nil
}

// youtubeStreams lists live broadcasts matching src.Query. Channels are
// identified by their title.
func (f *Fetcher) youtubeStreams(ctx context.Context, src model.Source) ([]model.Item, error) {
	resp, err := f.youtubeSearch(ctx, src, url.Values{"eventType": {"live"}})
	if err != nil {
		return nil, err
	}

	items := make([]model.Item, 0, len(resp.Items))
	for _, it := range resp.Items {
		if it.ID.VideoID == "" {
			continue
		}
		items = append(items, model.StreamItem{
			Login:    it.Snippet.ChannelTitle,
			UserName: it.Snippet.ChannelTitle,
			Link:     watchURL(it.ID.VideoID),
		})
	}
	return items, nil
}

// youtubeVideos lists videos matching src.Query published within the last
// polling interval.
func (f *Fetcher) youtubeVideos(ctx context.Context, src model.Source) ([]model.Item, error) {
	after := PublishedAfter(f.now(), src.Interval)
	resp, err := f.youtubeSearch(ctx, src, url.Values{"publishedAfter": {after}})
	if err != nil {
		return nil, err
	}

	items := make([]model.Item, 0, len(resp.Items))
	for _, it := range resp.Items {
		if it.ID.VideoID == "" {
			continue
		}
		items = append(items, model.VideoItem{
			VideoID:     it.ID.VideoID,
			Channel:     it.Snippet.ChannelTitle,
			Title:       it.Snippet.Title,
			Link:        watchURL(it.ID.VideoID),
			PublishedAt: it.Snippet.PublishedAt,
		})
	}
	return items, nil
}
