package fetcher

import (
	"context"
	"crypto/sha256"
	"fmt"
	"net/url"
	"time"

	"github.com/mmcdole/gofeed"

	"streamwatch/internal/model"
)

const youtubeFeedURL = "https://www.youtube.com/feeds/videos.xml"

// feedVideos reads the Atom feed of every channel in src.ChannelIDs and
// keeps the entries published within the last polling interval. Any
// channel failing fails the whole snapshot.
func (f *Fetcher) feedVideos(ctx context.Context, src model.Source) ([]model.Item, error) {
	cutoff := f.now().Add(-src.Interval)
	parser := gofeed.NewParser()

	var items []model.Item
	for _, channel := range src.ChannelIDs {
		body, err := f.get(ctx, f.client, youtubeFeedURL+"?channel_id="+url.QueryEscape(channel), nil)
		if err != nil {
			return nil, fmt.Errorf("channel %s: %w", channel, err)
		}

		feed, err := parser.ParseString(string(body))
		if err != nil {
			return nil, fmt.Errorf("parse feed of channel %s: %w", channel, err)
		}

		for _, it := range feed.Items {
			published := publishedAt(it)
			if !published.IsZero() && published.Before(cutoff) {
				continue
			}
			id := VideoID(it)
			link := it.Link
			if link == "" {
				link = watchURL(id)
			}
			items = append(items, model.VideoItem{
				VideoID:     id,
				Channel:     author(feed, it),
				Title:       it.Title,
				Link:        link,
				PublishedAt: published,
			})
		}
	}
	return items, nil
}

// VideoID returns the identifier of a feed entry: the yt:videoId
// extension, else the GUID, else a SHA-256 hash of title+link.
func VideoID(item *gofeed.Item) string {
	if ext, ok := item.Extensions["yt"]; ok {
		if v := ext["videoId"]; len(v) > 0 && v[0].Value != "" {
			return v[0].Value
		}
	}
	if item.GUID != "" {
		return item.GUID
	}
	h := sha256.Sum256([]byte(item.Title + "|" + item.Link))
	return fmt.Sprintf("sha256:%x", h[:16])
}

func publishedAt(item *gofeed.Item) time.Time {
	if item.PublishedParsed != nil {
		return *item.PublishedParsed
	}
	if item.UpdatedParsed != nil {
		return *item.UpdatedParsed
	}
	return time.Time{}
}

func author(feed *gofeed.Feed, item *gofeed.Item) string {
	if len(item.Authors) > 0 && item.Authors[0].Name != "" {
		return item.Authors[0].Name
	}
	return feed.Title
}
