package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"streamwatch/internal/model"
)

const twitchStreamsURL = "https://api.twitch.tv/helix/streams"

type twitchStreamsResponse struct {
	Data []struct {
		UserLogin string `json:"user_login"`
		UserName  string `json:"user_name"`
		GameName  string `json:"game_name"`
		Type      string `json:"type"`
	} `json:"data"`
	Pagination struct {
		Cursor string `json:"cursor"`
	} `json:"pagination"`
}

// twitchStreams lists all live streams of src.FilterID, following the
// pagination cursor for at most MaxPages pages. When more pages remain it
// returns the items read so far together with ErrTruncated.
func (f *Fetcher) twitchStreams(ctx context.Context, src model.Source) ([]model.Item, error) {
	header := http.Header{}
	header.Set("Client-Id", f.cfg.TwitchClientID)

	var items []model.Item
	seen := make(map[string]bool)
	cursor := ""
	truncated := true
	for page := 0; page < f.cfg.MaxPages; page++ {
		q := url.Values{}
		q.Set("game_id", src.FilterID)
		q.Set("first", "100")
		if cursor != "" {
			q.Set("after", cursor)
		}

		body, err := f.get(ctx, f.cfg.TwitchClient, twitchStreamsURL+"?"+q.Encode(), header)
		if err != nil {
			return nil, err
		}

		var resp twitchStreamsResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, fmt.Errorf("decode twitch streams: %w", err)
		}

		for _, s := range resp.Data {
			if s.Type != "" && s.Type != "live" {
				continue
			}
			items = append(items, model.StreamItem{
				Login:    s.UserLogin,
				UserName: s.UserName,
				Game:     s.GameName,
				Link:     "https://www.twitch.tv/" + s.UserLogin,
			})
		}

		next := resp.Pagination.Cursor
		if next == "" || len(resp.Data) == 0 || seen[next] {
			truncated = false
			break
		}
		seen[next] = true
		cursor = next
	}
	if truncated {
		return items, ErrTruncated
	}
	return items, nil
}
