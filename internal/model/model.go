// Package model defines the domain types used across the application.
package model

import (
	"strings"
	"time"
)

// SourceKind defines how a source's items are tracked between polls.
type SourceKind string

// Supported source kinds.
const (
	KindStreams SourceKind = "live-streams"
	KindVideos  SourceKind = "new-videos"
)

// Platform identifies the upstream API a source is polled from.
type Platform string

// Supported platforms.
const (
	PlatformTwitch      Platform = "twitch"
	PlatformYouTube     Platform = "youtube"
	PlatformYouTubeFeed Platform = "youtube_feed"
)

// Source is one upstream feed polled on a fixed interval.
type Source struct {
	Name     string
	Kind     SourceKind
	Platform Platform

	// FilterID is the Twitch game id.
	FilterID string
	// Query is the YouTube search term.
	Query string
	// ChannelIDs lists the YouTube channels of a feed source.
	ChannelIDs []string

	Interval    time.Duration
	ChatID      int64
	StaticLabel string
	Ignore      IDSet
}

// Prunes reports whether identifiers missing from a fresh snapshot are
// dropped from the last-seen set. Streams that end are forgotten so they
// notify again when they restart; videos are one-time events.
func (s Source) Prunes() bool {
	return s.Kind == KindStreams
}

// NormalizeIDs returns ids in the form Fetch reports them. Twitch items
// are keyed by login, which is the lowercased user name for most accounts,
// so hand-written ignore lists and state saved under display names still
// match. Other platforms are returned unchanged.
func (s Source) NormalizeIDs(ids IDSet) IDSet {
	if s.Platform != PlatformTwitch || ids == nil {
		return ids
	}
	out := make(IDSet, len(ids))
	for id := range ids {
		out.Add(strings.ToLower(id))
	}
	return out
}

// Item is a single entry reported by a source: a StreamItem or a VideoItem.
type Item interface {
	ID() string
	Display() string
	Category() string
	URL() string
	item()
}

// StreamItem is a live stream.
type StreamItem struct {
	Login    string
	UserName string
	Game     string
	Link     string
}

func (s StreamItem) ID() string       { return s.Login }
func (s StreamItem) Display() string  { return s.UserName }
func (s StreamItem) Category() string { return s.Game }
func (s StreamItem) URL() string      { return s.Link }
func (StreamItem) item()              {}

// VideoItem is a published video.
type VideoItem struct {
	VideoID     string
	Channel     string
	Title       string
	Game        string
	Link        string
	PublishedAt time.Time
}

func (v VideoItem) ID() string       { return v.VideoID }
func (v VideoItem) Display() string  { return v.Channel }
func (v VideoItem) Category() string { return v.Game }
func (v VideoItem) URL() string      { return v.Link }
func (VideoItem) item()              {}
