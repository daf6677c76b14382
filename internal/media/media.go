package media

import (
	"context"
	"fmt"
	"io"

	"github.com/italolelis/jellyfin_downloader/internal/logctx"
)

const (
	TypeFolder     = "Folder"
	MediaTypeVideo = "Video"
)

// Client is the subset of the media server API the downloader relies on.
type Client interface {
	Authenticate(ctx context.Context, creds Credentials) (*Session, error)
	GetItems(ctx context.Context, session *Session) ([]*Item, error)
	GrabStream(ctx context.Context, session *Session, itemID string) (*Stream, error)
}

// Credentials identify the user against the media server.
type Credentials struct {
	Username string
	Password string
}

// Session is the result of a successful authentication. It lives in memory for a single run.
type Session struct {
	AccessToken string
	UserID      string
}

type Item struct {
	ID            string `json:"Id"`
	Name          string `json:"Name"`
	Path          string `json:"Path,omitempty"`
	Type          string `json:"Type"`
	MediaType     string `json:"MediaType"`
	ParentID      string `json:"ParentId,omitempty"`
	PremiereDate  string `json:"PremiereDate,omitempty"`
	OriginalTitle string `json:"OriginalTitle,omitempty"`
}

// IsVideo reports whether the item is a playable video and not a folder.
func (i *Item) IsVideo() bool {
	return i.Type != TypeFolder && i.MediaType == MediaTypeVideo
}

// Stream is an open item content stream. Size is -1 when the server did not declare it.
type Stream struct {
	Body io.ReadCloser
	Size int64
}

// FilterVideos keeps the video items, preserving their order.
func FilterVideos(items []*Item) []*Item {
	videos := make([]*Item, 0, len(items))

	for _, item := range items {
		if item == nil || !item.IsVideo() {
			continue
		}

		videos = append(videos, item)
	}

	return videos
}

// FetchCatalog lists every item visible to the session user and keeps the videos.
func FetchCatalog(ctx context.Context, client Client, session *Session) ([]*Item, error) {
	logger := logctx.LoggerFromContext(ctx)

	items, err := client.GetItems(ctx, session)
	if err != nil {
		return []*Item{}, fmt.Errorf("failed to fetch catalog: %w", err)
	}

	videos := FilterVideos(items)

	logger.DebugContext(ctx, "catalog filtered", "items", len(items), "videos", len(videos))

	return videos, nil
}
