package telegram

import (
	"context"
	"fmt"
	"time"

	"github.com/gotd/td/tg"
	"github.com/gotd/td/tgerr"
)

// MediaKind — вид медиа истории.
type MediaKind string

// Виды медиа, различаемые при скачивании.
const (
	MediaPhoto    MediaKind = "photo"
	MediaDocument MediaKind = "document"
)

// StoryMeta — краткие метаданные истории для листинга и кеша.
type StoryMeta struct {
	ID   int       `json:"id"`
	Date time.Time `json:"date"`
	Kind MediaKind `json:"kind"`
}

// Story — история с медиа, готовая к скачиванию.
type Story struct {
	ID    int
	Date  time.Time
	Kind  MediaKind
	Media tg.MessageMediaClass
}

// Client выполняет операции с историями через переданный RPC-клиент.
// Сам RPC-клиент принадлежит пулу сессий и лишь одалживается на время вызова.
type Client struct{}

// NewClient создаёт обёртку над операциями с историями.
func NewClient() *Client {
	return &Client{}
}

// Resolve возвращает peer публичного аккаунта по имени.
func (c *Client) Resolve(ctx context.Context, api *tg.Client, username string) (tg.InputPeerClass, error) {
	const op = "telegram.Resolve"

	resolved, err := api.ContactsResolveUsername(ctx, username)
	if err != nil {
		if wait, ok := tgerr.AsFloodWait(err); ok {
			return nil, &RateLimited{RetryAfter: wait}
		}
		return nil, fmt.Errorf("%s: %w", op, ErrAccountNotFound)
	}

	switch peer := resolved.Peer.(type) {
	case *tg.PeerUser:
		for _, u := range resolved.Users {
			if user, ok := u.(*tg.User); ok && user.ID == peer.UserID {
				return &tg.InputPeerUser{UserID: user.ID, AccessHash: user.AccessHash}, nil
			}
		}
	case *tg.PeerChannel:
		for _, ch := range resolved.Chats {
			if channel, ok := ch.(*tg.Channel); ok && channel.ID == peer.ChannelID {
				return &tg.InputPeerChannel{ChannelID: channel.ID, AccessHash: channel.AccessHash}, nil
			}
		}
	}
	return nil, fmt.Errorf("%s: %w", op, ErrAccountNotFound)
}

// ListStories возвращает метаданные текущих историй аккаунта.
func (c *Client) ListStories(ctx context.Context, api *tg.Client, peer tg.InputPeerClass) ([]StoryMeta, error) {
	const op = "telegram.ListStories"

	peerStories, err := api.StoriesGetPeerStories(ctx, peer)
	if err != nil {
		if wait, ok := tgerr.AsFloodWait(err); ok {
			return nil, &RateLimited{RetryAfter: wait}
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var metas []StoryMeta
	for _, item := range peerStories.Stories.Stories {
		story, ok := item.(*tg.StoryItem)
		if !ok {
			continue
		}
		metas = append(metas, StoryMeta{
			ID:   story.ID,
			Date: time.Unix(int64(story.Date), 0),
			Kind: mediaKind(story.Media),
		})
	}
	return metas, nil
}

// StoryByID возвращает историю с медиа по её номеру.
func (c *Client) StoryByID(ctx context.Context, api *tg.Client, peer tg.InputPeerClass, storyID int) (*Story, error) {
	const op = "telegram.StoryByID"

	res, err := api.StoriesGetStoriesByID(ctx, &tg.StoriesGetStoriesByIDRequest{
		Peer: peer,
		ID:   []int{storyID},
	})
	if err != nil {
		if wait, ok := tgerr.AsFloodWait(err); ok {
			return nil, &RateLimited{RetryAfter: wait}
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if len(res.Stories) == 0 {
		return nil, ErrStoryNotFound
	}
	story, ok := res.Stories[0].(*tg.StoryItem)
	if !ok {
		return nil, ErrStoryNotFound
	}
	return &Story{
		ID:    story.ID,
		Date:  time.Unix(int64(story.Date), 0),
		Kind:  mediaKind(story.Media),
		Media: story.Media,
	}, nil
}

func mediaKind(media tg.MessageMediaClass) MediaKind {
	if _, ok := media.(*tg.MessageMediaPhoto); ok {
		return MediaPhoto
	}
	return MediaDocument
}
