package telegram

import (
	"context"
	"fmt"
	"strings"

	"github.com/gotd/td/telegram/downloader"
	"github.com/gotd/td/tg"
	"github.com/gotd/td/tgerr"
)

// Extension возвращает расширение файла для медиа истории.
func (s *Story) Extension() string {
	switch media := s.Media.(type) {
	case *tg.MessageMediaPhoto:
		return "jpg"
	case *tg.MessageMediaDocument:
		doc, ok := media.Document.(*tg.Document)
		if !ok {
			return "bin"
		}
		return documentExtension(doc)
	default:
		return "bin"
	}
}

func documentExtension(doc *tg.Document) string {
	parts := strings.Split(doc.MimeType, "/")
	ext := parts[len(parts)-1]
	if ext != "octet-stream" && ext != "" {
		return ext
	}
	for _, attr := range doc.Attributes {
		switch attr.(type) {
		case *tg.DocumentAttributeVideo, *tg.DocumentAttributeAudio:
			return "mp4"
		}
	}
	return "bin"
}

// Download скачивает медиа истории в файл по пути dest.
func (c *Client) Download(ctx context.Context, api *tg.Client, story *Story, dest string) error {
	const op = "telegram.Download"

	location, err := fileLocation(story.Media)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if _, err := downloader.NewDownloader().Download(api, location).ToPath(ctx, dest); err != nil {
		if wait, ok := tgerr.AsFloodWait(err); ok {
			return &RateLimited{RetryAfter: wait}
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func fileLocation(media tg.MessageMediaClass) (tg.InputFileLocationClass, error) {
	switch m := media.(type) {
	case *tg.MessageMediaPhoto:
		photo, ok := m.Photo.(*tg.Photo)
		if !ok {
			return nil, fmt.Errorf("unexpected photo class %T", m.Photo)
		}
		return &tg.InputPhotoFileLocation{
			ID:            photo.ID,
			AccessHash:    photo.AccessHash,
			FileReference: photo.FileReference,
			ThumbSize:     largestPhotoSize(photo),
		}, nil
	case *tg.MessageMediaDocument:
		doc, ok := m.Document.(*tg.Document)
		if !ok {
			return nil, fmt.Errorf("unexpected document class %T", m.Document)
		}
		return &tg.InputDocumentFileLocation{
			ID:            doc.ID,
			AccessHash:    doc.AccessHash,
			FileReference: doc.FileReference,
		}, nil
	default:
		return nil, fmt.Errorf("unsupported media type %T", media)
	}
}

// largestPhotoSize возвращает тип самого крупного размера фото.
// Размеры в ответе упорядочены по возрастанию.
func largestPhotoSize(photo *tg.Photo) string {
	thumb := ""
	for _, s := range photo.Sizes {
		switch size := s.(type) {
		case *tg.PhotoSize:
			thumb = size.Type
		case *tg.PhotoSizeProgressive:
			thumb = size.Type
		}
	}
	return thumb
}
