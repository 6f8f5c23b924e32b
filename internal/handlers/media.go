package handlers

import (
	"errors"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"messenger-service/internal/apperr"
	"messenger-service/internal/models"
	"messenger-service/internal/storage"
)

const maxFilesPerMessage = 10

// mediaUploader turns a multipart request into stored attachments.
type mediaUploader struct {
	store    MediaStore
	maxBytes int64
}

// collect stores every file of the "files" (or "file") form field under folder and picks the
// message type. Several files are only accepted when they are all images.
func (u mediaUploader) collect(c *gin.Context, folder string) (models.Attachments, models.MessageType, error) {
	if u.store == nil || !u.store.Enabled() {
		return nil, models.MessageTypeInvalid, apperr.InvalidState("attachment uploads are disabled")
	}
	if u.maxBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, u.maxBytes)
	}
	form, err := c.MultipartForm()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, models.MessageTypeInvalid, apperr.Validation("upload exceeds size limit")
		}
		return nil, models.MessageTypeInvalid, apperr.Validation("invalid multipart form")
	}
	files := form.File["files"]
	if len(files) == 0 {
		files = form.File["file"]
	}
	switch {
	case len(files) == 0:
		return nil, models.MessageTypeInvalid, apperr.Validation("at least one file is required")
	case len(files) > maxFilesPerMessage:
		return nil, models.MessageTypeInvalid, apperr.Validation("too many files")
	}

	msgType := mediaMessageType(files)
	if msgType == models.MessageTypeInvalid {
		return nil, msgType, apperr.Validation("only images can be sent together")
	}

	attachments := make(models.Attachments, 0, len(files))
	for _, fh := range files {
		att, err := u.put(c, fh, folder)
		if err != nil {
			return nil, models.MessageTypeInvalid, apperr.Internal("failed to store attachment", err)
		}
		attachments = append(attachments, att)
	}
	return attachments, msgType, nil
}

func (u mediaUploader) put(c *gin.Context, fh *multipart.FileHeader, folder string) (models.Attachment, error) {
	f, err := fh.Open()
	if err != nil {
		return models.Attachment{}, err
	}
	defer f.Close()
	return u.store.Put(c.Request.Context(), f, fh.Filename, contentType(fh), folder, fh.Size)
}

func contentType(fh *multipart.FileHeader) string {
	if ct := fh.Header.Get("Content-Type"); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

func mediaMessageType(files []*multipart.FileHeader) models.MessageType {
	if len(files) == 1 {
		switch storage.KindOf(contentType(files[0])) {
		case storage.KindImage:
			return models.MessageImage
		case storage.KindVideo:
			return models.MessageVideo
		default:
			return models.MessageFile
		}
	}
	for _, fh := range files {
		if !strings.HasPrefix(contentType(fh), "image/") {
			return models.MessageTypeInvalid
		}
	}
	return models.MessageImageGroup
}
