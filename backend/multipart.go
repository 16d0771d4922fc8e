package backend

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
	"path/filepath"
	"strings"
)

// Upload is an image forwarded from the dashboard to the marketplace API.
type Upload struct {
	Field       string
	Filename    string
	ContentType string
	Content     io.Reader
}

type formBody struct {
	buf         *bytes.Buffer
	contentType string
}

// newForm encodes fields in a stable order followed by the optional uploads.
// Empty values are left out so PATCH requests only touch what was sent.
func newForm(fields [][2]string, uploads ...*Upload) (*formBody, error) {
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)

	for _, kv := range fields {
		if kv[1] == "" {
			continue
		}
		if err := w.WriteField(kv[0], kv[1]); err != nil {
			return nil, fmt.Errorf("writing field %s: %w", kv[0], err)
		}
	}

	for _, up := range uploads {
		if up == nil || up.Content == nil {
			continue
		}
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, up.Field, filepath.Base(up.Filename)))
		ct := up.ContentType
		if ct == "" {
			ct = contentTypeFor(up.Filename)
		}
		h.Set("Content-Type", ct)
		part, err := w.CreatePart(h)
		if err != nil {
			return nil, fmt.Errorf("creating part %s: %w", up.Field, err)
		}
		if _, err := io.Copy(part, up.Content); err != nil {
			return nil, fmt.Errorf("copying %s: %w", up.Field, err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, err
	}
	return &formBody{buf: buf, contentType: w.FormDataContentType()}, nil
}

func contentTypeFor(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".webp":
		return "image/webp"
	default:
		return "application/octet-stream"
	}
}
