package remote

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"

	"advocat/internal/models"
)

// fileField is the multipart field name the API reads uploaded pictures from.
const fileField = "filename"

type formField struct {
	name, value string
}

func encodeMultipart(fields []formField, upload *models.Upload) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for _, f := range fields {
		if err := w.WriteField(f.name, f.value); err != nil {
			return nil, "", fmt.Errorf("multipart field %s: %w", f.name, err)
		}
	}

	if upload != nil && len(upload.Data) > 0 {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, fileField, upload.Filename))
		ct := upload.ContentType
		if ct == "" {
			ct = "application/octet-stream"
		}
		h.Set("Content-Type", ct)
		part, err := w.CreatePart(h)
		if err != nil {
			return nil, "", fmt.Errorf("multipart file: %w", err)
		}
		if _, err := part.Write(upload.Data); err != nil {
			return nil, "", fmt.Errorf("multipart file: %w", err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}
