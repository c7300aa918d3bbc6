package gallery

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"net/textproto"
	"strings"

	"github.com/kozaktomas/selfie-finder/internal/constants"
)

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// buildMultipart encodes files under field, one part per file, in order.
func buildMultipart(field FieldName, files []File) (*bytes.Buffer, string, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	for i, f := range files {
		if err := addFilePart(writer, string(field), f, i); err != nil {
			return nil, "", err
		}
	}

	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("could not close writer: %w", err)
	}
	return &body, writer.FormDataContentType(), nil
}

// addFilePart writes one file part. CreateFormFile always sends
// application/octet-stream, the service expects the real image type.
func addFilePart(writer *multipart.Writer, field string, f File, index int) error {
	name := f.Name
	if name == "" {
		name = fmt.Sprintf("photo_%d.jpg", index+1)
	}
	contentType := f.ContentType
	if contentType == "" {
		contentType = constants.FrameContentType
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
		quoteEscaper.Replace(field), quoteEscaper.Replace(name)))
	h.Set("Content-Type", contentType)

	part, err := writer.CreatePart(h)
	if err != nil {
		return fmt.Errorf("could not create form file: %w", err)
	}
	if _, err := part.Write(f.Data); err != nil {
		return fmt.Errorf("could not copy file data: %w", err)
	}
	return nil
}
