package apiclient

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
	"sort"
)

// FileFieldName is the reserved multipart field that carries the file
// itself. Extra upload fields must not use this name.
const FileFieldName = "file"

// Upload is a file plus auxiliary scalar fields, sent as one
// multipart/form-data body. Field values are coerced to strings with
// fmt.Sprint, so {"userId": 7} arrives as the form field userId="7".
type Upload struct {
	FileName    string
	ContentType string // empty means application/octet-stream
	// Content holds the file bytes. Reader is used instead when
	// Content is nil, for streaming large files.
	Content []byte
	Reader  io.Reader
	Fields  map[string]any
}

// encode builds the multipart body and returns it together with the
// boundary-carrying Content-Type value.
func (u *Upload) encode() (io.Reader, string, error) {
	names := make([]string, 0, len(u.Fields))
	for name := range u.Fields {
		if name == FileFieldName {
			return nil, "", fmt.Errorf("upload field %q collides with the reserved file field", name)
		}
		names = append(names, name)
	}
	sort.Strings(names)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for _, name := range names {
		if err := w.WriteField(name, fmt.Sprint(u.Fields[name])); err != nil {
			return nil, "", fmt.Errorf("write field %q: %w", name, err)
		}
	}

	part, err := u.createFilePart(w)
	if err != nil {
		return nil, "", err
	}
	if u.Content != nil {
		if _, err := part.Write(u.Content); err != nil {
			return nil, "", fmt.Errorf("write file part: %w", err)
		}
	} else if u.Reader != nil {
		if _, err := io.Copy(part, u.Reader); err != nil {
			return nil, "", fmt.Errorf("copy file part: %w", err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

func (u *Upload) createFilePart(w *multipart.Writer) (io.Writer, error) {
	if u.ContentType == "" {
		return w.CreateFormFile(FileFieldName, u.FileName)
	}
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition",
		`form-data; name="`+FileFieldName+`"; filename="`+escapeQuotes(u.FileName)+`"`)
	header.Set("Content-Type", u.ContentType)
	return w.CreatePart(header)
}

// escapeQuotes escapes quote and backslash characters in filenames
// placed inside Content-Disposition header values.
func escapeQuotes(s string) string {
	var buf bytes.Buffer
	for _, b := range []byte(s) {
		if b == '"' || b == '\\' {
			buf.WriteByte('\\')
		}
		buf.WriteByte(b)
	}
	return buf.String()
}
