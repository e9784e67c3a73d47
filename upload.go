package netguard

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
	"sort"
	"sync"
)

const (
	defaultUploadFieldName = "File"
	defaultUploadFileType  = "FileType"

	noFileDataReason = "No file data provided"
)

// UploadPart is one file in a multipart upload. Empty fields take defaults:
// FieldName "File", FileType "FileType", and FileName / MimeType inferred
// from the first byte of Data.
type UploadPart struct {
	Data      []byte
	FieldName string
	FileName  string
	MimeType  string
	// FileType follows the file as a form field whose name and value are
	// both FileType.
	FileType string
}

func (p UploadPart) withDefaults() UploadPart {
	if p.FieldName == "" {
		p.FieldName = defaultUploadFieldName
	}
	if p.FileType == "" {
		p.FileType = defaultUploadFileType
	}
	if p.FileName == "" || p.MimeType == "" {
		ext, mimeType := DetectFileType(p.Data)
		if p.FileName == "" {
			p.FileName = "file." + ext
		}
		if p.MimeType == "" {
			p.MimeType = mimeType
		}
	}
	return p
}

var fileSignatures = map[byte][2]string{
	0xFF: {"jpg", "image/jpeg"},
	0x89: {"png", "image/png"},
	0x47: {"gif", "image/gif"},
	0x25: {"pdf", "application/pdf"},
	0xD0: {"doc", "application/msword"},
	0x46: {"txt", "text/plain"},
	0x00: {"mp4", "video/mp4"},
}

// DetectFileType guesses extension and MIME type from the first byte of data.
// Empty data reads as a zero byte.
func DetectFileType(data []byte) (ext, mimeType string) {
	var first byte
	if len(data) > 0 {
		first = data[0]
	}
	if sig, ok := fileSignatures[first]; ok {
		return sig[0], sig[1]
	}
	return "bin", "application/octet-stream"
}

// MultipartBody is an encoded multipart/form-data payload.
type MultipartBody struct {
	ContentType string
	Data        []byte
}

// BuildMultipart encodes params as form fields, in key order, followed by
// each part. It fails with UNHANDLED_ERROR("No file data provided") when
// parts is empty.
func BuildMultipart(params map[string]any, parts []UploadPart) (*MultipartBody, error) {
	if len(parts) == 0 {
		return nil, Unhandled(noFileDataReason)
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := w.WriteField(k, fmt.Sprint(params[k])); err != nil {
			return nil, &TransportError{Failure: FailureMultipartEncoding, Err: err}
		}
	}

	for _, part := range parts {
		part = part.withDefaults()
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
			escapeQuotes(part.FieldName), escapeQuotes(part.FileName)))
		h.Set("Content-Type", part.MimeType)
		fw, err := w.CreatePart(h)
		if err != nil {
			return nil, &TransportError{Failure: FailureMultipartEncoding, Err: err}
		}
		if _, err := fw.Write(part.Data); err != nil {
			return nil, &TransportError{Failure: FailureMultipartEncoding, Err: err}
		}
		if err := w.WriteField(part.FileType, part.FileType); err != nil {
			return nil, &TransportError{Failure: FailureMultipartEncoding, Err: err}
		}
	}

	if err := w.Close(); err != nil {
		return nil, &TransportError{Failure: FailureMultipartEncoding, Err: err}
	}
	return &MultipartBody{ContentType: w.FormDataContentType(), Data: buf.Bytes()}, nil
}

func escapeQuotes(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '"' || s[i] == '\\' {
			out = append(out, '\\')
		}
		out = append(out, s[i])
	}
	return string(out)
}

// ProgressFunc receives the fraction of the upload body sent, in [0, 1].
type ProgressFunc func(fraction float64)

// progressReader reports read progress over a body of known size.
type progressReader struct {
	r        io.Reader
	total    int64
	read     int64
	progress ProgressFunc
	once     sync.Once
}

func newProgressReader(data []byte, progress ProgressFunc) io.Reader {
	if progress == nil {
		return bytes.NewReader(data)
	}
	return &progressReader{r: bytes.NewReader(data), total: int64(len(data)), progress: progress}
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	p.read += int64(n)
	if n > 0 && p.total > 0 && p.read < p.total {
		p.progress(float64(p.read) / float64(p.total))
	}
	if err == io.EOF || p.read >= p.total {
		p.once.Do(func() { p.progress(1) })
	}
	return n, err
}
