package gateway

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"sync"

	"spaces-client/internal/constant"
	"spaces-client/internal/dto"
	"spaces-client/internal/entity"
	"spaces-client/internal/pkg/apperror"
)

// ProgressFunc receives upload percentages in non-decreasing order.
type ProgressFunc func(percent int)

// progressReader reports body consumption, capped at 99 until the server
// acknowledges the upload.
type progressReader struct {
	mu     sync.Mutex
	r      io.Reader
	total  int64
	read   int64
	last   int
	report ProgressFunc
}

func newProgressReader(r io.Reader, total int64, report ProgressFunc) *progressReader {
	pr := &progressReader{r: r, total: total, last: -1, report: report}
	pr.emit(0)
	return pr
}

func (p *progressReader) Read(buf []byte) (int, error) {
	n, err := p.r.Read(buf)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.read += int64(n)
	pct := 99
	if p.total > 0 {
		pct = int(p.read * 100 / p.total)
	}
	if pct > 99 {
		pct = 99
	}
	p.emitLocked(pct)
	return n, err
}

func (p *progressReader) emit(pct int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.emitLocked(pct)
}

func (p *progressReader) emitLocked(pct int) {
	if pct <= p.last || p.report == nil {
		return
	}
	p.last = pct
	p.report(pct)
}

// UploadFile posts a PDF as multipart form data. Non-PDF handles are
// rejected before any network traffic.
func (c *Client) UploadFile(ctx context.Context, space string, file entity.FileHandle, progress ProgressFunc) (string, error) {
	req := dto.UploadFileRequest{Space: space, FileName: file.Name, Size: file.Size}
	if err := c.validateRequest(req); err != nil {
		return "", err
	}
	if file.MediaType != constant.MediaTypePDF {
		return "", &apperror.InvalidFileTypeError{FileName: file.Name, MediaType: file.MediaType}
	}
	if file.Content == nil {
		return "", apperror.NewValidationError("Content", "file has no content")
	}
	if _, err := file.Content.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("upload file: rewind content: %w", err)
	}

	body, contentType, err := multipartBody(file)
	if err != nil {
		return "", fmt.Errorf("upload file: build form: %w", err)
	}

	reader := newProgressReader(bytes.NewReader(body), int64(len(body)), progress)

	var resp dto.MessageResponse
	err = c.do(ctx, call{
		op:          "upload file",
		method:      http.MethodPost,
		path:        "/upload_file/" + url.PathEscape(space),
		body:        reader,
		contentType: contentType,
		length:      int64(len(body)),
	}, &resp)
	if err != nil {
		return "", err
	}

	reader.emit(100)
	return resp.Message, nil
}

func multipartBody(file entity.FileHandle) ([]byte, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, constant.UploadFormField, file.Name))
	header.Set("Content-Type", constant.MediaTypePDF)

	part, err := mw.CreatePart(header)
	if err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(part, file.Content); err != nil {
		return nil, "", err
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), mw.FormDataContentType(), nil
}
