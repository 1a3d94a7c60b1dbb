package server

import (
	"bytes"
	"compress/gzip"
	stderrors "errors"
	"io"
	"net/http"
	"strings"

	"taskflow/internal/domain/errors"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// compressThreshold is the body size below which responses go out plain.
// Most single-entity envelopes stay under it; task lists and dashboards
// usually do not.
const compressThreshold = 1024

var compressibleTypes = []string{
	"application/json",
	"application/xml",
	"application/javascript",
	"text/",
}

func wantsGzip(header string) bool {
	return strings.Contains(strings.ToLower(header), "gzip")
}

// gzipBody inflates a request body and closes both readers.
type gzipBody struct {
	*gzip.Reader
	body io.ReadCloser
}

func (b *gzipBody) Close() error {
	return stderrors.Join(b.Reader.Close(), b.body.Close())
}

// GzipRequestDecompress inflates request bodies sent with
// Content-Encoding: gzip before they are bound.
func GzipRequestDecompress() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if !wantsGzip(ctx.GetHeader("Content-Encoding")) {
			ctx.Next()
			return
		}
		zr, err := gzip.NewReader(ctx.Request.Body)
		if err != nil {
			fail(ctx, errors.ErrInvalidGzipRequest)
			return
		}
		ctx.Request.Body = &gzipBody{Reader: zr, body: ctx.Request.Body}
		ctx.Request.Header.Del("Content-Encoding")
		ctx.Request.Header.Del("Content-Length")
		ctx.Request.ContentLength = -1
		ctx.Next()
	}
}

// compressWriter holds the first compressThreshold bytes back, then
// commits to gzip or to plain output for the rest of the response.
type compressWriter struct {
	gin.ResponseWriter
	zw    *gzip.Writer
	buf   bytes.Buffer
	plain bool
}

func (w *compressWriter) Write(p []byte) (int, error) {
	switch {
	case w.zw != nil:
		if _, err := w.zw.Write(p); err != nil {
			return 0, errors.ErrGzipCompressionFailed
		}
		return len(p), nil
	case w.plain:
		return w.ResponseWriter.Write(p)
	}
	w.buf.Write(p)
	if w.buf.Len() < compressThreshold {
		return len(p), nil
	}
	if err := w.commit(compressible(w.Status(), w.Header())); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (w *compressWriter) WriteString(s string) (int, error) { return w.Write([]byte(s)) }

// commit picks the output mode and releases whatever was held back.
func (w *compressWriter) commit(gz bool) error {
	defer w.buf.Reset()
	if !gz {
		w.plain = true
		if w.buf.Len() == 0 {
			return nil
		}
		_, err := w.ResponseWriter.Write(w.buf.Bytes())
		return err
	}
	h := w.Header()
	h.Del("Content-Length")
	h.Set("Content-Encoding", "gzip")
	w.zw = gzip.NewWriter(w.ResponseWriter)
	if _, err := w.zw.Write(w.buf.Bytes()); err != nil {
		return errors.ErrGzipCompressionFailed
	}
	return nil
}

// Flush before the threshold sends the held bytes plain.
func (w *compressWriter) Flush() {
	if w.zw == nil && !w.plain {
		_ = w.commit(false)
	}
	if w.zw != nil {
		_ = w.zw.Flush()
	}
	w.ResponseWriter.Flush()
}

func (w *compressWriter) finish() error {
	if w.zw != nil {
		if err := w.zw.Close(); err != nil {
			return errors.ErrGzipCompressionFailed
		}
		return nil
	}
	return w.commit(false)
}

func compressible(status int, h http.Header) bool {
	switch {
	case status < http.StatusOK, status == http.StatusNoContent, status == http.StatusPartialContent:
		return false
	case status >= http.StatusMultipleChoices && status < http.StatusBadRequest:
		return false
	case h.Get("Content-Encoding") != "":
		return false
	}
	ct := strings.ToLower(h.Get("Content-Type"))
	if ct == "" || strings.HasPrefix(ct, "text/event-stream") {
		return false
	}
	for _, prefix := range compressibleTypes {
		if strings.HasPrefix(ct, prefix) {
			return true
		}
	}
	return false
}

func addVary(h http.Header) {
	vary := h.Get("Vary")
	switch {
	case vary == "":
		h.Set("Vary", "Accept-Encoding")
	case !strings.Contains(vary, "Accept-Encoding"):
		h.Set("Vary", vary+", Accept-Encoding")
	}
}

// GzipResponseCompress gzips compressible responses larger than
// compressThreshold for clients that accept it.
func GzipResponseCompress() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if ctx.Request.Method == http.MethodHead || !wantsGzip(ctx.GetHeader("Accept-Encoding")) {
			ctx.Next()
			return
		}
		addVary(ctx.Writer.Header())

		cw := &compressWriter{ResponseWriter: ctx.Writer}
		ctx.Writer = cw
		defer func() {
			if err := cw.finish(); err != nil {
				log.WithError(err).WithField("path", ctx.Request.URL.Path).Warn("failed to finish compressed response")
			}
		}()
		ctx.Next()
	}
}
