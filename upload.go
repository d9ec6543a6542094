package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Sink receives every decoded field. It must be safe for concurrent use,
// all listeners share one.
type Sink interface {
	Emit(field Field)
}

// PrintSink writes each field value on its own line
type PrintSink struct {
	mu sync.Mutex
	w  io.Writer
}

// NewPrintSink returns a sink that prints each value to w
func NewPrintSink(w io.Writer) *PrintSink {
	return &PrintSink{w: w}
}

// Emit prints the value followed by a newline
func (s *PrintSink) Emit(field Field) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintln(s.w, field.Value)
}

// UploadConfig configures an UploadService
type UploadConfig struct {
	Form         []byte // Served verbatim on GET /
	Ack          []byte // Returned after every accepted POST /
	MaxBodyBytes int64
	Sink         Sink
	Logger       *slog.Logger
	Metrics      *metrics // Optional
}

// UploadService serves the upload form and hands submissions to the sink
type UploadService struct {
	form    []byte
	ack     []byte
	maxBody int64
	sink    Sink
	logger  *slog.Logger
	metrics *metrics
	handler http.Handler
}

func NewUploadService(cfg UploadConfig) *UploadService {
	s := &UploadService{
		form:    cfg.Form,
		ack:     cfg.Ack,
		maxBody: cfg.MaxBodyBytes,
		sink:    cfg.Sink,
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
	}
	if s.form == nil {
		s.form = []byte(uploadForm)
	}
	if s.ack == nil {
		s.ack = []byte(thankYou)
	}
	if s.maxBody <= 0 {
		s.maxBody = defaultMaxBodyBytes
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.handler = requestIDMiddleware(http.HandlerFunc(s.route))
	return s
}

func (s *UploadService) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// route only matches the root path, everything else is a 404
func (s *UploadService) route(w http.ResponseWriter, r *http.Request) {
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	start := time.Now()

	route := "other"
	switch {
	case r.URL.Path == "/" && r.Method == http.MethodGet:
		route = "form"
		s.uploadForm(rec, r)
	case r.URL.Path == "/" && r.Method == http.MethodPost:
		route = "upload"
		s.handleUpload(rec, r)
	default:
		http.NotFound(rec, r)
	}

	s.metrics.recordRequest(route, rec.status)
	s.logger.Info("request",
		"request_id", RequestIDFromContext(r.Context()),
		"method", r.Method,
		"path", r.URL.Path,
		"status", rec.status,
		"remote", r.RemoteAddr,
		"duration", time.Since(start))
}

// uploadForm returns the HTML page with the upload form
func (s *UploadService) uploadForm(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(s.form)
}

// handleUpload decodes a submission and passes every field to the sink
func (s *UploadService) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBody)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			http.Error(w, fmt.Sprintf("Request body exceeds %d bytes", maxErr.Limit), http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, fmt.Sprintf("Failed to read request body: %v", err), http.StatusBadRequest)
		return
	}

	fields, encoding := decodeBody(r.Header.Get("Content-Type"), body)
	for _, field := range fields {
		s.logger.Debug("decoded field",
			"request_id", RequestIDFromContext(r.Context()),
			"name", field.Name,
			"filename", field.FileName,
			"bytes", len(field.Value))
		s.sink.Emit(field)
	}
	s.metrics.recordUpload(encoding, len(fields))

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(s.ack)
}

// decodeBody picks the decoder from the Content-Type header. Anything that
// is not URL-encoded goes through the multipart decoder, which falls back to
// reading the boundary from the body itself.
func decodeBody(contentType string, body []byte) ([]Field, string) {
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err == nil && mediaType == "application/x-www-form-urlencoded" {
		return DecodeURLEncoded(body), "urlencoded"
	}

	var boundary string
	if err == nil && strings.HasPrefix(mediaType, "multipart/") {
		boundary = params["boundary"]
	}
	return DecodeMultipart(body, boundary), "multipart"
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

type ctxKey string

const requestIDKey ctxKey = "request_id"

// RequestIDFromContext returns the request id if present.
func RequestIDFromContext(ctx context.Context) string {
	if s, ok := ctx.Value(requestIDKey).(string); ok {
		return s
	}
	return ""
}

// requestIDMiddleware keeps a client supplied X-Request-Id or generates one
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rid := r.Header.Get("X-Request-Id")
		if rid == "" {
			rid = uuid.NewString()
		}
		ctx := context.WithValue(r.Context(), requestIDKey, rid)
		w.Header().Set("X-Request-Id", rid)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
