package web

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/JonMunkholm/flatfile/internal/catalog"
	"github.com/JonMunkholm/flatfile/internal/flatfile"
	"github.com/JonMunkholm/flatfile/internal/logging"
	"github.com/JonMunkholm/flatfile/internal/store"
)

// StatsResponse is flatfile.Stats for JSON clients.
type StatsResponse struct {
	Lines        int   `json:"lines"`
	Records      int   `json:"records"`
	Unresolvable int   `json:"unresolvable"`
	Skipped      int   `json:"skipped"`
	Aborted      bool  `json:"aborted"`
	LimitReached bool  `json:"limitReached"`
	Bytes        int64 `json:"bytes"`
	DurationMs   int64 `json:"durationMs"`
}

func toStatsResponse(st flatfile.Stats) StatsResponse {
	return StatsResponse{
		Lines:        st.Lines,
		Records:      st.Records,
		Unresolvable: st.Unresolvable,
		Skipped:      st.Skipped,
		Aborted:      st.Aborted,
		LimitReached: st.LimitReached,
		Bytes:        st.Bytes,
		DurationMs:   st.Duration.Milliseconds(),
	}
}

// DecodeResponse is the result of POST /api/decode/{formatKey}. Records
// and Unresolvable hold at most the preview limit each; Stats counts the
// whole input.
type DecodeResponse struct {
	Format       string          `json:"format"`
	Source       string          `json:"source"`
	RunID        *uuid.UUID      `json:"runId,omitempty"`
	Inserted     int64           `json:"inserted"`
	Stats        StatsResponse   `json:"stats"`
	Records      []any           `json:"records"`
	Unresolvable []store.Failure `json:"unresolvable"`
	Truncated    bool            `json:"truncated"`
}

// handleDecode streams the request body, a multipart "file" field or an
// object named by ?source= through a registered format.
//
// Query parameters:
//
//	persist=true        copy records into the format's table as one run
//	limit=N             preview rows returned (default Decode.PreviewRows)
//	maxLines=N          stop after N lines
//	encoding=NAME       source character set
//	delimiter=C         override the declared delimiter
//	skipFirstLine=BOOL  override the declared header handling
//	strict=true         empty required fields and bad numbers are unresolvable
func (s *Server) handleDecode(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "formatKey")
	def, ok := catalog.Get(key)
	if !ok {
		s.respondError(w, r, fmt.Errorf("%w: %s", ErrUnknownFormat, key))
		return
	}

	persist := parseBoolParam(r, "persist")
	if persist {
		if s.importer == nil {
			s.respondError(w, r, ErrPersistDisabled)
			return
		}
		if !def.SupportsCopy() {
			s.respondError(w, r, fmt.Errorf("%s: %w", key, store.ErrNoCopySupport))
			return
		}
	}

	opts, err := s.decodeOptions(r, key)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	src, err := s.requestSource(w, r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	if err := s.limiter.Acquire(r.Context()); err != nil {
		s.respondError(w, r, err)
		return
	}
	defer s.limiter.Release()

	ctx := r.Context()
	if s.cfg.Decode.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Decode.Timeout)
		defer cancel()
	}
	defer s.metrics.Track()()

	preview := newPreview(parseIntParam(r, "limit", s.cfg.Decode.PreviewRows))
	resp := DecodeResponse{Format: key, Source: src.Name()}

	var stats flatfile.Stats
	if persist {
		var res store.ImportResult
		res, err = s.importer.Import(ctx, def, src, preview, opts...)
		stats = res.Stats
		if res.RunID != uuid.Nil {
			resp.RunID = &res.RunID
		}
		resp.Inserted = res.Inserted
	} else {
		stats, err = def.Decode(ctx, src, preview, opts...)
	}
	s.metrics.Observe(key, stats, err)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	resp.Stats = toStatsResponse(stats)
	resp.Records = preview.records
	resp.Unresolvable = preview.failures
	resp.Truncated = len(preview.records) < stats.Records || len(preview.failures) < stats.Unresolvable

	logging.FromContext(r.Context()).Info("decode finished",
		logging.Format(key),
		"source", src.Name(),
		"records", stats.Records,
		"unresolvable", stats.Unresolvable,
		"persisted", persist,
	)
	writeJSON(w, http.StatusOK, resp)
}

// decodeOptions builds the per-request decoder options from the configured
// limits and the query string.
func (s *Server) decodeOptions(r *http.Request, key string) ([]flatfile.Option, error) {
	q := r.URL.Query()
	dc := s.cfg.Decode

	limits := flatfile.Limits{
		MaxLines:      dc.MaxLines,
		MaxLineLength: dc.MaxLineLength,
		MaxFileSize:   dc.MaxFileSize,
	}
	if n := parseIntParam(r, "maxLines", 0); n > 0 && (limits.MaxLines == 0 || n < limits.MaxLines) {
		limits.MaxLines = n
	}

	encoding := dc.Encoding
	if e := q.Get("encoding"); e != "" {
		encoding = e
	}

	opts := []flatfile.Option{
		flatfile.WithLogger(logging.FromContext(r.Context()).With(logging.Format(key))),
		flatfile.WithLimits(limits),
		flatfile.WithEncoding(encoding),
	}

	if d := q.Get("delimiter"); d != "" {
		delim, err := flatfile.ParseDelimiter(d)
		if err != nil {
			return nil, &flatfile.ConfigError{Op: "delimiter", Err: err}
		}
		opts = append(opts, flatfile.WithDelimiter(delim))
	}
	if v := q.Get("skipFirstLine"); v != "" {
		opts = append(opts, flatfile.WithSkipFirstLine(parseBoolParam(r, "skipFirstLine")))
	}
	if parseBoolParam(r, "strict") {
		opts = append(opts, flatfile.WithStrictRequired(), flatfile.WithStrictCoercion())
	}
	return opts, nil
}

// requestSource picks the input: an object uri, a multipart file field or
// the raw body. Bodies are capped at Decode.MaxFileSize and never buffered.
func (s *Server) requestSource(w http.ResponseWriter, r *http.Request) (flatfile.Source, error) {
	if uri := r.URL.Query().Get("source"); uri != "" {
		if s.objects == nil {
			return nil, ErrS3Disabled
		}
		bucket, key, err := s.objects.ParseURI(uri)
		if err != nil {
			return nil, err
		}
		return s.objects.Object(bucket, key), nil
	}

	if r.Body == nil || r.Body == http.NoBody || r.ContentLength == 0 {
		return nil, ErrNoInput
	}
	if limit := s.cfg.Decode.MaxFileSize; limit > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, limit)
	}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if !strings.HasPrefix(mediaType, "multipart/") {
		return flatfile.NamedReader("request body", r.Body), nil
	}

	mr, err := r.MultipartReader()
	if err != nil {
		return nil, &flatfile.ConfigError{Op: "read form", Err: err}
	}
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return nil, ErrNoInput
		}
		if err != nil {
			return nil, &flatfile.ConfigError{Op: "read form", Err: err}
		}
		if part.FormName() == "file" {
			name := part.FileName()
			if name == "" {
				name = "upload"
			}
			return flatfile.NamedReader(name, part), nil
		}
	}
}

// preview keeps the first rows of a decode for the response and lets the
// decode run to the end.
type preview struct {
	limit    int
	records  []any
	failures []store.Failure
}

func newPreview(limit int) *preview {
	return &preview{limit: limit, records: []any{}, failures: []store.Failure{}}
}

func (p *preview) HandleRecord(rec any) bool {
	if len(p.records) < p.limit {
		p.records = append(p.records, rec)
	}
	return true
}

func (p *preview) HandleUnresolved(row *flatfile.RowError) bool {
	if len(p.failures) < p.limit {
		p.failures = append(p.failures, store.FailureFromRow(row))
	}
	return true
}
