package web

// messages.go maps technical errors to user-facing messages with a support
// code and an HTTP status.
//
// Codes by category:
//
//	CFG001  decode configuration rejected        400
//	CFG002  unknown character encoding          400
//	FMT001  unknown format                      404
//	FMT002  format cannot be persisted          400
//	FILE001 file too large                      413
//	FILE002 file or object not found            404
//	FILE003 file not readable                   403
//	FILE004 no input provided                   400
//	FILE005 invalid object uri                  400
//	SEC001  record type not allowed             500
//	ROW001  row could not be parsed             422
//	DB001   duplicate key                       409
//	DB002   foreign key violation               409
//	DB003   table missing                       500
//	DB004   database unreachable                503
//	DB005   persistence not configured          503
//	DB006   deadlock                            503
//	DB007   run not found                       404
//	S3001   object storage unavailable          503
//	BUSY001 decode slots exhausted              503
//	RATE001 rate limited                        429
//	REQ001  request cancelled or timed out      408
//	ERR000  anything else                       500
//
// Sentinels are matched with errors.Is and Postgres failures by SQLSTATE.
// Driver errors that carry neither fall back to substring patterns. The
// first match wins, so specific entries come before general ones.

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/JonMunkholm/flatfile/internal/flatfile"
	"github.com/JonMunkholm/flatfile/internal/s3source"
	"github.com/JonMunkholm/flatfile/internal/store"
)

var (
	ErrUnknownFormat   = errors.New("unknown format")
	ErrNoInput         = errors.New("no input provided")
	ErrPersistDisabled = errors.New("persistence is not configured")
	ErrS3Disabled      = errors.New("object storage is not configured")
	ErrRateLimited     = errors.New("rate limit exceeded")
)

// UserMessage is what a client sees for a failed request.
type UserMessage struct {
	Message string // What happened
	Action  string // What to do about it
	Code    string // Support reference
	Status  int    // HTTP status
}

type errorMatch struct {
	match func(error) bool
	msg   UserMessage
}

func is(target error) func(error) bool {
	return func(err error) bool { return errors.Is(err, target) }
}

func contains(pattern string) func(error) bool {
	return func(err error) bool { return strings.Contains(strings.ToLower(err.Error()), pattern) }
}

func isMaxBytes(err error) bool {
	var mbe *http.MaxBytesError
	return errors.As(err, &mbe)
}

var errorMatches = []errorMatch{
	// Request
	{is(ErrRateLimited), UserMessage{"Too many requests", "Please wait a moment before trying again", "RATE001", http.StatusTooManyRequests}},
	{is(ErrTooManyDecodes), UserMessage{"System is busy with other decodes", "Please wait a moment and try again", "BUSY001", http.StatusServiceUnavailable}},
	{is(ErrNoInput), UserMessage{"No input was provided", "Send the file as the request body, a multipart \"file\" field or a source parameter", "FILE004", http.StatusBadRequest}},
	{is(ErrUnknownFormat), UserMessage{"Unknown format", "List the available formats at /api/formats", "FMT001", http.StatusNotFound}},
	{is(store.ErrNoCopySupport), UserMessage{"This format cannot be persisted", "Decode without persist=true", "FMT002", http.StatusBadRequest}},
	{is(ErrPersistDisabled), UserMessage{"Persistence is not configured", "Set DATABASE_URL or decode without persist=true", "DB005", http.StatusServiceUnavailable}},
	{is(ErrS3Disabled), UserMessage{"Object storage is not configured", "Set S3_BUCKET or S3_ENDPOINT, or upload the file directly", "S3001", http.StatusServiceUnavailable}},

	// Source
	{isMaxBytes, UserMessage{"File exceeds the maximum size", "Split the file into smaller chunks", "FILE001", http.StatusRequestEntityTooLarge}},
	{is(flatfile.ErrFileTooLarge), UserMessage{"File exceeds the maximum size", "Split the file into smaller chunks", "FILE001", http.StatusRequestEntityTooLarge}},
	{is(flatfile.ErrSourceNotFound), UserMessage{"File not found", "Check the object key or path", "FILE002", http.StatusNotFound}},
	{is(s3source.ErrBucketNotFound), UserMessage{"Bucket not found", "Check the bucket name", "FILE002", http.StatusNotFound}},
	{is(s3source.ErrInvalidURI), UserMessage{"Invalid object uri", "Use s3://bucket/key", "FILE005", http.StatusBadRequest}},
	{is(flatfile.ErrNotReadable), UserMessage{"File is not readable", "Check the file permissions or bucket policy", "FILE003", http.StatusForbidden}},
	{is(s3source.ErrServiceUnavailable), UserMessage{"Object storage is unavailable", "Please try again in a few moments", "S3001", http.StatusServiceUnavailable}},

	// Decoder
	{is(flatfile.ErrUnknownEncoding), UserMessage{"Unknown character encoding", "Use a name such as utf-8, windows-1252 or iso-8859-1", "CFG002", http.StatusBadRequest}},
	{is(flatfile.ErrSecurity), UserMessage{"Record type is not allowed", "Please contact support", "SEC001", http.StatusInternalServerError}},
	{is(flatfile.ErrParse), UserMessage{"A row could not be parsed", "Check the row against the format's layout", "ROW001", http.StatusUnprocessableEntity}},
	{is(flatfile.ErrConfig), UserMessage{"The decode could not be configured", "Check the request parameters", "CFG001", http.StatusBadRequest}},

	// Database
	{is(store.ErrRunNotFound), UserMessage{"Run not found", "Check the run id", "DB007", http.StatusNotFound}},
	{store.IsDuplicateKeyError, UserMessage{"A record with this key already exists", "Review the file for duplicates", "DB001", http.StatusConflict}},
	{store.IsForeignKeyViolationError, UserMessage{"Referenced record does not exist", "Load parent records first", "DB002", http.StatusConflict}},
	{store.IsUndefinedTableError, UserMessage{"Destination table is missing", "Run database migrations", "DB003", http.StatusInternalServerError}},
	{is(store.ErrFailedToConnect), UserMessage{"Unable to connect to database", "Please try again in a few moments", "DB004", http.StatusServiceUnavailable}},
	{contains("connection refused"), UserMessage{"Unable to connect to database", "Please try again in a few moments", "DB004", http.StatusServiceUnavailable}},
	{contains("connection reset"), UserMessage{"Database connection was interrupted", "Please try again", "DB004", http.StatusServiceUnavailable}},
	{contains("deadlock"), UserMessage{"Database was busy with conflicting operations", "Please try again", "DB006", http.StatusServiceUnavailable}},

	// Context
	{is(context.DeadlineExceeded), UserMessage{"Request timed out", "Try a smaller file or try again later", "REQ001", http.StatusRequestTimeout}},
	{is(context.Canceled), UserMessage{"Request was cancelled", "Please try again", "REQ001", http.StatusRequestTimeout}},
}

var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
	Status:  http.StatusInternalServerError,
}

// MapError converts err to a user message. A nil error maps to the zero
// message.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}
	for _, m := range errorMatches {
		if m.match(err) {
			return m.msg
		}
	}
	return defaultMessage
}

// FormatUserError renders err as "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific message rather than
// the ERR000 fallback.
func IsUserFacing(err error) bool {
	return err != nil && MapError(err).Code != defaultMessage.Code
}
