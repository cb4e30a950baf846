package flatfile

import "log/slog"

// Defaults for Limits.
const (
	DefaultMaxLineLength = 1 << 20   // 1 MiB
	DefaultMaxFileSize   = 100 << 20 // 100 MiB

	// ContextCheckInterval is how many lines pass between context checks.
	ContextCheckInterval = 1000
)

// Limits bound what a single Decode call will read. Zero disables a limit
// except MaxLineLength and MaxFixedSpan, which fall back to their defaults.
type Limits struct {
	MaxLines      int   // stop after this many lines
	MaxLineLength int   // longer lines are unresolvable
	MaxFileSize   int64 // larger sources are rejected
	MaxFixedSpan  int   // widest fixed-width column
}

// DefaultLimits returns the limits used when none are given.
func DefaultLimits() Limits {
	return Limits{
		MaxLineLength: DefaultMaxLineLength,
		MaxFileSize:   DefaultMaxFileSize,
		MaxFixedSpan:  DefaultMaxFixedSpan,
	}
}

func (l Limits) normalized() Limits {
	if l.MaxLineLength <= 0 {
		l.MaxLineLength = DefaultMaxLineLength
	}
	if l.MaxFixedSpan <= 0 {
		l.MaxFixedSpan = DefaultMaxFixedSpan
	}
	return l
}

type settings struct {
	registry       *Registry
	log            *slog.Logger
	limits         Limits
	encoding       string
	factories      map[string]Factory
	strictRequired bool
	strictCoercion bool
	separator      []func(*Separator)
}

// Option configures a Transformer.
type Option func(*settings)

// WithRegistry resolves specs from r instead of DefaultRegistry.
func WithRegistry(r *Registry) Option {
	return func(s *settings) { s.registry = r }
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(log *slog.Logger) Option {
	return func(s *settings) { s.log = log }
}

// WithLimits replaces all limits.
func WithLimits(l Limits) Option {
	return func(s *settings) { s.limits = l }
}

// WithMaxLines stops a stream after n lines. Zero means no limit.
func WithMaxLines(n int) Option {
	return func(s *settings) { s.limits.MaxLines = n }
}

// WithMaxLineLength reports longer lines as unresolvable.
func WithMaxLineLength(n int) Option {
	return func(s *settings) { s.limits.MaxLineLength = n }
}

// WithMaxFileSize rejects sources larger than n bytes.
func WithMaxFileSize(n int64) Option {
	return func(s *settings) { s.limits.MaxFileSize = n }
}

// WithEncoding decodes sources from a named character set, such as
// "windows-1252" or "iso-8859-1". The default is UTF-8.
func WithEncoding(name string) Option {
	return func(s *settings) { s.encoding = name }
}

// WithDelimiter overrides the declared delimiter.
func WithDelimiter(r rune) Option {
	return func(s *settings) {
		s.separator = append(s.separator, func(sep *Separator) { sep.Delimiter = r })
	}
}

// WithMode overrides the declared separator mode.
func WithMode(m SeparatorMode) Option {
	return func(s *settings) {
		s.separator = append(s.separator, func(sep *Separator) { sep.Mode = m })
	}
}

// WithSkipFirstLine overrides the declared header handling.
func WithSkipFirstLine(skip bool) Option {
	return func(s *settings) {
		s.separator = append(s.separator, func(sep *Separator) { sep.SkipFirstLine = skip })
	}
}

// WithFactory makes f available under name for records declaring
// factory=name. Registering DefaultFactory replaces the built-in one.
func WithFactory(name string, f Factory) Option {
	return func(s *settings) {
		if s.factories == nil {
			s.factories = make(map[string]Factory)
		}
		s.factories[name] = f
	}
}

// WithStrictRequired turns an empty token in a required field into a
// ParseError.
func WithStrictRequired() Option {
	return func(s *settings) { s.strictRequired = true }
}

// WithStrictCoercion turns malformed numeric and boolean tokens into a
// ParseError instead of a zero value.
func WithStrictCoercion() Option {
	return func(s *settings) { s.strictCoercion = true }
}
