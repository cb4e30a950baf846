package flatfile

import (
	"fmt"
	"strings"
	"unicode"
)

// DateLayout converts a SimpleDateFormat style pattern (MMddyyyy,
// yyyy-MM-dd HH:mm:ss, dd-MMM-yy) into a Go time layout. A pattern that
// already contains a digit is taken to be a Go layout and returned as is.
func DateLayout(pattern string) (string, error) {
	if pattern == "" {
		return "", fmt.Errorf("empty date format")
	}
	if strings.IndexFunc(pattern, unicode.IsDigit) >= 0 {
		return pattern, nil
	}

	var b strings.Builder
	runes := []rune(pattern)
	for i := 0; i < len(runes); {
		r := runes[i]

		if r == '\'' {
			end := i + 1
			for end < len(runes) && runes[end] != '\'' {
				end++
			}
			if end == len(runes) {
				return "", fmt.Errorf("date format %q: unterminated quote", pattern)
			}
			if end == i+1 {
				b.WriteRune('\'')
			} else {
				b.WriteString(string(runes[i+1 : end]))
			}
			i = end + 1
			continue
		}

		if !unicode.IsLetter(r) {
			b.WriteRune(r)
			i++
			continue
		}

		n := 1
		for i+n < len(runes) && runes[i+n] == r {
			n++
		}
		chunk, err := layoutChunk(r, n)
		if err != nil {
			return "", fmt.Errorf("date format %q: %w", pattern, err)
		}
		b.WriteString(chunk)
		i += n
	}
	return b.String(), nil
}

func layoutChunk(letter rune, n int) (string, error) {
	switch letter {
	case 'y':
		if n == 2 {
			return "06", nil
		}
		return "2006", nil
	case 'M':
		switch {
		case n == 1:
			return "1", nil
		case n == 2:
			return "01", nil
		case n == 3:
			return "Jan", nil
		default:
			return "January", nil
		}
	case 'd':
		if n == 1 {
			return "2", nil
		}
		return "02", nil
	case 'H':
		return "15", nil
	case 'h':
		if n == 1 {
			return "3", nil
		}
		return "03", nil
	case 'm':
		if n == 1 {
			return "4", nil
		}
		return "04", nil
	case 's':
		if n == 1 {
			return "5", nil
		}
		return "05", nil
	case 'S':
		return strings.Repeat("0", n), nil
	case 'a':
		return "PM", nil
	case 'E':
		if n <= 3 {
			return "Mon", nil
		}
		return "Monday", nil
	case 'z':
		return "MST", nil
	case 'Z':
		return "-0700", nil
	case 'X':
		return "Z07:00", nil
	}
	return "", fmt.Errorf("unsupported pattern letter %q", letter)
}
