package shared

import (
	"fmt"
	"strings"
	"time"
)

// FormatKey expands a strftime-style template against t.
//
// Supported directives are %Y %m %d %H %M %S and %%. Any other directive is an error so that a bad
// format rule is caught before an object is written under a nonsense key.
func FormatKey(template string, t time.Time) (string, error) {
	var b strings.Builder
	b.Grow(len(template) + 8)

	for i := 0; i < len(template); i++ {
		c := template[i]
		if c != '%' {
			b.WriteByte(c)
			continue
		}
		if i+1 >= len(template) {
			return "", fmt.Errorf("%w: dangling %% in %q", ErrInvalidInput, template)
		}
		i++
		switch template[i] {
		case 'Y':
			fmt.Fprintf(&b, "%04d", t.Year())
		case 'm':
			fmt.Fprintf(&b, "%02d", int(t.Month()))
		case 'd':
			fmt.Fprintf(&b, "%02d", t.Day())
		case 'H':
			fmt.Fprintf(&b, "%02d", t.Hour())
		case 'M':
			fmt.Fprintf(&b, "%02d", t.Minute())
		case 'S':
			fmt.Fprintf(&b, "%02d", t.Second())
		case '%':
			b.WriteByte('%')
		default:
			return "", fmt.Errorf("%w: unsupported directive %%%c in %q", ErrInvalidInput, template[i], template)
		}
	}
	return b.String(), nil
}
