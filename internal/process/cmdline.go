package process

import (
	"fmt"
	"strings"
	"unicode/utf16"
)

// maxCommandLine is the CreateProcess limit in UTF-16 units, terminating
// NUL included.
const maxCommandLine = 32767

// BuildCommandLine joins command and args into a single Windows command
// line that the MSVC runtime splits back into the same argv.
func BuildCommandLine(command string, args []string) (string, error) {
	var b strings.Builder
	b.WriteString(quoteArg(command))
	for _, a := range args {
		b.WriteByte(' ')
		b.WriteString(quoteArg(a))
	}

	line := b.String()
	if n := len(utf16.Encode([]rune(line))); n >= maxCommandLine {
		return "", fmt.Errorf("%w: %d UTF-16 units, limit is %d", ErrCommandLineTooLong, n, maxCommandLine-1)
	}
	return line, nil
}

// quoteArg quotes an argument containing a space, tab or double quote, and
// the empty argument. Inside quotes a backslash run is doubled when it
// precedes a quote or the closing quote, and each quote is escaped.
func quoteArg(s string) string {
	if s != "" && !strings.ContainsAny(s, " \t\"") {
		return s
	}

	var b strings.Builder
	b.WriteByte('"')
	slashes := 0
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '\\':
			slashes++
		case '"':
			b.WriteString(strings.Repeat(`\`, slashes*2+1))
			b.WriteByte('"')
			slashes = 0
		default:
			b.WriteString(strings.Repeat(`\`, slashes))
			b.WriteByte(c)
			slashes = 0
		}
	}
	b.WriteString(strings.Repeat(`\`, slashes*2))
	b.WriteByte('"')
	return b.String()
}
