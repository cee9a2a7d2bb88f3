// Package highlight applies ANSI terminal styling to the console tool's
// echoed procedure calls and decoded response tuples.
package highlight

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/charmbracelet/lipgloss"

	"github.com/mickamy/go-tarantool/internal/wire"
)

var (
	lexer     chroma.Lexer
	formatter chroma.Formatter
	style     *chroma.Style
)

func init() {
	lexer = lexers.Get("lua")
	formatter = formatters.Get("terminal256")
	style = styles.Get("monokai")
}

// Call returns a Lua-style procedure invocation (e.g. `box.select(0, 0, 1)`)
// with ANSI syntax highlighting applied. On error or empty input, the
// original string is returned unchanged.
func Call(s string) string {
	if s == "" {
		return s
	}

	iterator, err := lexer.Tokenise(nil, s)
	if err != nil {
		return s
	}

	var buf bytes.Buffer
	if err := formatter.Format(&buf, style, iterator); err != nil {
		return s
	}

	return strings.TrimRight(buf.String(), "\n")
}

var (
	fieldIndexStyle = lipgloss.NewStyle().Bold(true)
	textStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	intStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("75"))
	bytesStyle      = lipgloss.NewStyle().Faint(true)
)

// Tuple renders t as "[0]=text("JKLMN") [1]=u32(20)" with each field's kind
// styled distinctly: text fields in green, integer fields in blue, raw
// bytes dimmed, matching the console tool's default decoded-tuple output.
func Tuple(t wire.Tuple) string {
	parts := make([]string, len(t))
	for i, f := range t {
		parts[i] = fieldIndexStyle.Render(fmt.Sprintf("[%d]", i)) + "=" + renderField(f)
	}
	return strings.Join(parts, " ")
}

func renderField(f wire.Value) string {
	switch f.Kind() {
	case wire.KindText:
		return textStyle.Render(fmt.Sprintf("text(%q)", f.Text()))
	case wire.KindU32:
		if n, err := f.Uint32(); err == nil {
			return intStyle.Render(fmt.Sprintf("u32(%d)", n))
		}
		return bytesStyle.Render(fmt.Sprintf("bytes(% x)", f.Raw()))
	case wire.KindU64:
		if n, err := f.Uint64(); err == nil {
			return intStyle.Render(fmt.Sprintf("u64(%d)", n))
		}
		return bytesStyle.Render(fmt.Sprintf("bytes(% x)", f.Raw()))
	default:
		return bytesStyle.Render(fmt.Sprintf("bytes(% x)", f.Raw()))
	}
}

var hexByteRe = regexp.MustCompile(`\b[0-9a-fA-F]{2}(?: [0-9a-fA-F]{2})*\b`)

// DimHex dims every run of space-separated hex byte pairs in s.
func DimHex(s string) string {
	return hexByteRe.ReplaceAllStringFunc(s, func(m string) string {
		return bytesStyle.Render(m)
	})
}
