package diag

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

const (
	ansiBold = "\x1b[1m"
	ansiRed  = "\x1b[31m"
	ansiRst  = "\x1b[0m"
)

// Render writes d to w in spec §6's "<path>:<line>:<col>" plus
// caret-annotated excerpt format. source is the full text of the file the
// Diagnostic points into; pass "" if unavailable (the excerpt is omitted).
// Colors are used only when w is a terminal, checked via isatty the same
// way the teacher's CLI probes stdin for piped input (util/io.go).
func Render(w io.Writer, d Diagnostic, source string) {
	color := isTerminal(w)
	loc := fmt.Sprintf("%s:%d:%d", d.Path, d.Line, d.Col)
	if color {
		fmt.Fprintf(w, "%s%serror:%s %s\n", ansiBold, ansiRed, ansiRst, d.Message)
		fmt.Fprintf(w, "%s  --> %s%s\n", ansiBold, ansiRst, loc)
	} else {
		fmt.Fprintf(w, "error: %s\n", d.Message)
		fmt.Fprintf(w, "  --> %s\n", loc)
	}
	if source == "" || d.Line <= 0 {
		return
	}
	lines := strings.Split(source, "\n")
	if d.Line-1 >= len(lines) {
		return
	}
	text := lines[d.Line-1]
	fmt.Fprintf(w, "   |\n")
	fmt.Fprintf(w, "%3d| %s\n", d.Line, text)
	col := d.Col
	if col < 1 {
		col = 1
	}
	caret := strings.Repeat(" ", col-1) + "^"
	if color {
		fmt.Fprintf(w, "   | %s%s%s\n", ansiRed, caret, ansiRst)
	} else {
		fmt.Fprintf(w, "   | %s\n", caret)
	}
}

// RenderAll renders every diagnostic in b to w, looking up each one's
// source text from sources by Path.
func RenderAll(w io.Writer, b *Bag, sources map[string]string) {
	for _, d := range b.All() {
		Render(w, d, sources[d.Path])
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
