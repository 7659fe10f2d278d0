package logx

//
// Console handler for apex/log
//

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/apex/log"
	"github.com/fatih/color"
	colorable "github.com/mattn/go-colorable"
)

var bold = color.New(color.Bold)

// Colors maps each level to its color.
var Colors = [...]*color.Color{
	log.DebugLevel: color.New(color.FgWhite),
	log.InfoLevel:  color.New(color.FgBlue),
	log.WarnLevel:  color.New(color.FgYellow),
	log.ErrorLevel: color.New(color.FgRed),
	log.FatalLevel: color.New(color.FgRed),
}

// Strings maps each level to its marker.
var Strings = [...]string{
	log.DebugLevel: "•",
	log.InfoLevel:  "•",
	log.WarnLevel:  "•",
	log.ErrorLevel: "⨯",
	log.FatalLevel: "⨯",
}

// Handler is an apex/log handler writing to a console.
type Handler struct {
	// Writer is where we write.
	Writer io.Writer

	// Padding is the number of columns before the level marker.
	Padding int

	mu sync.Mutex
}

var _ log.Handler = &Handler{}

// NewHandler creates a [*Handler] writing to w. When w is a file we
// wrap it so that colors also work on Windows consoles.
func NewHandler(w io.Writer) *Handler {
	if f, ok := w.(*os.File); ok {
		w = colorable.NewColorable(f)
	}
	return &Handler{Writer: w, Padding: 3}
}

// NewHandlerWithDefaultSettings creates a [*Handler] writing to the standard error.
func NewHandlerWithDefaultSettings() *Handler {
	return NewHandler(os.Stderr)
}

// HandleLog implements log.Handler.
func (h *Handler) HandleLog(e *log.Entry) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if kind, _ := e.Fields["type"].(string); kind == "table" {
		return h.logTable(e)
	}
	return h.logDefault(e)
}

func (h *Handler) logDefault(e *log.Entry) error {
	color := Colors[e.Level]
	level := Strings[e.Level]
	s := color.Sprintf("%s %-25s", bold.Sprintf("%*s", h.Padding+1, level), e.Message)
	for _, name := range e.Fields.Names() {
		s += fmt.Sprintf(" %s=%v", color.Sprint(name), e.Fields.Get(name))
	}
	_, err := fmt.Fprintln(h.Writer, s)
	return err
}

// logTable prints the fields of the entry inside a box, with the
// message used as the title.
func (h *Handler) logTable(e *log.Entry) error {
	keycolor := color.New(color.FgBlue)
	lines := []string{e.Message}
	width := utf8.RuneCountInString(e.Message)
	for _, name := range e.Fields.Names() {
		if name == "type" {
			continue
		}
		line := fmt.Sprintf("%s: %v", keycolor.Sprint(name), e.Fields.Get(name))
		lines = append(lines, line)
		width = max(width, visibleLength(line))
	}
	var sb strings.Builder
	sb.WriteString("┏" + strings.Repeat("━", width+2) + "┓\n")
	for _, line := range lines {
		pad := width - visibleLength(line)
		sb.WriteString("┃ " + line + strings.Repeat(" ", pad) + " ┃\n")
	}
	sb.WriteString("┗" + strings.Repeat("━", width+2) + "┛\n")
	_, err := io.WriteString(h.Writer, sb.String())
	return err
}

// visibleLength returns the number of runes in s ignoring ANSI escapes.
func visibleLength(s string) int {
	count, escaping := 0, false
	for _, r := range s {
		switch {
		case r == '\x1b':
			escaping = true
		case escaping && r == 'm':
			escaping = false
		case !escaping:
			count++
		}
	}
	return count
}
