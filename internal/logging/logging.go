package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
)

// New builds the process logger. pretty switches to console output, colored
// only when stdout is a terminal.
func New(level string, pretty bool) (zerolog.Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return zerolog.Nop(), err
	}
	var out io.Writer = os.Stdout
	if pretty {
		out = consoleWriter(os.Stdout)
	}
	return zerolog.New(out).Level(lvl).With().Timestamp().Logger(), nil
}

func consoleWriter(f *os.File) zerolog.ConsoleWriter {
	tty := isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	w := zerolog.ConsoleWriter{Out: colorable.NewColorable(f), TimeFormat: time.TimeOnly, NoColor: !tty}
	if !tty {
		w.Out = colorable.NewNonColorable(f)
	}
	return w
}

// ParseLevel accepts zerolog level names; "" means info.
func ParseLevel(s string) (zerolog.Level, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return zerolog.InfoLevel, nil
	}
	return zerolog.ParseLevel(s)
}
