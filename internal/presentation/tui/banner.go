package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the crackle ASCII banner to w.
func PrintBanner(w io.Writer) {
	p := termenv.ColorProfile()
	lines := []struct {
		text, color string
	}{
		{"                      _    _      ", "#fde047"},
		{"   ___ _ __ __ _  ___| | _| | ___ ", "#facc15"},
		{"  / __| '__/ _` |/ __| |/ / |/ _ \\", "#fb923c"},
		{" | (__| | | (_| | (__|   <| |  __/", "#f97316"},
		{"  \\___|_|  \\__,_|\\___|_|\\_\\_|\\___|", "#ef4444"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, termenv.String(l.text).Foreground(p.Color(l.color)))
	}
	fmt.Fprintln(w)
}
