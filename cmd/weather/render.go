package main

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/steakoverflow/weather"
	"github.com/steakoverflow/weather/format"
)

const (
	ansiRed   = "\x1b[31m"
	ansiReset = "\x1b[0m"
)

func renderTable(w io.Writer, model *weather.WeatherModel, opts format.Options) {
	rows := format.Rows(model, opts)
	if len(rows) == 0 {
		fmt.Fprintln(w, "No weather data.")
		return
	}

	widths := make([]int, len(rows[0]))
	for _, row := range rows {
		for i, cell := range row {
			if n := utf8.RuneCountInString(cell); n > widths[i] {
				widths[i] = n
			}
		}
	}

	border := "+"
	for _, width := range widths {
		border += strings.Repeat("-", width+2) + "+"
	}

	fmt.Fprintln(w, border)
	for _, row := range rows {
		line := "|"
		for i, cell := range row {
			line += " " + cell + strings.Repeat(" ", widths[i]-utf8.RuneCountInString(cell)) + " |"
		}
		fmt.Fprintln(w, line)
		fmt.Fprintln(w, border)
	}
}

// renderError draws the capitalised message inside a box, red when color is set.
func renderError(w io.Writer, e *weather.ErrorData, color bool) {
	msg := format.Message(e)
	border := "+" + strings.Repeat("-", utf8.RuneCountInString(msg)+2) + "+"
	lines := []string{border, "| " + msg + " |", border}

	for _, line := range lines {
		if color {
			fmt.Fprintln(w, ansiRed+line+ansiReset)
		} else {
			fmt.Fprintln(w, line)
		}
	}
}
