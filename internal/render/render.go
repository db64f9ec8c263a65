// Package render provides output helpers for the stagegateadm CLI.
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// JSON writes data as indented JSON.
func JSON(w io.Writer, data interface{}) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

// Table writes headers and rows as an aligned text table.
func Table(w io.Writer, headers []string, rows [][]string) error {
	if len(rows) == 0 {
		return nil
	}

	// Calculate column widths
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	tableRow(w, headers, widths)
	tableSeparator(w, widths)
	for _, row := range rows {
		tableRow(w, row, widths)
	}

	return nil
}

func tableRow(w io.Writer, cells []string, widths []int) {
	for i, cell := range cells {
		if i < len(widths) {
			fmt.Fprintf(w, "%-*s", widths[i], cell)
			if i < len(cells)-1 {
				fmt.Fprint(w, "  ")
			}
		}
	}
	fmt.Fprintln(w)
}

func tableSeparator(w io.Writer, widths []int) {
	for i, width := range widths {
		fmt.Fprint(w, strings.Repeat("-", width))
		if i < len(widths)-1 {
			fmt.Fprint(w, "  ")
		}
	}
	fmt.Fprintln(w)
}
