package main

import (
	"fmt"
	"io"
)

// printFormattedResults prints rows as an aligned table with the given column order
func printFormattedResults(w io.Writer, columns []string, rows []map[string]interface{}) {
	if len(rows) == 0 {
		fmt.Fprintln(w, "No datasets")
		return
	}

	columnWidths := make(map[string]int)
	for _, col := range columns {
		columnWidths[col] = len(col)
	}

	// Calculate maximum width for each column
	for _, row := range rows {
		for _, col := range columns {
			if val, ok := row[col]; ok {
				valStr := fmt.Sprintf("%v", val)
				if len(valStr) > columnWidths[col] {
					columnWidths[col] = len(valStr)
				}
			}
		}
	}

	// Print header
	for i, col := range columns {
		if i > 0 {
			fmt.Fprint(w, " | ")
		}
		fmt.Fprintf(w, "%-*s", columnWidths[col], col)
	}
	fmt.Fprintln(w)

	// Print separator
	for i, col := range columns {
		if i > 0 {
			fmt.Fprint(w, "-+-")
		}
		for j := 0; j < columnWidths[col]; j++ {
			fmt.Fprint(w, "-")
		}
	}
	fmt.Fprintln(w)

	// Print data rows
	for _, row := range rows {
		for i, col := range columns {
			if i > 0 {
				fmt.Fprint(w, " | ")
			}
			val, ok := row[col]
			if !ok {
				val = "-"
			}
			fmt.Fprintf(w, "%-*v", columnWidths[col], val)
		}
		fmt.Fprintln(w)
	}
}
