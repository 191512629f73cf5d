// Inspect a log file's row-addressable index at a given terminal width.
// Usage: go run ./cmd/logloglog-inspect <path-to-log> [width]
// Example: go run ./cmd/logloglog-inspect /var/log/syslog 120
package main

import (
	"fmt"
	"os"
	"strconv"

	"logloglog/llindex"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "Usage: %s <path-to-log> [width]\n", os.Args[0])
		os.Exit(1)
	}
	path := os.Args[1]
	width := 80
	if len(os.Args) >= 3 {
		w, err := strconv.Atoi(os.Args[2])
		if err != nil {
			fmt.Fprintf(os.Stderr, "bad width %q: %v\n", os.Args[2], err)
			os.Exit(1)
		}
		width = w
	}

	idx, err := llindex.Open(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open %s: %v\n", path, err)
		os.Exit(1)
	}
	defer idx.Close()

	W := uint16(width)
	fmt.Printf("lines:  %d\n", idx.Len())
	fmt.Printf("rows(%d): %d\n", W, idx.RowsAtWidth(W))

	view := idx.At(W)
	n := view.Len()
	limit := uint64(20)
	if n < limit {
		limit = n
	}
	for r := uint64(0); r < limit; r++ {
		text, err := view.Get(r)
		if err != nil {
			fmt.Fprintf(os.Stderr, "row %d: %v\n", r, err)
			os.Exit(1)
		}
		fmt.Printf("%6d  %s\n", r, text)
	}
	if n > limit {
		fmt.Printf("... %d more rows\n", n-limit)
	}
}
