// Bench seeds a synthetic log with random-width lines and times index
// catch-up plus row-addressable queries against it.
// Usage: go run ./cmd/logloglog-bench <path-to-log> <line-count>
// Example: go run ./cmd/logloglog-bench /tmp/synthetic.log 1000000
package main

import (
	"fmt"
	"math/rand"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"logloglog/llindex"
)

func main() {
	if len(os.Args) < 3 {
		fmt.Fprintf(os.Stderr, "Usage: %s <path-to-log> <line-count>\n", os.Args[0])
		os.Exit(1)
	}
	path := os.Args[1]
	n, err := strconv.Atoi(os.Args[2])
	if err != nil {
		fmt.Fprintf(os.Stderr, "bad line count %q: %v\n", os.Args[2], err)
		os.Exit(1)
	}

	fmt.Printf("seeding %s lines into %s...\n", humanize.Comma(int64(n)), path)
	if err := seed(path, n); err != nil {
		fmt.Fprintf(os.Stderr, "seed: %v\n", err)
		os.Exit(1)
	}

	start := time.Now()
	idx, err := llindex.Open(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open: %v\n", err)
		os.Exit(1)
	}
	defer idx.Close()
	fmt.Printf("indexed %s lines in %s\n", humanize.Comma(int64(idx.Len())), time.Since(start))

	for _, W := range []uint16{40, 80, 120} {
		start := time.Now()
		rows := idx.RowsAtWidth(W)
		fmt.Printf("rows_at_width(%d) = %s in %s\n", W, humanize.Comma(int64(rows)), time.Since(start))
	}

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	view := idx.At(80)
	total := view.Len()
	if total == 0 {
		return
	}
	start = time.Now()
	const samples = 1000
	for i := 0; i < samples; i++ {
		r := uint64(rng.Int63n(int64(total)))
		if _, err := view.Get(r); err != nil {
			fmt.Fprintf(os.Stderr, "get(%d): %v\n", r, err)
			os.Exit(1)
		}
	}
	fmt.Printf("%d random locate+get calls in %s\n", samples, time.Since(start))
}

func seed(path string, n int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < n; i++ {
		w := rng.Intn(200)
		if _, err := fmt.Fprintln(f, strings.Repeat("x", w)); err != nil {
			return err
		}
	}
	return nil
}
