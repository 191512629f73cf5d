package llindex

import (
	"bufio"
	"os"
	"path/filepath"

	"logloglog/widthfn"
)

// defaultNodeCacheSize is how many decoded B-tree nodes wraptree's ristretto
// cache targets keeping hot; each node costs at most wraptree.NodeSize
// bytes, so this bounds the cache at a few hundred megabytes.
const defaultNodeCacheSize = 4096

// Options configures Open. Zero value is never used directly; defaultOptions
// fills every field before any Option runs.
type Options struct {
	widthFn       WidthFunc
	splitFn       SplitFunc
	cacheDir      string
	nodeCacheSize int64
}

// Option mutates an Options in place; pass any number to Open.
type Option func(*Options)

// WithWidthFunc overrides the display-width function. Default walks
// grapheme clusters and sums their terminal cell widths.
func WithWidthFunc(f WidthFunc) Option {
	return func(o *Options) { o.widthFn = f }
}

// WithSplitFunc overrides the line splitter. Default is bufio.ScanLines.
func WithSplitFunc(f SplitFunc) Option {
	return func(o *Options) { o.splitFn = f }
}

// WithCacheDir overrides the root directory under which per-source cache
// subdirectories are created. Default is the platform per-user cache root
// joined with "logloglog".
func WithCacheDir(dir string) Option {
	return func(o *Options) { o.cacheDir = dir }
}

// WithNodeCacheSize overrides how many decoded wraptree nodes the ristretto
// cache targets keeping resident.
func WithNodeCacheSize(n int64) Option {
	return func(o *Options) { o.nodeCacheSize = n }
}

func defaultOptions() Options {
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = os.TempDir()
	}
	return Options{
		widthFn:       widthfn.Default,
		splitFn:       SplitFunc(bufio.ScanLines),
		cacheDir:      filepath.Join(dir, "logloglog"),
		nodeCacheSize: defaultNodeCacheSize,
	}
}
