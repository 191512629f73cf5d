// Package llindex binds a raw append-only text source to its WidthArray and
// WrapTree, performing incremental catch-up and rotation detection so that
// the pair can answer row-addressable queries at any terminal width.
package llindex

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"logloglog/plainfile"
	"logloglog/widtharray"
	"logloglog/wraptree"
)

var log = logrus.WithField("component", "llindex")

// Index is the top-level object: a source of logical lines plus the
// WidthArray and WrapTree that index it. One Index owns one writer; readers
// may call the query methods concurrently with a writer's Update/Append.
type Index struct {
	mu sync.Mutex

	src      SourceLines
	widths   *widtharray.Array
	tree     *wraptree.Tree
	cacheDir string // root directory holding this and any sibling fingerprinted subdirs
	name     string // cache subdirectory basename, before the fingerprint suffix
	dir      string // current live cache subdirectory: cacheDir/name.fingerprint
	meta     metadata
	opts     Options
	log      *logrus.Entry
}

func (idx *Index) widthsPath() string { return filepath.Join(idx.dir, "widths.dat") }
func (idx *Index) nodesPath() string  { return filepath.Join(idx.dir, "nodes.dat") }
func (idx *Index) metaPath() string   { return filepath.Join(idx.dir, "metadata") }

// Open binds sourcePath to a cache directory derived from its identity,
// using a plainfile.Source as the default line source, restores or rebuilds
// the index as needed, and catches up to the source's current EOF.
func Open(sourcePath string, opts ...Option) (*Index, error) {
	src, err := plainfile.Open(sourcePath)
	if err != nil {
		return nil, fmt.Errorf("llindex: open source %s: %w", sourcePath, err)
	}
	return OpenSource(filepath.Base(sourcePath), src, opts...)
}

// OpenSource is the general entry point for callers supplying their own
// SourceLines implementation. name identifies the cache subdirectory
// alongside the source's fingerprint.
func OpenSource(name string, src SourceLines, opts ...Option) (*Index, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	closeSrc := func() {
		if c, ok := src.(io.Closer); ok {
			c.Close()
		}
	}

	device, inode, ctime, size, err := src.Identity()
	if err != nil {
		closeSrc()
		return nil, fmt.Errorf("llindex: identity: %w", err)
	}
	fp := fingerprint(device, inode, ctime)
	dir := filepath.Join(o.cacheDir, fmt.Sprintf("%s.%s", name, fp))
	if err := os.MkdirAll(o.cacheDir, 0o755); err != nil {
		closeSrc()
		return nil, fmt.Errorf("llindex: cache root %s: %w", o.cacheDir, err)
	}

	idx := &Index{
		src:      src,
		cacheDir: o.cacheDir,
		name:     name,
		dir:      dir,
		opts:     o,
		log:      log.WithField("index", name),
	}

	meta, fresh, err := loadMetadata(idx.metaPath())
	if err != nil {
		var ce *CorruptionError
		if errors.As(err, &ce) {
			idx.log.WithField("reason", ce.Reason).Warn("metadata corrupt, rebuilding")
		} else {
			closeSrc()
			return nil, err
		}
	}

	switch {
	case fresh, meta.Device != device, meta.Inode != inode, meta.Ctime != ctime, size < meta.IndexedByteLength:
		if !fresh {
			idx.log.WithFields(logrus.Fields{
				"old_device": meta.Device, "old_inode": meta.Inode, "old_ctime": meta.Ctime,
				"new_device": device, "new_inode": inode, "new_ctime": ctime,
			}).Info("source identity changed, rebuilding index")
		}
		if err := idx.rebuild(device, inode, ctime); err != nil {
			closeSrc()
			return nil, err
		}
	default:
		widths, err := widtharray.Open(idx.widthsPath())
		if err != nil {
			closeSrc()
			return nil, fmt.Errorf("llindex: %w", err)
		}
		cache, err := wraptree.NewCache(o.nodeCacheSize)
		if err != nil {
			widths.Close()
			closeSrc()
			return nil, err
		}
		tree, err := wraptree.Open(idx.nodesPath(), cache)
		if err != nil {
			widths.Close()
			closeSrc()
			return nil, err
		}
		idx.widths = widths
		idx.tree = tree
		idx.meta = meta
		if err := widths.Restore(meta.TotalLines); err != nil {
			idx.log.WithError(err).Warn("restore failed, rebuilding")
			if err := idx.rebuild(device, inode, ctime); err != nil {
				idx.close()
				return nil, err
			}
		} else if meta.Height > 0 {
			if err := tree.Restore(meta.RootRef, meta.Height, meta.TotalLines, meta.NodeCount); err != nil {
				idx.log.WithError(err).Warn("restore failed, rebuilding")
				if err := idx.rebuild(device, inode, ctime); err != nil {
					idx.close()
					return nil, err
				}
			}
		}
	}

	if err := idx.Update(); err != nil {
		idx.close()
		return nil, err
	}
	return idx, nil
}

// rebuild discards all cached index state and starts over from byte 0 of
// the (possibly new) source identity. It stages the fresh, empty widths.dat,
// nodes.dat and metadata in a sibling <name>.tmp-<uuid> directory and only
// removes the previous live directory once the staged one is fully written,
// so a process killed mid-rebuild never leaves a half-written directory at
// the live path.
func (idx *Index) rebuild(device, inode uint64, ctime int64) error {
	idx.log.WithFields(logrus.Fields{"device": device, "inode": inode, "ctime": ctime}).Warn("rebuilding index")

	stagingDir := filepath.Join(idx.cacheDir, fmt.Sprintf("%s.tmp-%s", idx.name, uuid.New().String()))
	if err := os.MkdirAll(stagingDir, 0o755); err != nil {
		return fmt.Errorf("llindex: rebuild: staging dir: %w", err)
	}

	newWidths, err := widtharray.Open(filepath.Join(stagingDir, "widths.dat"))
	if err != nil {
		os.RemoveAll(stagingDir)
		return fmt.Errorf("llindex: rebuild: %w", err)
	}
	newCache, err := wraptree.NewCache(idx.opts.nodeCacheSize)
	if err != nil {
		newWidths.Close()
		os.RemoveAll(stagingDir)
		return err
	}
	newTree, err := wraptree.Open(filepath.Join(stagingDir, "nodes.dat"), newCache)
	if err != nil {
		newWidths.Close()
		os.RemoveAll(stagingDir)
		return err
	}

	newMeta := metadata{Device: device, Inode: inode, Ctime: ctime}
	if err := saveMetadata(filepath.Join(stagingDir, "metadata"), newMeta); err != nil {
		newWidths.Close()
		newTree.Close()
		os.RemoveAll(stagingDir)
		return err
	}

	if idx.widths != nil {
		idx.widths.Close()
	}
	if idx.tree != nil {
		idx.tree.Close()
	}
	if err := os.RemoveAll(idx.dir); err != nil {
		return fmt.Errorf("llindex: rebuild: remove previous dir: %w", err)
	}
	if err := os.Rename(stagingDir, idx.dir); err != nil {
		return fmt.Errorf("llindex: rebuild: swap staging dir: %w", err)
	}

	idx.widths = newWidths
	idx.tree = newTree
	idx.meta = newMeta
	return nil
}

// Update reads source bytes from the last indexed offset to the source's
// current EOF, splits them into logical lines, and indexes each complete
// one. A trailing line with no terminator is left unindexed and retried on
// the next Update.
func (idx *Index) Update() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	device, inode, ctime, size, err := idx.src.Identity()
	if err != nil {
		return fmt.Errorf("llindex: identity: %w", err)
	}
	if device != idx.meta.Device || inode != idx.meta.Inode || ctime != idx.meta.Ctime {
		idx.log.Info("source identity changed since open, rebuilding")
		if err := idx.rebuild(device, inode, ctime); err != nil {
			return err
		}
	} else if size < idx.meta.IndexedByteLength {
		idx.log.Info("source shrank, rebuilding")
		if err := idx.rebuild(device, inode, ctime); err != nil {
			return err
		}
	}

	if size == idx.meta.IndexedByteLength {
		return nil
	}

	r, err := idx.src.ReadNewSince(idx.meta.IndexedByteLength)
	if err != nil {
		return fmt.Errorf("llindex: read new: %w", err)
	}
	buf, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("llindex: read new: %w", err)
	}

	consumed := 0
	linesAdded := 0
	for {
		advance, token, err := idx.opts.splitFn(buf[consumed:], false)
		if err != nil {
			return fmt.Errorf("llindex: split: %w", err)
		}
		if advance == 0 {
			break
		}
		w := idx.opts.widthFn(string(token))
		if err := idx.widths.Append(w); err != nil {
			return fmt.Errorf("llindex: %w", err)
		}
		if err := idx.tree.Append(w); err != nil {
			return fmt.Errorf("llindex: %w", err)
		}
		consumed += advance
		linesAdded++
	}

	if linesAdded == 0 {
		return nil
	}

	idx.meta.IndexedByteLength += int64(consumed)
	idx.meta.TotalLines = idx.tree.TotalLines()
	idx.meta.RootRef = idx.tree.RootRef()
	idx.meta.Height = idx.tree.Height()
	idx.meta.NodeCount = idx.tree.NodeCount()

	if err := idx.widths.Sync(); err != nil {
		return fmt.Errorf("llindex: %w", err)
	}
	if err := idx.tree.Sync(); err != nil {
		return fmt.Errorf("llindex: %w", err)
	}
	if err := saveMetadata(idx.metaPath(), idx.meta); err != nil {
		return err
	}

	idx.log.WithFields(logrus.Fields{
		"lines": humanize.Comma(int64(linesAdded)),
		"bytes": humanize.Bytes(uint64(consumed)),
	}).Info("caught up")
	return nil
}

// Len returns the total number of indexed logical lines.
func (idx *Index) Len() uint64 { return idx.tree.TotalLines() }

// Get returns the text of logical line, delegating to the bound source.
func (idx *Index) Get(line LineIndex) (string, error) {
	return idx.src.Get(line)
}

// Append writes text to the source and indexes it immediately.
func (idx *Index) Append(text string) error {
	if err := idx.src.Append(text); err != nil {
		return fmt.Errorf("llindex: append: %w", err)
	}
	return idx.Update()
}

// RowsAtWidth returns the total display-row count across the whole indexed
// log at terminal width W.
func (idx *Index) RowsAtWidth(W TerminalWidth) uint64 {
	return idx.tree.RowsAtWidth(W)
}

// At returns a View over the full indexed log at terminal width W.
func (idx *Index) At(W TerminalWidth) *View {
	return idx.AtRange(W, 0, idx.tree.RowsAtWidth(W))
}

// AtRange returns a View over rows [start, end) at terminal width W,
// clamped to the log's actual row count.
func (idx *Index) AtRange(W TerminalWidth, start, end uint64) *View {
	total := idx.tree.RowsAtWidth(W)
	if end > total {
		end = total
	}
	if start > end {
		start = end
	}
	return &View{idx: idx, w: W, start: start, end: end}
}

// close is a best-effort teardown used on the error paths in OpenSource,
// where a partially constructed Index must release whatever it already
// opened before returning the original error.
func (idx *Index) close() {
	if idx.tree != nil {
		idx.tree.Close()
	}
	if idx.widths != nil {
		idx.widths.Close()
	}
	if c, ok := idx.src.(io.Closer); ok {
		c.Close()
	}
}

// Close releases the underlying mappings and, if the bound source is
// closeable, closes it too, returning the first error encountered.
func (idx *Index) Close() error {
	if err := idx.tree.Close(); err != nil {
		return fmt.Errorf("llindex: close: %w", err)
	}
	if err := idx.widths.Close(); err != nil {
		return fmt.Errorf("llindex: close: %w", err)
	}
	if c, ok := idx.src.(io.Closer); ok {
		if err := c.Close(); err != nil {
			return fmt.Errorf("llindex: close: %w", err)
		}
	}
	return nil
}
