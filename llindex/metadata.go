package llindex

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"os"

	"logloglog/histogram"
	"logloglog/wraptree"
)

const metaMagic = "LLL1"

// metaSize is the fixed on-disk record size of metadata: magic(4) +
// nodeSize(4) + fanoutLeaf(4) + fanoutInternal(4) + numBuckets(4) +
// numExact(4) + device(8) + inode(8) + ctime(8) + indexedByteLength(8) +
// totalLines(8) + rootRef(4) + height(4) + nodeCount(4).
const metaSize = 4 + 4*5 + 8*5 + 4*3

// metadata is the sidecar record: source identity, how far the source has
// been indexed, and where the tree's right spine is rooted, enough to
// either resume incrementally or detect that a rebuild is required.
// NodeCount is the node store's allocated slot count at the time this
// record was saved; it cannot be recovered from the node store file itself
// on reopen, since mmapfile pads that file's capacity well beyond the
// number of slots actually allocated.
type metadata struct {
	Device            uint64
	Inode             uint64
	Ctime             int64
	IndexedByteLength int64
	TotalLines        uint64
	RootRef           uint32
	Height            uint32
	NodeCount         uint32
}

func encodeMetadata(m metadata) []byte {
	buf := make([]byte, metaSize)
	copy(buf[0:4], metaMagic)
	binary.LittleEndian.PutUint32(buf[4:], wraptree.NodeSize)
	binary.LittleEndian.PutUint32(buf[8:], wraptree.FL)
	binary.LittleEndian.PutUint32(buf[12:], wraptree.FI)
	binary.LittleEndian.PutUint32(buf[16:], histogram.NumBuckets)
	binary.LittleEndian.PutUint32(buf[20:], histogram.NumExact)
	binary.LittleEndian.PutUint64(buf[24:], m.Device)
	binary.LittleEndian.PutUint64(buf[32:], m.Inode)
	binary.LittleEndian.PutUint64(buf[40:], uint64(m.Ctime))
	binary.LittleEndian.PutUint64(buf[48:], uint64(m.IndexedByteLength))
	binary.LittleEndian.PutUint64(buf[56:], m.TotalLines)
	binary.LittleEndian.PutUint32(buf[64:], m.RootRef)
	binary.LittleEndian.PutUint32(buf[68:], m.Height)
	binary.LittleEndian.PutUint32(buf[72:], m.NodeCount)
	return buf
}

// decodeMetadata parses buf, verifying the magic and the structural
// constants against this build's wraptree/histogram layout; a mismatch on
// either means the cache directory was written by an incompatible build and
// must be rebuilt rather than trusted.
func decodeMetadata(buf []byte) (metadata, error) {
	if len(buf) != metaSize {
		return metadata{}, &CorruptionError{Reason: fmt.Sprintf("metadata size %d, want %d", len(buf), metaSize)}
	}
	if string(buf[0:4]) != metaMagic {
		return metadata{}, &CorruptionError{Reason: fmt.Sprintf("bad magic %q", buf[0:4])}
	}
	if nodeSize := binary.LittleEndian.Uint32(buf[4:]); nodeSize != wraptree.NodeSize {
		return metadata{}, &CorruptionError{Reason: fmt.Sprintf("node size %d, want %d", nodeSize, wraptree.NodeSize)}
	}
	if fl := binary.LittleEndian.Uint32(buf[8:]); fl != wraptree.FL {
		return metadata{}, &CorruptionError{Reason: fmt.Sprintf("leaf fanout %d, want %d", fl, wraptree.FL)}
	}
	if fi := binary.LittleEndian.Uint32(buf[12:]); fi != wraptree.FI {
		return metadata{}, &CorruptionError{Reason: fmt.Sprintf("internal fanout %d, want %d", fi, wraptree.FI)}
	}
	if b := binary.LittleEndian.Uint32(buf[16:]); b != histogram.NumBuckets {
		return metadata{}, &CorruptionError{Reason: fmt.Sprintf("bucket count %d, want %d", b, histogram.NumBuckets)}
	}
	if s := binary.LittleEndian.Uint32(buf[20:]); s != histogram.NumExact {
		return metadata{}, &CorruptionError{Reason: fmt.Sprintf("exact bucket count %d, want %d", s, histogram.NumExact)}
	}
	return metadata{
		Device:            binary.LittleEndian.Uint64(buf[24:]),
		Inode:             binary.LittleEndian.Uint64(buf[32:]),
		Ctime:             int64(binary.LittleEndian.Uint64(buf[40:])),
		IndexedByteLength: int64(binary.LittleEndian.Uint64(buf[48:])),
		TotalLines:        binary.LittleEndian.Uint64(buf[56:]),
		RootRef:           binary.LittleEndian.Uint32(buf[64:]),
		Height:            binary.LittleEndian.Uint32(buf[68:]),
		NodeCount:         binary.LittleEndian.Uint32(buf[72:]),
	}, nil
}

// loadMetadata reads path's metadata record. fresh is true when the file
// does not exist yet or fails to decode, in which case the caller should
// treat the index as never-indexed and rebuild.
func loadMetadata(path string) (m metadata, fresh bool, err error) {
	buf, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return metadata{}, true, nil
	}
	if err != nil {
		return metadata{}, false, fmt.Errorf("llindex: read metadata: %w", err)
	}
	m, err = decodeMetadata(buf)
	if err != nil {
		return metadata{}, true, err
	}
	return m, false, nil
}

// saveMetadata writes m to path as a single WriteAt followed by Sync,
// matching the "binary for atomic single-write update" requirement.
func saveMetadata(path string, m metadata) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE, 0o644)
	if err != nil {
		return fmt.Errorf("llindex: open metadata: %w", err)
	}
	defer f.Close()
	buf := encodeMetadata(m)
	if _, err := f.WriteAt(buf, 0); err != nil {
		return fmt.Errorf("llindex: write metadata: %w", err)
	}
	return f.Sync()
}

// fingerprint returns the 8-hex-digit cache-file identity derived from a
// source's (device, inode, ctime).
func fingerprint(device, inode uint64, ctime int64) string {
	h := sha256.New()
	var buf [24]byte
	binary.LittleEndian.PutUint64(buf[0:], device)
	binary.LittleEndian.PutUint64(buf[8:], inode)
	binary.LittleEndian.PutUint64(buf[16:], uint64(ctime))
	h.Write(buf[:])
	sum := h.Sum(nil)
	return hex.EncodeToString(sum[:4])
}
