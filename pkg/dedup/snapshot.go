package dedup

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
)

// Snapshot format, little-endian:
//
//	magic "UDS1" | version u16 | mode u8 | seq u64 | entries u64 | filter_len u64
//	entries × (hi u64, lo u64, freq u64, seq u64)
//	filter_len bytes of bloom filter state
const (
	snapshotVersion   = 1
	snapshotEntrySize = 32
	maxFilterBytes    = 1 << 34
)

var snapshotMagic = [4]byte{'U', 'D', 'S', '1'}

// ErrBadSnapshot is returned when a snapshot cannot be decoded
var ErrBadSnapshot = errors.New("bad dedup snapshot")

type snapshotHeader struct {
	Magic     [4]byte
	Version   uint16
	Mode      uint8
	Seq       uint64
	Entries   uint64
	FilterLen uint64
}

// SaveTo writes the cache and filter state to w. The deduplicator is locked
// for the duration so the snapshot is consistent.
func (d *Deduplicator) SaveTo(w io.Writer) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	filterState, err := d.filter.marshal()
	if err != nil {
		return fmt.Errorf("failed to encode filter: %w", err)
	}

	ranked := make([]rankedKey, 0, len(d.cache))
	for key, e := range d.cache {
		ranked = append(ranked, rankedKey{key: key, entry: e})
	}
	sort.Slice(ranked, func(i, j int) bool { return ranked[i].seq < ranked[j].seq })

	bw := bufio.NewWriter(w)
	header := snapshotHeader{
		Magic:     snapshotMagic,
		Version:   snapshotVersion,
		Mode:      uint8(d.filter.mode()),
		Seq:       d.seq,
		Entries:   uint64(len(ranked)),
		FilterLen: uint64(len(filterState)),
	}
	if err := binary.Write(bw, binary.LittleEndian, header); err != nil {
		return fmt.Errorf("failed to write snapshot header: %w", err)
	}

	var buf [snapshotEntrySize]byte
	for _, r := range ranked {
		binary.LittleEndian.PutUint64(buf[0:], r.key.Hi)
		binary.LittleEndian.PutUint64(buf[8:], r.key.Lo)
		binary.LittleEndian.PutUint64(buf[16:], r.freq)
		binary.LittleEndian.PutUint64(buf[24:], r.seq)
		if _, err := bw.Write(buf[:]); err != nil {
			return fmt.Errorf("failed to write snapshot entry: %w", err)
		}
	}

	if _, err := bw.Write(filterState); err != nil {
		return fmt.Errorf("failed to write filter state: %w", err)
	}
	return bw.Flush()
}

// LoadFrom replaces the cache and filter with a snapshot read from r. On any
// error the current state is kept. A snapshot taken without a filter cannot be
// loaded into a deduplicator that runs with one, since the empty filter would
// report cached URLs as new.
func (d *Deduplicator) LoadFrom(r io.Reader) error {
	br := bufio.NewReader(r)

	var header snapshotHeader
	if err := binary.Read(br, binary.LittleEndian, &header); err != nil {
		return fmt.Errorf("%w: failed to read header: %v", ErrBadSnapshot, err)
	}
	if header.Magic != snapshotMagic {
		return fmt.Errorf("%w: unexpected magic %q", ErrBadSnapshot, header.Magic[:])
	}
	if header.Version != snapshotVersion {
		return fmt.Errorf("%w: unsupported version %d", ErrBadSnapshot, header.Version)
	}
	if header.FilterLen > maxFilterBytes {
		return fmt.Errorf("%w: filter state too large (%d bytes)", ErrBadSnapshot, header.FilterLen)
	}

	cache := newCache(d.cfg.MaxCacheSize)
	var buf [snapshotEntrySize]byte
	for i := uint64(0); i < header.Entries; i++ {
		if _, err := io.ReadFull(br, buf[:]); err != nil {
			return fmt.Errorf("%w: failed to read entry %d: %v", ErrBadSnapshot, i, err)
		}
		key := URLKey{
			Hi: binary.LittleEndian.Uint64(buf[0:]),
			Lo: binary.LittleEndian.Uint64(buf[8:]),
		}
		cache[key] = entry{
			freq: binary.LittleEndian.Uint64(buf[16:]),
			seq:  binary.LittleEndian.Uint64(buf[24:]),
		}
	}

	// The buffer grows with the bytes actually read, not with FilterLen.
	var filterState bytes.Buffer
	if _, err := io.CopyN(&filterState, br, int64(header.FilterLen)); err != nil {
		return fmt.Errorf("%w: failed to read filter state: %v", ErrBadSnapshot, err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.filter.mode() == ModeWithFilter && FilterMode(header.Mode) != ModeWithFilter {
		return fmt.Errorf("%w: snapshot was taken without a bloom filter", ErrBadSnapshot)
	}
	filter, err := d.filter.restore(filterState.Bytes())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBadSnapshot, err)
	}

	d.filter = filter
	d.cache = cache
	d.seq = header.Seq

	d.logger.Info("snapshot loaded", "cache_size", len(cache), "filter_mode", filter.mode().String())
	if len(d.cache) >= d.cfg.MaxCacheSize {
		d.evict()
	}
	return nil
}

// SaveToFile writes a snapshot to path atomically via a temporary file
func (d *Deduplicator) SaveToFile(path string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create snapshot file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := d.SaveTo(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close snapshot file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace snapshot file: %w", err)
	}
	return nil
}

// LoadFromFile loads a snapshot from path. A missing file is not an error.
func (d *Deduplicator) LoadFromFile(path string) error {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer file.Close()

	return d.LoadFrom(file)
}
