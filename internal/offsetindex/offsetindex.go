// Package offsetindex implements the fixed-width offset file that sits
// alongside a stream's record file: a flat run of 8-byte big-endian
// unsigned integers, one per event, giving the byte offset at which that
// event's JSON line begins in events.ndjson. Big-endian is fixed so the
// file is portable across hosts regardless of native byte order.
package offsetindex

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

const entrySize = 8

// Index is a handle to an offset index file on disk. It caches no file
// descriptor between calls: every operation opens, does its I/O, and
// closes, matching the no-long-lived-handle policy of the stream log it
// backs.
type Index struct {
	path string
}

// New returns a handle for the offset index file at path. It does not
// touch the filesystem.
func New(path string) *Index {
	return &Index{path: path}
}

// Count returns the number of entries in the index, equivalently the
// file size divided by 8. A missing file counts as zero entries.
func (idx *Index) Count() (uint64, error) {
	info, err := os.Stat(idx.path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("offsetindex: count: %w", err)
	}
	return uint64(info.Size()) / entrySize, nil
}

// At returns the offset stored at the given zero-based position. The
// second return is false if position is past the end of the index.
func (idx *Index) At(position uint64) (uint64, bool, error) {
	f, err := os.Open(idx.path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("offsetindex: at: %w", err)
	}
	defer f.Close()

	var buf [entrySize]byte
	n, err := f.ReadAt(buf[:], int64(position*entrySize))
	if err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF || n < entrySize {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("offsetindex: at: %w", err)
	}
	return binary.BigEndian.Uint64(buf[:]), true, nil
}

// Append writes each offset, in order, as an 8-byte big-endian integer at
// the end of the index file, creating it if necessary. Callers are
// responsible for ensuring the corresponding record bytes were already
// durably written before this call, per the stream log's append
// ordering.
func (idx *Index) Append(offsets []uint64) error {
	if len(offsets) == 0 {
		return nil
	}
	f, err := os.OpenFile(idx.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("offsetindex: append: %w", err)
	}
	defer f.Close()

	buf := make([]byte, entrySize*len(offsets))
	for i, off := range offsets {
		binary.BigEndian.PutUint64(buf[i*entrySize:], off)
	}
	if _, err := f.Write(buf); err != nil {
		return fmt.Errorf("offsetindex: append: %w", err)
	}
	return nil
}

// RebuildFromLog reconstructs the index file from scratch by scanning
// logPath line by line and recording the byte offset at which each line
// begins. A trailing partial line (no terminating newline) is discarded,
// not indexed, matching the stream log's crash-recovery contract.
func RebuildFromLog(idx *Index, logPath string) error {
	log, err := os.Open(logPath)
	if err != nil {
		if os.IsNotExist(err) {
			return writeEntries(idx.path, nil)
		}
		return fmt.Errorf("offsetindex: rebuild: %w", err)
	}
	defer log.Close()

	var offsets []uint64
	reader := bufio.NewReader(log)
	var pos uint64
	for {
		line, err := reader.ReadBytes('\n')
		if len(line) > 0 && line[len(line)-1] == '\n' {
			offsets = append(offsets, pos)
			pos += uint64(len(line))
		}
		if err != nil {
			if err == io.EOF {
				break
			}
			return fmt.Errorf("offsetindex: rebuild: %w", err)
		}
	}
	return writeEntries(idx.path, offsets)
}

func writeEntries(path string, offsets []uint64) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("offsetindex: write: %w", err)
	}
	defer f.Close()

	buf := make([]byte, entrySize*len(offsets))
	for i, off := range offsets {
		binary.BigEndian.PutUint64(buf[i*entrySize:], off)
	}
	if _, err := f.Write(buf); err != nil {
		return fmt.Errorf("offsetindex: write: %w", err)
	}
	return nil
}
