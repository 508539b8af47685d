// Package filelog is a single-data-file, bitcask-style implementation of
// logstore.Log: a bufio.Writer appends length-and-checksum
// framed records with an optional fsync interval, and Ready rebuilds the
// seq-to-offset index by scanning the file sequentially with a
// bufio.Reader, truncating at the first corrupt or partial frame.
package filelog

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"io"
	"os"
	"sync"
	"time"

	"github.com/kustomzone/hyperbee/pkg/hberrors"
	"github.com/kustomzone/hyperbee/pkg/logstore"
)

var errSeqOutOfRange = errors.New("seq out of range")

// frameHeaderSize is [length(4)][crc32(4)].
const frameHeaderSize = 8

// Config configures a Log.
type Config struct {
	FilePath      string        // path to the single append-only data file
	FsyncInterval time.Duration // 0 = fsync on every Append
	BufferSize    int           // write buffer size, default 64KiB
}

// Log is a file-backed append-only record store.
type Log struct {
	mu         sync.Mutex
	config     Config
	file       *os.File
	writer     *bufio.Writer
	offsets    []int64 // offsets[seq] = byte offset of record seq's frame
	fileOffset int64   // current end-of-file write offset
	fsyncTimer *time.Timer
	ready      bool
}

var _ logstore.Log = (*Log)(nil)

// New returns a Log that will operate on config.FilePath once Ready is
// called.
func New(config Config) *Log {
	if config.BufferSize <= 0 {
		config.BufferSize = 64 * 1024
	}
	return &Log{config: config}
}

// Ready opens (creating if necessary) the data file and rebuilds the
// seq-to-offset index by scanning every frame from the start. A trailing
// partial or checksum-mismatched frame is treated as a torn write from a
// prior crash and truncated away. Ready is idempotent.
func (l *Log) Ready(_ context.Context) error {
	const op = "filelog.Ready"
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ready {
		return nil
	}

	file, err := os.OpenFile(l.config.FilePath, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return hberrors.IoError(op, err)
	}

	offsets, validSize, err := scanFrames(file)
	if err != nil {
		file.Close()
		return hberrors.IoError(op, err)
	}
	// Drop anything past the last fully-valid frame (a torn write).
	if err := file.Truncate(validSize); err != nil {
		file.Close()
		return hberrors.IoError(op, err)
	}
	if _, err := file.Seek(validSize, io.SeekStart); err != nil {
		file.Close()
		return hberrors.IoError(op, err)
	}

	l.file = file
	l.writer = bufio.NewWriterSize(file, l.config.BufferSize)
	l.offsets = offsets
	l.fileOffset = validSize
	if l.config.FsyncInterval > 0 {
		l.fsyncTimer = time.AfterFunc(l.config.FsyncInterval, func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			_ = l.sync()
		})
	}
	l.ready = true
	return nil
}

// scanFrames reads every [length][crc32][payload] frame from the start of
// file, returning the byte offset of each valid frame and the file size up
// to (and not including) the first invalid or partial frame encountered.
func scanFrames(file *os.File) ([]int64, int64, error) {
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return nil, 0, err
	}
	r := bufio.NewReader(file)

	var offsets []int64
	var pos, valid int64
	header := make([]byte, frameHeaderSize)
	for {
		start := pos
		n, err := io.ReadFull(r, header)
		pos += int64(n)
		if err == io.EOF {
			break
		}
		if err != nil {
			// Partial header: torn write, stop here.
			break
		}
		length := binary.LittleEndian.Uint32(header[0:4])
		wantCRC := binary.LittleEndian.Uint32(header[4:8])

		payload := make([]byte, length)
		n, err = io.ReadFull(r, payload)
		pos += int64(n)
		if err != nil {
			break
		}
		if crc32.ChecksumIEEE(payload) != wantCRC {
			break
		}
		offsets = append(offsets, start)
		valid = pos
	}
	return offsets, valid, nil
}

// Length returns the number of appended records.
func (l *Log) Length(_ context.Context) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return int64(len(l.offsets)), nil
}

// Get reads and returns the payload bytes of record seq.
func (l *Log) Get(_ context.Context, seq int64) ([]byte, error) {
	const op = "filelog.Get"
	l.mu.Lock()
	defer l.mu.Unlock()
	if seq < 0 || seq >= int64(len(l.offsets)) {
		return nil, hberrors.IoError(op, errSeqOutOfRange)
	}
	// A read may be served while buffered writes for later records
	// haven't been flushed yet, but seq's own frame is always flushed
	// before its offset is published (see Append), so a plain pread is
	// safe here.
	header := make([]byte, frameHeaderSize)
	if _, err := l.file.ReadAt(header, l.offsets[seq]); err != nil {
		return nil, hberrors.IoError(op, err)
	}
	length := binary.LittleEndian.Uint32(header[0:4])
	payload := make([]byte, length)
	if _, err := l.file.ReadAt(payload, l.offsets[seq]+frameHeaderSize); err != nil {
		return nil, hberrors.IoError(op, err)
	}
	return payload, nil
}

// Append writes data as a new framed record and returns its assigned seq.
func (l *Log) Append(_ context.Context, data []byte) (int64, error) {
	const op = "filelog.Append"
	l.mu.Lock()
	defer l.mu.Unlock()

	seq := int64(len(l.offsets))
	recordOffset := l.fileOffset

	var header [frameHeaderSize]byte
	binary.LittleEndian.PutUint32(header[0:4], uint32(len(data)))
	binary.LittleEndian.PutUint32(header[4:8], crc32.ChecksumIEEE(data))

	if _, err := l.writer.Write(header[:]); err != nil {
		return 0, hberrors.IoError(op, err)
	}
	if _, err := l.writer.Write(data); err != nil {
		return 0, hberrors.IoError(op, err)
	}
	l.fileOffset += frameHeaderSize + int64(len(data))

	// Flush to the OS file on every append regardless of FsyncInterval: Get
	// reads through l.file directly, so a record must leave the bufio
	// buffer before its offset is published, even if the fsync itself is
	// deferred.
	if err := l.writer.Flush(); err != nil {
		return 0, hberrors.IoError(op, err)
	}
	if l.config.FsyncInterval == 0 {
		if err := l.file.Sync(); err != nil {
			return 0, hberrors.IoError(op, err)
		}
	} else if l.fsyncTimer != nil {
		l.fsyncTimer.Reset(l.config.FsyncInterval)
	}

	l.offsets = append(l.offsets, recordOffset)
	return seq, nil
}

// sync flushes the write buffer and fsyncs the file. Caller must hold mu.
func (l *Log) sync() error {
	if err := l.writer.Flush(); err != nil {
		return err
	}
	return l.file.Sync()
}

// Close flushes, fsyncs, and closes the underlying file.
func (l *Log) Close() error {
	const op = "filelog.Close"
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.ready {
		return nil
	}
	if l.fsyncTimer != nil {
		l.fsyncTimer.Stop()
	}
	if err := l.sync(); err != nil {
		l.file.Close()
		return hberrors.IoError(op, err)
	}
	return l.file.Close()
}
