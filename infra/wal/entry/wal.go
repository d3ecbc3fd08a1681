package entry

import (
	"encoding/binary"
	"fmt"
	"os"
	"time"
)

type Config struct {
	Dir             string
	SegmentSize     int64
	SegmentDuration time.Duration
}

// WAL is an append-only, segmented journal. It is not safe for
// concurrent use; the goroutine that applies messages owns it.
type WAL struct {
	dir         string
	segSize     int64
	segDuration time.Duration
	current     *segment
	segIndex    int
	lastRotate  time.Time
	buf         []byte
}

// Open resumes after the newest existing segment so records from an
// earlier run are never interleaved with new ones. A record torn by a
// crash at the end of the newest non-empty segment is cut off first.
func Open(cfg Config) (*WAL, error) {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, err
	}

	files, err := listSegments(cfg.Dir)
	if err != nil {
		return nil, err
	}
	if i := lastNonEmpty(files); i >= 0 {
		if err := trimTornTail(files[i]); err != nil {
			return nil, fmt.Errorf("journal repair %s: %w", files[i], err)
		}
	}

	index := 0
	if n := len(files); n > 0 {
		if last, ok := segmentIndex(files[n-1]); ok {
			index = last + 1
		}
	}

	seg, err := openSegment(cfg.Dir, index)
	if err != nil {
		return nil, err
	}

	return &WAL{
		dir:         cfg.Dir,
		segSize:     cfg.SegmentSize,
		segDuration: cfg.SegmentDuration,
		current:     seg,
		segIndex:    index,
		lastRotate:  time.Now(),
	}, nil
}

func (w *WAL) Append(r *Record) error {
	payloadLen := uint32(len(r.Data))
	size := headerSize + int(payloadLen) + 4
	if cap(w.buf) < size {
		w.buf = make([]byte, size)
	}
	buf := w.buf[:size]

	buf[0] = byte(r.Type)
	binary.BigEndian.PutUint64(buf[1:9], r.Seq)
	binary.BigEndian.PutUint64(buf[9:17], uint64(r.Time))
	binary.BigEndian.PutUint32(buf[17:21], payloadLen)
	copy(buf[headerSize:], r.Data)

	crc := CRC32(buf[:headerSize+payloadLen])
	binary.BigEndian.PutUint32(buf[headerSize+int(payloadLen):], crc)

	if err := w.current.append(buf); err != nil {
		return fmt.Errorf("journal append: %w", err)
	}

	if w.rotateDue() {
		return w.rotate()
	}
	return nil
}

func (w *WAL) rotateDue() bool {
	if w.segSize > 0 && w.current.offset >= w.segSize {
		return true
	}
	return w.segDuration > 0 && w.current.offset > 0 && time.Since(w.lastRotate) >= w.segDuration
}

func (w *WAL) rotate() error {
	if err := w.current.sync(); err != nil {
		return err
	}
	_ = w.current.close()
	w.segIndex++

	seg, err := openSegment(w.dir, w.segIndex)
	if err != nil {
		return err
	}

	w.current = seg
	w.lastRotate = time.Now()
	return nil
}

func (w *WAL) Sync() error {
	return w.current.sync()
}

func (w *WAL) Close() error {
	if err := w.current.sync(); err != nil {
		_ = w.current.close()
		return err
	}
	return w.current.close()
}

// TruncateBefore deletes closed segments whose records all have
// seq <= seq. The segment being written is kept.
func (w *WAL) TruncateBefore(seq uint64) error {
	files, err := listSegments(w.dir)
	if err != nil {
		return err
	}

	for _, path := range files {
		if path == w.current.path {
			continue
		}
		maxSeq, err := maxSeqInSegment(path)
		if err != nil {
			continue
		}
		if maxSeq <= seq {
			if err := os.Remove(path); err != nil {
				return err
			}
		}
	}
	return nil
}
