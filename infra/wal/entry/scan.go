package entry

import (
	"encoding/binary"
	"errors"
	"io"
	"os"
)

// maxSeqInSegment returns the highest sequence number in a segment.
// Only truncation uses it.
func maxSeqInSegment(path string) (uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	var max uint64
	header := make([]byte, headerSize)

	for {
		if _, err := io.ReadFull(f, header); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return max, nil
			}
			return max, err
		}

		seq := binary.BigEndian.Uint64(header[1:9])
		if seq > max {
			max = seq
		}

		payloadLen := binary.BigEndian.Uint32(header[17:21])

		// Skip payload + CRC
		if _, err := f.Seek(int64(payloadLen)+4, io.SeekCurrent); err != nil {
			return max, err
		}
	}
}

// lastNonEmpty returns the index of the newest segment holding any
// bytes, or -1.
func lastNonEmpty(files []string) int {
	for i := len(files) - 1; i >= 0; i-- {
		if st, err := os.Stat(files[i]); err == nil && st.Size() > 0 {
			return i
		}
	}
	return -1
}

// trimTornTail truncates path to the end of its last complete record.
// Corrupt records are left in place for Replay to report.
func trimTornTail(path string) error {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return err
	}
	defer f.Close()

	var end int64
	for {
		rec, err := readRecord(f)
		switch {
		case err == nil:
			end += int64(headerSize + len(rec.Data) + 4)
		case errors.Is(err, io.EOF):
			return nil
		case errors.Is(err, io.ErrUnexpectedEOF):
			if err := f.Truncate(end); err != nil {
				return err
			}
			return f.Sync()
		default:
			return nil
		}
	}
}
