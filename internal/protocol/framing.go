package protocol

import "bytes"

// maxPendingBytes bounds a record that never sees its newline
const maxPendingBytes = 64 * 1024

// lineFramer splits a byte stream into newline-terminated records. A chunk
// may carry several records or only part of one.
type lineFramer struct {
	pending []byte
}

// Feed appends chunk and returns every record it completes, in order
func (f *lineFramer) Feed(chunk []byte) []string {
	var records []string
	f.pending = append(f.pending, chunk...)

	for {
		idx := bytes.IndexByte(f.pending, '\n')
		if idx < 0 {
			break
		}
		if record := cleanRecord(f.pending[:idx]); record != "" {
			records = append(records, record)
		}
		f.pending = f.pending[idx+1:]
	}

	if len(f.pending) > maxPendingBytes {
		if record := cleanRecord(f.pending); record != "" {
			records = append(records, record)
		}
		f.pending = nil
	}

	// Release the backing array once it is drained.
	if len(f.pending) == 0 {
		f.pending = nil
	}
	return records
}

// Flush returns the unterminated remainder, if any
func (f *lineFramer) Flush() string {
	record := cleanRecord(f.pending)
	f.pending = nil
	return record
}

func cleanRecord(raw []byte) string {
	return string(bytes.TrimRight(raw, "\r\x00 \t"))
}
