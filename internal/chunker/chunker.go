package chunker

import "io"

// DefaultChunkSize is the read size used when the caller does not pick one.
const DefaultChunkSize = 64 * 1024

// Reader yields the contents of a source as a sequence of fixed-size byte
// chunks. It is single-pass: chunks come out in order, the final chunk may
// be short, and once Next returns an error the Reader is exhausted. The
// returned buffer is reused between calls, so a chunk is only valid until
// the next call to Next.
type Reader struct {
	src io.Reader
	buf []byte
	err error
}

// New wraps src in a chunk Reader. If src is seekable it is rewound to the
// start first; sources that cannot seek are read from their current
// position. size <= 0 selects DefaultChunkSize.
func New(src io.Reader, size int) *Reader {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if s, ok := src.(io.Seeker); ok {
		// Best-effort rewind; a source that refuses to seek is not an error.
		_, _ = s.Seek(0, io.SeekStart)
	}
	return &Reader{src: src, buf: make([]byte, size)}
}

// Next returns the next non-empty chunk, or io.EOF once the source is
// drained. A read error is surfaced after any bytes read alongside it have
// been returned.
func (r *Reader) Next() ([]byte, error) {
	if r.err != nil {
		return nil, r.err
	}
	n, err := io.ReadFull(r.src, r.buf)
	switch {
	case err == io.EOF || err == io.ErrUnexpectedEOF:
		r.err = io.EOF
	case err != nil:
		r.err = err
	}
	if n > 0 {
		return r.buf[:n], nil
	}
	if r.err == nil {
		r.err = io.EOF
	}
	return nil, r.err
}

// Close closes the underlying source when it implements io.Closer. The
// writer that consumes the sequence owns the source and calls this exactly
// once, on success or failure.
func (r *Reader) Close() error {
	if c, ok := r.src.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
