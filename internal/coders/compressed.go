package coders

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
)

// GzipCoder wraps another coder and gzip-compresses its output. Useful for
// large elements (documents, API payloads) materialized between stages.
//
// The element is first encoded with the inner coder in WholeStream context,
// compressed, and then framed with a length prefix when delimiters are
// required.
type GzipCoder struct {
	ElemCoder Coder
}

func (GzipCoder) URN() string { return GzipCoderURN }

func (gc GzipCoder) Encode(v interface{}, w io.Writer, c Context) error {
	var inner bytes.Buffer
	if err := gc.ElemCoder.Encode(v, &inner, WholeStream); err != nil {
		return fmt.Errorf("gzip coder: inner encode: %w", err)
	}

	var compressed bytes.Buffer
	zw, err := gzip.NewWriterLevel(&compressed, gzip.DefaultCompression)
	if err != nil {
		return fmt.Errorf("gzip coder: failed to create writer: %w", err)
	}
	if _, err := zw.Write(inner.Bytes()); err != nil {
		_ = zw.Close()
		return fmt.Errorf("gzip coder: failed to compress: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("gzip coder: failed to flush: %w", err)
	}

	if c == NeedsDelimiters {
		return writeLengthPrefixed(w, compressed.Bytes())
	}
	_, err = w.Write(compressed.Bytes())
	return err
}

func (gc GzipCoder) Decode(r io.Reader, c Context) (interface{}, error) {
	var compressed []byte
	var err error
	if c == NeedsDelimiters {
		compressed, err = readLengthPrefixed(r)
	} else {
		compressed, err = io.ReadAll(r)
	}
	if err != nil {
		return nil, err
	}

	zr, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, fmt.Errorf("gzip coder: failed to create reader: %w", err)
	}
	defer func() { _ = zr.Close() }()

	inner, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("gzip coder: failed to decompress: %w", err)
	}

	return gc.ElemCoder.Decode(bytes.NewReader(inner), WholeStream)
}
