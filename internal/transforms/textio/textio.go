// Package textio reads and writes newline-delimited text files. Paths
// ending in .gz are transparently compressed.
package textio

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/joistio/joist/internal/coders"
	"github.com/joistio/joist/internal/pipeline"
	"github.com/joistio/joist/internal/transforms"
)

// Registered DoFn names for the text source and sink.
const (
	ReadFnName  = "textio.read"
	WriteFnName = "textio.write"
)

func init() {
	transforms.RegisterDoFn(ReadFnName, func() transforms.DoFn {
		return &ReadFn{}
	})
	transforms.RegisterDoFn(WriteFnName, func() transforms.DoFn {
		return &WriteFn{}
	})
}

// Config configures both the read and write DoFns.
type Config struct {
	// Path is the file to read or write. A .gz suffix selects gzip.
	Path string `json:"path"`
}

// Read builds the conventional text source: an impulse-driven ParDo that
// opens the file once and emits each line as a string element.
func Read(name, path string) *transforms.ParDo {
	return transforms.NewParDo(name, ReadFnName).
		WithConfig(Config{Path: path}).
		WithOutputCoder(&pipeline.CoderSpec{URN: coders.StringCoderURN})
}

// Write builds the text sink as a ParDo with no output.
func Write(name, path string) *transforms.ParDo {
	return transforms.NewParDo(name, WriteFnName).
		WithConfig(Config{Path: path}).
		WithOutputCoder(&pipeline.CoderSpec{URN: coders.UnitCoderURN})
}

// ReadFn emits one string element per line of the configured file. It
// triggers once per input element, so it is normally fed by an impulse.
type ReadFn struct {
	transforms.DoFnBase
	cfg Config
}

// Configure implements transforms.Configurable.
func (r *ReadFn) Configure(config json.RawMessage) error {
	if err := json.Unmarshal(config, &r.cfg); err != nil {
		return fmt.Errorf("textio.read: decode config: %w", err)
	}
	if r.cfg.Path == "" {
		return fmt.Errorf("textio.read: path is required")
	}
	return nil
}

func (r *ReadFn) ProcessElement(_ context.Context, _ interface{}, emit transforms.Emitter) error {
	f, err := os.Open(r.cfg.Path)
	if err != nil {
		return fmt.Errorf("textio.read: %w", err)
	}
	defer f.Close()

	var reader io.Reader = f
	if strings.HasSuffix(r.cfg.Path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return fmt.Errorf("textio.read: %s: %w", r.cfg.Path, err)
		}
		defer gz.Close()
		reader = gz
	}

	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		emit(scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("textio.read: %s: %w", r.cfg.Path, err)
	}
	return nil
}

// WriteFn appends each string element to the configured file as one line.
// The file is opened per bundle; gzip output is written as one gzip member
// per bundle, which concatenates into a valid stream.
type WriteFn struct {
	cfg    Config
	file   *os.File
	writer io.Writer
	gz     *gzip.Writer
	buf    *bufio.Writer
}

// Configure implements transforms.Configurable.
func (w *WriteFn) Configure(config json.RawMessage) error {
	if err := json.Unmarshal(config, &w.cfg); err != nil {
		return fmt.Errorf("textio.write: decode config: %w", err)
	}
	if w.cfg.Path == "" {
		return fmt.Errorf("textio.write: path is required")
	}
	return nil
}

func (w *WriteFn) StartBundle(context.Context) error {
	f, err := os.OpenFile(w.cfg.Path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("textio.write: %w", err)
	}
	w.file = f
	w.writer = f
	if strings.HasSuffix(w.cfg.Path, ".gz") {
		w.gz = gzip.NewWriter(f)
		w.writer = w.gz
	}
	w.buf = bufio.NewWriter(w.writer)
	return nil
}

func (w *WriteFn) ProcessElement(_ context.Context, element interface{}, _ transforms.Emitter) error {
	line, ok := element.(string)
	if !ok {
		return fmt.Errorf("textio.write: element is %T, want string", element)
	}
	if _, err := w.buf.WriteString(line); err != nil {
		return err
	}
	return w.buf.WriteByte('\n')
}

func (w *WriteFn) FinishBundle(context.Context, transforms.Emitter) error {
	if w.buf == nil {
		return nil
	}
	if err := w.buf.Flush(); err != nil {
		return err
	}
	if w.gz != nil {
		if err := w.gz.Close(); err != nil {
			return err
		}
		w.gz = nil
	}
	err := w.file.Close()
	w.file = nil
	w.buf = nil
	return err
}
