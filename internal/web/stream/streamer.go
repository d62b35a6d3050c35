// Package stream writes responses incrementally, flushing as data is produced
package stream

import (
	"encoding/csv"
	"errors"
	"fmt"
	"mime"
	"net/http"
)

// ErrNotSupported is returned for response writers that cannot flush
var ErrNotSupported = errors.New("streaming not supported")

// DefaultFlushEvery is the number of CSV records buffered between flushes
const DefaultFlushEvery = 100

// Streamer flushes every write to the client
type Streamer struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// New creates a streamer over w
func New(w http.ResponseWriter) (*Streamer, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, ErrNotSupported
	}
	return &Streamer{w: w, flusher: flusher}, nil
}

// Header returns the response headers; set them before the first write
func (s *Streamer) Header() http.Header {
	return s.w.Header()
}

// Write writes bytes to the stream and flushes
func (s *Streamer) Write(data []byte) (int, error) {
	n, err := s.w.Write(data)
	if err != nil {
		return n, err
	}
	s.flusher.Flush()
	return n, nil
}

// Flush manually flushes the stream
func (s *Streamer) Flush() {
	s.flusher.Flush()
}

// CSV streams comma separated records as a file download
type CSV struct {
	stream     *Streamer
	writer     *csv.Writer
	pending    int
	FlushEvery int
}

// NewCSV prepares w for a CSV attachment called filename
func NewCSV(w http.ResponseWriter, filename string) (*CSV, error) {
	s, err := New(w)
	if err != nil {
		return nil, err
	}
	s.Header().Set("Content-Type", "text/csv; charset=utf-8")
	s.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	s.Header().Set("Cache-Control", "no-cache")

	// csv.Writer buffers; records reach the client on Flush
	return &CSV{stream: s, writer: csv.NewWriter(w), FlushEvery: DefaultFlushEvery}, nil
}

// Write adds one record, flushing every FlushEvery records
func (c *CSV) Write(record []string) error {
	if err := c.writer.Write(record); err != nil {
		return fmt.Errorf("write csv record: %w", err)
	}
	c.pending++
	if c.FlushEvery > 0 && c.pending >= c.FlushEvery {
		return c.Flush()
	}
	return nil
}

// Flush sends the buffered records
func (c *CSV) Flush() error {
	c.writer.Flush()
	if err := c.writer.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	c.pending = 0
	c.stream.Flush()
	return nil
}
