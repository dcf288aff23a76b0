package output

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"text/tabwriter"
	"time"

	"gopkg.in/yaml.v3"
)

// Writer renders the final result sequence.
//
// Implementations must be safe for concurrent use from multiple
// goroutines. WriteJob is called once per job in render order; Close
// flushes buffered output.
type Writer interface {
	// WriteJob emits one job status record.
	WriteJob(view JobView) error

	// WriteFailure emits one failed-backend record.
	WriteFailure(view ErrorView) error

	// WriteSummary emits the final summary record.
	WriteSummary(view SummaryView) error

	// Close flushes any buffered output and releases resources.
	Close() error
}

// JSONLWriter writes records as newline-delimited JSON to an io.Writer.
//
// JSONLWriter is safe for concurrent use. Writes are serialized using
// a mutex to ensure atomic line writes (no interleaved output).
type JSONLWriter struct {
	w      io.Writer
	mu     sync.Mutex
	closed bool
	now    func() time.Time
}

// NewJSONLWriter creates a new JSONL writer over w (stdout, file, etc.).
func NewJSONLWriter(w io.Writer) *JSONLWriter {
	return &JSONLWriter{w: w, now: time.Now}
}

func (jw *JSONLWriter) WriteJob(view JobView) error {
	return jw.writeRecord(TypeJob, view)
}

func (jw *JSONLWriter) WriteFailure(view ErrorView) error {
	return jw.writeRecord(TypeError, view)
}

func (jw *JSONLWriter) WriteSummary(view SummaryView) error {
	return jw.writeRecord(TypeSummary, view)
}

// Close marks the writer as closed.
//
// If the underlying writer implements io.Closer, it is NOT closed.
// The caller is responsible for closing the underlying writer.
func (jw *JSONLWriter) Close() error {
	jw.mu.Lock()
	defer jw.mu.Unlock()
	jw.closed = true
	return nil
}

// writeRecord marshals data and writes a complete record line while
// holding the mutex, so lines never interleave.
func (jw *JSONLWriter) writeRecord(recordType string, data any) error {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return &WriteError{Op: "marshal_data", Err: err}
	}

	jw.mu.Lock()
	defer jw.mu.Unlock()

	if jw.closed {
		return ErrWriterClosed
	}

	record := Record{
		Type: recordType,
		TS:   jw.now().UTC(),
		Data: dataBytes,
	}
	recordBytes, err := json.Marshal(record)
	if err != nil {
		return &WriteError{Op: "marshal_record", Err: err}
	}

	// Handle short writes: io.Writer may return n < len(p) with nil
	// error, which would silently truncate JSONL lines.
	recordBytes = append(recordBytes, '\n')
	if err := writeAll(jw.w, recordBytes); err != nil {
		return &WriteError{Op: "write", Err: err}
	}
	return nil
}

func writeAll(w io.Writer, p []byte) error {
	for len(p) > 0 {
		n, err := w.Write(p)
		if err != nil {
			return err
		}
		p = p[n:]
	}
	return nil
}

// TableWriter renders an aligned table for human consumption.
// Rows buffer until Close so column widths consider the whole result.
type TableWriter struct {
	tw       *tabwriter.Writer
	mu       sync.Mutex
	wroteHdr bool
	closed   bool
}

// NewTableWriter creates a table writer over w.
func NewTableWriter(w io.Writer) *TableWriter {
	return &TableWriter{tw: tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)}
}

func (tw *TableWriter) WriteJob(view JobView) error {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	if tw.closed {
		return ErrWriterClosed
	}

	if !tw.wroteHdr {
		if _, err := fmt.Fprintln(tw.tw, "JOB ID\tNAME\tPROVIDER\tSTATUS\tCREATED\tLAST EVENT"); err != nil {
			return &WriteError{Op: "write", Err: err}
		}
		tw.wroteHdr = true
	}

	lastEvent := "-"
	if n := len(view.Events); n > 0 {
		lastEvent = view.Events[n-1].Name
	}
	name := view.JobName
	if name == "" {
		name = "-"
	}

	_, err := fmt.Fprintf(tw.tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
		shortJobID(view.JobID),
		name,
		view.Provider,
		view.Status,
		view.CreateTime.UTC().Format(time.RFC3339),
		lastEvent,
	)
	if err != nil {
		return &WriteError{Op: "write", Err: err}
	}
	return nil
}

func (tw *TableWriter) WriteFailure(view ErrorView) error {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	if tw.closed {
		return ErrWriterClosed
	}
	_, err := fmt.Fprintf(tw.tw, "! %s\t%s\n", view.Provider, view.Message)
	if err != nil {
		return &WriteError{Op: "write", Err: err}
	}
	return nil
}

// WriteSummary is a no-op for tables; the rows speak for themselves.
func (tw *TableWriter) WriteSummary(SummaryView) error { return nil }

func (tw *TableWriter) Close() error {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	if tw.closed {
		return nil
	}
	tw.closed = true
	return tw.tw.Flush()
}

func shortJobID(jobID string) string {
	if len(jobID) <= 12 {
		return jobID
	}
	return jobID[:12]
}

// YAMLWriter renders the whole result as one YAML document on Close.
type YAMLWriter struct {
	w        io.Writer
	mu       sync.Mutex
	jobs     []JobView
	failures []ErrorView
	closed   bool
}

// NewYAMLWriter creates a YAML writer over w.
func NewYAMLWriter(w io.Writer) *YAMLWriter {
	return &YAMLWriter{w: w}
}

func (yw *YAMLWriter) WriteJob(view JobView) error {
	yw.mu.Lock()
	defer yw.mu.Unlock()
	if yw.closed {
		return ErrWriterClosed
	}
	yw.jobs = append(yw.jobs, view)
	return nil
}

func (yw *YAMLWriter) WriteFailure(view ErrorView) error {
	yw.mu.Lock()
	defer yw.mu.Unlock()
	if yw.closed {
		return ErrWriterClosed
	}
	yw.failures = append(yw.failures, view)
	return nil
}

func (yw *YAMLWriter) WriteSummary(SummaryView) error { return nil }

func (yw *YAMLWriter) Close() error {
	yw.mu.Lock()
	defer yw.mu.Unlock()
	if yw.closed {
		return nil
	}
	yw.closed = true

	doc := struct {
		Jobs     []JobView   `yaml:"jobs"`
		Failures []ErrorView `yaml:"failures,omitempty"`
	}{Jobs: yw.jobs, Failures: yw.failures}
	if doc.Jobs == nil {
		doc.Jobs = []JobView{}
	}

	enc := yaml.NewEncoder(yw.w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return &WriteError{Op: "encode_yaml", Err: err}
	}
	return enc.Close()
}
