// Package progress provides terminal progress indicators for long-running
// backup and restore operations.
package progress

import (
	"fmt"
	"io"
	"time"

	"github.com/cheggaaa/pb/v3"
)

// Reader wraps an io.Reader with a byte progress bar.
type Reader struct {
	reader io.Reader
	bar    *pb.ProgressBar
}

// NewReader creates a progress reader for a stream of known size.
func NewReader(r io.Reader, size int64, description string) *Reader {
	bar := newBar(size, description)

	return &Reader{
		reader: bar.NewProxyReader(r),
		bar:    bar,
	}
}

// Read implements io.Reader
func (pr *Reader) Read(p []byte) (n int, err error) {
	return pr.reader.Read(p)
}

// Close finishes the progress bar
func (pr *Reader) Close() error {
	pr.bar.Finish()
	return nil
}

// Writer wraps an io.Writer with a byte progress bar.
type Writer struct {
	writer io.Writer
	bar    *pb.ProgressBar
}

// NewWriter creates a progress writer for a stream of known size.
func NewWriter(w io.Writer, size int64, description string) *Writer {
	bar := newBar(size, description)

	return &Writer{
		writer: bar.NewProxyWriter(w),
		bar:    bar,
	}
}

// Write implements io.Writer
func (pw *Writer) Write(p []byte) (n int, err error) {
	return pw.writer.Write(p)
}

// Close finishes the progress bar
func (pw *Writer) Close() error {
	pw.bar.Finish()
	return nil
}

func newBar(size int64, description string) *pb.ProgressBar {
	tmpl := fmt.Sprintf(`{{ "%s" }} {{ bar . "[" "=" ">" " " "]"}} {{speed . }} {{percent . }} {{rtime . " ETA"}}`, description)

	bar := pb.New64(size)
	bar.Set(pb.SIBytesPrefix, true)
	bar.SetTemplateString(tmpl)
	bar.SetRefreshRate(100 * time.Millisecond)
	bar.Start()

	return bar
}

// Spinner shows activity for operations without a known size, such as an
// integrity check on a large database.
type Spinner struct {
	bar *pb.ProgressBar
}

// NewSpinner starts an indeterminate spinner.
func NewSpinner(description string) *Spinner {
	tmpl := fmt.Sprintf(`{{ "%s" }} {{ cycle . "⠋" "⠙" "⠹" "⠸" "⠼" "⠴" "⠦" "⠧" "⠇" "⠏" }}`, description)

	spinner := pb.New(0)
	spinner.SetTemplateString(tmpl)
	spinner.SetRefreshRate(100 * time.Millisecond)
	spinner.Start()

	return &Spinner{bar: spinner}
}

// Stop stops the spinner
func (s *Spinner) Stop() {
	s.bar.Finish()
}
