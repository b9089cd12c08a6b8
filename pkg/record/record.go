// Package record writes control ticks to CSV and replays them as poses.
package record

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/Anil-CAI/vrteleop/pkg/control"
	"github.com/Anil-CAI/vrteleop/pkg/pose"
)

// Header is the CSV header row.
var Header = []string{
	"ts_ms",
	"l_qw", "l_qx", "l_qy", "l_qz", "l_px", "l_py", "l_pz",
	"r_qw", "r_qx", "r_qy", "r_qz", "r_px", "r_py", "r_pz",
	"grip",
	"raw_linear", "raw_angular",
	"smooth_linear", "smooth_angular",
	"sent_linear", "sent_angular",
	"clutch", "watchdog",
}

// Recorder appends one CSV row per tick.
type Recorder struct {
	mu     sync.Mutex
	file   *os.File
	writer *csv.Writer
}

// Create opens path for appending and writes the header if the file is new.
func Create(path string) (*Recorder, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create record dir: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("open record file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat record file: %w", err)
	}

	r := &Recorder{file: f, writer: csv.NewWriter(f)}
	if info.Size() == 0 {
		if err := r.writeHeader(); err != nil {
			f.Close()
			return nil, err
		}
	}
	return r, nil
}

// NewRecorder writes to w, starting with the header.
func NewRecorder(w io.Writer) (*Recorder, error) {
	r := &Recorder{writer: csv.NewWriter(w)}
	if err := r.writeHeader(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Recorder) writeHeader() error {
	if err := r.writer.Write(Header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	r.writer.Flush()
	return r.writer.Error()
}

// Record writes one tick.
func (r *Recorder) Record(left, right pose.ControllerPose, f control.Frame) error {
	row := make([]string, 0, len(Header))
	row = append(row, strconv.FormatInt(f.Time.UnixMilli(), 10))
	row = appendPose(row, left)
	row = appendPose(row, right)
	row = append(row,
		formatFloat(f.Grip),
		formatFloat(f.Raw.Linear), formatFloat(f.Raw.Angular),
		formatFloat(f.Smoothed.Linear), formatFloat(f.Smoothed.Angular),
		formatFloat(f.Sent.Linear), formatFloat(f.Sent.Angular),
		strconv.FormatBool(f.Clutch), strconv.FormatBool(f.Watchdog),
	)

	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.writer.Write(row); err != nil {
		return fmt.Errorf("write row: %w", err)
	}
	r.writer.Flush()
	return r.writer.Error()
}

// Close flushes and closes the file, if any.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writer.Flush()
	if r.file != nil {
		return r.file.Close()
	}
	return r.writer.Error()
}

func appendPose(row []string, p pose.ControllerPose) []string {
	q := p.Orientation
	return append(row,
		formatFloat(q.Real), formatFloat(q.Imag), formatFloat(q.Jmag), formatFloat(q.Kmag),
		formatFloat(p.Position.X), formatFloat(p.Position.Y), formatFloat(p.Position.Z),
	)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
