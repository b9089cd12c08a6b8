package record

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"

	"github.com/Anil-CAI/vrteleop/pkg/pose"
)

// ErrEmpty is returned when a recording has no ticks.
var ErrEmpty = errors.New("recording has no ticks")

// Sample is one recorded controller input.
type Sample struct {
	Offset time.Duration
	Left   pose.ControllerPose
	Right  pose.ControllerPose
	Grip   float64
}

// Replay plays recorded samples back in real time as a pose provider.
// Playback starts on the first poll. After the last sample the controllers
// report untracked unless Loop is set.
//
// Once Sync has been called, reads return the sample picked by the last
// Sync, so a tick never mixes two samples.
type Replay struct {
	samples []Sample
	loop    bool
	now     func() time.Time

	mu     sync.Mutex
	start  time.Time
	synced bool
	cur    Sample
	curOK  bool
}

// Open reads a recording written by Recorder.
func Open(path string, loop bool) (*Replay, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open recording: %w", err)
	}
	defer f.Close()
	return Read(f, loop)
}

// Read parses a recording from r.
func Read(r io.Reader, loop bool) (*Replay, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(Header)

	var samples []Sample
	var first int64
	for line := 1; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read recording: %w", err)
		}
		if rec[0] == Header[0] {
			continue // header, possibly repeated by appends
		}
		s, ts, err := parseSample(rec)
		if err != nil {
			return nil, fmt.Errorf("recording line %d: %w", line, err)
		}
		if len(samples) == 0 {
			first = ts
		}
		s.Offset = time.Duration(ts-first) * time.Millisecond
		samples = append(samples, s)
	}
	if len(samples) == 0 {
		return nil, ErrEmpty
	}
	sort.SliceStable(samples, func(i, j int) bool { return samples[i].Offset < samples[j].Offset })

	return &Replay{samples: samples, loop: loop, now: time.Now}, nil
}

// Samples returns the recorded samples.
func (r *Replay) Samples() []Sample {
	return r.samples
}

// Duration is the offset of the last sample.
func (r *Replay) Duration() time.Duration {
	return r.samples[len(r.samples)-1].Offset
}

// Sync implements pose.Syncer.
func (r *Replay) Sync() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cur, r.curOK = r.at(r.now())
	r.synced = true
}

// current returns the sample to play now.
func (r *Replay) current() (Sample, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.synced {
		return r.cur, r.curOK
	}
	return r.at(r.now())
}

// at returns the sample playing at now. r.mu must be held.
func (r *Replay) at(now time.Time) (Sample, bool) {
	if r.start.IsZero() {
		r.start = now
	}
	elapsed := now.Sub(r.start)

	if d := r.Duration(); elapsed > d {
		if !r.loop {
			return Sample{}, false
		}
		if d > 0 {
			elapsed %= d
		} else {
			elapsed = 0
		}
	}
	// Last sample with Offset <= elapsed.
	i := sort.Search(len(r.samples), func(i int) bool { return r.samples[i].Offset > elapsed })
	if i == 0 {
		return r.samples[0], true
	}
	return r.samples[i-1], true
}

// Pose implements pose.Provider.
func (r *Replay) Pose(h pose.Hand) (pose.ControllerPose, bool) {
	s, ok := r.current()
	if !ok {
		return pose.ControllerPose{}, false
	}
	if h == pose.Left {
		return s.Left, true
	}
	return s.Right, true
}

// InputSources implements pose.InputSources.
func (r *Replay) InputSources() []pose.InputSource {
	s, ok := r.current()
	if !ok {
		return nil
	}
	return []pose.InputSource{
		{Handedness: pose.Left, Buttons: []float64{0, 0}},
		{Handedness: pose.Right, Buttons: []float64{0, s.Grip}},
	}
}

func parseSample(rec []string) (Sample, int64, error) {
	ts, err := strconv.ParseInt(rec[0], 10, 64)
	if err != nil {
		return Sample{}, 0, fmt.Errorf("parse ts_ms: %w", err)
	}
	vals := make([]float64, 15)
	for i := range vals {
		v, err := strconv.ParseFloat(rec[i+1], 64)
		if err != nil {
			return Sample{}, 0, fmt.Errorf("parse %s: %w", Header[i+1], err)
		}
		vals[i] = v
	}
	return Sample{
		Left:  poseFrom(vals[0:7]),
		Right: poseFrom(vals[7:14]),
		Grip:  vals[14],
	}, ts, nil
}

func poseFrom(v []float64) pose.ControllerPose {
	return pose.ControllerPose{
		Orientation: quat.Number{Real: v[0], Imag: v[1], Jmag: v[2], Kmag: v[3]},
		Position:    r3.Vector{X: v[4], Y: v[5], Z: v[6]},
	}
}
