package record

import (
	"bytes"
	"math"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang/geo/r3"

	"github.com/Anil-CAI/vrteleop/pkg/control"
	"github.com/Anil-CAI/vrteleop/pkg/pose"
)

func testPose(yaw, pitch float64) pose.ControllerPose {
	return pose.ControllerPose{
		Orientation: pose.FromEulerYXZ(pose.Euler{X: pitch, Y: yaw}),
		Position:    r3.Vector{X: 0.1, Y: 1.2, Z: -0.3},
	}
}

func writeTicks(t *testing.T, rec *Recorder, start time.Time, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		f := control.Frame{
			Time:   start.Add(time.Duration(i) * 100 * time.Millisecond),
			Grip:   float64(i%2) * 0.9,
			Clutch: i%2 == 1,
			Raw:    control.Command{Linear: 0.1 * float64(i), Angular: -0.2},
		}
		if err := rec.Record(testPose(0.1*float64(i), -0.05*float64(i)), testPose(0, 0), f); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}
}

func TestRecordReplay_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	rec, err := NewRecorder(&buf)
	if err != nil {
		t.Fatalf("NewRecorder: %v", err)
	}
	start := time.UnixMilli(1_700_000_000_000)
	writeTicks(t, rec, start, 5)
	if err := rec.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if !strings.HasPrefix(buf.String(), "ts_ms,l_qw") {
		t.Fatalf("missing header: %q", buf.String()[:20])
	}

	replay, err := Read(&buf, false)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	samples := replay.Samples()
	if len(samples) != 5 {
		t.Fatalf("got %d samples, want 5", len(samples))
	}
	if replay.Duration() != 400*time.Millisecond {
		t.Errorf("duration = %v, want 400ms", replay.Duration())
	}

	yaw := pose.EulerYXZ(samples[3].Left.Orientation).Y
	if math.Abs(yaw-0.3) > 1e-12 {
		t.Errorf("sample 3 yaw = %f, want 0.3", yaw)
	}
	if samples[3].Grip != 0.9 {
		t.Errorf("sample 3 grip = %f, want 0.9", samples[3].Grip)
	}
	if samples[0].Left.Position != (r3.Vector{X: 0.1, Y: 1.2, Z: -0.3}) {
		t.Errorf("position = %v", samples[0].Left.Position)
	}
}

func TestReplay_Playback(t *testing.T) {
	var buf bytes.Buffer
	rec, _ := NewRecorder(&buf)
	writeTicks(t, rec, time.UnixMilli(0), 3) // offsets 0, 100, 200ms
	rec.Close()

	replay, err := Read(&buf, false)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	clock := time.Unix(50, 0)
	replay.now = func() time.Time { return clock }

	yawAt := func() float64 {
		p, ok := replay.Pose(pose.Left)
		if !ok {
			t.Fatal("unexpected end of replay")
		}
		return pose.EulerYXZ(p.Orientation).Y
	}

	if y := yawAt(); math.Abs(y) > 1e-12 {
		t.Errorf("t=0 yaw = %f, want 0", y)
	}
	clock = clock.Add(150 * time.Millisecond)
	if y := yawAt(); math.Abs(y-0.1) > 1e-12 {
		t.Errorf("t=150ms yaw = %f, want 0.1", y)
	}
	if grip := control.GripValue(replay.InputSources(), 1); grip != 0.9 {
		t.Errorf("t=150ms grip = %f, want 0.9", grip)
	}

	clock = clock.Add(time.Second)
	if _, ok := replay.Pose(pose.Right); ok {
		t.Error("replay past the end should report untracked")
	}
	if srcs := replay.InputSources(); srcs != nil {
		t.Error("replay past the end should have no input sources")
	}
}

func TestReplay_Loop(t *testing.T) {
	var buf bytes.Buffer
	rec, _ := NewRecorder(&buf)
	writeTicks(t, rec, time.UnixMilli(0), 3)
	rec.Close()

	replay, _ := Read(&buf, true)
	clock := time.Unix(50, 0)
	replay.now = func() time.Time { return clock }
	replay.Pose(pose.Left)

	clock = clock.Add(350 * time.Millisecond) // 350 % 200 = 150ms
	p, ok := replay.Pose(pose.Left)
	if !ok {
		t.Fatal("looping replay should not end")
	}
	if y := pose.EulerYXZ(p.Orientation).Y; math.Abs(y-0.1) > 1e-12 {
		t.Errorf("looped yaw = %f, want 0.1", y)
	}
}

// frameReplay records three ticks 14ms apart whose left yaw, right pitch
// and grip all differ, so a mixed read is detectable.
func frameReplay(t *testing.T, loop bool) (*Replay, *time.Time) {
	t.Helper()
	var buf bytes.Buffer
	rec, _ := NewRecorder(&buf)
	for i, grip := range []float64{0.9, 0, 0.5} {
		k := float64(i + 1)
		f := control.Frame{Time: time.UnixMilli(int64(i) * 14), Grip: grip}
		if err := rec.Record(testPose(0.1*k, 0), testPose(0, -0.1*k), f); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}
	rec.Close()

	replay, err := Read(&buf, loop)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	clock := time.Unix(50, 0)
	replay.now = func() time.Time { return clock }
	return replay, &clock
}

func TestReplay_SyncPinsOneSamplePerTick(t *testing.T) {
	replay, clock := frameReplay(t, false)
	start := *clock
	replay.Sync()

	*clock = start.Add(13 * time.Millisecond)
	replay.Sync()
	left, _ := replay.Pose(pose.Left)

	// The clock crosses the 14ms sample between the two polls of one tick.
	*clock = start.Add(15 * time.Millisecond)
	right, _ := replay.Pose(pose.Right)
	grip := control.GripValue(replay.InputSources(), 1)

	if y := pose.EulerYXZ(left.Orientation).Y; math.Abs(y-0.1) > 1e-12 {
		t.Errorf("left yaw = %f, want 0.1", y)
	}
	if p := pose.EulerYXZ(right.Orientation).X; math.Abs(p+0.1) > 1e-12 {
		t.Errorf("right pitch = %f, want -0.1 from the same sample as left", p)
	}
	if grip != 0.9 {
		t.Errorf("grip = %f, want 0.9 from the same sample as left", grip)
	}

	replay.Sync()
	right, _ = replay.Pose(pose.Right)
	if p := pose.EulerYXZ(right.Orientation).X; math.Abs(p+0.2) > 1e-12 {
		t.Errorf("after next sync right pitch = %f, want -0.2", p)
	}
}

func TestReplay_SyncAtEnd(t *testing.T) {
	replay, clock := frameReplay(t, false)
	start := *clock
	replay.Sync()

	*clock = start.Add(28 * time.Millisecond)
	replay.Sync()
	_, okL := replay.Pose(pose.Left)
	*clock = start.Add(29 * time.Millisecond)
	_, okR := replay.Pose(pose.Right)
	if !okL || !okR {
		t.Fatalf("tick at the last sample: tracked left=%v right=%v, want both", okL, okR)
	}
	if replay.InputSources() == nil {
		t.Error("tick at the last sample lost its input sources")
	}

	replay.Sync()
	_, okL = replay.Pose(pose.Left)
	_, okR = replay.Pose(pose.Right)
	if okL || okR {
		t.Errorf("tick past the end: tracked left=%v right=%v, want neither", okL, okR)
	}
}

func TestCreate_AppendsWithSingleHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs", "drive.csv")
	for i := 0; i < 2; i++ {
		rec, err := Create(path)
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		writeTicks(t, rec, time.UnixMilli(int64(i)*1000), 2)
		if err := rec.Close(); err != nil {
			t.Fatalf("Close: %v", err)
		}
	}

	replay, err := Open(path, false)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if n := len(replay.Samples()); n != 4 {
		t.Errorf("got %d samples, want 4", n)
	}
}

func TestRead_Errors(t *testing.T) {
	if _, err := Read(strings.NewReader(strings.Join(Header, ",")+"\n"), false); err != ErrEmpty {
		t.Errorf("header only: err = %v, want ErrEmpty", err)
	}
	if _, err := Read(strings.NewReader("1,2,3\n"), false); err == nil {
		t.Error("short row should fail")
	}
	bad := "x" + strings.Repeat(",0", len(Header)-1) + "\n"
	if _, err := Read(strings.NewReader(bad), false); err == nil {
		t.Error("bad timestamp should fail")
	}
}
