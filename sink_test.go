package overlaysink

import (
	"errors"
	"testing"
	"time"

	"github.com/visiona/overlaysink/disp"
	"github.com/visiona/overlaysink/physmem"
	"github.com/visiona/overlaysink/transform"
	"github.com/visiona/overlaysink/video"
)

type fakeDisplay struct {
	records []disp.Record
	enables []bool

	rejectConfig bool
}

func (d *fakeDisplay) SetLayerConfig(rec disp.Record) error {
	if d.rejectConfig {
		return errors.New("layer busy")
	}
	d.records = append(d.records, rec)
	return nil
}

func (d *fakeDisplay) SetLayerEnable(layerID, channelID int, enabled bool) error {
	d.enables = append(d.enables, enabled)
	return nil
}

func (d *fakeDisplay) ScreenWidth() (int, error)  { return 1920, nil }
func (d *fakeDisplay) ScreenHeight() (int, error) { return 1080, nil }

// lastFrameRecord returns the most recently applied DE2 record.
func (d *fakeDisplay) lastFrameRecord(t *testing.T) *disp.DE2Record {
	t.Helper()
	if len(d.records) == 0 {
		t.Fatal("no records applied")
	}
	rec, ok := d.records[len(d.records)-1].(*disp.DE2Record)
	if !ok {
		t.Fatalf("record type = %T, want DE2", d.records[len(d.records)-1])
	}
	return rec
}

type fakeMemory struct {
	flushes    int
	translates int
	physBase   uint64
	physErr    error

	actualW int
	actualH int

	nextPhys uint64
}

func (m *fakeMemory) Alloc(size int) (*physmem.Buffer, error) {
	if m.nextPhys == 0 {
		m.nextPhys = 0x6000_0000
	}
	buf := &physmem.Buffer{Data: make([]byte, size), Phys: m.nextPhys}
	m.nextPhys += uint64(size)
	return buf, nil
}

func (m *fakeMemory) Free(buf *physmem.Buffer) error { return nil }

func (m *fakeMemory) FlushCache(data []byte) error {
	m.flushes++
	return nil
}

func (m *fakeMemory) PhysAddr(data []byte) (uint64, error) {
	m.translates++
	if m.physErr != nil {
		return 0, m.physErr
	}
	if m.physBase == 0 {
		m.physBase = 0x4000_0000
	}
	return m.physBase, nil
}

func (m *fakeMemory) ActualSize() (int, int, error) {
	return m.actualW, m.actualH, nil
}

type fakeTransform struct {
	requestErr error
	released   bool
	commits    int
}

func (t *fakeTransform) RequestChannel() error            { return t.requestErr }
func (t *fakeTransform) SetTimeout(d time.Duration) error { return nil }
func (t *fakeTransform) Commit(job transform.Job) error   { t.commits++; return nil }
func (t *fakeTransform) Query() (transform.Status, error) { return transform.StatusComplete, nil }
func (t *fakeTransform) Release() error                   { t.released = true; return nil }

func newTestSink(t *testing.T, cfg Config) *Sink {
	t.Helper()
	if cfg.Display == nil {
		cfg.Display = &fakeDisplay{}
	}
	if cfg.Memory == nil {
		cfg.Memory = &fakeMemory{}
	}
	sink, err := New(cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return sink
}

func testFrame(seq uint64, neg *video.Negotiation) Frame {
	return Frame{
		Seq:       seq,
		Timestamp: time.Now(),
		Format:    neg.Format,
		Width:     neg.Width,
		Height:    neg.Height,
		Data:      make([]byte, neg.Layout.Size),
		Dest:      video.Rect{W: 1920, H: 1080},
	}
}

func TestNewValidation(t *testing.T) {
	if _, err := New(Config{Memory: &fakeMemory{}}); err == nil {
		t.Error("New accepted a config without a display channel")
	}
	if _, err := New(Config{Display: &fakeDisplay{}}); err == nil {
		t.Error("New accepted a config without a memory adapter")
	}
	if _, err := New(Config{Display: &fakeDisplay{}, Memory: &fakeMemory{}, Rotation: transform.Mode(99)}); err == nil {
		t.Error("New accepted an invalid rotation mode")
	}
	if _, err := New(Config{Display: &fakeDisplay{}, Memory: &fakeMemory{}, Generation: disp.Generation(7)}); err == nil {
		t.Error("New accepted an unknown display generation")
	}
}

func TestLifecycleGuards(t *testing.T) {
	sink := newTestSink(t, Config{})

	if err := sink.Show(Frame{}); !errors.Is(err, ErrNotOpened) {
		t.Errorf("Show before Open = %v, want ErrNotOpened", err)
	}
	if err := sink.Prepare(video.FormatI420, 640, 480); !errors.Is(err, ErrNotOpened) {
		t.Errorf("Prepare before Open = %v, want ErrNotOpened", err)
	}

	if err := sink.Open(); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := sink.Show(Frame{}); !errors.Is(err, ErrNotNegotiated) {
		t.Errorf("Show before Prepare = %v, want ErrNotNegotiated", err)
	}

	if err := sink.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := sink.Show(Frame{}); !errors.Is(err, ErrNotOpened) {
		t.Errorf("Show after Close = %v, want ErrNotOpened", err)
	}
	// Close is idempotent.
	if err := sink.Close(); err != nil {
		t.Errorf("second Close = %v", err)
	}
}

func TestShowNonContiguousFrame(t *testing.T) {
	display := &fakeDisplay{}
	memory := &fakeMemory{physBase: 0x4800_0000}
	sink := newTestSink(t, Config{Display: display, Memory: memory})

	if err := sink.Open(); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := sink.Prepare(video.FormatI420, 1280, 720); err != nil {
		t.Fatalf("Prepare failed: %v", err)
	}

	neg, _ := video.Negotiate(video.FormatI420, 1280, 720)
	if err := sink.Show(testFrame(1, neg)); err != nil {
		t.Fatalf("Show failed: %v", err)
	}

	if memory.flushes != 1 {
		t.Errorf("cache flushes = %d, want 1", memory.flushes)
	}
	if memory.translates != 1 {
		t.Errorf("address translations = %d, want 1", memory.translates)
	}

	rec := display.lastFrameRecord(t)
	if rec.Addr[0] != 0x4800_0000 {
		t.Errorf("luma address = %#x, want translated base", rec.Addr[0])
	}
	if !rec.Enabled {
		t.Error("frame record not enabled")
	}

	stats := sink.Stats()
	if stats.FramesShown != 1 || stats.FramesFailed != 0 {
		t.Errorf("stats = %+v, want one shown frame", stats)
	}
	if !stats.LayerVisible {
		t.Error("layer not visible after first frame")
	}
}

func TestShowContiguousFrame(t *testing.T) {
	display := &fakeDisplay{}
	memory := &fakeMemory{actualW: 1280, actualH: 736}
	sink := newTestSink(t, Config{Display: display, Memory: memory})

	if err := sink.Open(); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := sink.Prepare(video.FormatI420, 1280, 720); err != nil {
		t.Fatalf("Prepare failed: %v", err)
	}

	neg, _ := video.Negotiate(video.FormatI420, 1280, 720)
	frame := testFrame(1, neg)
	frame.Data = nil
	frame.Phys = 0x5000_0000
	frame.Contiguous = true

	if err := sink.Show(frame); err != nil {
		t.Fatalf("Show failed: %v", err)
	}

	if memory.flushes != 0 || memory.translates != 0 {
		t.Errorf("contiguous frame touched cache/translation: flushes=%d translates=%d",
			memory.flushes, memory.translates)
	}

	rec := display.lastFrameRecord(t)
	if rec.Addr[0] != 0x5000_0000 {
		t.Errorf("luma address = %#x, want supplied physical address", rec.Addr[0])
	}
	// The decoder's true content size overrides the negotiated crop.
	if rec.Crop.Width != disp.FixedCoord(1280) || rec.Crop.Height != disp.FixedCoord(736) {
		t.Errorf("crop = %dx%d, want 1280x736", rec.Crop.Width>>32, rec.Crop.Height>>32)
	}
}

func TestShowContiguousFrameWithoutAddress(t *testing.T) {
	sink := newTestSink(t, Config{})
	if err := sink.Open(); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := sink.Prepare(video.FormatI420, 640, 480); err != nil {
		t.Fatalf("Prepare failed: %v", err)
	}

	neg, _ := video.Negotiate(video.FormatI420, 640, 480)
	frame := testFrame(1, neg)
	frame.Contiguous = true
	frame.Phys = 0

	if err := sink.Show(frame); err == nil {
		t.Error("Show accepted a contiguous frame without a physical address")
	}
	if got := sink.Stats().FramesFailed; got != 1 {
		t.Errorf("FramesFailed = %d, want 1", got)
	}
}

func TestShowFormatMismatch(t *testing.T) {
	sink := newTestSink(t, Config{})
	if err := sink.Open(); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := sink.Prepare(video.FormatI420, 1280, 720); err != nil {
		t.Fatalf("Prepare failed: %v", err)
	}

	neg, _ := video.Negotiate(video.FormatNV12, 1280, 720)
	if err := sink.Show(testFrame(1, neg)); !errors.Is(err, ErrFormatMismatch) {
		t.Errorf("Show with wrong format = %v, want ErrFormatMismatch", err)
	}

	negSmall, _ := video.Negotiate(video.FormatI420, 640, 480)
	if err := sink.Show(testFrame(2, negSmall)); !errors.Is(err, ErrFormatMismatch) {
		t.Errorf("Show with wrong dimensions = %v, want ErrFormatMismatch", err)
	}
}

func TestTranslationFailureIsFrameLocal(t *testing.T) {
	memory := &fakeMemory{physErr: errors.New("unmapped")}
	sink := newTestSink(t, Config{Memory: memory})
	if err := sink.Open(); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := sink.Prepare(video.FormatI420, 640, 480); err != nil {
		t.Fatalf("Prepare failed: %v", err)
	}

	neg, _ := video.Negotiate(video.FormatI420, 640, 480)
	if err := sink.Show(testFrame(1, neg)); err == nil {
		t.Fatal("Show succeeded with failing address translation")
	}

	// Recovery: the next frame goes through once translation works again.
	memory.physErr = nil
	if err := sink.Show(testFrame(2, neg)); err != nil {
		t.Fatalf("Show after recovery failed: %v", err)
	}

	stats := sink.Stats()
	if stats.FramesShown != 1 || stats.FramesFailed != 1 {
		t.Errorf("stats = shown %d / failed %d, want 1 / 1", stats.FramesShown, stats.FramesFailed)
	}
}

func TestOverlayUnavailableFallback(t *testing.T) {
	display := &fakeDisplay{rejectConfig: true}
	sink := newTestSink(t, Config{Display: display})

	// Failed reservation must not fail Open.
	if err := sink.Open(); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if sink.OverlayAvailable() {
		t.Error("overlay reported available after rejected reservation")
	}

	if err := sink.Prepare(video.FormatI420, 640, 480); err != nil {
		t.Fatalf("Prepare failed: %v", err)
	}
	neg, _ := video.Negotiate(video.FormatI420, 640, 480)
	if err := sink.Show(testFrame(1, neg)); !errors.Is(err, ErrOverlayUnavailable) {
		t.Errorf("Show = %v, want ErrOverlayUnavailable", err)
	}
}

func TestPrepareHidesVisibleLayer(t *testing.T) {
	display := &fakeDisplay{}
	sink := newTestSink(t, Config{Display: display})
	if err := sink.Open(); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := sink.Prepare(video.FormatI420, 1280, 720); err != nil {
		t.Fatalf("Prepare failed: %v", err)
	}

	neg, _ := video.Negotiate(video.FormatI420, 1280, 720)
	if err := sink.Show(testFrame(1, neg)); err != nil {
		t.Fatalf("Show failed: %v", err)
	}
	if !sink.Stats().LayerVisible {
		t.Fatal("layer not visible after frame")
	}

	// A format change must hide the stale configuration.
	if err := sink.Prepare(video.FormatNV12, 640, 480); err != nil {
		t.Fatalf("second Prepare failed: %v", err)
	}
	if sink.Stats().LayerVisible {
		t.Error("layer still visible across format change")
	}
	last := display.enables[len(display.enables)-1]
	if last != false {
		t.Errorf("last enable call = %v, want disable", last)
	}
}

func TestRotationEndToEnd(t *testing.T) {
	display := &fakeDisplay{}
	tr := &fakeTransform{}
	sink := newTestSink(t, Config{
		Display:   display,
		Transform: tr,
		Rotation:  transform.ModeRotate90,
	})

	if err := sink.Open(); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := sink.Prepare(video.FormatI420, 1280, 720); err != nil {
		t.Fatalf("Prepare failed: %v", err)
	}

	neg, _ := video.Negotiate(video.FormatI420, 1280, 720)
	if err := sink.Show(testFrame(1, neg)); err != nil {
		t.Fatalf("Show failed: %v", err)
	}

	if tr.commits != 1 {
		t.Errorf("transform commits = %d, want 1", tr.commits)
	}

	rec := display.lastFrameRecord(t)
	// 90 degrees: the displayed crop is transposed.
	if rec.Crop.Width != disp.FixedCoord(720) || rec.Crop.Height != disp.FixedCoord(1280) {
		t.Errorf("crop = %dx%d, want transposed 720x1280", rec.Crop.Width>>32, rec.Crop.Height>>32)
	}

	stats := sink.Stats()
	if stats.FramesRotated != 1 {
		t.Errorf("FramesRotated = %d, want 1", stats.FramesRotated)
	}
	if stats.RotationBackend != "transform" {
		t.Errorf("RotationBackend = %q, want transform", stats.RotationBackend)
	}

	if err := sink.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if !tr.released {
		t.Error("transform channel not released on Close")
	}
}

func TestRotationSkippedForIncapableFormat(t *testing.T) {
	display := &fakeDisplay{}
	tr := &fakeTransform{}
	sink := newTestSink(t, Config{
		Display:   display,
		Transform: tr,
		Rotation:  transform.ModeRotate90,
	})

	if err := sink.Open(); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := sink.Prepare(video.FormatBGRx, 640, 480); err != nil {
		t.Fatalf("Prepare failed: %v", err)
	}

	neg, _ := video.Negotiate(video.FormatBGRx, 640, 480)
	if err := sink.Show(testFrame(1, neg)); err != nil {
		t.Fatalf("Show failed: %v", err)
	}

	if tr.commits != 0 {
		t.Errorf("transform commits = %d, want 0 for packed format", tr.commits)
	}
	rec := display.lastFrameRecord(t)
	if rec.Crop.Width != disp.FixedCoord(640) {
		t.Error("crop transposed for a frame that was never rotated")
	}
	if sink.Stats().FramesRotated != 0 {
		t.Error("rotation counter advanced for a skipped frame")
	}
}

func TestRotationWithoutDevice(t *testing.T) {
	tr := &fakeTransform{requestErr: errors.New("no device")}
	sink := newTestSink(t, Config{
		Transform: tr,
		Rotation:  transform.ModeRotate90,
	})

	if err := sink.Open(); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := sink.Prepare(video.FormatI420, 640, 480); err != nil {
		t.Fatalf("Prepare failed: %v", err)
	}
	if got := sink.Stats().RotationBackend; got != "none" {
		t.Errorf("RotationBackend = %q, want none", got)
	}

	// A rotation-capable frame now fails: rotation was requested but no
	// backend exists.
	neg, _ := video.Negotiate(video.FormatI420, 640, 480)
	if err := sink.Show(testFrame(1, neg)); err == nil {
		t.Error("Show succeeded with rotation configured and no backend")
	}
}
