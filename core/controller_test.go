package playback

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/koscakluka/cognitive-os/core/events"
)

type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(call string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, call)
}

func (l *callLog) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

type fakeScripts struct {
	log    *callLog
	script string
	err    error
	// release blocks GenerateScript until closed when set.
	release chan struct{}
	started chan struct{}
}

func (f *fakeScripts) GenerateScript(_ context.Context, title, _ string) (string, error) {
	if f.log != nil {
		f.log.add("script:start")
	}
	if f.started != nil {
		close(f.started)
	}
	if f.release != nil {
		<-f.release
	}
	if f.log != nil {
		f.log.add("script:end")
	}
	if f.err != nil {
		return "", f.err
	}
	if f.script != "" {
		return f.script, nil
	}
	return "Narration for " + title, nil
}

type fakeVoices struct {
	log      *callLog
	duration float64
	err      error
}

func (f *fakeVoices) GenerateAudio(_ context.Context, script string) (SynthesizedAudio, error) {
	if f.log != nil {
		f.log.add("audio:start")
	}
	if f.err != nil {
		return SynthesizedAudio{}, f.err
	}
	return SynthesizedAudio{PlayableURL: "mem://" + script, DurationSeconds: f.duration}, nil
}

type fakeDevice struct {
	mu       sync.Mutex
	duration float64
	position float64
	loadErr  error
	playErr  error

	loads    []string
	plays    int
	pauses   int
	releases int
	rates    []float64

	onEnded func()
	onError func(error)
}

func (d *fakeDevice) Load(_ context.Context, url string) (float64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.loadErr != nil {
		return 0, d.loadErr
	}
	d.loads = append(d.loads, url)
	d.position = 0
	return d.duration, nil
}

func (d *fakeDevice) Play() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.plays++
	return d.playErr
}

func (d *fakeDevice) Pause() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pauses++
	return nil
}

func (d *fakeDevice) Seek(seconds float64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.position = seconds
	return nil
}

func (d *fakeDevice) SetRate(rate float64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.rates = append(d.rates, rate)
	return nil
}

func (d *fakeDevice) Position() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.position
}

func (d *fakeDevice) Release() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.releases++
	return nil
}

func (d *fakeDevice) SetCallbacks(onEnded func(), onError func(error)) {
	d.onEnded = onEnded
	d.onError = onError
}

func (d *fakeDevice) setPosition(seconds float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.position = seconds
}

type progressCall struct {
	id      string
	percent int
}

type fakeProgress struct {
	mu    sync.Mutex
	calls []progressCall
}

func (f *fakeProgress) UpdateProgress(_ context.Context, id string, percent int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, progressCall{id: id, percent: percent})
	return nil
}

type staticConnectivity bool

func (s staticConnectivity) IsOnline(context.Context) bool { return bool(s) }

type trackedEvent struct {
	name    events.Name
	payload events.Payload
}

type recordingTracker struct {
	mu     sync.Mutex
	events []trackedEvent
}

func (r *recordingTracker) Track(name events.Name, payload events.Payload) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, trackedEvent{name: name, payload: payload})
	return nil
}

func (r *recordingTracker) named(name events.Name) []trackedEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []trackedEvent
	for _, event := range r.events {
		if event.name == name {
			out = append(out, event)
		}
	}
	return out
}

type harness struct {
	controller *Controller
	scripts    *fakeScripts
	voices     *fakeVoices
	device     *fakeDevice
	progress   *fakeProgress
	tracker    *recordingTracker
	log        *callLog

	statusMu sync.Mutex
	statuses []Status
}

func (h *harness) seenStatuses() []Status {
	h.statusMu.Lock()
	defer h.statusMu.Unlock()
	return append([]Status(nil), h.statuses...)
}

func newHarness(online bool, opts ...ControllerOption) *harness {
	log := &callLog{}
	h := &harness{
		scripts:  &fakeScripts{log: log},
		voices:   &fakeVoices{log: log, duration: 120},
		device:   &fakeDevice{duration: 120},
		progress: &fakeProgress{},
		tracker:  &recordingTracker{},
		log:      log,
	}

	opts = append([]ControllerOption{
		WithScriptGenerator(h.scripts),
		WithAudioGenerator(h.voices),
		WithDevice(h.device),
		WithProgressUpdater(h.progress),
		WithConnectivityChecker(staticConnectivity(online)),
		WithTracker(h.tracker),
		WithStatusCallback(func(status Status) {
			h.statusMu.Lock()
			defer h.statusMu.Unlock()
			h.statuses = append(h.statuses, status)
		}),
	}, opts...)
	h.controller = NewController(opts...)
	return h
}

var testItem = Item{ID: "module-1", Title: "Photosynthesis", RawText: "Plants turn light into sugar."}

func TestGenerateAndPlaySuccessSequence(t *testing.T) {
	h := newHarness(true)

	if err := h.controller.GenerateAndPlay(context.Background(), testItem); err != nil {
		t.Fatalf("generate and play: %v", err)
	}

	want := []Status{StatusGeneratingScript, StatusGeneratingAudio, StatusReady, StatusPlaying}
	got := h.seenStatuses()
	if len(got) != len(want) {
		t.Fatalf("expected statuses %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected statuses %v, got %v", want, got)
		}
	}

	plays := h.tracker.named(events.NameLessonPlay)
	if len(plays) != 1 {
		t.Fatalf("expected exactly one lesson_play, got %d", len(plays))
	}
	if plays[0].payload["module_id"] != testItem.ID {
		t.Fatalf("expected lesson_play for %s, got %v", testItem.ID, plays[0].payload)
	}

	session := h.controller.Snapshot()
	if session.Resource == nil || session.Resource.Duration != 120 {
		t.Fatalf("expected a loaded resource of 120s, got %+v", session.Resource)
	}
	if session.Resource.ScriptText != "Narration for Photosynthesis" {
		t.Fatalf("expected script to be kept on the resource, got %q", session.Resource.ScriptText)
	}
	if session.LastError != "" {
		t.Fatalf("expected no error, got %q", session.LastError)
	}
}

func TestGenerateAndPlayOfflineNeverCallsGenerators(t *testing.T) {
	h := newHarness(false)

	err := h.controller.GenerateAndPlay(context.Background(), testItem)
	var connErr ConnectivityError
	if !errors.As(err, &connErr) {
		t.Fatalf("expected connectivity error, got %v", err)
	}

	if calls := h.log.snapshot(); len(calls) != 0 {
		t.Fatalf("expected no generator calls while offline, got %v", calls)
	}

	session := h.controller.Snapshot()
	if session.Status != StatusError {
		t.Fatalf("expected error status, got %s", session.Status)
	}
	if session.LastError != ConnectivityMessage {
		t.Fatalf("expected connectivity message, got %q", session.LastError)
	}
	if fails := h.tracker.named(events.NameAudioGenFail); len(fails) != 1 {
		t.Fatalf("expected one audio_gen_fail, got %d", len(fails))
	}
}

func TestFailedRetryIsReportedAgain(t *testing.T) {
	h := newHarness(false)

	for range 2 {
		if err := h.controller.GenerateAndPlay(context.Background(), testItem); err == nil {
			t.Fatalf("expected offline generation to fail")
		}
	}

	got := h.seenStatuses()
	if len(got) != 2 || got[0] != StatusError || got[1] != StatusError {
		t.Fatalf("expected two error notifications, got %v", got)
	}
	if fails := h.tracker.named(events.NameAudioGenFail); len(fails) != 2 {
		t.Fatalf("expected one audio_gen_fail per attempt, got %d", len(fails))
	}
}

func TestScriptCompletesBeforeAudioStarts(t *testing.T) {
	h := newHarness(true)

	if err := h.controller.GenerateAndPlay(context.Background(), testItem); err != nil {
		t.Fatalf("generate and play: %v", err)
	}

	want := []string{"script:start", "script:end", "audio:start"}
	got := h.log.snapshot()
	if len(got) != len(want) {
		t.Fatalf("expected calls %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected calls %v, got %v", want, got)
		}
	}
}

func TestScriptFailureEndsInError(t *testing.T) {
	h := newHarness(true)
	h.scripts.err = errors.New("boom")

	err := h.controller.GenerateAndPlay(context.Background(), testItem)
	var genErr *GenerationError
	if !errors.As(err, &genErr) {
		t.Fatalf("expected generation error, got %v", err)
	}

	session := h.controller.Snapshot()
	if session.Status != StatusError {
		t.Fatalf("expected error status, got %s", session.Status)
	}
	if session.LastError == "" {
		t.Fatalf("expected a user facing error message")
	}

	fails := h.tracker.named(events.NameAudioGenFail)
	if len(fails) != 1 {
		t.Fatalf("expected exactly one audio_gen_fail, got %d", len(fails))
	}
	if fails[0].payload["error"] != "boom" {
		t.Fatalf("expected payload error boom, got %v", fails[0].payload["error"])
	}
	if calls := h.log.snapshot(); len(calls) != 2 {
		t.Fatalf("expected audio generation to be skipped, got %v", calls)
	}
}

func TestSynthesisFailureWithoutMessageUsesFallback(t *testing.T) {
	h := newHarness(true)
	h.voices.err = errors.New("")

	err := h.controller.GenerateAndPlay(context.Background(), testItem)
	var synthErr *SynthesisError
	if !errors.As(err, &synthErr) {
		t.Fatalf("expected synthesis error, got %v", err)
	}

	session := h.controller.Snapshot()
	if session.LastError != SynthesisFallbackMessage {
		t.Fatalf("expected fallback message, got %q", session.LastError)
	}
	fails := h.tracker.named(events.NameAudioGenFail)
	if len(fails) != 1 || fails[0].payload["error"] != SynthesisFallbackMessage {
		t.Fatalf("expected audio_gen_fail with fallback message, got %+v", fails)
	}
}

func TestRetryFromErrorClearsLastError(t *testing.T) {
	h := newHarness(true)
	h.scripts.err = errors.New("boom")
	_ = h.controller.GenerateAndPlay(context.Background(), testItem)

	h.scripts.err = nil
	if err := h.controller.GenerateAndPlay(context.Background(), testItem); err != nil {
		t.Fatalf("retry: %v", err)
	}

	session := h.controller.Snapshot()
	if session.Status != StatusPlaying {
		t.Fatalf("expected playing after retry, got %s", session.Status)
	}
	if session.LastError != "" {
		t.Fatalf("expected last error to be cleared, got %q", session.LastError)
	}
}

func TestGenerateWhileGeneratingIsRejected(t *testing.T) {
	h := newHarness(true)
	h.scripts.release = make(chan struct{})
	h.scripts.started = make(chan struct{})

	done := make(chan error, 1)
	go func() { done <- h.controller.GenerateAndPlay(context.Background(), testItem) }()
	<-h.scripts.started

	if err := h.controller.GenerateAndPlay(context.Background(), testItem); !errors.Is(err, ErrGenerationInFlight) {
		t.Fatalf("expected ErrGenerationInFlight, got %v", err)
	}
	if status := h.controller.Status(); status != StatusGeneratingScript {
		t.Fatalf("expected rejected call to leave status alone, got %s", status)
	}

	close(h.scripts.release)
	if err := <-done; err != nil {
		t.Fatalf("first generation: %v", err)
	}
}

func TestRegenerateReleasesPreviousResource(t *testing.T) {
	h := newHarness(true)
	_ = h.controller.GenerateAndPlay(context.Background(), testItem)

	next := Item{ID: "module-2", Title: "Mitosis", RawText: "Cells divide."}
	if err := h.controller.GenerateAndPlay(context.Background(), next); err != nil {
		t.Fatalf("second generation: %v", err)
	}

	if h.device.releases != 1 {
		t.Fatalf("expected previous resource to be released once, got %d", h.device.releases)
	}
	if len(h.device.loads) != 2 {
		t.Fatalf("expected two loads, got %d", len(h.device.loads))
	}
	if session := h.controller.Snapshot(); session.Item.ID != "module-2" {
		t.Fatalf("expected session to follow the new item, got %s", session.Item.ID)
	}
}

func TestSeekClampsIntoDuration(t *testing.T) {
	h := newHarness(true)
	_ = h.controller.GenerateAndPlay(context.Background(), testItem)

	if got := h.controller.Seek(-5); got != 0 {
		t.Fatalf("expected Seek(-5) to clamp to 0, got %v", got)
	}
	if got := h.controller.Seek(500); got != 120 {
		t.Fatalf("expected Seek(500) to clamp to 120, got %v", got)
	}
	if got := h.controller.Seek(42); got != 42 {
		t.Fatalf("expected Seek(42) to stay 42, got %v", got)
	}
	if got := h.device.Position(); got != 42 {
		t.Fatalf("expected device to follow the seek, got %v", got)
	}
}

func TestChangeSpeedCycles(t *testing.T) {
	h := newHarness(true)

	want := []float64{1.25, 1.5, 2.0, 1.0}
	for i, rate := range want {
		if got := h.controller.ChangeSpeed(); got != rate {
			t.Fatalf("change %d: expected %v, got %v", i+1, rate, got)
		}
	}
	if len(h.device.rates) != 4 || h.device.rates[3] != 1.0 {
		t.Fatalf("expected every rate to reach the device, got %v", h.device.rates)
	}
}

func TestPausePersistsProgressAndTracksPosition(t *testing.T) {
	h := newHarness(true)
	_ = h.controller.GenerateAndPlay(context.Background(), testItem)
	h.device.setPosition(30)

	if err := h.controller.Pause(); err != nil {
		t.Fatalf("pause: %v", err)
	}

	if status := h.controller.Status(); status != StatusPaused {
		t.Fatalf("expected paused, got %s", status)
	}
	if len(h.progress.calls) != 1 || h.progress.calls[0] != (progressCall{id: testItem.ID, percent: 25}) {
		t.Fatalf("expected progress 25 for %s, got %+v", testItem.ID, h.progress.calls)
	}

	pauses := h.tracker.named(events.NameLessonPause)
	if len(pauses) != 1 || pauses[0].payload["time"] != 30.0 {
		t.Fatalf("expected lesson_pause at 30s, got %+v", pauses)
	}

	if err := h.controller.Play(); err != nil {
		t.Fatalf("resume: %v", err)
	}
	if status := h.controller.Status(); status != StatusPlaying {
		t.Fatalf("expected playing after resume, got %s", status)
	}
}

func TestPlayWithoutResource(t *testing.T) {
	h := newHarness(true)
	if err := h.controller.Play(); !errors.Is(err, ErrNoResource) {
		t.Fatalf("expected ErrNoResource, got %v", err)
	}
}

func TestPauseOutsidePlaybackIsInvalid(t *testing.T) {
	h := newHarness(true)
	if err := h.controller.Pause(); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestEndOfResourceCompletesLesson(t *testing.T) {
	h := newHarness(true)
	_ = h.controller.GenerateAndPlay(context.Background(), testItem)

	h.device.onEnded()

	session := h.controller.Snapshot()
	if session.Status != StatusPaused {
		t.Fatalf("expected paused after the end, got %s", session.Status)
	}
	if session.Position != 120 {
		t.Fatalf("expected position at the end, got %v", session.Position)
	}
	if len(h.progress.calls) != 1 || h.progress.calls[0].percent != 100 {
		t.Fatalf("expected progress 100, got %+v", h.progress.calls)
	}
	if completes := h.tracker.named(events.NameLessonComplete); len(completes) != 1 {
		t.Fatalf("expected one lesson_complete, got %d", len(completes))
	}

	// a second notification for the same resource is ignored
	h.device.onEnded()
	if completes := h.tracker.named(events.NameLessonComplete); len(completes) != 1 {
		t.Fatalf("expected lesson_complete once, got %d", len(completes))
	}
}

func TestDeviceErrorEndsInError(t *testing.T) {
	h := newHarness(true)
	_ = h.controller.GenerateAndPlay(context.Background(), testItem)

	h.device.onError(errors.New("device unplugged"))

	session := h.controller.Snapshot()
	if session.Status != StatusError {
		t.Fatalf("expected error status, got %s", session.Status)
	}
	if session.LastError != "device unplugged" {
		t.Fatalf("expected device message, got %q", session.LastError)
	}
	if session.Resource != nil || h.device.releases != 1 {
		t.Fatalf("expected device to be released, releases=%d", h.device.releases)
	}
}

func TestDeviceDurationFallsBackToGenerator(t *testing.T) {
	h := newHarness(true)
	h.device.duration = 0
	h.voices.duration = 64

	_ = h.controller.GenerateAndPlay(context.Background(), testItem)
	if session := h.controller.Snapshot(); session.Resource.Duration != 64 {
		t.Fatalf("expected generator duration, got %v", session.Resource.Duration)
	}
}

func TestSnapshotIsDetached(t *testing.T) {
	h := newHarness(true)
	_ = h.controller.GenerateAndPlay(context.Background(), testItem)

	snapshot := h.controller.Snapshot()
	snapshot.Item.Title = "changed"
	snapshot.Resource.Duration = 1

	fresh := h.controller.Snapshot()
	if fresh.Item.Title != testItem.Title || fresh.Resource.Duration != 120 {
		t.Fatalf("expected snapshot changes not to leak, got %+v / %+v", fresh.Item, fresh.Resource)
	}
}

func TestRunsWithoutDevice(t *testing.T) {
	var device *fakeDevice
	h := newHarness(true, WithDevice(device))

	if err := h.controller.GenerateAndPlay(context.Background(), testItem); err != nil {
		t.Fatalf("generate and play: %v", err)
	}
	if got := h.controller.Seek(10); got != 10 {
		t.Fatalf("expected seek to work without a device, got %v", got)
	}
}

func TestCloseReleasesDevice(t *testing.T) {
	h := newHarness(true)
	_ = h.controller.GenerateAndPlay(context.Background(), testItem)

	h.controller.Close()
	if h.device.releases == 0 {
		t.Fatalf("expected close to release the device")
	}
	if err := h.controller.Play(); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed after close, got %v", err)
	}
	if err := h.controller.GenerateAndPlay(context.Background(), testItem); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed after close, got %v", err)
	}
}

func TestStatusCallbackRunsOutsideLock(t *testing.T) {
	var controller *Controller
	snapshots := make(chan Status, 8)
	controller = NewController(
		WithScriptGenerator(&fakeScripts{}),
		WithAudioGenerator(&fakeVoices{duration: 5}),
		WithStatusCallback(func(Status) {
			// would deadlock if called with the lock held
			snapshots <- controller.Snapshot().Status
		}),
	)

	done := make(chan struct{})
	go func() {
		_ = controller.GenerateAndPlay(context.Background(), testItem)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("status callback deadlocked the controller")
	}
}
