package core

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"sonoweb/internal/media"
	"sonoweb/internal/sonify"
	"sonoweb/internal/table"
)

func newTestService(t *testing.T) (*Service, media.Store) {
	t.Helper()

	store, err := media.NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFSStore() error = %v", err)
	}

	svc, err := NewService(store, nil, Options{
		MaxConcurrent: 2,
		Sound: SoundDefaults{
			SampleRate: 8000,
			TimeBase:   10 * time.Millisecond,
		},
	})
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	return svc, store
}

func TestService_Sonify_Completes(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	data := []byte("Time,Flux Density\n0,1.5\n1,2.5\n2,0.5\n")
	jobID, err := svc.StartSonification(ctx, SonifyRequest{
		FileName: "lightcurve.csv",
		Kind:     table.KindCSV,
		Data:     data,
	})
	if err != nil {
		t.Fatalf("StartSonification() error = %v", err)
	}

	result, err := svc.GetResult(jobID)
	if err != nil {
		t.Fatalf("GetResult() error = %v", err)
	}
	if result.Error != "" {
		t.Fatalf("job failed: %s", result.Error)
	}
	if result.RowCount != 3 || result.ColumnCount != 2 {
		t.Errorf("result shape = %dx%d, want 3x2", result.RowCount, result.ColumnCount)
	}
	if result.YColumn != "FluxDensity" {
		t.Errorf("YColumn = %q, want %q", result.YColumn, "FluxDensity")
	}
	if result.MediaID == "" {
		t.Fatal("result has no media ID")
	}

	audio, err := store.Get(ctx, result.MediaID)
	if err != nil {
		t.Fatalf("stored audio missing: %v", err)
	}
	if !bytes.HasPrefix(audio, []byte("RIFF")) {
		t.Errorf("stored media is not a WAV file: % x", audio[:8])
	}
}

func TestService_Sonify_ColumnSelection(t *testing.T) {
	svc, _ := newTestService(t)

	data := []byte("t,a,b\n0,1,10\n1,2,20\n")
	jobID, err := svc.StartSonification(context.Background(), SonifyRequest{
		FileName: "multi.csv",
		Kind:     table.KindCSV,
		Data:     data,
		YColumn:  "b",
	})
	if err != nil {
		t.Fatalf("StartSonification() error = %v", err)
	}

	result, err := svc.GetResult(jobID)
	if err != nil {
		t.Fatalf("GetResult() error = %v", err)
	}
	if result.YColumn != "b" {
		t.Errorf("YColumn = %q, want %q", result.YColumn, "b")
	}
}

func TestService_Sonify_UnknownKind(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.StartSonification(context.Background(), SonifyRequest{
		FileName: "data.xml",
		Kind:     table.Kind("xml"),
		Data:     []byte("a,b\n1,2\n"),
	})
	if !errors.Is(err, table.ErrUnknownKind) {
		t.Errorf("error = %v, want ErrUnknownKind", err)
	}

	// Rejected before a slot was taken.
	if got := svc.Limiter().ActiveCount(); got != 0 {
		t.Errorf("ActiveCount = %d, want 0", got)
	}
}

func TestService_Sonify_NoFile(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.StartSonification(context.Background(), SonifyRequest{
		FileName: "empty.csv",
		Kind:     table.KindCSV,
	})
	if !errors.Is(err, ErrNoFile) {
		t.Errorf("error = %v, want ErrNoFile", err)
	}
}

func TestService_Sonify_DelimiterMismatchFailsJob(t *testing.T) {
	svc, _ := newTestService(t)

	// One column under both comma and semicolon.
	data := []byte("value\n1\n2\n")
	jobID, err := svc.StartSonification(context.Background(), SonifyRequest{
		FileName: "narrow.csv",
		Kind:     table.KindCSV,
		Data:     data,
	})
	if err != nil {
		t.Fatalf("StartSonification() error = %v", err)
	}

	result, err := svc.GetResult(jobID)
	if err != nil {
		t.Fatalf("GetResult() error = %v", err)
	}
	if !strings.Contains(result.Error, "delimiter not recognized") {
		t.Errorf("result.Error = %q, want delimiter mismatch", result.Error)
	}

	progress, err := svc.GetProgress(jobID)
	if err != nil {
		t.Fatalf("GetProgress() error = %v", err)
	}
	if progress.Phase != PhaseFailed {
		t.Errorf("Phase = %s, want %s", progress.Phase, PhaseFailed)
	}
}

func TestService_Sonify_CacheHit(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	req := SonifyRequest{
		FileName: "repeat.csv",
		Kind:     table.KindCSV,
		Data:     []byte("a,b\n1,2\n3,4\n"),
		Waveform: sonify.WaveFlute,
	}

	first := mustComplete(t, svc, ctx, req)
	if first.Cached {
		t.Error("first render should not be cached")
	}

	second := mustComplete(t, svc, ctx, req)
	if !second.Cached {
		t.Error("second render should hit the cache")
	}
	if second.MediaID != first.MediaID {
		t.Errorf("cached MediaID = %q, want %q", second.MediaID, first.MediaID)
	}

	// A different waveform renders fresh audio.
	req.Waveform = sonify.WavePiano
	third := mustComplete(t, svc, ctx, req)
	if third.Cached {
		t.Error("changed parameters should miss the cache")
	}
	if third.MediaID == first.MediaID {
		t.Error("changed parameters reused the same media")
	}
}

func TestService_Sonify_CacheStaleEntry(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	req := SonifyRequest{
		FileName: "swept.csv",
		Kind:     table.KindCSV,
		Data:     []byte("a,b\n1,2\n3,4\n"),
	}

	first := mustComplete(t, svc, ctx, req)

	// The cleaner can remove the audio while the digest is still cached.
	if err := store.Delete(ctx, first.MediaID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	second := mustComplete(t, svc, ctx, req)
	if second.Cached {
		t.Error("cache hit after the media was removed")
	}
	if exists, err := store.Exists(ctx, second.MediaID); err != nil || !exists {
		t.Errorf("re-rendered media missing: exists=%v err=%v", exists, err)
	}
}

func mustComplete(t *testing.T, svc *Service, ctx context.Context, req SonifyRequest) *JobResult {
	t.Helper()
	jobID, err := svc.StartSonification(ctx, req)
	if err != nil {
		t.Fatalf("StartSonification() error = %v", err)
	}
	result, err := svc.GetResult(jobID)
	if err != nil {
		t.Fatalf("GetResult() error = %v", err)
	}
	if result.Error != "" {
		t.Fatalf("job failed: %s", result.Error)
	}
	return result
}

func TestService_SubscribeProgress(t *testing.T) {
	svc, _ := newTestService(t)

	jobID, err := svc.StartSonification(context.Background(), SonifyRequest{
		FileName: "progress.csv",
		Kind:     table.KindCSV,
		Data:     []byte("a,b\n1,2\n3,4\n5,6\n"),
	})
	if err != nil {
		t.Fatalf("StartSonification() error = %v", err)
	}

	ch, err := svc.SubscribeProgress(jobID)
	if err != nil {
		t.Fatalf("SubscribeProgress() error = %v", err)
	}

	var last JobProgress
	for p := range ch {
		last = p
	}
	if !last.Phase.Terminal() {
		t.Errorf("final phase = %s, want terminal", last.Phase)
	}
}

// Exercises the progress read paths while the job goroutine is writing.
// Run with -race to verify GetProgress and SubscribeProgress stay safe
// against concurrent phase and point updates.
func TestService_Progress_ConcurrentPolling(t *testing.T) {
	svc, _ := newTestService(t)

	// Enough rows that the synthesis loop spans several chunks while the
	// pollers run.
	var buf bytes.Buffer
	buf.WriteString("t,v\n")
	for i := 0; i < 4000; i++ {
		fmt.Fprintf(&buf, "%d,%d\n", i, i%37)
	}

	jobID, err := svc.StartSonification(context.Background(), SonifyRequest{
		FileName: "long.csv",
		Kind:     table.KindCSV,
		Data:     buf.Bytes(),
	})
	if err != nil {
		t.Fatalf("StartSonification() error = %v", err)
	}

	done := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
				}
				if _, err := svc.GetProgress(jobID); err != nil {
					return
				}
			}
		}()
	}

	ch, err := svc.SubscribeProgress(jobID)
	if err != nil {
		t.Fatalf("SubscribeProgress() error = %v", err)
	}
	var last JobProgress
	for p := range ch {
		last = p
	}
	close(done)
	wg.Wait()

	if !last.Phase.Terminal() {
		t.Errorf("final phase = %s, want terminal", last.Phase)
	}
	if last.Phase == PhaseFailed {
		t.Errorf("job failed: %s", last.Error)
	}
}

func TestService_UnknownJob(t *testing.T) {
	svc, _ := newTestService(t)

	if _, err := svc.GetResult("nope"); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("GetResult error = %v, want ErrJobNotFound", err)
	}
	if err := svc.CancelJob("nope"); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("CancelJob error = %v, want ErrJobNotFound", err)
	}
	if _, err := svc.SubscribeProgress("nope"); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("SubscribeProgress error = %v, want ErrJobNotFound", err)
	}
}

func TestService_Preview(t *testing.T) {
	svc, _ := newTestService(t)

	tbl, err := svc.Preview("preview.txt", table.KindText, []byte("Time\tFlux Density\n0\t1\n1\t2\n"))
	if err != nil {
		t.Fatalf("Preview() error = %v", err)
	}
	want := []string{"Time", "FluxDensity"}
	for i, label := range want {
		if tbl.Labels[i] != label {
			t.Errorf("Labels[%d] = %q, want %q", i, tbl.Labels[i], label)
		}
	}

	if _, err := svc.Preview("empty.csv", table.KindCSV, nil); !errors.Is(err, ErrNoFile) {
		t.Errorf("Preview(empty) error = %v, want ErrNoFile", err)
	}
}

func TestResolveColumn(t *testing.T) {
	tbl := &table.Table{
		Labels: []string{"Time", "Flux"},
		Rows:   [][]string{{"0", "1"}},
	}

	tests := []struct {
		name     string
		selector string
		def      int
		want     int
		wantErr  bool
	}{
		{"default x", "", 0, 0, false},
		{"default y", "", 1, 1, false},
		{"by label", "flux", 0, 1, false},
		{"by index", "1", 0, 1, false},
		{"missing label", "magnitude", 0, 0, true},
		{"index out of range", "7", 0, 0, true},
		{"default out of range", "", 5, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolveColumn(tbl, tt.selector, tt.def)
			if (err != nil) != tt.wantErr {
				t.Fatalf("resolveColumn() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && got != tt.want {
				t.Errorf("resolveColumn() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestJobProgress_Percent(t *testing.T) {
	tests := []struct {
		progress JobProgress
		want     int
	}{
		{JobProgress{Phase: PhaseComplete}, 100},
		{JobProgress{Phase: PhaseSynthesizing, TotalPoints: 200, CurrentPoint: 50}, 25},
		{JobProgress{Phase: PhaseImporting}, 0},
	}
	for _, tt := range tests {
		if got := tt.progress.Percent(); got != tt.want {
			t.Errorf("Percent(%+v) = %d, want %d", tt.progress, got, tt.want)
		}
	}
}
