package core

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"sonoweb/internal/history"
	"sonoweb/internal/media"
	"sonoweb/internal/sonify"
	"sonoweb/internal/table"
)

// DefaultJobTimeout is the maximum duration for a sonification job.
const DefaultJobTimeout = 5 * time.Minute

// DefaultCacheSize is the number of rendered results remembered by the
// render cache.
const DefaultCacheSize = 256

// jobRetention is how long finished jobs stay queryable before being
// dropped from tracking.
const jobRetention = 5 * time.Minute

// SoundDefaults holds the synthesis parameters shared by all jobs.
// Requests can still override waveform, mapping and scaling.
type SoundDefaults struct {
	SampleRate int
	TimeBase   time.Duration
	MinFreq    float64
	FreqSpan   float64
	FixedFreq  float64
	Volume     float64
	Waveform   sonify.Waveform
}

// Options configures a Service. Zero values get conservative defaults.
type Options struct {
	MaxConcurrent int           // Parallel job limit
	MaxWait       time.Duration // How long to wait for a job slot
	JobTimeout    time.Duration // Deadline for a single job
	CacheSize     int           // Render cache entries
	Sound         SoundDefaults
}

// Service runs sonification jobs: import the uploaded table, map the
// selected column to sound, and store the rendered audio.
type Service struct {
	store      media.Store
	history    *history.Store // nil when no database is configured
	limiter    *JobLimiter
	jobTimeout time.Duration
	sound      SoundDefaults

	// cache maps a digest of (file content, parameters) to the media ID
	// of an already rendered result.
	cache *lru.Cache[string, string]

	mu   sync.RWMutex
	jobs map[string]*activeJob
}

type activeJob struct {
	ID       string
	FileName string
	Cancel   context.CancelFunc
	Result   *JobResult
	Done     chan struct{}

	// ListenerMu guards Progress and Listeners. The job goroutine writes
	// progress while the HTTP handlers read it, so every access goes
	// through setProgress/snapshot.
	ListenerMu sync.Mutex
	Progress   JobProgress
	Listeners  []chan JobProgress
}

// setProgress applies mutate under the listener lock and fans the new
// snapshot out to all listeners. Slow listeners miss updates rather than
// blocking the job.
func (job *activeJob) setProgress(mutate func(*JobProgress)) {
	job.ListenerMu.Lock()
	defer job.ListenerMu.Unlock()

	mutate(&job.Progress)
	for _, ch := range job.Listeners {
		select {
		case ch <- job.Progress:
		default:
		}
	}
}

// snapshot returns a copy of the current progress.
func (job *activeJob) snapshot() JobProgress {
	job.ListenerMu.Lock()
	defer job.ListenerMu.Unlock()
	return job.Progress
}

// NewService creates a Service on the given media store. hist may be nil
// to run without history.
func NewService(store media.Store, hist *history.Store, opts Options) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("media store is required")
	}
	if opts.JobTimeout <= 0 {
		opts.JobTimeout = DefaultJobTimeout
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = DefaultCacheSize
	}
	if opts.Sound.SampleRate <= 0 {
		opts.Sound.SampleRate = sonify.DefaultSampleRate
	}
	if opts.Sound.TimeBase <= 0 {
		opts.Sound.TimeBase = time.Duration(sonify.DefaultTimeBase * float64(time.Second))
	}
	if opts.Sound.MinFreq <= 0 {
		opts.Sound.MinFreq = sonify.DefaultMinFreq
	}
	if opts.Sound.FreqSpan <= 0 {
		opts.Sound.FreqSpan = sonify.DefaultMaxFreq
	}
	if opts.Sound.FixedFreq <= 0 {
		opts.Sound.FixedFreq = sonify.DefaultFixedFreq
	}
	if opts.Sound.Volume <= 0 {
		opts.Sound.Volume = sonify.DefaultVolume
	}
	if opts.Sound.Waveform == "" {
		opts.Sound.Waveform = sonify.WaveSine
	}

	cache, err := lru.New[string, string](opts.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("init render cache: %w", err)
	}

	return &Service{
		store:      store,
		history:    hist,
		limiter:    NewJobLimiter(opts.MaxConcurrent, opts.MaxWait),
		jobTimeout: opts.JobTimeout,
		sound:      opts.Sound,
		cache:      cache,
		jobs:       make(map[string]*activeJob),
	}, nil
}

// Limiter exposes the job limiter for monitoring and shutdown draining.
func (s *Service) Limiter() *JobLimiter {
	return s.limiter
}

// History returns the history store, or nil when disabled.
func (s *Service) History() *history.Store {
	return s.history
}

// Preview imports the uploaded data and returns the normalized table
// without starting a job. Used by the import endpoint so users can check
// labels and values before sonifying.
func (s *Service) Preview(fileName string, kind table.Kind, data []byte) (*table.Table, error) {
	if len(data) == 0 {
		return nil, ErrNoFile
	}
	return table.ImportReader(bytes.NewReader(data), fileName, kind)
}

// StartSonification begins an asynchronous sonification job.
// Returns the job ID immediately. Use SubscribeProgress to get updates.
//
// Returns ErrTooManyJobs if the concurrent job limit is reached and no
// slot becomes available within the wait period.
func (s *Service) StartSonification(ctx context.Context, req SonifyRequest) (string, error) {
	if len(req.Data) == 0 {
		return "", ErrNoFile
	}
	if req.Kind != table.KindText && req.Kind != table.KindCSV {
		return "", fmt.Errorf("%w: %q", table.ErrUnknownKind, req.Kind)
	}

	// Acquire a job slot (blocks until available or timeout).
	if err := s.limiter.Acquire(ctx); err != nil {
		return "", err
	}

	jobID := uuid.New().String()

	// The job outlives the request, so it runs on its own deadline.
	jobCtx, cancel := context.WithTimeout(context.Background(), s.jobTimeout)

	job := &activeJob{
		ID:       jobID,
		FileName: req.FileName,
		Cancel:   cancel,
		Progress: JobProgress{
			JobID:    jobID,
			Phase:    PhaseStarting,
			FileName: req.FileName,
		},
		Done:      make(chan struct{}),
		Listeners: make([]chan JobProgress, 0),
	}

	s.mu.Lock()
	s.jobs[jobID] = job
	s.mu.Unlock()

	// Process in background with panic recovery to ensure limiter release.
	go func() {
		defer cancel()
		defer s.limiter.Release()
		defer func() {
			if r := recover(); r != nil {
				slog.Error("panic in sonification job",
					"job_id", jobID,
					"file", req.FileName,
					"panic", r,
				)
				s.finishJob(job, PhaseFailed, fmt.Sprintf("internal error: %v", r), nil)
			}
		}()
		s.process(jobCtx, job, req)
	}()

	return jobID, nil
}

// process runs the import -> transform -> synthesize -> encode -> store
// pipeline for one job.
func (s *Service) process(ctx context.Context, job *activeJob, req SonifyRequest) {
	start := time.Now()

	fail := func(err error) {
		phase := PhaseFailed
		if ctx.Err() == context.Canceled {
			phase = PhaseCancelled
		}
		slog.Error("sonification failed",
			"job_id", job.ID,
			"file", req.FileName,
			"phase", string(job.snapshot().Phase),
			"error", err,
		)
		s.finishJob(job, phase, err.Error(), nil)
	}

	s.setPhase(job, PhaseImporting)
	tbl, err := table.ImportReader(bytes.NewReader(req.Data), req.FileName, req.Kind)
	if err != nil {
		fail(err)
		return
	}

	xIdx, err := resolveColumn(tbl, req.XColumn, 0)
	if err != nil {
		fail(err)
		return
	}
	yIdx, err := resolveColumn(tbl, req.YColumn, 1)
	if err != nil {
		fail(err)
		return
	}

	s.setPhase(job, PhaseTransforming)
	values, err := tbl.Float64Column(yIdx)
	if err != nil {
		fail(err)
		return
	}
	values, err = sonify.Apply(req.Transform, values)
	if err != nil {
		fail(err)
		return
	}
	values = sonify.Normalize(values)

	result := &JobResult{
		JobID:       job.ID,
		FileName:    req.FileName,
		Kind:        req.Kind,
		RowCount:    tbl.RowCount(),
		ColumnCount: tbl.Columns(),
		XColumn:     tbl.Labels[xIdx],
		YColumn:     tbl.Labels[yIdx],
	}

	// Identical input and parameters produce identical audio, so a cache
	// hit skips synthesis entirely.
	digest := s.renderDigest(req, yIdx)
	if mediaID, ok := s.cache.Get(digest); ok {
		if exists, err := s.store.Exists(ctx, mediaID); err == nil && exists {
			result.MediaID = mediaID
			result.Cached = true
			result.Duration = time.Since(start)
			result.DurationMS = result.Duration.Milliseconds()
			slog.Info("sonification served from cache",
				"job_id", job.ID,
				"media_id", mediaID,
			)
			s.recordHistory(ctx, req, result)
			s.finishJob(job, PhaseComplete, "", result)
			return
		}
		// Stale entry: the media was cleaned up underneath the cache.
		s.cache.Remove(digest)
	}

	job.setProgress(func(p *JobProgress) {
		p.Phase = PhaseSynthesizing
		p.TotalPoints = len(values)
	})

	synth, err := s.newSynth(req)
	if err != nil {
		fail(err)
		return
	}

	const chunkPoints = 256
	samples := make([]float64, 0, synth.NoteSamples()*len(values))
	for i := 0; i < len(values); i += chunkPoints {
		if err := ctx.Err(); err != nil {
			fail(err)
			return
		}
		end := min(i+chunkPoints, len(values))
		part, err := synth.Render(values[i:end])
		if err != nil {
			fail(err)
			return
		}
		samples = append(samples, part...)
		job.setProgress(func(p *JobProgress) { p.CurrentPoint = end })
	}

	s.setPhase(job, PhaseEncoding)
	var buf bytes.Buffer
	if err := sonify.EncodeWAV(&buf, samples, synth.SampleRate()); err != nil {
		fail(err)
		return
	}

	mediaID := media.NewID(".wav")
	if err := s.store.Put(ctx, mediaID, buf.Bytes()); err != nil {
		fail(err)
		return
	}
	s.cache.Add(digest, mediaID)

	result.MediaID = mediaID
	result.Duration = time.Since(start)
	result.DurationMS = result.Duration.Milliseconds()

	slog.Info("sonification complete",
		"job_id", job.ID,
		"file", req.FileName,
		"rows", result.RowCount,
		"media_id", mediaID,
		"duration_ms", result.DurationMS,
	)

	s.recordHistory(ctx, req, result)
	s.finishJob(job, PhaseComplete, "", result)
}

// newSynth builds a synthesizer from the service defaults plus the
// request's overrides.
func (s *Service) newSynth(req SonifyRequest) (*sonify.Synth, error) {
	waveform := s.sound.Waveform
	if req.Waveform != "" {
		waveform = req.Waveform
	}
	mapping := sonify.MapFrequency
	if req.Mapping != "" {
		mapping = req.Mapping
	}
	env := sonify.DiscreteEnvelope()
	if req.Continuous {
		env = sonify.ContinuousEnvelope()
	}

	return sonify.New(
		sonify.WithSampleRate(s.sound.SampleRate),
		sonify.WithTimeBase(s.sound.TimeBase.Seconds()),
		sonify.WithFrequencySpan(s.sound.MinFreq, s.sound.FreqSpan),
		sonify.WithFixedFreq(s.sound.FixedFreq),
		sonify.WithVolume(s.sound.Volume),
		sonify.WithWaveform(waveform),
		sonify.WithMapping(mapping),
		sonify.WithLogScale(req.LogScale),
		sonify.WithEnvelope(env),
	)
}

// renderDigest derives the cache key for a request: the file content plus
// every parameter that changes the rendered audio.
func (s *Service) renderDigest(req SonifyRequest, yIdx int) string {
	h := sha256.New()
	h.Write(req.Data)
	fmt.Fprintf(h, "|%s|%d|%s|%s|%s|%t|%t", req.Kind, yIdx,
		req.Transform, req.Waveform, req.Mapping, req.LogScale, req.Continuous)
	fmt.Fprintf(h, "|%d|%s|%g|%g|%g|%g|%s", s.sound.SampleRate, s.sound.TimeBase,
		s.sound.MinFreq, s.sound.FreqSpan, s.sound.FixedFreq, s.sound.Volume, s.sound.Waveform)
	return hex.EncodeToString(h.Sum(nil))
}

// recordHistory stores the completed job when history is enabled.
// Failures are logged and never fail the job.
func (s *Service) recordHistory(ctx context.Context, req SonifyRequest, result *JobResult) {
	if s.history == nil {
		return
	}
	err := s.history.Insert(ctx, history.Entry{
		FileName:    req.FileName,
		Kind:        string(req.Kind),
		RowCount:    result.RowCount,
		ColumnCount: result.ColumnCount,
		MediaID:     result.MediaID,
		DurationMS:  result.DurationMS,
	})
	if err != nil {
		slog.Warn("history insert failed", "job_id", result.JobID, "error", err)
	}
}

// setPhase advances the job to the next phase and notifies listeners.
func (s *Service) setPhase(job *activeJob, phase JobPhase) {
	job.setProgress(func(p *JobProgress) { p.Phase = phase })
}

// finishJob moves the job to a terminal phase, records the result, closes
// listener channels and schedules removal from tracking.
func (s *Service) finishJob(job *activeJob, phase JobPhase, errMsg string, result *JobResult) {
	if result == nil {
		result = &JobResult{
			JobID:    job.ID,
			FileName: job.FileName,
			Error:    errMsg,
		}
	}
	job.Result = result

	job.ListenerMu.Lock()
	job.Progress.Phase = phase
	job.Progress.Error = errMsg
	for _, ch := range job.Listeners {
		select {
		case ch <- job.Progress:
		default:
		}
	}
	for _, ch := range job.Listeners {
		close(ch)
	}
	job.Listeners = nil
	job.ListenerMu.Unlock()

	close(job.Done)
	s.cleanup(job.ID, jobRetention)
}

// resolveColumn picks a column by label (case-insensitive), by zero-based
// index, or by positional default when the selector is empty.
func resolveColumn(tbl *table.Table, selector string, def int) (int, error) {
	if selector == "" {
		if def >= tbl.Columns() {
			return 0, fmt.Errorf("column %d out of range (table has %d columns)", def, tbl.Columns())
		}
		return def, nil
	}
	if idx, err := strconv.Atoi(selector); err == nil {
		if idx < 0 || idx >= tbl.Columns() {
			return 0, fmt.Errorf("column %d out of range (table has %d columns)", idx, tbl.Columns())
		}
		return idx, nil
	}
	idx := tbl.ColumnIndex(selector)
	if idx < 0 {
		return 0, fmt.Errorf("column not found: %q", selector)
	}
	return idx, nil
}

// SubscribeProgress returns a channel that receives progress updates.
// The channel is closed when the job completes.
func (s *Service) SubscribeProgress(jobID string) (<-chan JobProgress, error) {
	s.mu.RLock()
	job, ok := s.jobs[jobID]
	s.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}

	ch := make(chan JobProgress, 10)

	job.ListenerMu.Lock()
	if job.Progress.Phase.Terminal() {
		// Late subscriber: deliver the final state and close right away.
		ch <- job.Progress
		close(ch)
		job.ListenerMu.Unlock()
		return ch, nil
	}
	job.Listeners = append(job.Listeners, ch)
	// Send current progress immediately
	select {
	case ch <- job.Progress:
	default:
	}
	job.ListenerMu.Unlock()

	return ch, nil
}

// CancelJob cancels an in-progress job.
func (s *Service) CancelJob(jobID string) error {
	s.mu.RLock()
	job, ok := s.jobs[jobID]
	s.mu.RUnlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}

	job.Cancel()
	return nil
}

// GetResult returns the result of a completed job.
// Blocks until the job completes if still in progress.
func (s *Service) GetResult(jobID string) (*JobResult, error) {
	s.mu.RLock()
	job, ok := s.jobs[jobID]
	s.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}

	<-job.Done

	return job.Result, nil
}

// GetProgress returns the current progress without blocking.
func (s *Service) GetProgress(jobID string) (JobProgress, error) {
	s.mu.RLock()
	job, ok := s.jobs[jobID]
	s.mu.RUnlock()

	if !ok {
		return JobProgress{}, fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}

	return job.snapshot(), nil
}

// cleanup removes the job from tracking after a delay.
func (s *Service) cleanup(jobID string, delay time.Duration) {
	time.AfterFunc(delay, func() {
		s.mu.Lock()
		delete(s.jobs, jobID)
		s.mu.Unlock()
	})
}
