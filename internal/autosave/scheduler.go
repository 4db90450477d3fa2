package autosave

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const DefaultDebounce = 1500 * time.Millisecond

// Job is a snapshot of the active chapter taken when a save is issued.
type Job struct {
	ChapterID string
	Text      string
	WordCount int
}

type Opts struct {
	// Debounce is the quiet period after the last Notify before a save runs.
	Debounce time.Duration

	// Pending returns the chapter to persist, read at save time. ok=false means nothing is dirty.
	Pending func() (Job, bool)
	// Save writes a job to the backend.
	Save func(ctx context.Context, job Job) error

	OnSaved func(job Job)
	OnError func(job Job, err error)

	Logger *slog.Logger
}

type timer interface {
	Stop() bool
	Reset(d time.Duration) bool
}

// Scheduler debounces chapter saves. Saves never overlap: the timer, Flush and detached
// writes all go through one write lock, and detached jobs are written before fresh ones.
type Scheduler struct {
	debounce time.Duration
	pending  func() (Job, bool)
	save     func(ctx context.Context, job Job) error
	onSaved  func(job Job)
	onError  func(job Job, err error)
	log      *slog.Logger

	afterFunc func(d time.Duration, f func()) timer

	mu       sync.Mutex
	timer    timer
	armed    bool
	running  bool
	closed   bool
	detached []Job

	writeMu sync.Mutex
	wg      sync.WaitGroup
}

func New(opts Opts) *Scheduler {
	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	pending := opts.Pending
	if pending == nil {
		pending = func() (Job, bool) { return Job{}, false }
	}
	return &Scheduler{
		debounce: debounce,
		pending:  pending,
		save:     opts.Save,
		onSaved:  opts.OnSaved,
		onError:  opts.OnError,
		log:      logger,
		afterFunc: func(d time.Duration, f func()) timer {
			return time.AfterFunc(d, f)
		},
	}
}

// Notify (re)starts the quiet period. It never blocks on I/O.
func (s *Scheduler) Notify() {
	if s == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.armed = true
	if s.timer == nil {
		s.timer = s.afterFunc(s.debounce, s.onTimer)
		return
	}
	s.timer.Reset(s.debounce)
}

func (s *Scheduler) onTimer() {
	s.mu.Lock()
	if s.running {
		// A save is in flight; try again once it had time to finish.
		if s.timer != nil {
			s.timer.Reset(s.debounce)
		}
		s.mu.Unlock()
		return
	}
	if !s.armed {
		s.mu.Unlock()
		return
	}
	s.armed = false
	s.running = true
	s.mu.Unlock()

	// Errors are reported through OnError; the buffer stays dirty until the next edit re-arms.
	_ = s.saveLatest(context.Background())

	s.mu.Lock()
	s.running = false
	if s.armed && s.timer != nil && !s.closed {
		s.timer.Reset(s.debounce)
	}
	s.mu.Unlock()
}

// Flush cancels the quiet period and saves the pending chapter now.
func (s *Scheduler) Flush(ctx context.Context) error {
	if s == nil {
		return nil
	}
	s.disarm()
	return s.saveLatest(ctx)
}

// Detach captures the pending chapter and writes it in the background. Call it before the
// active chapter is replaced.
func (s *Scheduler) Detach() {
	if s == nil {
		return
	}
	s.disarm()
	job, ok := s.pending()
	if !ok {
		return
	}
	s.mu.Lock()
	s.detached = append(s.detached, job)
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.writeMu.Lock()
		defer s.writeMu.Unlock()
		_ = s.drainDetached(context.Background())
	}()
}

// Wait blocks until background writes issued by Detach have finished.
func (s *Scheduler) Wait() {
	if s == nil {
		return
	}
	s.wg.Wait()
}

// Do runs fn under the write lock so it cannot interleave with a chapter save. Pending
// detached jobs are written first.
func (s *Scheduler) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if s == nil {
		return fn(ctx)
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = s.drainDetached(ctx)
	return fn(ctx)
}

// Close stops the timer, saves anything pending and waits for background writes.
func (s *Scheduler) Close(ctx context.Context) error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.disarm()
	err := s.saveLatest(ctx)
	s.wg.Wait()
	return err
}

func (s *Scheduler) disarm() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.armed = false
	if s.timer != nil {
		s.timer.Stop()
	}
}

func (s *Scheduler) saveLatest(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	err := s.drainDetached(ctx)
	job, ok := s.pending()
	if !ok {
		return err
	}
	if werr := s.write(ctx, job); werr != nil {
		return werr
	}
	return err
}

// drainDetached requires writeMu.
func (s *Scheduler) drainDetached(ctx context.Context) error {
	s.mu.Lock()
	jobs := s.detached
	s.detached = nil
	s.mu.Unlock()

	var firstErr error
	for _, job := range jobs {
		if err := s.write(ctx, job); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (s *Scheduler) write(ctx context.Context, job Job) error {
	if s.save == nil {
		return nil
	}
	if err := s.save(ctx, job); err != nil {
		s.log.Warn("autosave failed", "chapter", job.ChapterID, "err", err)
		if s.onError != nil {
			s.onError(job, err)
		}
		return err
	}
	s.log.Debug("chapter saved", "chapter", job.ChapterID, "words", job.WordCount)
	if s.onSaved != nil {
		s.onSaved(job)
	}
	return nil
}
