package apiserver

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	robfigcron "github.com/robfig/cron/v3"

	"github.com/linanwx/hypermath/logger"
)

// DefaultSweepSchedule runs the retention sweep once an hour.
const DefaultSweepSchedule = "@hourly"

// Sweeper removes rendered videos and scene files older than maxAge on a
// cron schedule.
type Sweeper struct {
	cron   *robfigcron.Cron
	dir    string
	maxAge time.Duration
	now    func() time.Time

	mu      sync.Mutex
	entry   robfigcron.EntryID
	started bool
}

// NewSweeper creates a sweeper for the static dir. A maxAge <= 0 keeps
// everything.
func NewSweeper(staticDir string, maxAge time.Duration) *Sweeper {
	return &Sweeper{
		cron:   robfigcron.New(),
		dir:    staticDir,
		maxAge: maxAge,
		now:    time.Now,
	}
}

// Schedule replaces the sweep schedule. expr is a standard five-field cron
// expression or a descriptor such as "@hourly".
func (s *Sweeper) Schedule(expr string) error {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		expr = DefaultSweepSchedule
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.cron.AddFunc(expr, func() {
		if _, err := s.Sweep(); err != nil {
			logger.Warn("static sweep failed", "dir", s.dir, "err", err)
		}
	})
	if err != nil {
		return fmt.Errorf("apiserver: invalid sweep schedule %q: %w", expr, err)
	}
	if s.entry != 0 {
		s.cron.Remove(s.entry)
	}
	s.entry = id
	return nil
}

// Start runs scheduled sweeps in the background.
func (s *Sweeper) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started || s.maxAge <= 0 {
		return
	}
	s.started = true
	s.cron.Start()
	logger.Info("static sweeper started", "dir", s.dir, "maxAge", s.maxAge.String())
}

// Stop halts scheduling and waits for a running sweep.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	started := s.started
	s.started = false
	s.mu.Unlock()
	if !started {
		return
	}
	<-s.cron.Stop().Done()
}

// Sweep deletes expired files under the videos and manim_code dirs and
// returns how many were removed.
func (s *Sweeper) Sweep() (int, error) {
	if s.maxAge <= 0 {
		return 0, nil
	}
	cutoff := s.now().Add(-s.maxAge)
	removed := 0
	var errs []error
	for _, sub := range []string{videosDir, codeDir} {
		root := filepath.Join(s.dir, sub)
		entries, err := os.ReadDir(root)
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				errs = append(errs, err)
			}
			continue
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			info, err := e.Info()
			if err != nil || !info.ModTime().Before(cutoff) {
				continue
			}
			if err := os.Remove(filepath.Join(root, e.Name())); err != nil {
				errs = append(errs, err)
				continue
			}
			removed++
		}
	}
	if removed > 0 {
		logger.Info("static sweep removed files", "dir", s.dir, "removed", removed)
	}
	return removed, errors.Join(errs...)
}
