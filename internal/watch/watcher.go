// Package watch tails a simulation results directory and feeds each
// completed VTK output file through the crack-tip tracker.
package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/phasefield-data/fracture.report/internal/cracktip"
	"github.com/phasefield-data/fracture.report/internal/mesh"
	"github.com/phasefield-data/fracture.report/internal/monitoring"
	"github.com/phasefield-data/fracture.report/internal/timeutil"
)

// DefaultStepPattern extracts the step index from output names like
// solution_0042.vtk. The first capture group must be the step number.
const DefaultStepPattern = `_(\d+)\.vtk$`

// DefaultDebounce is how long a file must sit quiet before it is
// scanned. Solvers write large meshes incrementally; scanning too early
// reads a truncated grid.
const DefaultDebounce = 500 * time.Millisecond

// Watcher ingests new VTK files from a directory as they appear.
type Watcher struct {
	dir      string
	tracker  *cracktip.Tracker
	stepRe   *regexp.Regexp
	debounce time.Duration
	clock    timeutil.Clock

	// pending maps paths to the time of their last write event; a path
	// is scanned once it has been quiet for a full debounce interval.
	// done holds only successfully scanned paths, so a file caught
	// mid-write stays eligible for the retry its next event triggers.
	pending map[string]time.Time
	done    map[string]bool
}

// New creates a Watcher over dir. stepPattern must contain a capture
// group for the step index; empty selects DefaultStepPattern. A zero
// debounce selects DefaultDebounce and a nil clock selects real time.
func New(dir string, tracker *cracktip.Tracker, stepPattern string, debounce time.Duration, clock timeutil.Clock) (*Watcher, error) {
	if stepPattern == "" {
		stepPattern = DefaultStepPattern
	}
	stepRe, err := regexp.Compile(stepPattern)
	if err != nil {
		return nil, fmt.Errorf("invalid step pattern %q: %w", stepPattern, err)
	}
	if stepRe.NumSubexp() < 1 {
		return nil, fmt.Errorf("step pattern %q has no capture group for the step index", stepPattern)
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Watcher{
		dir:      dir,
		tracker:  tracker,
		stepRe:   stepRe,
		debounce: debounce,
		clock:    clock,
		pending:  make(map[string]time.Time),
		done:     make(map[string]bool),
	}, nil
}

// Run sweeps files already present in the directory, then blocks
// watching for new ones until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(w.dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.dir, err)
	}

	if err := w.sweep(); err != nil {
		return err
	}

	ticker := w.clock.NewTicker(w.debounce)
	defer ticker.Stop()

	monitoring.Logf("watching %s (pattern %s, debounce %v)", w.dir, w.stepRe, w.debounce)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				w.mark(ev.Name)
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			monitoring.Logf("watch error: %v", err)
		case now := <-ticker.C():
			w.flush(now)
		}
	}
}

// sweep scans files already in the directory, in step order, so a
// watcher started mid-simulation catches up before tailing.
func (w *Watcher) sweep() error {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", w.dir, err)
	}

	type found struct {
		step int
		path string
	}
	var files []found
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		path := filepath.Join(w.dir, e.Name())
		if step, ok := w.stepFromName(path); ok {
			files = append(files, found{step: step, path: path})
		}
	}
	sort.Slice(files, func(i, j int) bool { return files[i].step < files[j].step })

	for _, f := range files {
		if w.process(f.path, f.step) {
			w.done[f.path] = true
		}
	}
	return nil
}

// mark records a write event against a matching path.
func (w *Watcher) mark(path string) {
	if _, ok := w.stepFromName(path); !ok {
		return
	}
	if w.done[path] {
		return
	}
	w.pending[path] = w.clock.Now()
}

// flush scans every pending path that has been quiet long enough. A
// path is only marked done after a successful scan.
func (w *Watcher) flush(now time.Time) {
	for path, last := range w.pending {
		if now.Sub(last) < w.debounce {
			continue
		}
		delete(w.pending, path)

		step, _ := w.stepFromName(path)
		if w.process(path, step) {
			w.done[path] = true
		}
	}
}

// process reads one VTK file and runs the tip scan for its step,
// reporting whether the file was scanned. Failures are logged and the
// path stays eligible so a later write event retries.
func (w *Watcher) process(path string, step int) bool {
	f, err := os.Open(path)
	if err != nil {
		monitoring.Logf("watch: failed to open %s: %v", path, err)
		return false
	}
	defer f.Close()

	ps, err := mesh.ReadVTK(f)
	if err != nil {
		monitoring.Logf("watch: failed to read %s: %v", path, err)
		return false
	}

	if _, err := w.tracker.Scan(step, ps); err != nil {
		monitoring.Logf("watch: scan of %s (step %d) failed: %v", path, step, err)
	}
	return true
}

// stepFromName extracts the step index from a file name, reporting
// false for names the pattern does not match.
func (w *Watcher) stepFromName(path string) (int, bool) {
	m := w.stepRe.FindStringSubmatch(filepath.Base(path))
	if m == nil || len(m) < 2 {
		return 0, false
	}
	step, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return step, true
}
