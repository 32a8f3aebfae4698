package dependency

import (
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/cockroachdb/errors"
	"github.com/fsnotify/fsnotify"
)

const fileChangeOps = fsnotify.Write | fsnotify.Create | fsnotify.Remove | fsnotify.Rename

// File is changed once any of its files is written, created, removed or
// renamed. Parent directories are watched rather than the files themselves,
// so editors that replace a file through rename are seen and paths that do
// not exist yet can be watched for creation.
type File struct {
	w       *fsnotify.Watcher
	names   map[string]struct{}
	changed atomic.Bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
	once    sync.Once
	err     error
}

var _ Dependency = (*File)(nil)

// NewFile watches paths. The parent directory of every path must exist.
func NewFile(paths ...string) (*File, error) {
	if len(paths) == 0 {
		return nil, errors.New("dependency: no file paths")
	}

	names := make(map[string]struct{}, len(paths))
	dirs := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, errors.Wrapf(err, "dependency: resolve %q", p)
		}
		names[abs] = struct{}{}
		dirs[filepath.Dir(abs)] = struct{}{}
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "dependency: create file watcher")
	}
	for d := range dirs {
		if err := w.Add(d); err != nil {
			_ = w.Close()
			return nil, errors.Wrapf(err, "dependency: watch %q", d)
		}
	}

	f := &File{w: w, names: names, stopCh: make(chan struct{})}
	f.wg.Add(1)
	go f.loop()
	return f, nil
}

func (f *File) HasChanged() bool { return f.changed.Load() }

// Close stops watching. Safe to call more than once.
func (f *File) Close() error {
	f.once.Do(func() {
		close(f.stopCh)
		f.err = f.w.Close()
		f.wg.Wait()
	})
	return f.err
}

func (f *File) loop() {
	defer f.wg.Done()
	for {
		select {
		case ev, ok := <-f.w.Events:
			if !ok {
				return
			}
			if ev.Op&fileChangeOps == 0 {
				continue
			}
			if _, watched := f.names[filepath.Clean(ev.Name)]; watched {
				f.changed.Store(true)
			}
		case _, ok := <-f.w.Errors:
			if !ok {
				return
			}
			// events may have been lost; the cached value can no longer be trusted
			f.changed.Store(true)
		case <-f.stopCh:
			return
		}
	}
}
