// Package watch reports changes to a single tree document using OS-native
// file notifications.
package watch

import (
	"context"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"github.com/fsnotify/fsnotify"
)

// Op indicates a change operation on the watched file.
type Op uint32

const (
	OpCreate Op = 1 << iota
	OpWrite
	OpRemove
	OpRename
	OpChmod
)

func (op Op) String() string {
	names := []string{"CREATE", "WRITE", "REMOVE", "RENAME", "CHMOD"}
	s := ""
	for i, name := range names {
		if op&(1<<i) != 0 {
			if s != "" {
				s += "|"
			}
			s += name
		}
	}
	if s == "" {
		return "NONE"
	}
	return s
}

// Event is a change to the watched file.
type Event struct {
	Path string
	Op   Op
}

// FileWatcher watches one file. The parent directory is watched so that
// editors which replace the file on save are still observed.
type FileWatcher struct {
	w    *fsnotify.Watcher
	path string
}

// NewFileWatcher starts watching path. The watch is registered before
// NewFileWatcher returns, so no change made afterwards is missed. The
// watcher is released when Run returns.
func NewFileWatcher(path string) (*FileWatcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.Wrapf(err, "resolving %s", path)
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "creating watcher")
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		_ = w.Close()
		return nil, errors.Wrapf(err, "watching %s", path)
	}
	return &FileWatcher{w: w, path: abs}, nil
}

// Path returns the absolute path of the watched file.
func (fw *FileWatcher) Path() string { return fw.path }

// Run calls onChange for every write to or creation of the watched file
// until ctx is done or the watcher fails. onChange runs on the calling
// goroutine. Run closes the watcher before returning.
func (fw *FileWatcher) Run(ctx context.Context, onChange func(Event)) error {
	defer fw.w.Close()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != fw.path {
				continue
			}
			op := convert(ev.Op)
			if op&(OpCreate|OpWrite) == 0 {
				continue
			}
			onChange(Event{Path: fw.path, Op: op})
		case err, ok := <-fw.w.Errors:
			if !ok {
				return nil
			}
			return errors.Wrapf(err, "watching %s", fw.path)
		}
	}
}

func convert(in fsnotify.Op) Op {
	var op Op
	if in&fsnotify.Create != 0 {
		op |= OpCreate
	}
	if in&fsnotify.Write != 0 {
		op |= OpWrite
	}
	if in&fsnotify.Remove != 0 {
		op |= OpRemove
	}
	if in&fsnotify.Rename != 0 {
		op |= OpRename
	}
	if in&fsnotify.Chmod != 0 {
		op |= OpChmod
	}
	return op
}
