package assets

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/fsnotify/fsnotify"
	"golang.org/x/exp/slices"

	"github.com/spaghettifunk/atlas/engine/assets/loaders"
	"github.com/spaghettifunk/atlas/engine/core"
)

const shaderExt = ".spv"

var ErrShaderNotFound = errors.New("shader not found")

type ShaderOp int

const (
	ShaderAdded ShaderOp = iota
	ShaderChanged
	ShaderRemoved
)

func (op ShaderOp) String() string {
	switch op {
	case ShaderAdded:
		return "added"
	case ShaderChanged:
		return "changed"
	case ShaderRemoved:
		return "removed"
	}
	return "unknown"
}

// ShaderEvent reports a change to a compiled module on disk.
type ShaderEvent struct {
	Name string
	Op   ShaderOp
}

type ShaderInfo struct {
	Path       string
	LastLoaded time.Time
}

/**
 * @brief Index of the compiled SPIR-V modules below one directory.
 *
 * Modules are named by their path relative to the directory, with forward
 * slashes and without the .spv extension ("shaders/sky.frag"). Watch keeps
 * the index current and reports changes on Events.
 */
type ShaderLibrary struct {
	dir     string
	shaders map[string]ShaderInfo
	mutex   sync.RWMutex

	done     chan struct{}
	wg       sync.WaitGroup
	fsnotify *fsnotify.Watcher
	isClosed bool
	events   chan ShaderEvent
}

func NewShaderLibrary(dir string) *ShaderLibrary {
	return &ShaderLibrary{
		dir:     dir,
		shaders: make(map[string]ShaderInfo),
		events:  make(chan ShaderEvent, 64),
		done:    make(chan struct{}),
	}
}

// Scan indexes every module currently on disk.
func (sl *ShaderLibrary) Scan() error {
	return sl.walk(sl.dir, false)
}

// Watch starts following the directory tree for changes. Close stops it.
func (sl *ShaderLibrary) Watch() error {
	if sl.isClosed {
		return errors.New("shader library already closed")
	}
	if sl.fsnotify != nil {
		return nil
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "creating shader watcher")
	}
	sl.fsnotify = w
	if err := sl.walk(sl.dir, true); err != nil {
		w.Close()
		sl.fsnotify = nil
		return err
	}
	sl.wg.Add(1)
	go sl.start()
	return nil
}

// Events delivers changes seen by Watch. The channel is closed by Close.
func (sl *ShaderLibrary) Events() <-chan ShaderEvent {
	return sl.events
}

// Load reads the module registered under name.
func (sl *ShaderLibrary) Load(name string) ([]uint32, error) {
	sl.mutex.Lock()
	info, exists := sl.shaders[name]
	if exists {
		info.LastLoaded = time.Now()
		sl.shaders[name] = info
	}
	sl.mutex.Unlock()

	if !exists {
		return nil, errors.Wrapf(ErrShaderNotFound, "%q in %s", name, sl.dir)
	}
	return loaders.LoadSPIRV(info.Path)
}

func (sl *ShaderLibrary) Info(name string) (ShaderInfo, bool) {
	sl.mutex.RLock()
	defer sl.mutex.RUnlock()
	info, ok := sl.shaders[name]
	return info, ok
}

// Names returns the indexed module names in lexical order.
func (sl *ShaderLibrary) Names() []string {
	sl.mutex.RLock()
	names := make([]string, 0, len(sl.shaders))
	for name := range sl.shaders {
		names = append(names, name)
	}
	sl.mutex.RUnlock()
	slices.Sort(names)
	return names
}

func (sl *ShaderLibrary) Close() error {
	if sl.isClosed {
		return nil
	}
	sl.isClosed = true
	close(sl.done)
	if sl.fsnotify == nil {
		close(sl.events)
		return nil
	}
	sl.wg.Wait()
	return nil
}

func (sl *ShaderLibrary) start() {
	defer sl.wg.Done()
	defer close(sl.events)
	for {
		select {
		case e, ok := <-sl.fsnotify.Events:
			if !ok {
				return
			}
			sl.handleEvent(e)

		case err, ok := <-sl.fsnotify.Errors:
			if !ok {
				return
			}
			core.LogError("shader watcher: %s", err)

		case <-sl.done:
			sl.fsnotify.Close()
			return
		}
	}
}

func (sl *ShaderLibrary) handleEvent(e fsnotify.Event) {
	s, err := os.Stat(e.Name)
	if err == nil && s.IsDir() {
		if e.Has(fsnotify.Create) {
			if err := sl.walk(e.Name, true); err != nil {
				core.LogWarn("watching %s: %s", e.Name, err)
			}
		}
		return
	}

	switch {
	case e.Has(fsnotify.Create) || e.Has(fsnotify.Write):
		if name, added, ok := sl.index(e.Name); ok {
			op := ShaderChanged
			if added {
				op = ShaderAdded
			}
			sl.publish(ShaderEvent{Name: name, Op: op})
		}
	case e.Has(fsnotify.Remove) || e.Has(fsnotify.Rename):
		// a removed directory cannot be told apart from a file anymore
		_ = sl.fsnotify.Remove(e.Name)
		if name, ok := sl.forget(e.Name); ok {
			sl.publish(ShaderEvent{Name: name, Op: ShaderRemoved})
		}
	}
}

func (sl *ShaderLibrary) publish(e ShaderEvent) {
	select {
	case sl.events <- e:
	default:
		core.LogWarn("shader event dropped, nobody is reading: %s %s", e.Name, e.Op)
	}
}

// walk indexes every module below root. With watch set, directories are
// added to the watcher.
func (sl *ShaderLibrary) walk(root string, watch bool) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if watch {
				if err := sl.fsnotify.Add(path); err != nil {
					return errors.Wrapf(err, "watching %s", path)
				}
			}
			return nil
		}
		sl.index(path)
		return nil
	})
}

func (sl *ShaderLibrary) name(path string) (string, bool) {
	if filepath.Ext(path) != shaderExt {
		return "", false
	}
	rel, err := filepath.Rel(sl.dir, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", false
	}
	return filepath.ToSlash(strings.TrimSuffix(rel, shaderExt)), true
}

func (sl *ShaderLibrary) index(path string) (name string, added, ok bool) {
	name, ok = sl.name(path)
	if !ok {
		return "", false, false
	}
	sl.mutex.Lock()
	defer sl.mutex.Unlock()

	_, exists := sl.shaders[name]
	sl.shaders[name] = ShaderInfo{Path: path}
	return name, !exists, true
}

func (sl *ShaderLibrary) forget(path string) (string, bool) {
	name, ok := sl.name(path)
	if !ok {
		return "", false
	}
	sl.mutex.Lock()
	defer sl.mutex.Unlock()

	if _, exists := sl.shaders[name]; !exists {
		return "", false
	}
	delete(sl.shaders, name)
	return name, true
}
