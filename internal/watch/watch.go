// Package watch reports changes to compiled shaders in a directory.
package watch

import (
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const DefaultDebounce = 150 * time.Millisecond

// Watcher calls its callback once per burst of writes to *.spv files.
type Watcher struct {
	fw       *fsnotify.Watcher
	debounce time.Duration
	onChange func(name string)

	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// New starts watching dir. onChange runs on the watcher goroutine with the
// last file touched in the burst.
func New(dir string, debounce time.Duration, onChange func(name string)) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, err
	}
	w := &Watcher{
		fw:       fw,
		debounce: debounce,
		onChange: onChange,
		done:     make(chan struct{}),
	}
	w.wg.Add(1)
	go w.loop()
	return w, nil
}

func (w *Watcher) loop() {
	defer w.wg.Done()
	var (
		fire <-chan time.Time
		last string
	)
	for {
		select {
		case ev, ok := <-w.fw.Events:
			if !ok {
				return
			}
			if relevant(ev) {
				last = ev.Name
				fire = time.After(w.debounce)
			}
		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			log.Printf("shader watcher: %v", err)
		case <-fire:
			fire = nil
			w.onChange(last)
		case <-w.done:
			return
		}
	}
}

func relevant(ev fsnotify.Event) bool {
	if filepath.Ext(ev.Name) != ".spv" {
		return false
	}
	return ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename)
}

// Close stops the watcher and waits for its goroutine. Safe to call twice.
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.done)
		err = w.fw.Close()
		w.wg.Wait()
	})
	return err
}
