package ingest

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Tailer follows an append-only JSON Lines file of raw events.
type Tailer struct {
	path    string
	decoder *Decoder
	logger  *slog.Logger

	fsWatcher *fsnotify.Watcher
	offset    int64
	partial   []byte

	events chan RawEvent
	errors chan error

	done chan struct{}
	wg   sync.WaitGroup
}

// NewTailer creates a tailer for path. The file need not exist yet.
func NewTailer(path string, decoder *Decoder, logger *slog.Logger) (*Tailer, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Tailer{
		path:      abs,
		decoder:   decoder,
		logger:    logger,
		fsWatcher: fsWatcher,
		events:    make(chan RawEvent, 100),
		errors:    make(chan error, 10),
		done:      make(chan struct{}),
	}, nil
}

// Events returns the channel of decoded events, in file order.
func (t *Tailer) Events() <-chan RawEvent {
	return t.events
}

// Errors returns the channel of read and decode errors.
func (t *Tailer) Errors() <-chan error {
	return t.errors
}

// Start watches the file's directory and emits the events already in the file.
func (t *Tailer) Start() error {
	if err := t.fsWatcher.Add(filepath.Dir(t.path)); err != nil {
		return err
	}
	t.wg.Add(1)
	go t.loop()
	return nil
}

// Stop shuts the tailer down and closes its channels.
func (t *Tailer) Stop() error {
	close(t.done)
	t.wg.Wait()
	close(t.events)
	close(t.errors)
	return t.fsWatcher.Close()
}

func (t *Tailer) loop() {
	defer t.wg.Done()

	if !t.drain() {
		return
	}
	for {
		select {
		case <-t.done:
			return

		case event, ok := <-t.fsWatcher.Events:
			if !ok {
				return
			}
			if event.Name != t.path || event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if event.Op&fsnotify.Create != 0 {
				t.offset = 0
				t.partial = nil
			}
			if !t.drain() {
				return
			}

		case err, ok := <-t.fsWatcher.Errors:
			if !ok {
				return
			}
			t.report(err)
		}
	}
}

// drain reads complete lines appended since the last read. It returns false
// once the tailer is stopping.
func (t *Tailer) drain() bool {
	f, err := os.Open(t.path)
	if errors.Is(err, fs.ErrNotExist) {
		return true
	}
	if err != nil {
		t.report(err)
		return true
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		t.report(err)
		return true
	}
	if info.Size() < t.offset {
		t.logger.Info("event file truncated, reading from start", "path", t.path)
		t.offset = 0
		t.partial = nil
	}
	if _, err := f.Seek(t.offset, io.SeekStart); err != nil {
		t.report(err)
		return true
	}
	data, err := io.ReadAll(f)
	if err != nil {
		t.report(err)
		return true
	}
	t.offset += int64(len(data))

	buf := append(t.partial, data...)
	for {
		i := bytes.IndexByte(buf, '\n')
		if i < 0 {
			break
		}
		line := bytes.TrimSpace(buf[:i])
		buf = buf[i+1:]
		if len(line) == 0 {
			continue
		}
		evt, err := t.decoder.Decode(line)
		if err != nil {
			t.report(fmt.Errorf("%s: %w", filepath.Base(t.path), err))
			continue
		}
		select {
		case t.events <- evt:
		case <-t.done:
			return false
		}
	}
	t.partial = append([]byte(nil), buf...)
	return true
}

func (t *Tailer) report(err error) {
	t.logger.Warn("event feed error", "path", t.path, "error", err)
	select {
	case t.errors <- err:
	default:
	}
}
