package watcher

import (
	"log/slog"
	"sync"
	"time"
)

// debouncer coalesces bursts of change events into one handler call.
// Editors emit several writes per save; the analysis should run once.
type debouncer struct {
	delay    time.Duration
	logger   *slog.Logger
	events   map[string]FileChangeEvent
	timer    *time.Timer
	mutex    sync.Mutex
	stopChan chan struct{}
}

func newDebouncer(delay time.Duration, logger *slog.Logger) *debouncer {
	return &debouncer{
		delay:    delay,
		logger:   logger,
		events:   make(map[string]FileChangeEvent),
		stopChan: make(chan struct{}),
	}
}

func (d *debouncer) add(event FileChangeEvent, handler FileChangeHandler) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.events[event.Path] = event
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, func() {
		d.flush(handler)
	})
}

func (d *debouncer) flush(handler FileChangeHandler) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if len(d.events) == 0 {
		return
	}
	changedFiles := make([]string, 0, len(d.events))
	for path := range d.events {
		changedFiles = append(changedFiles, path)
	}
	d.events = make(map[string]FileChangeEvent)
	if err := handler(changedFiles); err != nil {
		d.logger.Error("change handler failed", "error", err)
	}
}

func (d *debouncer) stop() {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
	close(d.stopChan)
}
