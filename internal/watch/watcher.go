// Package watch feeds filesystem draft edits into an editor session.
//
// The watcher monitors a drafts directory of <document-id>.json files.
// When a file changes, its attributes are read and replayed as session
// edits, exactly as if they had been typed into the editor. File events
// are debounced so editors that write in bursts (atomic save, format on
// save) produce one replay per burst.
package watch

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/studlancer/studlancer/internal/queue"
	"github.com/studlancer/studlancer/internal/schema"
)

// Editor receives replayed attribute edits. *sync.Session satisfies it.
type Editor interface {
	Edit(id string, attr schema.Attribute, value queue.Value)
}

// Config holds configuration for the watcher.
type Config struct {
	// DebounceInterval is how long to wait before replaying file changes.
	// Batches rapid saves together.
	DebounceInterval time.Duration

	// Logger for watcher activity.
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		DebounceInterval: 200 * time.Millisecond,
		Logger:           log.New(os.Stderr, "[watch] ", log.LstdFlags),
	}
}

// DraftFile is the on-disk draft format. Absent fields are not replayed,
// so partial drafts only touch the attributes they name.
type DraftFile struct {
	Title    *string  `json:"title,omitempty"`
	Topic    *string  `json:"topic,omitempty"`
	Subtopic *string  `json:"subtopic,omitempty"`
	Reward   *float64 `json:"reward,omitempty"`
	Slots    *float64 `json:"slots,omitempty"`
	Deadline *string  `json:"deadline,omitempty"`
	Content  *string  `json:"content,omitempty"`
}

// Watcher replays draft file changes into an Editor.
type Watcher struct {
	editor    Editor
	draftsDir string
	config    *Config

	watcher       *fsnotify.Watcher
	changeQueue   map[string]time.Time // filepath -> queued-at
	changeQueueMu sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a watcher over draftsDir that feeds editor.
func New(editor Editor, draftsDir string, config *Config) (*Watcher, error) {
	if editor == nil {
		return nil, fmt.Errorf("editor cannot be nil")
	}
	if draftsDir == "" {
		return nil, fmt.Errorf("draftsDir cannot be empty")
	}
	if config == nil {
		config = DefaultConfig()
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Watcher{
		editor:      editor,
		draftsDir:   draftsDir,
		config:      config,
		watcher:     fsw,
		changeQueue: make(map[string]time.Time),
		ctx:         ctx,
		cancel:      cancel,
	}, nil
}

// Start begins watching. Blocks until ctx is cancelled.
func (w *Watcher) Start(ctx context.Context) error {
	if err := os.MkdirAll(w.draftsDir, 0755); err != nil {
		return fmt.Errorf("failed to create drafts directory: %w", err)
	}
	if err := w.watcher.Add(w.draftsDir); err != nil {
		return fmt.Errorf("failed to watch drafts directory: %w", err)
	}

	w.config.Logger.Printf("Watching: %s", w.draftsDir)

	w.wg.Add(2)
	go w.watchFileEvents()
	go w.processChangeQueue()

	select {
	case <-ctx.Done():
		return w.Stop()
	case <-w.ctx.Done():
		return nil
	}
}

// Stop shuts the watcher down and waits for its goroutines.
func (w *Watcher) Stop() error {
	w.cancel()
	if err := w.watcher.Close(); err != nil {
		w.config.Logger.Printf("Error closing watcher: %v", err)
	}
	w.wg.Wait()
	return nil
}

func (w *Watcher) watchFileEvents() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if filepath.Ext(event.Name) != ".json" {
				continue
			}
			w.queueChange(event.Name)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.config.Logger.Printf("Watcher error: %v", err)
		}
	}
}

func (w *Watcher) queueChange(path string) {
	w.changeQueueMu.Lock()
	defer w.changeQueueMu.Unlock()
	w.changeQueue[path] = time.Now()
}

func (w *Watcher) processChangeQueue() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.config.DebounceInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			w.processPendingChanges()
		}
	}
}

func (w *Watcher) processPendingChanges() {
	w.changeQueueMu.Lock()
	defer w.changeQueueMu.Unlock()

	now := time.Now()
	for path, queuedAt := range w.changeQueue {
		if now.Sub(queuedAt) < w.config.DebounceInterval {
			continue
		}
		if err := w.replayDraft(path); err != nil {
			w.config.Logger.Printf("Error replaying draft %s: %v", path, err)
		}
		delete(w.changeQueue, path)
	}
}

// replayDraft reads one draft file and replays its attributes as edits.
// The document id is the filename without extension.
func (w *Watcher) replayDraft(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Deleted between event and replay; nothing to do.
			return nil
		}
		return fmt.Errorf("failed to read draft file: %w", err)
	}

	var draft DraftFile
	if err := json.Unmarshal(data, &draft); err != nil {
		return fmt.Errorf("failed to parse draft file: %w", err)
	}

	id := strings.TrimSuffix(filepath.Base(path), ".json")
	for _, edit := range draft.edits() {
		w.editor.Edit(id, edit.attr, edit.value)
	}
	w.config.Logger.Printf("Replayed draft: %s", id)
	return nil
}

type draftEdit struct {
	attr  schema.Attribute
	value queue.Value
}

func (d *DraftFile) edits() []draftEdit {
	var edits []draftEdit
	if d.Title != nil {
		edits = append(edits, draftEdit{schema.AttrTitle, queue.String(*d.Title)})
	}
	if d.Topic != nil {
		edits = append(edits, draftEdit{schema.AttrTopic, queue.String(*d.Topic)})
	}
	if d.Subtopic != nil {
		edits = append(edits, draftEdit{schema.AttrSubtopic, queue.String(*d.Subtopic)})
	}
	if d.Reward != nil {
		edits = append(edits, draftEdit{schema.AttrReward, queue.Number(*d.Reward)})
	}
	if d.Slots != nil {
		edits = append(edits, draftEdit{schema.AttrSlots, queue.Number(*d.Slots)})
	}
	if d.Deadline != nil {
		edits = append(edits, draftEdit{schema.AttrDeadline, queue.String(*d.Deadline)})
	}
	if d.Content != nil {
		edits = append(edits, draftEdit{schema.AttrContent, queue.String(*d.Content)})
	}
	return edits
}
