package experiment

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/cryoet-tools/morphorun/internal/config"
)

// Phase tracks where a session is in the experiment lifecycle.
type Phase int

const (
	// Unselected: no experiment chosen yet.
	Unselected Phase = iota
	// NameTyped: a brand-new name was entered; stage state has been
	// reset to defaults so nothing leaks from a previously resumed
	// experiment.
	NameTyped
	// NameSelected: an existing experiment was chosen but not loaded.
	NameSelected
	// ConfigLoaded: the config was loaded; the broadcast to stages is
	// in flight.
	ConfigLoaded
	// Ready: stages have been notified and the in-memory config
	// matches disk.
	Ready
	// Stale: the config changed on disk and could not be reloaded; the
	// in-memory state no longer matches the file.
	Stale
)

func (p Phase) String() string {
	switch p {
	case Unselected:
		return "unselected"
	case NameTyped:
		return "name-typed"
	case NameSelected:
		return "name-selected"
	case ConfigLoaded:
		return "config-loaded"
	case Ready:
		return "ready"
	case Stale:
		return "stale"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// EventKind discriminates manager notifications.
type EventKind int

const (
	// EventConfigLoaded is broadcast once after a successful resume or
	// create; every registered stage rehydrates from the config.
	EventConfigLoaded EventKind = iota
	// EventExternalChange fires when the config file changed on disk
	// outside this process.
	EventExternalChange
)

// Event is a manager notification delivered to subscribers.
type Event struct {
	Kind   EventKind
	Config config.Config
}

// Manager owns the in-memory configuration of the active experiment.
// It is the single writer of the config file: pipeline stages request
// merges through UpdateSection and never touch the document directly,
// so two stages cannot clobber each other's sections.
type Manager struct {
	mu     sync.Mutex
	phase  Phase
	layout Layout
	doc    config.Document
	cfg    config.Config
	subs   []chan Event
}

// NewManager creates a manager with no experiment selected.
func NewManager() *Manager {
	return &Manager{doc: config.Document{}}
}

// Subscribe registers a pipeline stage for notifications. The channel
// is buffered; a stage that stops draining misses events rather than
// blocking the manager.
func (m *Manager) Subscribe() <-chan Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch := make(chan Event, 8)
	m.subs = append(m.subs, ch)
	return ch
}

// SelectName records the experiment name typed or chosen for this
// session. A name with no existing config resets the in-memory
// document to defaults, preventing a previously resumed experiment's
// settings from leaking into a new one.
func (m *Manager) SelectName(workDir, expName string) Phase {
	layout := Resolve(workDir, expName)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.layout = layout
	if layout.Exists {
		m.phase = NameSelected
	} else {
		m.phase = NameTyped
		m.doc = config.Document{}
		m.cfg = config.Default()
	}
	return m.phase
}

// CreateNew creates the experiment on disk and loads it as the active
// one. ErrAlreadyExists surfaces untouched for the caller to redirect
// to the resume flow.
func (m *Manager) CreateNew(workDir, expName string, template config.Document, ov Overrides) (config.Config, error) {
	doc, layout, err := Create(workDir, expName, template, ov)
	if err != nil {
		return config.Config{}, err
	}
	cfg, err := config.Decode(doc)
	if err != nil {
		return config.Config{}, err
	}

	m.install(layout, doc, cfg)
	return cfg, nil
}

// Resume loads an existing experiment's config from disk and
// broadcasts a single config-loaded event to every subscriber.
// Resuming twice without intervening writes yields equal configs.
func (m *Manager) Resume(workDir, expName string) (config.Config, error) {
	layout := Resolve(workDir, expName)
	if !layout.Exists {
		return config.Config{}, fmt.Errorf("%w: %s in %s", ErrNotFound, expName, workDir)
	}

	doc, err := config.Load(layout.ConfigPath)
	if err != nil {
		return config.Config{}, err
	}
	cfg, err := config.Decode(doc)
	if err != nil {
		return config.Config{}, err
	}

	m.install(layout, doc, cfg)
	slog.Info("resumed experiment", "name", expName, "config", layout.ConfigPath)
	return cfg, nil
}

// install makes the experiment active and notifies stages. The
// broadcast is the rehydration point; once it is delivered the session
// is ready.
func (m *Manager) install(layout Layout, doc config.Document, cfg config.Config) {
	m.mu.Lock()
	m.layout = layout
	m.doc = doc
	m.cfg = cfg
	m.phase = ConfigLoaded
	m.mu.Unlock()

	m.broadcast(Event{Kind: EventConfigLoaded, Config: cfg})

	m.mu.Lock()
	m.phase = Ready
	m.mu.Unlock()
}

// UpdateSection deep-merges partial values into one top-level section
// and persists the result. This is the only path by which stages
// contribute settings back into the shared config. Sibling sections
// are untouched.
func (m *Manager) UpdateSection(section string, partial config.Document) error {
	return m.Update(config.Document{section: partial})
}

// Update deep-merges partial into the document root and persists the
// result. Top-level settings like cores go through here directly; on
// any failure the in-memory and on-disk state keep their previous
// values.
func (m *Manager) Update(partial config.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.phase {
	case ConfigLoaded, Ready:
	case Stale:
		return fmt.Errorf("config at %s changed on disk and could not be reloaded, refusing to overwrite it", m.layout.ConfigPath)
	default:
		return fmt.Errorf("no experiment loaded")
	}

	merged := config.DeepMerge(m.doc, partial)
	cfg, err := config.Decode(merged)
	if err != nil {
		return fmt.Errorf("update config: %w", err)
	}
	if err := config.Save(m.layout.ConfigPath, merged); err != nil {
		return err
	}

	m.doc = merged
	m.cfg = cfg
	slog.Debug("config updated", "keys", len(partial))
	return nil
}

// Config returns the active typed config.
func (m *Manager) Config() config.Config {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cfg
}

// Layout returns the active experiment layout.
func (m *Manager) Layout() Layout {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.layout
}

// Phase returns the current session phase.
func (m *Manager) Phase() Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase
}

func (m *Manager) broadcast(ev Event) {
	m.mu.Lock()
	subs := make([]chan Event, len(m.subs))
	copy(subs, m.subs)
	m.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- ev:
		default:
			slog.Warn("dropping notification for slow subscriber", "kind", ev.Kind)
		}
	}
}
