// Package status decouples job progress reporting from any
// presentation technology. Sinks must be safe to call from worker
// goroutines and must never block the caller.
package status

import "log/slog"

// Sink receives status text and progress updates from running jobs.
type Sink interface {
	// UpdateStatus sets the current status line.
	UpdateStatus(text string)
	// UpdateProgress sets the completion percentage, clamped to [0,100].
	UpdateProgress(percent int)
	// Clear resets the sink to its initial state.
	Clear()
}

// Clamp bounds a percentage to [0,100].
func Clamp(percent int) int {
	if percent < 0 {
		return 0
	}
	if percent > 100 {
		return 100
	}
	return percent
}

// LogSink writes status updates to a structured logger.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a sink backed by logger. A nil logger uses
// slog.Default().
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger}
}

func (s *LogSink) UpdateStatus(text string) {
	s.logger.Info("job status", "status", text)
}

func (s *LogSink) UpdateProgress(percent int) {
	s.logger.Info("job progress", "percent", Clamp(percent))
}

func (s *LogSink) Clear() {}

// Event is a single sink update delivered over a channel.
type Event struct {
	Kind    EventKind
	Text    string
	Percent int
}

// EventKind discriminates channel sink events.
type EventKind int

const (
	EventStatus EventKind = iota
	EventProgress
	EventClear
)

// ChannelSink forwards updates to a bounded channel for a single
// consumer (typically the interactive progress UI). When the consumer
// falls behind, stale updates are dropped rather than blocking the
// worker that produced them.
type ChannelSink struct {
	events chan Event
}

// NewChannelSink creates a channel sink with the given buffer size.
func NewChannelSink(buffer int) *ChannelSink {
	if buffer < 1 {
		buffer = 64
	}
	return &ChannelSink{events: make(chan Event, buffer)}
}

// Events returns the channel consumed by the presentation side.
func (s *ChannelSink) Events() <-chan Event {
	return s.events
}

// Close releases the event channel. Callers must not send after Close.
func (s *ChannelSink) Close() {
	close(s.events)
}

func (s *ChannelSink) UpdateStatus(text string) {
	s.send(Event{Kind: EventStatus, Text: text})
}

func (s *ChannelSink) UpdateProgress(percent int) {
	s.send(Event{Kind: EventProgress, Percent: Clamp(percent)})
}

func (s *ChannelSink) Clear() {
	s.send(Event{Kind: EventClear})
}

func (s *ChannelSink) send(ev Event) {
	select {
	case s.events <- ev:
	default:
		// Drop rather than block a worker on presentation.
	}
}

// MultiSink fans updates out to several sinks.
type MultiSink []Sink

func (m MultiSink) UpdateStatus(text string) {
	for _, s := range m {
		s.UpdateStatus(text)
	}
}

func (m MultiSink) UpdateProgress(percent int) {
	for _, s := range m {
		s.UpdateProgress(percent)
	}
}

func (m MultiSink) Clear() {
	for _, s := range m {
		s.Clear()
	}
}
