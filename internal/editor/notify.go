package editor

import "log/slog"

// Notifier delivers user-facing notifications. Every rejected or failed
// transition produces exactly one human-readable message through it, and
// successful commits produce a confirmation.
type Notifier interface {
	Info(msg string)
	Warn(msg string)
	Error(msg string)
}

// SlogNotifier writes notifications to a structured logger. It is the
// fallback when no surface transport is attached.
type SlogNotifier struct {
	Logger *slog.Logger
}

// NewSlogNotifier creates a notifier over the given logger.
func NewSlogNotifier(logger *slog.Logger) *SlogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogNotifier{Logger: logger}
}

// Info reports a confirmation.
func (n *SlogNotifier) Info(msg string) { n.Logger.Info("editor notification", "message", msg) }

// Warn reports a rejected transition.
func (n *SlogNotifier) Warn(msg string) { n.Logger.Warn("editor notification", "message", msg) }

// Error reports a failed transition.
func (n *SlogNotifier) Error(msg string) { n.Logger.Error("editor notification", "message", msg) }

// Prompter collects user input mid-transition: labels for completed shapes
// and names for new child map areas. ok is false when the user cancelled.
type Prompter interface {
	Label(tool Tool) (value string, ok bool)
	Name(tool Tool) (value string, ok bool)
}

// StaticPrompter returns fixed answers; used in tests and headless runs.
type StaticPrompter struct {
	LabelValue string
	LabelOK    bool
	NameValue  string
	NameOK     bool
}

// Label returns the configured label answer.
func (p *StaticPrompter) Label(Tool) (string, bool) { return p.LabelValue, p.LabelOK }

// Name returns the configured name answer.
func (p *StaticPrompter) Name(Tool) (string, bool) { return p.NameValue, p.NameOK }
