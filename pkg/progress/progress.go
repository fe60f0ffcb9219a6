// Package progress defines the reporting side-channel used during
// enrichment. Progress percentages and human-readable warnings travel
// through an explicit Reporter instead of any global UI state, so callers
// decide how updates are surfaced.
package progress

// Reporter receives progress and warning updates while an enrichment run is
// in flight. Implementations must be safe for use from a single goroutine;
// the orchestrator serializes all calls onto its result-draining loop.
type Reporter interface {
	// Progress reports completion as an integer percentage in [0, 100].
	// Values are non-decreasing and the final call is always 100.
	Progress(percent int)

	// Warning reports a non-fatal, human-readable condition such as a
	// rate-limit retry or an exhausted retry budget.
	Warning(message string)
}

// UpdateKind distinguishes the two kinds of updates a channel carries.
type UpdateKind int

const (
	// KindProgress marks an update carrying a percentage.
	KindProgress UpdateKind = iota

	// KindWarning marks an update carrying a warning message.
	KindWarning
)

// Update is one progress or warning event.
type Update struct {
	Kind    UpdateKind
	Percent int
	Message string
}

// ChannelReporter forwards updates onto a channel. The channel is unbuffered
// unless the caller provides one, so a slow consumer backpressures the
// enrichment loop rather than losing updates.
type ChannelReporter struct {
	ch chan Update
}

// NewChannelReporter creates a reporter with a buffered channel of the given
// size (minimum 1).
func NewChannelReporter(buffer int) *ChannelReporter {
	if buffer < 1 {
		buffer = 1
	}
	return &ChannelReporter{ch: make(chan Update, buffer)}
}

// Updates returns the receive side of the reporter.
func (r *ChannelReporter) Updates() <-chan Update {
	return r.ch
}

// Progress implements Reporter.
func (r *ChannelReporter) Progress(percent int) {
	r.ch <- Update{Kind: KindProgress, Percent: percent}
}

// Warning implements Reporter.
func (r *ChannelReporter) Warning(message string) {
	r.ch <- Update{Kind: KindWarning, Message: message}
}

// Close closes the update channel. Call it only after the enrichment run has
// returned.
func (r *ChannelReporter) Close() {
	close(r.ch)
}

// NopReporter discards all updates.
type NopReporter struct{}

// Progress implements Reporter.
func (NopReporter) Progress(int) {}

// Warning implements Reporter.
func (NopReporter) Warning(string) {}
