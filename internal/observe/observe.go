package observe

import (
	"log"
	"time"
)

// Kind 标识一次管道内部降级或失败的类别。
type Kind string

const (
	ScoringFallback     Kind = "scoring_fallback"
	MatcherAuthFailed   Kind = "matcher_auth_failed"
	MatcherSearchFailed Kind = "matcher_search_failed"
	GenerationFailed    Kind = "generation_failed"
)

// Event records a degradation inside the letter pipeline. These are
// best-effort signals: a fallback or a missing enrichment is not an error
// the user ever sees.
type Event struct {
	Kind  Kind
	LogID string
	Err   error
	At    time.Time
}

// Observer receives pipeline events. Implementations must not block.
type Observer interface {
	Observe(Event)
}

// Emit sends an event through the observer, tolerating a nil sink.
func Emit(o Observer, kind Kind, logID string, err error) {
	if o == nil {
		return
	}
	o.Observe(Event{Kind: kind, LogID: logID, Err: err, At: time.Now().UTC()})
}

// LogObserver 将事件输出到进程日志。
type LogObserver struct{}

// Observe writes the event with the standard [observe] prefix.
func (LogObserver) Observe(e Event) {
	if e.LogID != "" {
		log.Printf("[observe] kind=%s log=%s err=%v", e.Kind, e.LogID, e.Err)
		return
	}
	log.Printf("[observe] kind=%s err=%v", e.Kind, e.Err)
}
