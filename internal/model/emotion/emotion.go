package emotion

import "time"

// Kind 表示用户可选择的六种情绪类别。
type Kind string

const (
	Happy   Kind = "happy"
	Sad     Kind = "sad"
	Anxious Kind = "anxious"
	Excited Kind = "excited"
	Calm    Kind = "calm"
	Angry   Kind = "angry"
)

// ParseKind normalizes a raw string into a known emotion kind.
func ParseKind(raw string) (Kind, bool) {
	switch Kind(raw) {
	case Happy, Sad, Anxious, Excited, Calm, Angry:
		return Kind(raw), true
	default:
		return "", false
	}
}

var displayLabels = map[Kind]string{
	Happy:   "기쁨",
	Sad:     "슬픔",
	Anxious: "불안",
	Excited: "설렘",
	Calm:    "평온",
	Angry:   "화남",
}

// Label returns the Korean display label used in prompts and the UI.
// Unknown kinds fall back to the raw kind string.
func (k Kind) Label() string {
	if label, ok := displayLabels[k]; ok {
		return label
	}
	return string(k)
}

// Emotion captures a scored emotional state. Immutable once constructed.
type Emotion struct {
	Type      Kind      `json:"type"`
	Intensity int       `json:"intensity"`
	Timestamp time.Time `json:"timestamp"`
}

// New builds an Emotion with the intensity clamped into [0,100].
// Out-of-range values never leave the producer.
func New(kind Kind, intensity int, timestamp time.Time) Emotion {
	return Emotion{
		Type:      kind,
		Intensity: ClampIntensity(intensity),
		Timestamp: timestamp,
	}
}

// ClampIntensity forces a score into the valid [0,100] range.
func ClampIntensity(value int) int {
	if value < 0 {
		return 0
	}
	if value > 100 {
		return 100
	}
	return value
}
