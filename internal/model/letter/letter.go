package letter

import (
	"time"

	"github.com/maeumlab/emotion-letterbox/backend/internal/model/emotion"
)

// MusicTrack 描述一条音乐推荐。PreviewURL may legitimately be absent
// (catalog licensing gap); ExternalURL is always present when a track exists.
type MusicTrack struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Artist      string  `json:"artist"`
	PreviewURL  *string `json:"previewUrl"`
	ExternalURL string  `json:"externalUrl"`
	ImageURL    string  `json:"imageUrl,omitempty"`
}

// Letter is an AI-written comfort letter derived from one emotion log.
// Emotion is a verbatim copy of the source log's emotion; Music is only
// set when enrichment succeeded. Immutable after construction.
type Letter struct {
	ID        string          `json:"id"`
	Content   string          `json:"content"`
	Emotion   emotion.Emotion `json:"emotion"`
	Music     *MusicTrack     `json:"music,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}
