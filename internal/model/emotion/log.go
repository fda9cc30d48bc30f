package emotion

import "time"

// Log 记录一条用户提交的情绪日记。Created once per submission, never mutated.
type Log struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Emotion   Emotion   `json:"emotion"`
	CreatedAt time.Time `json:"createdAt"`
}
