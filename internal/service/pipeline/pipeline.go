package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/maeumlab/emotion-letterbox/backend/internal/model/emotion"
	lettermodel "github.com/maeumlab/emotion-letterbox/backend/internal/model/letter"
	"github.com/maeumlab/emotion-letterbox/backend/internal/observe"
)

// GenerationThreshold 是触发信件生成的强度下限（严格大于）。
// Intensity 70 does not generate a letter, 71 does.
const GenerationThreshold = 70

// Scorer 约定强度评分能力，按契约永不失败。
type Scorer interface {
	Score(ctx context.Context, text string, kind emotion.Kind) int
}

// Composer 约定信件生成能力。
type Composer interface {
	Compose(ctx context.Context, log emotion.Log) (lettermodel.Letter, error)
}

// Result 是一次提交的产物：日记始终存在，信件按阈值与生成结果可有可无。
type Result struct {
	Log    emotion.Log         `json:"log"`
	Letter *lettermodel.Letter `json:"letter"`
}

// Pipeline 编排一次情绪提交：评分、建档、按阈值生成信件。
// Each invocation works on its own artifacts; the pipeline holds no shared
// mutable state and never retries.
type Pipeline struct {
	scorer   Scorer
	composer Composer
	obs      observe.Observer
}

// New 创建提交管道。composer 为 nil 时只记录日记，不生成信件。
func New(scorer Scorer, composer Composer, obs observe.Observer) *Pipeline {
	return &Pipeline{scorer: scorer, composer: composer, obs: obs}
}

// Submit turns a raw emotion entry into artifacts. The returned log is
// always present; a failed letter generation is observed and converted to a
// nil letter because the log is independently valuable.
func (p *Pipeline) Submit(ctx context.Context, text string, kind emotion.Kind) Result {
	intensity := p.scorer.Score(ctx, text, kind)

	now := time.Now().UTC()
	entry := emotion.Log{
		ID:        uuid.NewString(),
		Text:      text,
		Emotion:   emotion.New(kind, intensity, now),
		CreatedAt: now,
	}

	result := Result{Log: entry}

	if entry.Emotion.Intensity <= GenerationThreshold || p.composer == nil {
		return result
	}

	composed, err := p.composer.Compose(ctx, entry)
	if err != nil {
		observe.Emit(p.obs, observe.GenerationFailed, entry.ID, err)
		return result
	}

	result.Letter = &composed
	return result
}
