package letter

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"

	"github.com/maeumlab/emotion-letterbox/backend/internal/model/emotion"
	lettermodel "github.com/maeumlab/emotion-letterbox/backend/internal/model/letter"
)

// ErrGenerationFailed 表示编织信件的模型调用失败。
// Letters never carry placeholder prose, so the failure surfaces instead.
var ErrGenerationFailed = errors.New("letter generation failed")

const letterSystemPrompt = "당신은 따뜻하고 이해심 많은 AI 상담사입니다. 사용자의 감정에 공감하며 개인화된 편지를 작성합니다."

const letterUserPrompt = "사용자가 다음과 같은 감정을 표현했습니다:\n- 감정: {emotion_label}\n- 감정 강도: {intensity}%\n- 내용: {text}\n\n이 감정을 바탕으로 사용자에게 쓰는 따뜻하고 위로와 격려가 담긴 편지를 작성해주세요.\n편지는 \"안녕, 나야\"로 시작하고, 사용자의 현재 감정을 인정하면서 앞으로를 응원하는 내용으로 작성해주세요.\n개인적인 톤으로 작성하고, 감동적이고 따뜻한 메시지를 전달해주세요."

// TrackFinder 约定音乐匹配能力；nil 结果表示没有可附带的推荐。
type TrackFinder interface {
	FindTrack(ctx context.Context, kind emotion.Kind, intensity int) *lettermodel.MusicTrack
}

// Composer 基于情绪日记生成安慰信，并尽力附带一条音乐推荐。
type Composer struct {
	chain   compose.Runnable[map[string]any, *schema.Message]
	tracks  TrackFinder
	timeout time.Duration
}

// NewComposer 创建信件生成服务。tracks 为 nil 时信件不附带音乐。
func NewComposer(ctx context.Context, chatModel model.ChatModel, tracks TrackFinder, timeout time.Duration) (*Composer, error) {
	if chatModel == nil {
		return nil, fmt.Errorf("letter composer requires a chat model")
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage(letterSystemPrompt),
		schema.UserMessage(letterUserPrompt),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile letter chain: %w", err)
	}

	return &Composer{chain: runnable, tracks: tracks, timeout: timeout}, nil
}

// Compose writes a comfort letter for the log. The model response becomes
// the content verbatim. A missing music recommendation never fails the
// letter; a failed generation call returns ErrGenerationFailed.
func (c *Composer) Compose(ctx context.Context, log emotion.Log) (lettermodel.Letter, error) {
	content, err := c.generate(ctx, log)
	if err != nil {
		return lettermodel.Letter{}, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}

	composed := lettermodel.Letter{
		ID:        uuid.NewString(),
		Content:   content,
		Emotion:   log.Emotion,
		CreatedAt: time.Now().UTC(),
	}

	// 音乐推荐是尽力而为的附加项，失败时信件照常成立。
	if c.tracks != nil {
		composed.Music = c.tracks.FindTrack(ctx, log.Emotion.Type, log.Emotion.Intensity)
	}

	return composed, nil
}

func (c *Composer) generate(ctx context.Context, log emotion.Log) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	msg, err := c.chain.Invoke(ctx, map[string]any{
		"emotion_label": log.Emotion.Type.Label(),
		"intensity":     log.Emotion.Intensity,
		"text":          log.Text,
	})
	if err != nil {
		return "", err
	}
	if msg == nil || strings.TrimSpace(msg.Content) == "" {
		return "", fmt.Errorf("empty letter response")
	}

	return msg.Content, nil
}
