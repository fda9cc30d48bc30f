package intensity

import (
	"context"
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/maeumlab/emotion-letterbox/backend/internal/model/emotion"
	"github.com/maeumlab/emotion-letterbox/backend/internal/observe"
)

const scoringUserPrompt = "다음 텍스트에서 {emotion_label}의 강도를 0-100 점수로 평가해주세요.\n텍스트: \"{text}\"\n\n점수만 숫자로만 응답해주세요 (예: 75)."

// Fallback scores are drawn from [60,100): intensity is advisory, so when the
// model is unreachable we still hand back a plausible value instead of failing.
const (
	fallbackFloor = 60
	fallbackSpan  = 40
)

// Scorer 使用大模型评估情绪强度，失败时回退到随机值。
// Score never returns an error by contract.
type Scorer struct {
	chain   compose.Runnable[map[string]any, *schema.Message]
	obs     observe.Observer
	timeout time.Duration

	mu  sync.Mutex
	rng *rand.Rand
}

// NewScorer 创建强度打分服务。chatModel 为 nil 时仅使用回退值。
func NewScorer(ctx context.Context, chatModel model.ChatModel, rng *rand.Rand, obs observe.Observer, timeout time.Duration) (*Scorer, error) {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	scorer := &Scorer{rng: rng, obs: obs, timeout: timeout}
	if chatModel == nil {
		return scorer, nil
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.UserMessage(scoringUserPrompt),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile scoring chain: %w", err)
	}

	scorer.chain = runnable
	return scorer, nil
}

// Score rates how strongly the named emotion shows in the text, always in
// [0,100]. Any model failure degrades to the random fallback and emits a
// ScoringFallback event instead of propagating.
func (s *Scorer) Score(ctx context.Context, text string, kind emotion.Kind) int {
	if s.chain == nil {
		return s.fallback(nil)
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	msg, err := s.chain.Invoke(ctx, map[string]any{
		"emotion_label": kind.Label(),
		"text":          text,
	})
	if err != nil {
		return s.fallback(err)
	}
	if msg == nil || strings.TrimSpace(msg.Content) == "" {
		return s.fallback(fmt.Errorf("empty scoring response"))
	}

	score, ok := parseScore(msg.Content)
	if !ok {
		return s.fallback(fmt.Errorf("no digits in scoring response %q", msg.Content))
	}

	// 即使模型应答成功也要收敛到合法区间。
	return emotion.ClampIntensity(score)
}

func (s *Scorer) fallback(cause error) int {
	observe.Emit(s.obs, observe.ScoringFallback, "", cause)

	s.mu.Lock()
	defer s.mu.Unlock()
	return fallbackFloor + s.rng.Intn(fallbackSpan)
}

// parseScore strips every non-digit rune and converts the remainder.
func parseScore(content string) (int, bool) {
	var digits strings.Builder
	for _, r := range content {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	if digits.Len() == 0 {
		return 0, false
	}

	score, err := strconv.Atoi(digits.String())
	if err != nil {
		return 0, false
	}
	return score, true
}
