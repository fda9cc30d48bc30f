package pipeline_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/maeumlab/emotion-letterbox/backend/internal/model/emotion"
	lettermodel "github.com/maeumlab/emotion-letterbox/backend/internal/model/letter"
	"github.com/maeumlab/emotion-letterbox/backend/internal/observe"
	"github.com/maeumlab/emotion-letterbox/backend/internal/service/pipeline"
)

type fixedScorer struct {
	score int
}

func (s fixedScorer) Score(_ context.Context, _ string, _ emotion.Kind) int {
	return s.score
}

type fakeComposer struct {
	err    error
	calls  int
	lastIn emotion.Log
}

func (c *fakeComposer) Compose(_ context.Context, log emotion.Log) (lettermodel.Letter, error) {
	c.calls++
	c.lastIn = log
	if c.err != nil {
		return lettermodel.Letter{}, c.err
	}
	return lettermodel.Letter{
		ID:        uuid.NewString(),
		Content:   "안녕, 나야. 오늘 하루도 수고했어.",
		Emotion:   log.Emotion,
		CreatedAt: time.Now().UTC(),
	}, nil
}

type captureObserver struct {
	mu     sync.Mutex
	events []observe.Event
}

func (c *captureObserver) Observe(e observe.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
}

func TestSubmitBelowThresholdSkipsGeneration(t *testing.T) {
	composer := &fakeComposer{}
	pipe := pipeline.New(fixedScorer{score: 40}, composer, nil)

	result := pipe.Submit(context.Background(), "그냥 그런 하루", emotion.Calm)

	if result.Log.ID == "" {
		t.Fatal("expected a log")
	}
	if result.Log.Emotion.Intensity != 40 {
		t.Fatalf("unexpected intensity: %d", result.Log.Emotion.Intensity)
	}
	if result.Letter != nil {
		t.Fatalf("expected no letter, got %+v", result.Letter)
	}
	if composer.calls != 0 {
		t.Fatalf("composer must not run below threshold, ran %d times", composer.calls)
	}
}

// The threshold is a strict inequality: 70 stays silent, 71 generates.
func TestSubmitThresholdBoundary(t *testing.T) {
	at := &fakeComposer{}
	pipe := pipeline.New(fixedScorer{score: 70}, at, nil)
	if result := pipe.Submit(context.Background(), "text", emotion.Happy); result.Letter != nil || at.calls != 0 {
		t.Fatalf("intensity 70 must not generate: letter=%v calls=%d", result.Letter, at.calls)
	}

	above := &fakeComposer{}
	pipe = pipeline.New(fixedScorer{score: 71}, above, nil)
	if result := pipe.Submit(context.Background(), "text", emotion.Happy); result.Letter == nil || above.calls != 1 {
		t.Fatalf("intensity 71 must generate: letter=%v calls=%d", result.Letter, above.calls)
	}
}

func TestSubmitKeepsLogWhenGenerationFails(t *testing.T) {
	obs := &captureObserver{}
	composer := &fakeComposer{err: errors.New("model unavailable")}
	pipe := pipeline.New(fixedScorer{score: 90}, composer, obs)

	result := pipe.Submit(context.Background(), "너무 힘들어", emotion.Sad)

	if result.Log.ID == "" {
		t.Fatal("log must survive a failed generation")
	}
	if result.Letter != nil {
		t.Fatalf("expected no letter, got %+v", result.Letter)
	}

	obs.mu.Lock()
	defer obs.mu.Unlock()
	if len(obs.events) != 1 {
		t.Fatalf("expected one event, got %d", len(obs.events))
	}
	event := obs.events[0]
	if event.Kind != observe.GenerationFailed {
		t.Fatalf("unexpected event kind: %s", event.Kind)
	}
	if event.LogID != result.Log.ID {
		t.Fatalf("event log id %s does not match %s", event.LogID, result.Log.ID)
	}
}

func TestSubmitCopiesEmotionVerbatimIntoLetter(t *testing.T) {
	composer := &fakeComposer{}
	pipe := pipeline.New(fixedScorer{score: 85}, composer, nil)

	result := pipe.Submit(context.Background(), "힘든 하루였어", emotion.Sad)

	if result.Log.Emotion.Intensity != 85 || result.Log.Emotion.Type != emotion.Sad {
		t.Fatalf("unexpected log emotion: %+v", result.Log.Emotion)
	}
	if result.Log.Text != "힘든 하루였어" {
		t.Fatalf("unexpected log text: %q", result.Log.Text)
	}
	if result.Letter == nil {
		t.Fatal("expected a letter at intensity 85")
	}
	if result.Letter.Emotion != result.Log.Emotion {
		t.Fatalf("letter emotion %+v differs from log emotion %+v", result.Letter.Emotion, result.Log.Emotion)
	}
	if composer.lastIn.ID != result.Log.ID {
		t.Fatalf("composer saw log %s, want %s", composer.lastIn.ID, result.Log.ID)
	}
}

func TestSubmitClampsScorerOutput(t *testing.T) {
	pipe := pipeline.New(fixedScorer{score: 150}, &fakeComposer{}, nil)
	result := pipe.Submit(context.Background(), "text", emotion.Excited)
	if result.Log.Emotion.Intensity != 100 {
		t.Fatalf("expected clamp to 100, got %d", result.Log.Emotion.Intensity)
	}
}

func TestSubmitWithoutComposer(t *testing.T) {
	pipe := pipeline.New(fixedScorer{score: 95}, nil, nil)
	result := pipe.Submit(context.Background(), "text", emotion.Happy)
	if result.Log.ID == "" || result.Letter != nil {
		t.Fatalf("expected log only, got %+v", result)
	}
}

func TestSubmitProducesUniqueLogIDs(t *testing.T) {
	pipe := pipeline.New(fixedScorer{score: 10}, nil, nil)
	seen := make(map[string]struct{})
	for i := 0; i < 50; i++ {
		result := pipe.Submit(context.Background(), "text", emotion.Calm)
		if _, dup := seen[result.Log.ID]; dup {
			t.Fatalf("duplicate log id %s", result.Log.ID)
		}
		seen[result.Log.ID] = struct{}{}
	}
}
