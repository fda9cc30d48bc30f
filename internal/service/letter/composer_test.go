package letter_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/maeumlab/emotion-letterbox/backend/internal/model/emotion"
	lettermodel "github.com/maeumlab/emotion-letterbox/backend/internal/model/letter"
	letterservice "github.com/maeumlab/emotion-letterbox/backend/internal/service/letter"
)

type stubChatModel struct {
	reply string
	err   error
}

func (s *stubChatModel) Generate(_ context.Context, _ []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	if s.err != nil {
		return nil, s.err
	}
	return schema.AssistantMessage(s.reply, nil), nil
}

func (s *stubChatModel) Stream(_ context.Context, _ []*schema.Message, _ ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	if s.err != nil {
		return nil, s.err
	}
	return schema.StreamReaderFromArray([]*schema.Message{schema.AssistantMessage(s.reply, nil)}), nil
}

func (s *stubChatModel) BindTools(_ []*schema.ToolInfo) error { return nil }

type stubFinder struct {
	track  *lettermodel.MusicTrack
	called bool
}

func (s *stubFinder) FindTrack(_ context.Context, _ emotion.Kind, _ int) *lettermodel.MusicTrack {
	s.called = true
	return s.track
}

func sampleLog() emotion.Log {
	timestamp := time.Date(2026, 8, 29, 21, 30, 0, 0, time.UTC)
	return emotion.Log{
		ID:        "log-1",
		Text:      "힘든 하루였어",
		Emotion:   emotion.New(emotion.Sad, 85, timestamp),
		CreatedAt: timestamp,
	}
}

func TestComposeKeepsContentVerbatim(t *testing.T) {
	const reply = "안녕, 나야. 오늘 많이 힘들었지?"
	preview := "https://cdn.example/preview.mp3"
	finder := &stubFinder{track: &lettermodel.MusicTrack{
		ID:          "track-1",
		Name:        "Comfort Song",
		Artist:      "Some Artist",
		PreviewURL:  &preview,
		ExternalURL: "https://open.spotify.com/track/track-1",
	}}

	composer, err := letterservice.NewComposer(context.Background(), &stubChatModel{reply: reply}, finder, 0)
	if err != nil {
		t.Fatalf("NewComposer err: %v", err)
	}

	entry := sampleLog()
	composed, err := composer.Compose(context.Background(), entry)
	if err != nil {
		t.Fatalf("Compose err: %v", err)
	}

	if composed.Content != reply {
		t.Fatalf("content not verbatim: %q", composed.Content)
	}
	if composed.Emotion != entry.Emotion {
		t.Fatalf("emotion not copied verbatim: %+v vs %+v", composed.Emotion, entry.Emotion)
	}
	if !finder.called {
		t.Fatal("expected enrichment attempt")
	}
	if composed.Music == nil || composed.Music.ID != "track-1" {
		t.Fatalf("expected attached track, got %+v", composed.Music)
	}
	if composed.ID == "" {
		t.Fatal("expected a letter id")
	}
}

func TestComposeSucceedsWithoutMusic(t *testing.T) {
	finder := &stubFinder{track: nil}
	composer, err := letterservice.NewComposer(context.Background(), &stubChatModel{reply: "안녕, 나야."}, finder, 0)
	if err != nil {
		t.Fatalf("NewComposer err: %v", err)
	}

	composed, err := composer.Compose(context.Background(), sampleLog())
	if err != nil {
		t.Fatalf("Compose err: %v", err)
	}

	if composed.Music != nil {
		t.Fatalf("expected no music, got %+v", composed.Music)
	}
	if composed.Content == "" {
		t.Fatal("letter content must survive a missing enrichment")
	}
}

func TestComposeWithNilFinder(t *testing.T) {
	composer, err := letterservice.NewComposer(context.Background(), &stubChatModel{reply: "안녕, 나야."}, nil, 0)
	if err != nil {
		t.Fatalf("NewComposer err: %v", err)
	}

	composed, err := composer.Compose(context.Background(), sampleLog())
	if err != nil {
		t.Fatalf("Compose err: %v", err)
	}
	if composed.Music != nil {
		t.Fatalf("expected no music, got %+v", composed.Music)
	}
}

func TestComposeGenerationFailure(t *testing.T) {
	finder := &stubFinder{}
	composer, err := letterservice.NewComposer(context.Background(), &stubChatModel{err: errors.New("rate limited")}, finder, 0)
	if err != nil {
		t.Fatalf("NewComposer err: %v", err)
	}

	if _, err := composer.Compose(context.Background(), sampleLog()); !errors.Is(err, letterservice.ErrGenerationFailed) {
		t.Fatalf("expected ErrGenerationFailed, got %v", err)
	}
	if finder.called {
		t.Fatal("enrichment must not run when generation fails")
	}
}

func TestComposeRejectsEmptyResponse(t *testing.T) {
	composer, err := letterservice.NewComposer(context.Background(), &stubChatModel{reply: "   "}, nil, 0)
	if err != nil {
		t.Fatalf("NewComposer err: %v", err)
	}

	if _, err := composer.Compose(context.Background(), sampleLog()); !errors.Is(err, letterservice.ErrGenerationFailed) {
		t.Fatalf("expected ErrGenerationFailed for blank content, got %v", err)
	}
}

func TestNewComposerRequiresModel(t *testing.T) {
	if _, err := letterservice.NewComposer(context.Background(), nil, nil, 0); err == nil {
		t.Fatal("expected error for nil chat model")
	}
}
