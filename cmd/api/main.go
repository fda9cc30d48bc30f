package main

import (
	"context"
	"errors"
	"log"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/maeumlab/emotion-letterbox/backend/internal/config"
	"github.com/maeumlab/emotion-letterbox/backend/internal/handler"
	"github.com/maeumlab/emotion-letterbox/backend/internal/handler/feed"
	"github.com/maeumlab/emotion-letterbox/backend/internal/observe"
	"github.com/maeumlab/emotion-letterbox/backend/internal/service/intensity"
	letterservice "github.com/maeumlab/emotion-letterbox/backend/internal/service/letter"
	"github.com/maeumlab/emotion-letterbox/backend/internal/service/music"
	"github.com/maeumlab/emotion-letterbox/backend/internal/service/pipeline"
	"github.com/maeumlab/emotion-letterbox/backend/internal/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		log.Fatalf("failed to open store: %v", err)
	}
	defer st.Close()

	observer := observe.LogObserver{}

	// rand.Rand 不是并发安全的，打分与选曲各自持有独立的随机源。
	scorerRNG := rand.New(rand.NewSource(time.Now().UnixNano()))
	matcherRNG := rand.New(rand.NewSource(time.Now().UnixNano() + 1))

	// Initialize music matcher
	var matcher letterservice.TrackFinder
	if cfg.Music.Enabled() {
		matcher = music.NewMatcher(music.Config{
			ClientID:     cfg.Music.ClientID,
			ClientSecret: cfg.Music.ClientSecret,
			Market:       cfg.Music.Market,
			TokenURL:     cfg.Music.TokenURL,
			APIURL:       cfg.Music.APIURL,
			Timeout:      cfg.Music.Timeout,
		}, matcherRNG, observer)
		log.Println("music matcher initialized successfully")
	} else {
		log.Println("音乐目录凭证未配置，信件将不附带音乐推荐")
	}

	// Initialize intensity scorer and letter composer
	var (
		scorer   *intensity.Scorer
		composer pipeline.Composer
	)
	if cfg.AI.Enabled() {
		scoringModel, err := cfg.AI.NewScoringModel(ctx)
		if err != nil {
			log.Fatalf("failed to create scoring model: %v", err)
		}
		scorer, err = intensity.NewScorer(ctx, scoringModel, scorerRNG, observer, cfg.AI.Timeout)
		if err != nil {
			log.Fatalf("failed to initialize intensity scorer: %v", err)
		}

		letterModel, err := cfg.AI.NewLetterModel(ctx)
		if err != nil {
			log.Fatalf("failed to create letter model: %v", err)
		}
		composed, err := letterservice.NewComposer(ctx, letterModel, matcher, cfg.AI.Timeout)
		if err != nil {
			log.Fatalf("failed to initialize letter composer: %v", err)
		}
		composer = composed
		log.Println("AI services initialized successfully")
	} else {
		// 无模型时评分退化为随机回退，信件生成整体关闭。
		scorer, err = intensity.NewScorer(ctx, nil, scorerRNG, observer, cfg.AI.Timeout)
		if err != nil {
			log.Fatalf("failed to initialize intensity scorer: %v", err)
		}
		log.Println("Ark 凭证未配置，强度评分使用回退值且不生成信件")
	}

	pipe := pipeline.New(scorer, composer, observer)
	feedHandler := feed.New()
	router := handler.NewRouter(pipe, st, feedHandler)

	startServer(ctx, cfg.Server, router)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("Emotion Letterbox backend listening on %s", addr)
	if err := runServer(ctx, srv); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
