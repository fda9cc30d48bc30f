package emotion

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	emotionmodel "github.com/maeumlab/emotion-letterbox/backend/internal/model/emotion"
	lettermodel "github.com/maeumlab/emotion-letterbox/backend/internal/model/letter"
	"github.com/maeumlab/emotion-letterbox/backend/internal/service/pipeline"
	"github.com/maeumlab/emotion-letterbox/backend/internal/store"
	"github.com/maeumlab/emotion-letterbox/backend/pkg/utils"
)

// Submitter 约定情绪提交管道。
type Submitter interface {
	Submit(ctx context.Context, text string, kind emotionmodel.Kind) pipeline.Result
}

// Recorder 约定日记与信件的持久化能力。
type Recorder interface {
	SaveLog(ctx context.Context, log emotionmodel.Log) error
	SaveLetter(ctx context.Context, l lettermodel.Letter) error
	ListLogs(ctx context.Context) ([]emotionmodel.Log, error)
	Trend(ctx context.Context) ([]store.TrendPoint, error)
	AverageIntensity(ctx context.Context) (float64, error)
}

// Broadcaster 将新产物推送给已连接的前端。
type Broadcaster interface {
	Broadcast(event string, payload any)
}

// Handler 情绪记录的HTTP处理器
type Handler struct {
	submitter Submitter
	recorder  Recorder
	feed      Broadcaster
}

// New 创建情绪处理器。feed 可以为 nil。
func New(submitter Submitter, recorder Recorder, feed Broadcaster) *Handler {
	return &Handler{
		submitter: submitter,
		recorder:  recorder,
		feed:      feed,
	}
}

// RegisterRoutes 注册情绪相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/emotions", h.handleSubmit)
	r.Get("/emotions", h.handleList)
	r.Get("/emotions/trend", h.handleTrend)
}

// handleSubmit 提交一条情绪日记，必要时生成信件。
func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Text string `json:"text"`
		Type string `json:"type"`
	}

	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if strings.TrimSpace(payload.Text) == "" {
		utils.RespondError(w, http.StatusBadRequest, "text is required")
		return
	}

	kind, ok := emotionmodel.ParseKind(payload.Type)
	if !ok {
		utils.RespondError(w, http.StatusBadRequest, "unknown emotion type")
		return
	}

	result := h.submitter.Submit(r.Context(), payload.Text, kind)

	// 持久化失败不影响响应：产物已经生成，日记对用户依然可见。
	if err := h.recorder.SaveLog(r.Context(), result.Log); err != nil {
		log.Printf("[emotion] failed to persist log %s: %v", result.Log.ID, err)
	}
	if result.Letter != nil {
		if err := h.recorder.SaveLetter(r.Context(), *result.Letter); err != nil {
			log.Printf("[emotion] failed to persist letter %s: %v", result.Letter.ID, err)
		}
	}

	if h.feed != nil {
		h.feed.Broadcast("log", result.Log)
		if result.Letter != nil {
			h.feed.Broadcast("letter", result.Letter)
		}
	}

	utils.RespondJSON(w, http.StatusCreated, result)
}

// handleList 返回全部情绪日记。
func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	logs, err := h.recorder.ListLogs(r.Context())
	if err != nil {
		log.Printf("[emotion] failed to list logs: %v", err)
		utils.RespondError(w, http.StatusInternalServerError, "failed to load emotion logs")
		return
	}

	utils.RespondJSON(w, http.StatusOK, logs)
}

// handleTrend 返回按天聚合的平均强度与总体平均值。
func (h *Handler) handleTrend(w http.ResponseWriter, r *http.Request) {
	trend, err := h.recorder.Trend(r.Context())
	if err != nil {
		log.Printf("[emotion] failed to load trend: %v", err)
		utils.RespondError(w, http.StatusInternalServerError, "failed to load emotion trend")
		return
	}

	average, err := h.recorder.AverageIntensity(r.Context())
	if err != nil {
		log.Printf("[emotion] failed to load average intensity: %v", err)
		utils.RespondError(w, http.StatusInternalServerError, "failed to load emotion trend")
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"trend":            trend,
		"averageIntensity": average,
	})
}
