package letter

import (
	"context"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	lettermodel "github.com/maeumlab/emotion-letterbox/backend/internal/model/letter"
	"github.com/maeumlab/emotion-letterbox/backend/pkg/utils"
)

// defaultLimit 是收件箱一页展示的信件数量。
const defaultLimit = 10

// Inbox 约定信件的读取能力。
type Inbox interface {
	RecentLetters(ctx context.Context, limit int) ([]lettermodel.Letter, error)
}

// Handler 信件收件箱的HTTP处理器
type Handler struct {
	inbox Inbox
}

// New 创建信件处理器
func New(inbox Inbox) *Handler {
	return &Handler{inbox: inbox}
}

// RegisterRoutes 注册信件相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/letters", h.handleRecent)
}

// handleRecent 返回最近的信件，limit 查询参数可调。
func (h *Handler) handleRecent(w http.ResponseWriter, r *http.Request) {
	limit := defaultLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			utils.RespondError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}

	letters, err := h.inbox.RecentLetters(r.Context(), limit)
	if err != nil {
		log.Printf("[letter] failed to load letters: %v", err)
		utils.RespondError(w, http.StatusInternalServerError, "failed to load letters")
		return
	}

	utils.RespondJSON(w, http.StatusOK, letters)
}
