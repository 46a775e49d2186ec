package preferences

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/medassist/backend/internal/model/chat"
	chatService "github.com/zhouzirui/medassist/backend/internal/service/chat"
	"github.com/zhouzirui/medassist/backend/pkg/utils"
)

var (
	themes    = map[string]bool{"light": true, "dark": true, "system": true}
	fontSizes = map[string]bool{"small": true, "medium": true, "large": true}
)

// Handler 偏好设置的HTTP处理器
type Handler struct {
	chatSvc *chatService.Service
}

// New 创建偏好设置处理器
func New(chatSvc *chatService.Service) *Handler {
	return &Handler{chatSvc: chatSvc}
}

// RegisterRoutes 注册偏好设置相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/preferences", h.handleGet)
	r.Put("/preferences", h.handlePut)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	prefs, err := h.chatSvc.Preferences(r.Context())
	if err != nil {
		log.Printf("[preferences] load failed: %v", err)
		utils.RespondError(w, http.StatusInternalServerError, "failed to load preferences")
		return
	}
	utils.RespondJSON(w, http.StatusOK, prefs)
}

func (h *Handler) handlePut(w http.ResponseWriter, r *http.Request) {
	prefs := chat.DefaultPreferences()
	if err := utils.DecodeJSON(w, r, &prefs); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !themes[prefs.Theme] {
		utils.RespondError(w, http.StatusBadRequest, "theme must be light, dark or system")
		return
	}
	if !fontSizes[prefs.FontSize] {
		utils.RespondError(w, http.StatusBadRequest, "fontSize must be small, medium or large")
		return
	}

	if err := h.chatSvc.SavePreferences(r.Context(), prefs); err != nil {
		log.Printf("[preferences] save failed: %v", err)
		utils.RespondError(w, http.StatusInternalServerError, "failed to save preferences")
		return
	}
	utils.RespondJSON(w, http.StatusOK, prefs)
}
