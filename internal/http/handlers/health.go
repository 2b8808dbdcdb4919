package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// EnvStatus reports which credentials and backends the process started with. Values are never exposed.
type EnvStatus struct {
	OpenAIKeySet           bool   `json:"OPENAI_API_KEY_set"`
	SupabaseURLSet         bool   `json:"SUPABASE_URL_set"`
	SupabaseServiceRoleSet bool   `json:"SUPABASE_SERVICE_ROLE_set"`
	LLMBackend             string `json:"llm_backend"`
	SpeechBackend          string `json:"speech_backend"`
	SessionStore           string `json:"session_store"`
	TTSCache               bool   `json:"tts_cache"`
	AuthEnabled            bool   `json:"auth_enabled"`
}

type HealthHandler struct {
	env    string
	status EnvStatus
}

func NewHealthHandler(env string, status EnvStatus) *HealthHandler {
	return &HealthHandler{env: env, status: status}
}

func (h *HealthHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true, "env": h.env})
}

func (h *HealthHandler) EnvCheck(c *gin.Context) {
	c.JSON(http.StatusOK, h.status)
}
