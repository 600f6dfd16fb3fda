package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prism-gateway/llm-router/internal/core/domain"
)

// ListingHandler serves the small set of routes that describe the
// gateway's own state — liveness and the various dialects' model-listing
// conventions — rather than dispatching to an upstream provider. These
// are bound directly here instead of through internal/registry because
// they need the catalog in scope at bind time, before any per-request
// descriptor logic runs.
type ListingHandler struct {
	catalog   *domain.Catalog
	startTime time.Time
}

func NewListingHandler(catalog *domain.Catalog) *ListingHandler {
	return &ListingHandler{catalog: catalog, startTime: time.Now()}
}

// Ping answers a bare liveness probe.
func (h *ListingHandler) Ping(c *gin.Context) {
	c.String(http.StatusOK, "pong")
}

// OllamaHome matches Ollama's own root health-check response, for
// clients that probe "/" expecting to be talking to a real Ollama.
func (h *ListingHandler) OllamaHome(c *gin.Context) {
	c.String(http.StatusOK, "Ollama is running")
}

// OllamaTags lists active models in Ollama's tag-list shape.
func (h *ListingHandler) OllamaTags(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"models": h.modelTags()})
}

func (h *ListingHandler) modelTags() []gin.H {
	names := h.catalog.ActiveModelNames()
	tags := make([]gin.H, 0, len(names))
	for _, name := range names {
		tags = append(tags, gin.H{"name": name, "model": name})
	}
	return tags
}

// OpenAIModels lists active models in the OpenAI "/models" shape.
func (h *ListingHandler) OpenAIModels(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"object": "list", "data": h.openAIModelList()})
}

func (h *ListingHandler) openAIModelList() []gin.H {
	names := h.catalog.ActiveModelNames()
	now := h.startTime.Unix()
	models := make([]gin.H, 0, len(names))
	for _, name := range names {
		models = append(models, gin.H{
			"id":       name,
			"object":   "model",
			"created":  now,
			"owned_by": "prism-gateway",
		})
	}
	return models
}

// LMStudioModels lists active models in LM Studio's "/api/v0/models" shape.
func (h *ListingHandler) LMStudioModels(c *gin.Context) {
	names := h.catalog.ActiveModelNames()
	data := make([]gin.H, 0, len(names))
	for _, name := range names {
		data = append(data, gin.H{
			"id":                  name,
			"object":              "model",
			"type":                "llm",
			"publisher":           "prism-gateway",
			"compatibility_type":  "gguf",
			"state":               "loaded",
			"max_context_length":  0,
		})
	}
	c.JSON(http.StatusOK, gin.H{"data": data, "object": "list"})
}
