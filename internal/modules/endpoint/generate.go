package endpoint

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/routeforge/core/internal/pkg/response"
	"go.uber.org/zap"
)

type GenerateDTO struct {
	Prompt   string `json:"prompt"`
	Language string `json:"language"`
}

// EndpointDraft is the model-proposed endpoint the client reviews before
// creating it for real via POST /api/endpoints.
type EndpointDraft struct {
	Path       string   `json:"path"`
	Parameters []string `json:"parameters"`
	Code       string   `json:"code"`
	Language   string   `json:"language"`
	HTTPMethod string   `json:"httpMethod"`
}

const generatePromptTemplate = `You write handler code for a dynamic HTTP endpoint host.
The handler must define a function named endpoint_function(params) where params
is a dictionary of request parameters. The function returns a JSON-serializable
value. Language: %s.

Task: %s

Respond with only a JSON object of the shape
{"path": "/...", "parameters": ["..."], "code": "...", "language": "%s", "httpMethod": "GET"}
with no surrounding prose.`

func (h *Handler) generate(c *gin.Context) {
	var dto GenerateDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if strings.TrimSpace(dto.Prompt) == "" {
		response.BadRequest(c, "prompt is required")
		return
	}
	language, ok := normalizeLanguage(dto.Language)
	if !ok {
		response.BadRequest(c, "language must be javascript or python")
		return
	}
	if h.svc.gen == nil {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
			"error": "Generator is not configured",
		})
		return
	}

	prompt := fmt.Sprintf(generatePromptTemplate, language, dto.Prompt, language)
	raw, err := h.svc.gen.Generate(c.Request.Context(), prompt)
	if err != nil {
		h.svc.logger.Error("endpoint generation failed", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{
			"error": "Generation failed",
		})
		return
	}

	var draft EndpointDraft
	if err := unmarshalModelJSON(raw, &draft); err != nil {
		h.svc.logger.Warn("unparseable generation output", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{
			"error": "Generation produced invalid output",
		})
		return
	}
	if draft.Language == "" {
		draft.Language = string(language)
	}
	if draft.HTTPMethod == "" {
		draft.HTTPMethod = "GET"
	}
	response.OK(c, draft)
}

// unmarshalModelJSON tolerates code fences and leading prose around the JSON
// object the model was asked to produce.
func unmarshalModelJSON(raw string, out interface{}) error {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```JSON")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	if err := json.Unmarshal([]byte(cleaned), out); err == nil {
		return nil
	}

	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start >= 0 && end > start {
		if err := json.Unmarshal([]byte(cleaned[start:end+1]), out); err == nil {
			return nil
		}
	}
	return fmt.Errorf("invalid JSON in model output")
}
