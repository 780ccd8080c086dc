package handlers

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

//go:embed openapi.yaml
var openAPISpec []byte

const docsHTML = `<!doctype html>
<html lang="en">
<head>
  <meta charset="utf-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1" />
  <title>svc-users API</title>
</head>
<body>
  <script id="api-reference" data-url="/openapi.json" data-configuration='{"theme":"default","darkMode":true}'></script>
  <script src="https://cdn.jsdelivr.net/npm/@scalar/api-reference"></script>
</body>
</html>`

// OpenAPIHandler serves the API description and its reference page
type OpenAPIHandler struct {
	specJSON []byte
	logger   *zap.Logger
}

// NewOpenAPIHandler converts the embedded YAML document to JSON once
func NewOpenAPIHandler(logger *zap.Logger) (*OpenAPIHandler, error) {
	specJSON, err := yamlToJSON(openAPISpec)
	if err != nil {
		return nil, fmt.Errorf("failed to load openapi document: %w", err)
	}
	return &OpenAPIHandler{specJSON: specJSON, logger: logger}, nil
}

// HandleJSON handles GET /openapi.json
func (h *OpenAPIHandler) HandleJSON(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(h.specJSON); err != nil {
		h.logger.Debug("failed to write openapi document", zap.Error(err))
	}
}

// HandleYAML handles GET /openapi.yaml
func (h *OpenAPIHandler) HandleYAML(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/yaml; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(openAPISpec)
}

// HandleDocs handles GET /docs
func (h *OpenAPIHandler) HandleDocs(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(docsHTML))
}

func yamlToJSON(doc []byte) ([]byte, error) {
	var spec map[string]interface{}
	if err := yaml.Unmarshal(doc, &spec); err != nil {
		return nil, err
	}
	if spec == nil {
		return nil, errors.New("empty document")
	}
	return json.Marshal(spec)
}
