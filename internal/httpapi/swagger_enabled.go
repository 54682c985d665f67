//go:build swagger

package httpapi

import (
	"github.com/go-chi/chi/v5"
	httpSwagger "github.com/swaggo/http-swagger"
	"github.com/swaggo/swag"
)

// swaggerSpec mirrors the output of `swag init` for the annotated handlers;
// regenerate with `make swagger-gen` after changing the API surface.
var swaggerSpec = &swag.Spec{
	Version:          "1.0",
	BasePath:         "/",
	Schemes:          []string{"http"},
	Title:            "onnxd API",
	Description:      "HTTP API for ONNX model management and evaluation.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  swaggerTemplate,
}

func init() {
	swag.Register(swaggerSpec.InstanceName(), swaggerSpec)
}

// MountSwagger serves the interactive API docs under /docs.
func MountSwagger(r chi.Router) {
	r.Get("/docs/*", httpSwagger.Handler(
		httpSwagger.URL("/docs/doc.json"),
	))
}

const swaggerTemplate = `{
  "schemes": {{ marshal .Schemes }},
  "swagger": "2.0",
  "info": {
    "title": "{{.Title}}",
    "description": "{{escape .Description}}",
    "version": "{{.Version}}"
  },
  "basePath": "{{.BasePath}}",
  "paths": {
    "/models": {
      "get": {"summary": "List registered models", "produces": ["application/json"], "responses": {"200": {"description": "OK"}}}
    },
    "/models/{id}": {
      "get": {"summary": "Model detail with IO descriptors and validity window", "produces": ["application/json"],
        "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
        "responses": {"200": {"description": "OK"}, "404": {"description": "unknown model"}}}
    },
    "/eval": {
      "post": {"summary": "Evaluate a flat buffer or prepared tensors", "consumes": ["application/json"], "produces": ["application/json"],
        "responses": {"200": {"description": "OK"}, "400": {"description": "shape error"}, "404": {"description": "unknown model"}, "429": {"description": "too busy"}, "503": {"description": "runtime unavailable"}}}
    },
    "/models/{id}/fetch": {
      "post": {"summary": "Fetch a remote artifact and load it", "consumes": ["application/json"], "produces": ["application/json"],
        "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
        "responses": {"200": {"description": "OK"}, "502": {"description": "store unreachable"}}}
    },
    "/models/{id}/reload": {
      "post": {"summary": "Reload the instance with the current thread policy",
        "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
        "responses": {"200": {"description": "OK"}}}
    },
    "/models/{id}/unload": {
      "post": {"summary": "Drain and unload the instance",
        "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
        "responses": {"200": {"description": "OK"}, "404": {"description": "unknown model"}}}
    },
    "/status": {
      "get": {"summary": "Manager and host status", "produces": ["application/json"], "responses": {"200": {"description": "OK"}}}
    }
  }
}`
