package http

import (
	"encoding/json"
	"fmt"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/labstack/echo/v4"
	echoSwagger "github.com/swaggo/echo-swagger"
	"github.com/swaggo/swag"
)

type swaggerDoc struct {
	json string
}

func (d swaggerDoc) ReadDoc() string {
	return d.json
}

// RegisterSwagger serves the contract and a Swagger UI under /swagger/.
// It must be called once per process since swag keeps a global registry.
func RegisterSwagger(e *echo.Echo, doc *openapi3.T) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal openapi: %w", err)
	}
	swag.Register(swag.Name, swaggerDoc{json: string(raw)})
	e.GET("/swagger/*", echoSwagger.WrapHandler)
	return nil
}
