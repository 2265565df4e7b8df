// Package api carries the HTTP contract of the service.
package api

import _ "embed"

//go:embed openapi.yaml
var OpenAPI []byte
