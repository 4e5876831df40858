//go:build swag

package swaggerkit

import docs "clockrelay/internal/services/api/docs"

var readDoc = func() string { return docs.SwaggerInfo.ReadDoc() }
