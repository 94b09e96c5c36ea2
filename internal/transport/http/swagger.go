package http

import (
	"github.com/labstack/echo/v4"
	echoSwagger "github.com/swaggo/echo-swagger"

	// registers the API document with swag
	_ "github.com/njprem/agri_admin_backend/docs"
)

// RegisterSwagger serves the Swagger UI and doc.json under /swagger.
func RegisterSwagger(e *echo.Echo) {
	e.GET("/swagger/*", echoSwagger.WrapHandler)
}
