package handler

import (
	"log"

	"github.com/gin-gonic/gin"

	problem "github.com/scholarfolio/portfolio-api/pkg/portfolio_api/helpers/problem"
)

// respondError writes an error as problem+json for handlers registered
// outside tonic (multipart and download routes). Mirrors the tonic error
// hook: APIError passes through, everything else is a suppressed 500.
func respondError(ctx *gin.Context, err error) {
	ctx.Header("Content-Type", "application/problem+json")
	if apiErr, ok := err.(problem.APIError); ok {
		ctx.AbortWithStatusJSON(apiErr.Status, apiErr)
		return
	}
	log.Printf("[ERROR] %v", err)
	internal := problem.NewInternalServerError("internal server error")
	ctx.AbortWithStatusJSON(internal.Status, internal)
}
