// Package api holds the HTTP handlers. Handlers are thin: they parse the
// request, call one orchestrator, and map the outcome onto a status code.
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/deephabiswashi/vasha/cmd/server/internal/orchestrator/stage"
)

// currentUser returns the authenticated user from the context, falling back
// to the X-User header, then "system".
func currentUser(c *gin.Context) string {
	if user, exists := c.Get("user"); exists {
		if username, ok := user.(string); ok && username != "" {
			return username
		}
	}
	if u := c.GetHeader("X-User"); u != "" {
		return u
	}
	return "system"
}

func errorResponse(c *gin.Context, code int, message string) {
	c.JSON(code, gin.H{
		"error": message,
	})
}

func badRequestResponse(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error": message,
	})
}

func notFoundResponse(c *gin.Context, resource string) {
	c.JSON(http.StatusNotFound, gin.H{
		"error": resource + " not found",
	})
}

func internalErrorResponse(c *gin.Context, err error) {
	c.JSON(http.StatusInternalServerError, gin.H{
		"error":  "internal server error",
		"detail": err.Error(),
	})
}

// stageErrorResponse maps a pipeline stage error onto an HTTP status:
// caller mistakes are 400, a failed local transcode is 500, and engine
// failures surface as 502 because the fault lies with an upstream model
// service.
func stageErrorResponse(c *gin.Context, err error) {
	serr, ok := stage.As(err)
	if !ok {
		internalErrorResponse(c, err)
		return
	}

	status := http.StatusBadGateway
	switch {
	case stage.IsValidation(serr):
		status = http.StatusBadRequest
	case serr.Code == stage.TRANSCODE_FAILURE:
		status = http.StatusInternalServerError
	}

	body := gin.H{
		"error": serr.Message,
		"code":  string(serr.Code),
		"stage": string(serr.Stage),
	}
	if serr.Requested != "" {
		body["requested"] = serr.Requested
	}
	if len(serr.Attempted) > 0 {
		body["attempted"] = serr.Attempted
	}
	c.JSON(status, body)
}
