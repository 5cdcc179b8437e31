package photobooth

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/eringen/photobooth/compose"
)

func (a *App) handleCompose(c echo.Context) error {
	var req composeRequest
	if err := c.Bind(&req); err != nil {
		return jsonError(c, http.StatusBadRequest, "invalid request body")
	}
	if !compose.ValidCount(len(req.Photos)) {
		return jsonError(c, http.StatusBadRequest, fmt.Sprintf("expected 1 or 3 photos, got %d", len(req.Photos)))
	}

	res, err := a.Pipeline().Compose(c.Request().Context(), req.Photos)
	if err != nil {
		return a.pipelineError(c, err)
	}
	a.Logger.Info("strip composed", "file", res.Filename, "photos", len(req.Photos), "bytes", res.Bytes)
	a.published(EventComposed, res.Filename)
	return c.JSON(http.StatusOK, successResponse{Status: "success", Filename: res.Filename, URL: contentURL(res.Filename)})
}

func (a *App) handleUpload(c echo.Context) error {
	var req uploadRequest
	if err := c.Bind(&req); err != nil || req.Image == "" {
		return jsonError(c, http.StatusBadRequest, "invalid request body")
	}

	res, err := a.Pipeline().Store(c.Request().Context(), req.Image)
	if err != nil {
		return a.pipelineError(c, err)
	}
	a.Logger.Info("photo uploaded", "file", res.Filename, "bytes", res.Bytes)
	a.published(EventUploaded, res.Filename)
	return c.JSON(http.StatusOK, successResponse{Status: "success", Filename: res.Filename, URL: contentURL(res.Filename)})
}

// pipelineError maps a pipeline failure to the booth API error shape. The
// full chain is logged; clients only see the pipeline's own messages.
func (a *App) pipelineError(c echo.Context, err error) error {
	code := http.StatusInternalServerError
	switch {
	case compose.IsKind(err, compose.KindCount):
		code = http.StatusBadRequest
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		code = http.StatusServiceUnavailable
	}
	a.Logger.Warn("pipeline failed", "kind", compose.KindOf(err), "err", err)
	msg := compose.Describe(err)
	if msg == "" {
		msg = http.StatusText(code)
	}
	return jsonError(c, code, msg)
}
