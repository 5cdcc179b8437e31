package photobooth

import (
	"errors"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"

	"github.com/labstack/echo/v4"

	"github.com/eringen/photobooth/compose"
	"github.com/eringen/photobooth/views"
)

func (a *App) handleBooth(c echo.Context) error {
	return Render(c, views.Booth(a.Site()))
}

// embeddedScripts serves the embedded booth client under /public/js/.
var embeddedScripts = func() http.Handler {
	sub, err := fs.Sub(EmbeddedAssets, "embedded")
	if err != nil {
		panic(err)
	}
	return http.StripPrefix("/public/js/", http.FileServer(http.FS(sub)))
}()

func (a *App) handleBoothScript(c echo.Context) error {
	local := filepath.Join(a.Config.StaticDir, "js", "booth.js")
	if _, err := os.Stat(local); err == nil {
		return c.File(local)
	}
	return echo.WrapHandler(embeddedScripts)(c)
}

func (a *App) handleContent(c echo.Context) error {
	path, err := compose.ResolvePath(a.Config.ContentDir, c.Param("name"))
	if err != nil {
		return echo.ErrNotFound
	}
	return c.File(path)
}

func (a *App) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	code := http.StatusInternalServerError
	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
	}
	if code >= 500 {
		a.Logger.Error("server error", "method", c.Request().Method, "uri", c.Request().RequestURI, "err", err)
	}

	if isBoothAPI(c) {
		msg := http.StatusText(code)
		if he != nil && code < 500 {
			if s, ok := he.Message.(string); ok {
				msg = s
			}
		}
		_ = jsonError(c, code, msg)
		return
	}

	switch {
	case code == http.StatusNotFound:
		_ = RenderStatus(c, code, views.NotFound(a.Site()))
	case code >= 500:
		_ = RenderStatus(c, code, views.ServerError(a.Site()))
	default:
		a.Echo.DefaultHTTPErrorHandler(err, c)
	}
}
