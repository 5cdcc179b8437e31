package photobooth

import (
	"crypto/subtle"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/eringen/photobooth/compose"
	"github.com/eringen/photobooth/views"
)

func (a *App) handleAdmin(c echo.Context) error {
	if !IsAdmin(c) {
		return Render(c, views.AdminLogin(a.Site(), false, CsrfToken(c)))
	}
	return a.renderGallery(c, c.QueryParam("msg"))
}

func (a *App) handleLogin(c echo.Context) error {
	ip := c.RealIP()
	if !a.loginLimiter.Check(ip) {
		return c.String(http.StatusTooManyRequests, "Too many login attempts. Try again later.")
	}
	pass := c.FormValue("password")
	if subtle.ConstantTimeCompare([]byte(pass), []byte(a.Config.AdminPassword)) == 1 {
		if err := setAdminSession(c); err != nil {
			return err
		}
		return c.Redirect(http.StatusSeeOther, "/admin")
	}
	a.loginLimiter.Record(ip)
	a.Logger.Warn("failed admin login", "ip", ip)
	return RenderStatus(c, http.StatusUnauthorized, views.AdminLogin(a.Site(), true, CsrfToken(c)))
}

func handleLogout(c echo.Context) error {
	if err := clearAdminSession(c); err != nil {
		return err
	}
	return c.Redirect(http.StatusSeeOther, "/admin")
}

func (a *App) handleDownload(c echo.Context) error {
	name := c.Param("name")
	path, err := compose.ResolvePath(a.Config.ContentDir, name)
	if err != nil {
		return c.String(http.StatusBadRequest, "Invalid file name")
	}
	return c.Attachment(path, name)
}

func (a *App) handleDelete(c echo.Context) error {
	name := c.Param("name")
	if err := compose.Remove(a.Config.ContentDir, name); err != nil {
		if compose.IsKind(err, compose.KindInvalidName) {
			return c.String(http.StatusBadRequest, "Invalid file name")
		}
		return err
	}
	if err := a.Store.DeleteShareTokensFor(name); err != nil {
		a.Logger.Warn("revoke share tokens failed", "file", name, "err", err)
	}
	a.Logger.Info("image deleted", "file", name)
	a.published(EventDeleted, name)
	return a.redirectAdmin(c, "Deleted "+name)
}

func (a *App) handleDeleteAll(c echo.Context) error {
	n, err := compose.RemoveAll(a.Config.ContentDir)
	if err != nil {
		a.Gallery.Invalidate()
		return err
	}
	if err := a.Store.DeleteAllShareTokens(); err != nil {
		a.Logger.Warn("revoke share tokens failed", "err", err)
	}
	a.Logger.Info("gallery cleared", "deleted", n)
	a.published(EventCleared, "")
	return a.redirectAdmin(c, fmt.Sprintf("Deleted %d images", n))
}

func (a *App) redirectAdmin(c echo.Context, msg string) error {
	return c.Redirect(http.StatusSeeOther, "/admin?msg="+url.QueryEscape(msg))
}

func (a *App) renderGallery(c echo.Context, msg string) error {
	photos, err := a.Gallery.List()
	if err != nil {
		return err
	}
	stats, err := a.Store.CountEvents(time.Now().Add(-24 * time.Hour))
	if err != nil {
		return err
	}
	profiles, err := a.Store.ListProfiles()
	if err != nil {
		return err
	}
	pviews := profileViews(profiles)
	items := make([]views.Photo, len(photos))
	for i, p := range photos {
		items[i] = views.Photo{
			Name:        p.Name,
			URL:         contentURL(p.Name),
			DownloadURL: downloadURL(p.Name),
			Size:        p.Size,
			Taken:       p.ModTime,
		}
	}
	return Render(c, views.AdminGallery(views.AdminData{
		Site:      a.Site(),
		Photos:    items,
		TotalSize: TotalSize(photos),
		Stats:     stats,
		Message:   msg,
		CSRFToken: CsrfToken(c),
		Profiles:  pviews,
		Editing:   findProfile(pviews, c.QueryParam("edit")),
	}))
}
