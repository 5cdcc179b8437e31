package photobooth

import (
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/sessions"
	"github.com/labstack/echo-contrib/session"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

const (
	sessionName   = "admin_session"
	sessionMaxAge = 12 * time.Hour

	// maxBodySize bounds booth uploads: three base64 camera frames.
	maxBodySize = "30M"

	contentSecurityPolicy = "default-src 'self'; script-src 'self' 'unsafe-inline'; style-src 'self' 'unsafe-inline'; " +
		"img-src 'self' data: blob:; media-src 'self' blob:; connect-src 'self' ws: wss:"
)

func (a *App) setupMiddleware() {
	e := a.Echo

	e.IPExtractor = echo.ExtractIPFromXFFHeader(
		echo.TrustLoopback(true),
		echo.TrustLinkLocal(false),
		echo.TrustPrivateNet(true),
	)
	e.HTTPErrorHandler = a.httpErrorHandler

	e.Pre(middleware.RemoveTrailingSlashWithConfig(middleware.TrailingSlashConfig{
		RedirectCode: http.StatusMovedPermanently,
	}))

	e.Use(
		a.requestLogger(),
		middleware.Recover(),
		middleware.GzipWithConfig(middleware.GzipConfig{Level: 5, Skipper: isBinaryRoute}),
		middleware.SecureWithConfig(middleware.SecureConfig{
			XSSProtection:         "1; mode=block",
			ContentTypeNosniff:    "nosniff",
			XFrameOptions:         "DENY",
			ReferrerPolicy:        "same-origin",
			ContentSecurityPolicy: contentSecurityPolicy,
			HSTSMaxAge:            31536000,
		}),
		cameraPolicy,
		session.Middleware(a.newSessionStore()),
		a.csrf(),
		cacheControlMiddleware,
	)
}

func (a *App) requestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:   true,
		LogURI:      true,
		LogMethod:   true,
		LogLatency:  true,
		LogRemoteIP: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			a.Logger.Info("request", "method", v.Method, "uri", v.URI, "status", v.Status,
				"latency", v.Latency, "ip", v.RemoteIP)
			return nil
		},
	})
}

// csrf protects the admin forms. The booth API is exempt.
func (a *App) csrf() echo.MiddlewareFunc {
	return middleware.CSRFWithConfig(middleware.CSRFConfig{
		TokenLookup:    "header:X-CSRF-Token,form:_csrf",
		CookieName:     "_csrf",
		CookiePath:     "/",
		CookieHTTPOnly: true,
		CookieSameSite: http.SameSiteLaxMode,
		CookieSecure:   a.Config.CookieSecure,
		Skipper:        isBoothAPI,
		ErrorHandler: func(err error, c echo.Context) error {
			a.Logger.Warn("csrf rejected", "uri", c.Request().RequestURI, "ip", c.RealIP())
			return c.String(http.StatusForbidden, "Forbidden")
		},
	})
}

// cameraPolicy lets the booth page (and nothing embedding it) open the camera.
func cameraPolicy(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		c.Response().Header().Set("Permissions-Policy", "camera=(self), microphone=(), geolocation=()")
		return next(c)
	}
}

// isBoothAPI reports whether the request targets the JSON endpoints used
// by the booth client, which authenticates nothing and carries no cookies.
func isBoothAPI(c echo.Context) bool {
	p := c.Request().URL.Path
	return p == "/compose" || p == "/upload" || strings.HasPrefix(p, "/share/")
}

// isBinaryRoute matches responses that are already compressed images or
// upgraded connections.
func isBinaryRoute(c echo.Context) bool {
	p := c.Request().URL.Path
	for _, prefix := range []string{"/content/", "/download/", "/s/"} {
		if strings.HasPrefix(p, prefix) {
			return true
		}
	}
	return p == "/admin/live"
}

func cacheControlMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		h := c.Response().Header()
		p := c.Request().URL.Path
		switch {
		case strings.HasPrefix(p, "/content/"):
			// Names are never reused.
			h.Set("Cache-Control", "public, max-age=31536000, immutable")
		case strings.HasPrefix(p, "/public/"):
			h.Set("Cache-Control", "public, max-age=3600")
		default:
			h.Set("Cache-Control", "no-store")
		}
		return next(c)
	}
}

// boothLimit rate-limits the booth endpoints per client IP.
func (a *App) boothLimit(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !a.boothLimiter.Allow(c.RealIP()) {
			return jsonError(c, http.StatusTooManyRequests, "too many requests, slow down")
		}
		return next(c)
	}
}

// requireAdmin sends anyone without an admin session to the login page.
func requireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if IsAdmin(c) {
			return next(c)
		}
		return c.Redirect(http.StatusSeeOther, "/admin")
	}
}

func (a *App) newSessionStore() *sessions.CookieStore {
	store := sessions.NewCookieStore([]byte(a.Config.SessionSecret))
	store.Options = &sessions.Options{
		Path:     "/",
		HttpOnly: true,
		MaxAge:   int(sessionMaxAge.Seconds()),
		SameSite: http.SameSiteLaxMode,
		Secure:   a.Config.CookieSecure,
	}
	return store
}

// IsAdmin reports whether the request carries a live admin session.
func IsAdmin(c echo.Context) bool {
	sess, err := session.Get(sessionName, c)
	if err != nil {
		return false
	}
	since, ok := sess.Values["admin_since"].(int64)
	return ok && time.Since(time.Unix(since, 0)) < sessionMaxAge
}

func setAdminSession(c echo.Context) error {
	sess, err := session.Get(sessionName, c)
	if err != nil {
		return err
	}
	sess.Values["admin_since"] = time.Now().Unix()
	return sess.Save(c.Request(), c.Response())
}

func clearAdminSession(c echo.Context) error {
	sess, err := session.Get(sessionName, c)
	if err != nil {
		return err
	}
	delete(sess.Values, "admin_since")
	sess.Options.MaxAge = -1
	return sess.Save(c.Request(), c.Response())
}

// CsrfToken returns the token the CSRF middleware stored for this request.
func CsrfToken(c echo.Context) string {
	token, _ := c.Get(middleware.DefaultCSRFConfig.ContextKey).(string)
	return token
}
