// Package views renders the booth and admin pages.
//
// Pages are html/template files embedded in the binary and exposed as
// templ components, so handlers render them the same way regardless of
// how a page is authored.
package views

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/a-h/templ"
)

//go:embed templates/*.html
var templateFS embed.FS

var pages = template.Must(template.New("").Funcs(template.FuncMap{
	"bytes": HumanBytes,
	"ago":   formatTime,
}).ParseFS(templateFS, "templates/*.html"))

// SiteConfig carries the branding every page shows.
type SiteConfig struct {
	EventTitle string
	EventDate  string
	Accent     string
	Message    string
}

// Profile is an event profile row on the admin page.
type Profile struct {
	ID              string
	Name            string
	Title           string
	Date            string
	AccentColor     string
	TextColor       string
	BackgroundColor string
	Message         string
	Active          bool
}

// Photo is one gallery entry as the admin page shows it.
type Photo struct {
	Name        string
	URL         string
	DownloadURL string
	Size        int64
	Taken       time.Time
}

// AdminData feeds the admin gallery page.
type AdminData struct {
	Site      SiteConfig
	Photos    []Photo
	TotalSize int64
	Stats     map[string]int
	Message   string
	CSRFToken string
	Profiles  []Profile
	Editing   Profile // prefilled form; zero value creates a new profile
}

type loginData struct {
	Site      SiteConfig
	ShowError bool
	CSRFToken string
}

type statusData struct {
	Site    SiteConfig
	Code    int
	Message string
}

func page(name string, data any) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		return pages.ExecuteTemplate(w, name, data)
	})
}

// Booth is the capture page the kiosk browser opens.
func Booth(site SiteConfig) templ.Component {
	return page("booth.html", struct{ Site SiteConfig }{site})
}

// AdminLogin is the password form.
func AdminLogin(site SiteConfig, showError bool, csrfToken string) templ.Component {
	return page("login.html", loginData{Site: site, ShowError: showError, CSRFToken: csrfToken})
}

// AdminGallery lists stored images with download and delete actions.
func AdminGallery(data AdminData) templ.Component {
	return page("admin.html", data)
}

// NotFound is the 404 page.
func NotFound(site SiteConfig) templ.Component {
	return page("status.html", statusData{Site: site, Code: 404, Message: "Nothing here."})
}

// ServerError is the 5xx page.
func ServerError(site SiteConfig) templ.Component {
	return page("status.html", statusData{Site: site, Code: 500, Message: "Something went wrong."})
}

// Expired is shown for share links past their lifetime.
func Expired(site SiteConfig) templ.Component {
	return page("status.html", statusData{Site: site, Code: 401, Message: "This link has expired."})
}

// HumanBytes formats a byte count, e.g. 1536 -> "1.5 KB".
func HumanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGTPE"[exp])
}

func formatTime(t time.Time) string {
	return t.Local().Format("02/01/2006 15:04")
}
