package photobooth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/eringen/photobooth/compose"
	"github.com/eringen/photobooth/views"
)

// Profile is a named branding preset for one event. Empty fields fall back
// to the server configuration.
type Profile struct {
	ID              string
	Name            string
	Title           string
	Date            string
	AccentColor     string
	TextColor       string
	BackgroundColor string
	Message         string // shown on the booth page
	Active          bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Validate checks the name and that every colour given parses.
func (p Profile) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return errors.New("name is required")
	}
	colours := []struct{ field, value string }{
		{"accent colour", p.AccentColor},
		{"text colour", p.TextColor},
		{"background colour", p.BackgroundColor},
	}
	for _, c := range colours {
		if c.value == "" {
			continue
		}
		if _, err := ParseHexColor(c.value); err != nil {
			return fmt.Errorf("%s: %w", c.field, err)
		}
	}
	return nil
}

// withProfile returns c with the profile's non-empty fields applied.
func (c Config) withProfile(p Profile) Config {
	set := func(dst *string, v string) {
		if v = strings.TrimSpace(v); v != "" {
			*dst = v
		}
	}
	set(&c.EventTitle, p.Title)
	set(&c.EventDate, p.Date)
	set(&c.AccentColor, p.AccentColor)
	set(&c.TextColor, p.TextColor)
	set(&c.BackgroundColor, p.BackgroundColor)
	set(&c.BoothMessage, p.Message)
	return c
}

// branding is the page and pipeline configuration in effect. It is
// replaced as a whole, so a request sees either the old or the new one.
type branding struct {
	site     views.SiteConfig
	pipeline *compose.Pipeline
	profile  string // active profile ID, "" for the configured branding
}

// Pipeline returns the composition pipeline for the current branding.
func (a *App) Pipeline() *compose.Pipeline {
	return a.brand.Load().pipeline
}

// Site returns the branding the pages show.
func (a *App) Site() views.SiteConfig {
	return a.brand.Load().site
}

func (a *App) activeProfileID() string {
	return a.brand.Load().profile
}

// applyProfile rebuilds the pipeline for p, or for the configured branding
// when p is nil, and swaps it in.
func (a *App) applyProfile(p *Profile) error {
	cfg := a.Config
	id := ""
	if p != nil {
		cfg = cfg.withProfile(*p)
		id = p.ID
	}
	ccfg, err := cfg.ComposeConfig()
	if err != nil {
		return err
	}
	pipeline, err := compose.New(ccfg, compose.WithLogger(a.Logger.WithPrefix("compose")))
	if err != nil {
		return err
	}
	a.brand.Store(&branding{
		site: views.SiteConfig{
			EventTitle: cfg.EventTitle,
			EventDate:  cfg.EventDate,
			Accent:     cfg.AccentColor,
			Message:    cfg.BoothMessage,
		},
		pipeline: pipeline,
		profile:  id,
	})
	return nil
}

// loadActiveProfile applies the stored active profile at startup. A
// profile that no longer produces a valid pipeline is skipped.
func (a *App) loadActiveProfile() error {
	p, err := a.Store.ActiveProfile()
	if errors.Is(err, ErrNotFound) {
		return a.applyProfile(nil)
	}
	if err != nil {
		return err
	}
	if err := a.applyProfile(&p); err != nil {
		a.Logger.Warn("active profile unusable, using configured branding", "profile", p.Name, "err", err)
		return a.applyProfile(nil)
	}
	a.Logger.Info("event profile active", "profile", p.Name)
	return nil
}

func profileFromForm(c echo.Context) Profile {
	return Profile{
		ID:              c.FormValue("id"),
		Name:            strings.TrimSpace(c.FormValue("name")),
		Title:           strings.TrimSpace(c.FormValue("title")),
		Date:            strings.TrimSpace(c.FormValue("date")),
		AccentColor:     strings.TrimSpace(c.FormValue("accent_color")),
		TextColor:       strings.TrimSpace(c.FormValue("text_color")),
		BackgroundColor: strings.TrimSpace(c.FormValue("bg_color")),
		Message:         strings.TrimSpace(c.FormValue("message")),
	}
}

func (a *App) handleSaveProfile(c echo.Context) error {
	p := profileFromForm(c)
	if err := p.Validate(); err != nil {
		return a.redirectAdmin(c, "Profile not saved: "+err.Error())
	}
	saved, err := a.Store.SaveProfile(p)
	if errors.Is(err, ErrNotFound) {
		return echo.ErrNotFound
	}
	if err != nil {
		return err
	}
	if saved.Active {
		if err := a.applyProfile(&saved); err != nil {
			return err
		}
		a.brandingChanged()
	}
	a.Logger.Info("profile saved", "profile", saved.Name, "id", saved.ID)
	return a.redirectAdmin(c, "Saved profile "+saved.Name)
}

func (a *App) handleActivateProfile(c echo.Context) error {
	p, err := a.Store.ActivateProfile(c.Param("id"))
	if errors.Is(err, ErrNotFound) {
		return echo.ErrNotFound
	}
	if err != nil {
		return err
	}
	if err := a.applyProfile(&p); err != nil {
		return err
	}
	a.brandingChanged()
	a.Logger.Info("profile activated", "profile", p.Name)
	return a.redirectAdmin(c, "Activated profile "+p.Name)
}

func (a *App) handleDeactivateProfiles(c echo.Context) error {
	if err := a.Store.DeactivateProfiles(); err != nil {
		return err
	}
	if err := a.applyProfile(nil); err != nil {
		return err
	}
	a.brandingChanged()
	a.Logger.Info("profiles deactivated")
	return a.redirectAdmin(c, "Using the configured branding")
}

func (a *App) handleDeleteProfile(c echo.Context) error {
	id := c.Param("id")
	if err := a.Store.DeleteProfile(id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.ErrNotFound
		}
		return err
	}
	if id == a.activeProfileID() {
		if err := a.applyProfile(nil); err != nil {
			return err
		}
		a.brandingChanged()
	}
	a.Logger.Info("profile deleted", "id", id)
	return a.redirectAdmin(c, "Profile deleted")
}

// brandingChanged tells open admin pages to reload.
func (a *App) brandingChanged() {
	a.Hub.Publish(GalleryEvent{Event: EventBranding})
}

func profileViews(profiles []Profile) []views.Profile {
	out := make([]views.Profile, len(profiles))
	for i, p := range profiles {
		out[i] = views.Profile{
			ID:              p.ID,
			Name:            p.Name,
			Title:           p.Title,
			Date:            p.Date,
			AccentColor:     p.AccentColor,
			TextColor:       p.TextColor,
			BackgroundColor: p.BackgroundColor,
			Message:         p.Message,
			Active:          p.Active,
		}
	}
	return out
}

// findProfile returns the profile with the given ID from list, or the
// zero value when id is empty or unknown.
func findProfile(list []views.Profile, id string) views.Profile {
	for _, p := range list {
		if id != "" && p.ID == id {
			return p
		}
	}
	return views.Profile{}
}
