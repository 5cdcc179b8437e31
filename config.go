package photobooth

import (
	"errors"
	"fmt"
	"image/color"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/eringen/photobooth/compose"
)

// Config holds all configuration for a photobooth server. It is read once
// at startup and never mutated afterwards.
type Config struct {
	Addr         string `toml:"addr"`          // Listen address (default ":5000")
	BaseURL      string `toml:"base_url"`      // Public URL used in share links (default "http://localhost:5000")
	ContentDir   string `toml:"content_dir"`   // Stored images (default "static/uploads")
	StaticDir    string `toml:"static_dir"`    // Booth assets served under /public (default "static")
	DatabasePath string `toml:"database_path"` // SQLite path (default "data/photobooth.db")

	AdminPassword string `toml:"admin_password"` // Required: admin login password
	SessionSecret string `toml:"session_secret"` // Required: session encryption secret
	CookieSecure  bool   `toml:"cookie_secure"`  // Set true for HTTPS

	EventTitle      string  `toml:"event_title"`   // Caption first line (default "Photobooth")
	EventDate       string  `toml:"event_date"`    // Caption second line (default today, dd/mm/yyyy)
	BoothMessage    string  `toml:"booth_message"` // Shown on the booth page, e.g. "Smile!"
	AccentColor     string  `toml:"accent_color"`  // Footer stripe (default "#E91E63")
	TextColor       string  `toml:"text_color"`    // Caption colour (default "#333333")
	BackgroundColor string  `toml:"bg_color"`      // Canvas colour (default "#FFFFFF")
	CanvasWidth     int     `toml:"canvas_width"`  // Strip width in pixels (default 600)
	Padding         *int    `toml:"padding"`       // Gap around photos (default 20); 0 is honoured
	FooterHeight    *int    `toml:"footer_height"` // Caption band (default 100); 0 is honoured
	FontPath        string  `toml:"font_path"`     // TTF/OTF caption font; built-in font when absent
	FontSize        float64 `toml:"font_size"`
	MaxPixels       int     `toml:"max_pixels"` // Per-photo decode cap (default compose.DefaultMaxPixels)

	ShareTTL        time.Duration `toml:"-"` // QR share link lifetime (default 5min)
	GalleryCacheTTL time.Duration `toml:"-"` // Admin listing cache (default 5s)
}

const (
	defaultPadding      = 20
	defaultFooterHeight = 100
)

func (c *Config) setDefaults() {
	if c.Addr == "" {
		c.Addr = ":5000"
	}
	if c.BaseURL == "" {
		c.BaseURL = "http://" + c.Addr
		if strings.HasPrefix(c.Addr, ":") {
			c.BaseURL = "http://localhost" + c.Addr
		}
	}
	c.BaseURL = strings.TrimSuffix(c.BaseURL, "/")
	if c.ContentDir == "" {
		c.ContentDir = "static/uploads"
	}
	if c.StaticDir == "" {
		c.StaticDir = "static"
	}
	if c.DatabasePath == "" {
		c.DatabasePath = "data/photobooth.db"
	}
	if c.EventTitle == "" {
		c.EventTitle = "Photobooth"
	}
	if c.EventDate == "" {
		c.EventDate = time.Now().Format("02/01/2006")
	}
	if c.AccentColor == "" {
		c.AccentColor = "#E91E63"
	}
	if c.TextColor == "" {
		c.TextColor = "#333333"
	}
	if c.BackgroundColor == "" {
		c.BackgroundColor = "#FFFFFF"
	}
	if c.CanvasWidth == 0 {
		c.CanvasWidth = 600
	}
	if c.Padding == nil {
		c.Padding = intPtr(defaultPadding)
	}
	if c.FooterHeight == nil {
		c.FooterHeight = intPtr(defaultFooterHeight)
	}
	if c.MaxPixels == 0 {
		c.MaxPixels = compose.DefaultMaxPixels
	}
	if c.FontPath == "" {
		c.FontPath = "static/fonts/caption.ttf"
	}
	if c.FontSize == 0 {
		c.FontSize = compose.DefaultFontSize
	}
	if c.ShareTTL == 0 {
		c.ShareTTL = 5 * time.Minute
	}
	if c.GalleryCacheTTL == 0 {
		c.GalleryCacheTTL = 5 * time.Second
	}
}

// Validate checks the settings the server cannot start without.
func (c Config) Validate() error {
	if c.AdminPassword == "" {
		return errors.New("photobooth: ADMIN_PASSWORD is required")
	}
	if c.SessionSecret == "" {
		return errors.New("photobooth: SESSION_SECRET is required")
	}
	_, err := c.ComposeConfig()
	return err
}

// ComposeConfig converts the branding settings into the pipeline's
// immutable configuration.
func (c Config) ComposeConfig() (compose.Config, error) {
	bg, err := ParseHexColor(c.BackgroundColor)
	if err != nil {
		return compose.Config{}, fmt.Errorf("bg_color: %w", err)
	}
	text, err := ParseHexColor(c.TextColor)
	if err != nil {
		return compose.Config{}, fmt.Errorf("text_color: %w", err)
	}
	accent, err := ParseHexColor(c.AccentColor)
	if err != nil {
		return compose.Config{}, fmt.Errorf("accent_color: %w", err)
	}
	return compose.Config{
		ContentDir:   c.ContentDir,
		CanvasWidth:  c.CanvasWidth,
		Padding:      intOr(c.Padding, defaultPadding),
		FooterHeight: intOr(c.FooterHeight, defaultFooterHeight),
		Background:   bg,
		TextColor:    text,
		AccentColor:  accent,
		Title:        c.EventTitle,
		Date:         c.EventDate,
		FontPath:     c.FontPath,
		FontSize:     c.FontSize,
		MaxPixels:    c.MaxPixels,
	}, nil
}

// LoadConfig builds a Config from, in increasing priority: a .env file in
// the working directory, the TOML file at path (if non-empty), the
// process environment and overrides (command-line flags). Defaults fill
// whatever is left, so derived values such as BaseURL follow the
// overridden settings.
func LoadConfig(path string, overrides ...func(*Config)) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	var cfg Config
	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return Config{}, fmt.Errorf("load config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	for _, override := range overrides {
		override(&cfg)
	}
	cfg.setDefaults()
	return cfg, nil
}

func (c *Config) applyEnv() error {
	strs := map[string]*string{
		"ADDR":           &c.Addr,
		"BASE_URL":       &c.BaseURL,
		"CONTENT_DIR":    &c.ContentDir,
		"STATIC_DIR":     &c.StaticDir,
		"DATABASE_PATH":  &c.DatabasePath,
		"ADMIN_PASSWORD": &c.AdminPassword,
		"SESSION_SECRET": &c.SessionSecret,
		"EVENT_TITLE":    &c.EventTitle,
		"EVENT_DATE":     &c.EventDate,
		"BOOTH_MESSAGE":  &c.BoothMessage,
		"ACCENT_COLOR":   &c.AccentColor,
		"TEXT_COLOR":     &c.TextColor,
		"BG_COLOR":       &c.BackgroundColor,
		"FONT_PATH":      &c.FontPath,
	}
	for key, dst := range strs {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	ints := map[string]*int{
		"CANVAS_WIDTH": &c.CanvasWidth,
		"MAX_PIXELS":   &c.MaxPixels,
	}
	for key, dst := range ints {
		if v := os.Getenv(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*dst = n
		}
	}
	optional := map[string]**int{
		"PADDING":       &c.Padding,
		"FOOTER_HEIGHT": &c.FooterHeight,
	}
	for key, dst := range optional {
		if v := os.Getenv(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*dst = &n
		}
	}

	if v := os.Getenv("FONT_SIZE"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("FONT_SIZE: %w", err)
		}
		c.FontSize = f
	}
	if v := os.Getenv("COOKIE_SECURE"); v != "" {
		c.CookieSecure = strings.EqualFold(v, "true")
	}
	return nil
}

func intPtr(n int) *int { return &n }

func intOr(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}

// ParseHexColor parses "#RGB" or "#RRGGBB" (the leading # is optional).
func ParseHexColor(s string) (color.NRGBA, error) {
	h := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(h) == 3 {
		h = string([]byte{h[0], h[0], h[1], h[1], h[2], h[2]})
	}
	if len(h) != 6 {
		return color.NRGBA{}, fmt.Errorf("invalid colour %q", s)
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("invalid colour %q", s)
	}
	return color.NRGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}, nil
}

// Option configures additional App behavior.
type Option func(*App)
