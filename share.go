package photobooth

import (
	"encoding/base64"
	"errors"
	"net/http"
	"os"

	"github.com/labstack/echo/v4"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/eringen/photobooth/compose"
	"github.com/eringen/photobooth/views"
)

const qrSize = 256

// QRDataURL renders text as a PNG QR code data URL.
func QRDataURL(text string) (string, error) {
	png, err := qrcode.Encode(text, qrcode.Medium, qrSize)
	if err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}

func (a *App) handleShare(c echo.Context) error {
	name := c.Param("name")
	path, err := compose.ResolvePath(a.Config.ContentDir, name)
	if err != nil {
		return jsonError(c, http.StatusBadRequest, "invalid file name")
	}
	if _, err := os.Stat(path); err != nil {
		return jsonError(c, http.StatusNotFound, "image not found")
	}

	tok, err := a.Store.CreateShareToken(name, a.Config.ShareTTL)
	if err != nil {
		return err
	}
	link := BuildURL(a.Config.BaseURL, "s", tok.Token)
	qr, err := QRDataURL(link)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, shareResponse{
		Status:    "success",
		Token:     tok.Token,
		URL:       link,
		QR:        qr,
		ExpiresAt: tok.ExpiresAt,
	})
}

func (a *App) handleShared(c echo.Context) error {
	tok, err := a.Store.GetShareToken(c.Param("token"))
	if errors.Is(err, ErrNotFound) {
		return echo.ErrNotFound
	}
	if err != nil {
		return err
	}
	if tok.Expired(timeNow()) {
		if err := a.Store.DeleteShareToken(tok.Token); err != nil {
			a.Logger.Warn("delete expired token failed", "err", err)
		}
		return RenderStatus(c, http.StatusUnauthorized, views.Expired(a.Site()))
	}
	path, err := compose.ResolvePath(a.Config.ContentDir, tok.Filename)
	if err != nil {
		return echo.ErrNotFound
	}
	return c.File(path)
}
