package photobooth

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const testPassword = "let-me-in"

func newTestApp(t *testing.T) *App {
	t.Helper()
	dir := t.TempDir()
	a, err := New(Config{
		BaseURL:       "http://booth.test",
		ContentDir:    filepath.Join(dir, "uploads"),
		StaticDir:     filepath.Join(dir, "static"),
		DatabasePath:  filepath.Join(dir, "data", "photobooth.db"),
		AdminPassword: testPassword,
		SessionSecret: "test-session-secret",
		EventTitle:    "Test Party",
		EventDate:     "15/10/2026",
		FontPath:      filepath.Join(dir, "missing.ttf"),
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return a
}

func photoDataURL(t *testing.T, w, h int, c color.Color) string {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}

func doJSON(t *testing.T, a *App, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	a.Echo.ServeHTTP(rec, req)
	return rec
}

func do(a *App, req *http.Request, cookies []*http.Cookie) *httptest.ResponseRecorder {
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	a.Echo.ServeHTTP(rec, req)
	return rec
}

// mergeCookies overlays the cookies set by rec onto jar.
func mergeCookies(jar []*http.Cookie, rec *httptest.ResponseRecorder) []*http.Cookie {
	byName := make(map[string]*http.Cookie)
	var order []string
	for _, c := range jar {
		byName[c.Name] = c
		order = append(order, c.Name)
	}
	for _, c := range rec.Result().Cookies() {
		if _, ok := byName[c.Name]; !ok {
			order = append(order, c.Name)
		}
		byName[c.Name] = c
	}
	out := make([]*http.Cookie, 0, len(order))
	for _, name := range order {
		out = append(out, &http.Cookie{Name: name, Value: byName[name].Value})
	}
	return out
}

func cookieValue(jar []*http.Cookie, name string) string {
	for _, c := range jar {
		if c.Name == name {
			return c.Value
		}
	}
	return ""
}

func postForm(a *App, path string, form url.Values, jar []*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return do(a, req, jar)
}

// login returns a cookie jar holding an authenticated admin session.
func login(t *testing.T, a *App) []*http.Cookie {
	t.Helper()
	rec := do(a, httptest.NewRequest(http.MethodGet, "/admin", nil), nil)
	jar := mergeCookies(nil, rec)
	csrf := cookieValue(jar, "_csrf")
	if csrf == "" {
		t.Fatal("expected _csrf cookie from login page")
	}

	rec = postForm(a, "/login", url.Values{"password": {testPassword}, "_csrf": {csrf}}, jar)
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("login: expected 303, got %d: %s", rec.Code, rec.Body.String())
	}
	return mergeCookies(jar, rec)
}

func composeOne(t *testing.T, a *App) successResponse {
	t.Helper()
	rec := doJSON(t, a, "/compose", composeRequest{Photos: []string{photoDataURL(t, 40, 30, color.NRGBA{200, 0, 0, 255})}})
	if rec.Code != http.StatusOK {
		t.Fatalf("compose: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp successResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	return resp
}

func TestComposeThreePhotos(t *testing.T) {
	a := newTestApp(t)
	red := photoDataURL(t, 40, 30, color.NRGBA{255, 0, 0, 255})
	rec := doJSON(t, a, "/compose", composeRequest{Photos: []string{red, red, red}})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp successResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Status != "success" {
		t.Errorf("status = %q", resp.Status)
	}
	if resp.URL != "/content/"+resp.Filename {
		t.Errorf("url = %q for %q", resp.URL, resp.Filename)
	}

	f, err := os.Open(filepath.Join(a.Config.ContentDir, resp.Filename))
	if err != nil {
		t.Fatalf("composed file missing: %v", err)
	}
	defer f.Close()
	cfg, err := png.DecodeConfig(f)
	if err != nil {
		t.Fatalf("composed file is not a PNG: %v", err)
	}
	// 3 * 420 + 4 * 20 + 100
	if cfg.Width != 600 || cfg.Height != 1440 {
		t.Errorf("size = %dx%d, want 600x1440", cfg.Width, cfg.Height)
	}
}

func TestComposeRejectsBadCount(t *testing.T) {
	a := newTestApp(t)
	p := photoDataURL(t, 10, 10, color.White)

	for _, photos := range [][]string{nil, {p, p}, {p, p, p, p}} {
		rec := doJSON(t, a, "/compose", composeRequest{Photos: photos})
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%d photos: expected 400, got %d", len(photos), rec.Code)
		}
		var resp errorResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatal(err)
		}
		if resp.Status != "error" || resp.Message == "" {
			t.Errorf("unexpected error body %+v", resp)
		}
	}

	entries, _ := os.ReadDir(a.Config.ContentDir)
	if len(entries) != 0 {
		t.Errorf("expected no files written, found %d", len(entries))
	}
}

func TestComposeBadBody(t *testing.T) {
	a := newTestApp(t)
	req := httptest.NewRequest(http.MethodPost, "/compose", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	rec := do(a, req, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestComposeDecodeFailure(t *testing.T) {
	a := newTestApp(t)
	rec := doJSON(t, a, "/compose", composeRequest{Photos: []string{"data:image/png;base64,!!!not-base64"}})
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	var resp errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Status != "error" {
		t.Errorf("status = %q", resp.Status)
	}
}

func TestComposeErrorHidesPaths(t *testing.T) {
	a := newTestApp(t)
	if err := os.RemoveAll(a.Config.ContentDir); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(a.Config.ContentDir, []byte("not a directory"), 0o644); err != nil {
		t.Fatal(err)
	}

	rec := doJSON(t, a, "/compose", composeRequest{Photos: []string{photoDataURL(t, 40, 30, color.NRGBA{0, 0, 200, 255})}})
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Message != "create temp file" {
		t.Errorf("message = %q", resp.Message)
	}
	if strings.Contains(rec.Body.String(), a.Config.ContentDir) {
		t.Errorf("response leaks the content path: %s", rec.Body.String())
	}
}

func TestUpload(t *testing.T) {
	a := newTestApp(t)
	rec := doJSON(t, a, "/upload", uploadRequest{Image: photoDataURL(t, 20, 10, color.Black)})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp successResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(a.Config.ContentDir, resp.Filename)); err != nil {
		t.Errorf("uploaded file missing: %v", err)
	}

	rec = doJSON(t, a, "/upload", uploadRequest{})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty upload: expected 400, got %d", rec.Code)
	}
}

func TestContentServesImage(t *testing.T) {
	a := newTestApp(t)
	resp := composeOne(t, a)

	rec := do(a, httptest.NewRequest(http.MethodGet, resp.URL, nil), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("Content-Type = %q", ct)
	}
}

func TestContentRejectsTraversal(t *testing.T) {
	a := newTestApp(t)
	for _, p := range []string{"/content/..%2F..%2Fgo.mod", "/content/.env", "/content/missing.png"} {
		rec := do(a, httptest.NewRequest(http.MethodGet, p, nil), nil)
		if rec.Code != http.StatusNotFound {
			t.Errorf("%s: expected 404, got %d", p, rec.Code)
		}
	}
}

func TestUnknownRouteIsNotFound(t *testing.T) {
	a := newTestApp(t)
	rec := do(a, httptest.NewRequest(http.MethodGet, "/nope", nil), nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestBoothPage(t *testing.T) {
	a := newTestApp(t)
	rec := do(a, httptest.NewRequest(http.MethodGet, "/", nil), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Test Party") {
		t.Error("booth page should show the event title")
	}
}

func TestAdminRoutesRequireLogin(t *testing.T) {
	a := newTestApp(t)
	for _, r := range []struct{ method, path string }{
		{http.MethodGet, "/download/x.png"},
		{http.MethodGet, "/admin/live"},
	} {
		rec := do(a, httptest.NewRequest(r.method, r.path, nil), nil)
		if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/admin" {
			t.Errorf("%s %s: expected redirect to /admin, got %d %q", r.method, r.path, rec.Code, rec.Header().Get("Location"))
		}
	}

	rec := do(a, httptest.NewRequest(http.MethodGet, "/admin", nil), nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "password") {
		t.Errorf("expected login form, got %d", rec.Code)
	}
}

func TestAdminPostWithoutCSRF(t *testing.T) {
	a := newTestApp(t)
	rec := postForm(a, "/delete-all", url.Values{}, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	a := newTestApp(t)
	rec := do(a, httptest.NewRequest(http.MethodGet, "/admin", nil), nil)
	jar := mergeCookies(nil, rec)
	csrf := cookieValue(jar, "_csrf")

	for i := 0; i < 5; i++ {
		rec = postForm(a, "/login", url.Values{"password": {"nope"}, "_csrf": {csrf}}, jar)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("attempt %d: expected 401, got %d", i+1, rec.Code)
		}
	}
	rec = postForm(a, "/login", url.Values{"password": {testPassword}, "_csrf": {csrf}}, jar)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after repeated failures, got %d", rec.Code)
	}
}

func TestAdminGalleryDownloadDelete(t *testing.T) {
	a := newTestApp(t)
	first := composeOne(t, a)
	second := composeOne(t, a)
	jar := login(t, a)

	rec := do(a, httptest.NewRequest(http.MethodGet, "/admin", nil), jar)
	if rec.Code != http.StatusOK {
		t.Fatalf("gallery: expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, first.Filename) || !strings.Contains(body, second.Filename) {
		t.Fatal("gallery should list both images")
	}

	rec = do(a, httptest.NewRequest(http.MethodGet, "/download/"+first.Filename, nil), jar)
	if rec.Code != http.StatusOK {
		t.Fatalf("download: expected 200, got %d", rec.Code)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "attachment") {
		t.Errorf("Content-Disposition = %q", cd)
	}

	csrf := cookieValue(jar, "_csrf")
	rec = postForm(a, "/delete/"+first.Filename, url.Values{"_csrf": {csrf}}, jar)
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("delete: expected 303, got %d: %s", rec.Code, rec.Body.String())
	}
	if _, err := os.Stat(filepath.Join(a.Config.ContentDir, first.Filename)); !os.IsNotExist(err) {
		t.Errorf("deleted file still present: %v", err)
	}

	rec = do(a, httptest.NewRequest(http.MethodGet, "/admin", nil), jar)
	if strings.Contains(rec.Body.String(), first.Filename) {
		t.Error("gallery should no longer list the deleted image")
	}

	rec = postForm(a, "/delete-all", url.Values{"_csrf": {csrf}}, jar)
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("delete-all: expected 303, got %d", rec.Code)
	}
	photos, err := a.Gallery.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(photos) != 0 {
		t.Errorf("expected empty gallery, got %d", len(photos))
	}

	stats, err := a.Store.CountEvents(time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if stats[EventComposed] != 2 || stats[EventDeleted] != 1 || stats[EventCleared] != 1 {
		t.Errorf("unexpected stats %v", stats)
	}
}

func TestShareFlow(t *testing.T) {
	a := newTestApp(t)
	img := composeOne(t, a)

	req := httptest.NewRequest(http.MethodPost, "/share/"+img.Filename, nil)
	rec := do(a, req, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("share: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var share shareResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &share); err != nil {
		t.Fatal(err)
	}
	if share.URL != "http://booth.test/s/"+share.Token {
		t.Errorf("share url = %q", share.URL)
	}
	if !strings.HasPrefix(share.QR, "data:image/png;base64,") {
		t.Errorf("qr should be a PNG data URL, got %.40q", share.QR)
	}
	if time.Until(share.ExpiresAt) <= 4*time.Minute {
		t.Errorf("expiry too soon: %v", share.ExpiresAt)
	}

	rec = do(a, httptest.NewRequest(http.MethodGet, "/s/"+share.Token, nil), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("shared: expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("Content-Type = %q", ct)
	}

	rec = do(a, httptest.NewRequest(http.MethodGet, "/s/not-a-token", nil), nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown token: expected 404, got %d", rec.Code)
	}
}

func TestShareMissingImage(t *testing.T) {
	a := newTestApp(t)
	rec := do(a, httptest.NewRequest(http.MethodPost, "/share/pb_missing.png", nil), nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	rec = do(a, httptest.NewRequest(http.MethodPost, "/share/..%2Fsecret.png", nil), nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestSharedLinkExpired(t *testing.T) {
	a := newTestApp(t)
	img := composeOne(t, a)

	tok, err := a.Store.CreateShareToken(img.Filename, -time.Second)
	if err != nil {
		t.Fatal(err)
	}
	rec := do(a, httptest.NewRequest(http.MethodGet, "/s/"+tok.Token, nil), nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}

	rec = do(a, httptest.NewRequest(http.MethodGet, "/s/"+tok.Token, nil), nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expired token should be removed after first use, got %d", rec.Code)
	}
}

func TestDeleteRevokesShareLinks(t *testing.T) {
	a := newTestApp(t)
	img := composeOne(t, a)
	tok, err := a.Store.CreateShareToken(img.Filename, time.Minute)
	if err != nil {
		t.Fatal(err)
	}

	jar := login(t, a)
	rec := postForm(a, "/delete/"+img.Filename, url.Values{"_csrf": {cookieValue(jar, "_csrf")}}, jar)
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("delete: expected 303, got %d", rec.Code)
	}

	rec = do(a, httptest.NewRequest(http.MethodGet, "/s/"+tok.Token, nil), nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 after delete, got %d", rec.Code)
	}
}

func TestBuildURL(t *testing.T) {
	tests := []struct {
		base string
		segs []string
		want string
	}{
		{"http://booth.test", []string{"s", "abc"}, "http://booth.test/s/abc"},
		{"https://example.com/booth", []string{"s", "abc"}, "https://example.com/booth/s/abc"},
	}
	for _, tt := range tests {
		if got := BuildURL(tt.base, tt.segs...); got != tt.want {
			t.Errorf("BuildURL(%q, %v) = %q, want %q", tt.base, tt.segs, got, tt.want)
		}
	}
}

func TestBoothScriptEmbedded(t *testing.T) {
	a := newTestApp(t)
	rec := do(a, httptest.NewRequest(http.MethodGet, "/public/js/booth.js", nil), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"/compose"`) {
		t.Error("embedded booth client should post to /compose")
	}

	local := filepath.Join(a.Config.StaticDir, "js")
	if err := os.MkdirAll(local, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(local, "booth.js"), []byte("// custom"), 0o644); err != nil {
		t.Fatal(err)
	}
	rec = do(a, httptest.NewRequest(http.MethodGet, "/public/js/booth.js", nil), nil)
	if rec.Body.String() != "// custom" {
		t.Errorf("local booth.js should take precedence, got %.40q", rec.Body.String())
	}
}
