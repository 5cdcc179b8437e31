package photobooth

import "time"

// composeRequest is the body of POST /compose.
type composeRequest struct {
	Photos []string `json:"photos"`
}

// uploadRequest is the body of POST /upload.
type uploadRequest struct {
	Image string `json:"image"`
}

// successResponse is returned by the booth endpoints after a write.
type successResponse struct {
	Status   string `json:"status"`
	Filename string `json:"filename"`
	URL      string `json:"url"`
}

type errorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// shareResponse is returned by POST /share/:name.
type shareResponse struct {
	Status    string    `json:"status"`
	Token     string    `json:"token"`
	URL       string    `json:"url"`
	QR        string    `json:"qr"` // data:image/png;base64 QR code of URL
	ExpiresAt time.Time `json:"expires_at"`
}
