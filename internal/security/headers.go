package security

import (
	"net/http"
	"strconv"
	"strings"
)

// previewCSP confines rendered invoice documents to inline styles and embedded data images.
const previewCSP = "default-src 'none'; img-src data:; style-src 'unsafe-inline'; font-src data:"

// Headers configures common security headers for HTTP responses.
type Headers struct {
	Enable                bool
	EnableHSTS            bool
	HSTSMaxAge            int
	HSTSIncludeSubdomains bool
	// FrameAncestors lists origins allowed to embed responses, such as an editor showing the preview.
	FrameAncestors []string
}

// Middleware attaches standard security headers to each response.
func (h Headers) Middleware(next http.Handler) http.Handler {
	csp := previewCSP
	frameOption := "DENY"
	if len(h.FrameAncestors) > 0 {
		csp += "; frame-ancestors " + strings.Join(h.FrameAncestors, " ")
		frameOption = ""
	} else {
		csp += "; frame-ancestors 'none'"
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !h.Enable {
			next.ServeHTTP(w, r)
			return
		}
		headers := w.Header()
		headers.Set("X-Content-Type-Options", "nosniff")
		if frameOption != "" {
			headers.Set("X-Frame-Options", frameOption)
		}
		headers.Set("Referrer-Policy", "no-referrer")
		headers.Set("Permissions-Policy", "geolocation=(), microphone=(), camera=()")
		headers.Set("Content-Security-Policy", csp)
		if h.EnableHSTS && r.TLS != nil {
			maxAge := h.HSTSMaxAge
			if maxAge <= 0 {
				maxAge = 31536000
			}
			value := "max-age=" + strconv.Itoa(maxAge)
			if h.HSTSIncludeSubdomains {
				value += "; includeSubDomains"
			}
			headers.Set("Strict-Transport-Security", value)
		}
		next.ServeHTTP(w, r)
	})
}
