package audit

import (
	"net/http"
	"strings"
)

const unknownClient = "unknown"

// ClientInfo identifies the caller of an audited request.
type ClientInfo struct {
	IPAddress string
	UserAgent string
}

// ClientInfoFromRequest reads the first X-Forwarded-For hop and the User-Agent.
// Missing values are reported as "unknown".
func ClientInfoFromRequest(r *http.Request) ClientInfo {
	info := ClientInfo{IPAddress: unknownClient, UserAgent: unknownClient}
	if r == nil {
		return info
	}
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if first = strings.TrimSpace(first); first != "" {
			info.IPAddress = first
		}
	}
	if ua := r.Header.Get("User-Agent"); ua != "" {
		info.UserAgent = ua
	}
	return info
}
