package httpapi

// maxBodyBytes controls the maximum allowed request body size for JSON endpoints.
// Control requests are tiny; 1 MiB is generous.
var maxBodyBytes int64 = 1 << 20

// SetMaxBodyBytes allows configuring the maximum request body size.
func SetMaxBodyBytes(n int64) {
	if n <= 0 {
		maxBodyBytes = 1 << 20
		return
	}
	maxBodyBytes = n
}

// DefaultStartModel is served when a start request names no model.
const DefaultStartModel = "facebook/opt-125m"

// CORS configuration (opt-in). If disabled, no CORS middleware is added.
var (
	corsEnabled        bool
	corsAllowedOrigins []string
	corsAllowedMethods []string
	corsAllowedHeaders []string
)

// SetCORSOptions configures CORS behavior for the HTTP server. Empty lists
// fall back to permissive defaults suited to a local dashboard.
func SetCORSOptions(enabled bool, origins, methods, headers []string) {
	corsEnabled = enabled
	corsAllowedOrigins = append([]string(nil), origins...)
	corsAllowedMethods = append([]string(nil), methods...)
	corsAllowedHeaders = append([]string(nil), headers...)
}

func corsOrigins() []string {
	if len(corsAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return corsAllowedOrigins
}

func corsMethods() []string {
	if len(corsAllowedMethods) == 0 {
		return []string{"GET", "POST", "OPTIONS"}
	}
	return corsAllowedMethods
}

func corsHeaders() []string {
	if len(corsAllowedHeaders) == 0 {
		return []string{"Accept", "Content-Type", "X-Log-Level", "X-Request-Id"}
	}
	return corsAllowedHeaders
}
