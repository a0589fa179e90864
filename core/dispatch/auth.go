package dispatch

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// AuthConfig gates tool requests behind a bearer token.
type AuthConfig struct {
	Token            string `env:"MCP_TOKEN"`
	AllowInsecureDev bool   `env:"ALLOW_INSECURE_DEV" envDefault:"false"`
	AllowQueryToken  bool   `env:"MCP_ALLOW_QUERY_TOKEN" envDefault:"false"`
}

// placeholderTokens are rejected even when set, unless AllowInsecureDev.
var placeholderTokens = map[string]bool{
	"":          true,
	"changeme":  true,
	"change-me": true,
	"dev":       true,
	"secret":    true,
	"token":     true,
}

// Valid reports whether cfg.Token is usable. A missing or placeholder
// token is only accepted when AllowInsecureDev is set.
func (cfg AuthConfig) Valid() bool {
	if cfg.AllowInsecureDev {
		return true
	}
	return cfg.Token != "" && !placeholderTokens[strings.ToLower(cfg.Token)]
}

// Authenticate extracts the bearer credential from r (the Authorization
// header, or the "token" query parameter when AllowQueryToken is set) and
// compares it against cfg.Token in constant time.
func Authenticate(cfg AuthConfig, r *http.Request) ErrorCode {
	if !cfg.Valid() {
		return ErrUnauthorized
	}

	presented := bearerFromHeader(r.Header.Get("Authorization"))
	if presented == "" && cfg.AllowQueryToken {
		presented = r.URL.Query().Get("token")
	}

	if presented == "" {
		return ErrUnauthorized
	}
	if subtle.ConstantTimeCompare([]byte(presented), []byte(cfg.Token)) != 1 {
		return ErrForbidden
	}
	return ""
}

func bearerFromHeader(header string) string {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, prefix))
}
