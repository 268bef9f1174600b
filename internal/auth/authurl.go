package auth

import (
	"net/url"
	"strings"

	"github.com/jkaninda/cloudbase-mcp/internal/config"
)

// LoginPageURL is the CloudBase login page used to wrap authorization URLs.
const LoginPageURL = "https://tcb.cloud.tencent.com/login"

const (
	domesticHost      = "cloud.tencent.com"
	internationalHost = "tencentcloud.com"
)

// URLBuilder turns the raw authorization URL produced by an Authorizer into
// the URL that is shown to the user.
type URLBuilder func(authURL string) string

// NewURLBuilder returns the builder for region. The international site uses a
// different host; the login-page wrapper only exists on the domestic site.
func NewURLBuilder(region string, fromLoginPage bool) URLBuilder {
	international := config.IsInternationalRegion(region)
	if fromLoginPage && !international {
		return func(authURL string) string {
			return LoginPageURL + "?_redirect_uri=" + encodeURIComponent(allowNoEnv(authURL))
		}
	}
	return func(authURL string) string {
		if international {
			authURL = strings.Replace(authURL, domesticHost, internationalHost, 1)
		}
		return allowNoEnv(authURL)
	}
}

// uriComponentUnescapes undoes the url.QueryEscape choices that differ from
// the browser's encodeURIComponent, which the login page decodes with.
var uriComponentUnescapes = strings.NewReplacer(
	"+", "%20",
	"%21", "!",
	"%27", "'",
	"%28", "(",
	"%29", ")",
	"%2A", "*",
)

func encodeURIComponent(s string) string {
	return uriComponentUnescapes.Replace(url.QueryEscape(s))
}

// allowNoEnv lets accounts without any environment finish sign-in.
func allowNoEnv(u string) string {
	sep := "?"
	if strings.Contains(u, "?") {
		sep = "&"
	}
	return u + sep + "allowNoEnv=true"
}
