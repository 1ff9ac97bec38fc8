package logging

import (
	"log/slog"
	"regexp"
	"strings"

	"github.com/m-mizutani/masq"
)

// RegistryTokenHeader is the header ModelScope reads the caller's token from.
const RegistryTokenHeader = "X-Modelscope-Token"

// Values masked whatever the attribute holding them is called.
var (
	jwtValue           = regexp.MustCompile(`^eyJ[A-Za-z0-9_-]*\.eyJ[A-Za-z0-9_-]*\.[A-Za-z0-9_-]*$`)
	authSchemeValue    = regexp.MustCompile(`(?i)^(bearer|basic)\s+\S+`)
	registryTokenValue = regexp.MustCompile(`^ms-[0-9A-Za-z-]{16,}$`)
)

// credentialFields are attribute names whose values are always masked.
var credentialFields = []string{
	"token",
	"modelscope_token",
	"authorization",
	"password",
	"secret",
	"api_key",
	"apikey",
	"apiKey",
	"access_token",
	"accessToken",
	"refresh_token",
	"credentials",
	"cookie",
	"session",
	"private_key",
}

// RedactOptions returns the masq options for the service's handlers. Each
// token header is masked under its canonical, lower-case and snake_case
// spellings; RegistryTokenHeader is always included.
func RedactOptions(headers ...string) []masq.Option {
	opts := make([]masq.Option, 0, len(credentialFields)+3*(len(headers)+1)+5)

	for _, name := range credentialFields {
		opts = append(opts, masq.WithFieldName(name))
	}

	for _, header := range append([]string{RegistryTokenHeader}, headers...) {
		for _, name := range headerSpellings(header) {
			opts = append(opts, masq.WithFieldName(name))
		}
	}

	return append(opts,
		masq.WithFieldPrefix("secret"),
		masq.WithFieldPrefix("private"),
		masq.WithRegex(jwtValue),
		masq.WithRegex(authSchemeValue),
		masq.WithRegex(registryTokenValue),
	)
}

// headerSpellings lists the attribute names a header is logged under:
// "X-Modelscope-Token", "x-modelscope-token" and "x_modelscope_token".
func headerSpellings(header string) []string {
	lower := strings.ToLower(header)
	snake := strings.ReplaceAll(lower, "-", "_")

	spellings := []string{header}
	for _, s := range []string{lower, snake} {
		if s != spellings[len(spellings)-1] && s != header {
			spellings = append(spellings, s)
		}
	}

	return spellings
}

// NewReplaceAttr returns a slog ReplaceAttr that masks credentials, treating
// headers as extra token headers.
func NewReplaceAttr(headers ...string) func(groups []string, a slog.Attr) slog.Attr {
	return masq.New(RedactOptions(headers...)...)
}
