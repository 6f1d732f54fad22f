package request

import (
	"strings"

	"contract-engine/config"

	"github.com/google/uuid"
)

const redirectIDToken = "${id}"

// RedirectURL replaces every ${id} token of template with id. A template
// without the token is returned unchanged.
func RedirectURL(template string, id uuid.UUID) string {
	return strings.ReplaceAll(template, redirectIDToken, id.String())
}

// DefaultRedirectTemplate is the configured template used for requests
// stored without their own redirect URL.
func DefaultRedirectTemplate(cfg config.RequestsConfig, kind Kind) string {
	switch kind {
	case KindBalance:
		return cfg.BalanceRedirectURL
	case KindAuthorization:
		return cfg.AuthorizationRedirectURL
	case KindFunctionCall:
		return cfg.FunctionCallRedirectURL
	case KindReadonlyCall:
		return cfg.ReadonlyCallRedirectURL
	case KindLock:
		return cfg.LockRedirectURL
	default:
		return ""
	}
}
