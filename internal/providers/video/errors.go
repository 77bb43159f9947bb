package video

import (
	"errors"
	"strings"

	"cleanreel/internal/domain"
	"cleanreel/internal/providers/genai"
)

// UserMessage translates a generation failure into the message shown to the
// user. Provider errors collapse into three buckets: missing model/operation
// access, exhausted quota, and a generic passthrough of the original text.
// Pipeline sentinels keep their own distinct messages.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	switch {
	case errors.Is(err, domain.ErrMissingCredential):
		return "generation is disabled: no API credential is configured"
	case errors.Is(err, domain.ErrOperationLost):
		return "operation lost: the provider no longer recognizes this job; reset and try again"
	case genai.IsNotFound(err) || containsAny(err, "not found", "notfound"):
		return "model or operation not found: your API key may not have access to the video generation model"
	case genai.IsQuotaExhausted(err) || containsAny(err, "quota", "rate limit", "resource_exhausted", "429"):
		return "quota or rate limit exceeded: wait a moment and try again"
	default:
		return err.Error()
	}
}

func containsAny(err error, needles ...string) bool {
	msg := strings.ToLower(err.Error())
	for _, needle := range needles {
		if strings.Contains(msg, needle) {
			return true
		}
	}
	return false
}
