package moderation

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// Filter is the pure text-to-text moderation function applied to every
// message body at write time.
type Filter interface {
	Clean(text string) string
}

// HTMLStripFilter strips all markup and trims whitespace, leaving plain text.
type HTMLStripFilter struct {
	policy *bluemonday.Policy
}

// NewHTMLStripFilter constructs the filter with a strict sanitization policy.
func NewHTMLStripFilter() *HTMLStripFilter {
	return &HTMLStripFilter{policy: bluemonday.StrictPolicy()}
}

// Clean sanitizes the text. An input that is nothing but markup or whitespace
// comes back empty, which callers treat as a rejected message.
func (f *HTMLStripFilter) Clean(text string) string {
	return strings.TrimSpace(f.policy.Sanitize(text))
}
