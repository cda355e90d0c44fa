package moderation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanStripsMarkup(t *testing.T) {
	filter := NewHTMLStripFilter()

	assert.Equal(t, "hello", filter.Clean("<b>hello</b>"))
	assert.Equal(t, "click", filter.Clean(`<a href="https://evil.example">click</a>`))
	assert.Equal(t, "plain text stays", filter.Clean("plain text stays"))
}

func TestCleanDropsScripts(t *testing.T) {
	filter := NewHTMLStripFilter()

	assert.Equal(t, "", filter.Clean(`<script>alert("hi")</script>`))
	assert.Equal(t, "", filter.Clean(`<img src=x onerror=alert(1)>`))
}

func TestCleanTrimsWhitespace(t *testing.T) {
	filter := NewHTMLStripFilter()

	assert.Equal(t, "padded", filter.Clean("   padded \n"))
	assert.Equal(t, "", filter.Clean("  <i> </i>  "))
}
