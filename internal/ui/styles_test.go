package ui

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetStyles(t *testing.T) {
	// NoColor styles must render text untouched; colored ones at least keep the text.
	plain := GetStyles(true)
	for _, s := range []string{
		plain.Header.Render("users"),
		plain.Success.Render("users"),
		plain.Warning.Render("users"),
		plain.Error.Render("users"),
		plain.Label.Render("users"),
	} {
		assert.Equal(t, "users", s)
	}
	assert.False(t, plain.Header.GetBold())

	colored := GetStyles(false)
	assert.Contains(t, colored.Active.Render("●"), "●")
	assert.Contains(t, colored.Dim.Render("○"), "○")
	assert.True(t, colored.Header.GetBold())
}

func TestStyles_Panel(t *testing.T) {
	out := NoColorStyles().Panel(20, true, 0, 1).Render("loaded")

	lines := strings.Split(out, "\n")
	assert.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "╭"))
	assert.Contains(t, lines[1], "loaded")
}
