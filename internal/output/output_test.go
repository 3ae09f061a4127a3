package output

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Aman-CERP/userindex/internal/store"
)

func TestWriter_StatusLines(t *testing.T) {
	tests := []struct {
		name  string
		write func(w *Writer)
		want  string
	}{
		{"success", func(w *Writer) { w.Success("Loaded 30 users") }, "✅ Loaded 30 users\n"},
		{"successf", func(w *Writer) { w.Successf("Loaded %d users", 3) }, "✅ Loaded 3 users\n"},
		{"warning", func(w *Writer) { w.Warningf("%d skipped", 2) }, "⚠️  2 skipped\n"},
		{"tagged", func(w *Writer) { w.Statusf("📁", "Location: %s", "/tmp") }, "📁 Location: /tmp\n"},
		{"untagged", func(w *Writer) { w.Status("", "indented") }, "   indented\n"},
		{"newline", func(w *Writer) { w.Newline() }, "\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			tt.write(New(buf))
			assert.Equal(t, tt.want, buf.String())
		})
	}
}

func TestWriter_Users(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		buf := &bytes.Buffer{}
		New(buf).Users("xyz", nil)
		assert.Equal(t, "No users found for \"xyz\"\n", buf.String())
	})

	t.Run("rows keep order", func(t *testing.T) {
		// Given: two users in rank order
		buf := &bytes.Buffer{}
		users := []*store.User{
			{ID: 3, FirstName: "Jo", LastName: "Doe", Email: "jo@x.com", Age: 31, Role: "admin"},
			{ID: 1, FirstName: "John", Email: "john@x.com"},
		}

		// When: printing them
		New(buf).Users("jo", users)

		// Then: the table keeps the given order and shows placeholders
		out := buf.String()
		assert.Contains(t, out, "NAME")
		assert.Contains(t, out, "Jo Doe")
		assert.Contains(t, out, "admin")
		assert.Less(t, strings.Index(out, "jo@x.com"), strings.Index(out, "john@x.com"))
		assert.True(t, strings.HasSuffix(out, "2 users\n"))
	})
}

func TestWriter_User(t *testing.T) {
	buf := &bytes.Buffer{}

	New(buf).User(&store.User{ID: 7, FirstName: "Zed", LastName: "Major", SSN: "222", Version: 2})

	out := buf.String()
	assert.Contains(t, out, "Zed Major")
	assert.Contains(t, out, "222")
	assert.Contains(t, out, "Email:")
	assert.Contains(t, out, "-")
}

func TestFullName(t *testing.T) {
	assert.Equal(t, "Zed Major", FullName(&store.User{FirstName: "Zed", LastName: "Major"}))
	assert.Equal(t, "Major", FullName(&store.User{LastName: "Major"}))
}
