// Package output formats CLI results: status lines, user tables and
// single-user detail blocks.
package output

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/Aman-CERP/userindex/internal/store"
)

// Writer writes human-readable CLI output.
type Writer struct {
	out io.Writer
}

// New creates a Writer on out.
func New(out io.Writer) *Writer {
	return &Writer{out: out}
}

// Status prints msg behind a short tag, or indented when tag is empty.
// Write errors are ignored for console output.
func (w *Writer) Status(tag, msg string) {
	if tag == "" {
		_, _ = fmt.Fprintf(w.out, "   %s\n", msg)
		return
	}
	_, _ = fmt.Fprintf(w.out, "%s %s\n", tag, msg)
}

// Statusf is Status with formatting.
func (w *Writer) Statusf(tag, format string, args ...any) {
	w.Status(tag, fmt.Sprintf(format, args...))
}

// Success prints a success line.
func (w *Writer) Success(msg string) { w.Status("✅", msg) }

// Successf is Success with formatting.
func (w *Writer) Successf(format string, args ...any) { w.Success(fmt.Sprintf(format, args...)) }

// Warning prints a warning line.
func (w *Writer) Warning(msg string) { w.Status("⚠️ ", msg) }

// Warningf is Warning with formatting.
func (w *Writer) Warningf(format string, args ...any) { w.Warning(fmt.Sprintf(format, args...)) }

// Newline prints an empty line.
func (w *Writer) Newline() {
	_, _ = fmt.Fprintln(w.out)
}

// Users prints users as a table in the given order. An empty slice prints
// a single "No users found" line.
func (w *Writer) Users(query string, users []*store.User) {
	if len(users) == 0 {
		if query == "" {
			_, _ = fmt.Fprintln(w.out, "No users found")
		} else {
			_, _ = fmt.Fprintf(w.out, "No users found for %q\n", query)
		}
		return
	}
	_, _ = fmt.Fprintln(w.out, UserTable(users))
	_, _ = fmt.Fprintf(w.out, "%d %s\n", len(users), plural(len(users), "user", "users"))
}

// User prints the full record of one user.
func (w *Writer) User(u *store.User) {
	rows := [][2]string{
		{"ID", strconv.FormatInt(u.ID, 10)},
		{"Name", FullName(u)},
		{"Email", orDash(u.Email)},
		{"Age", ageText(u.Age)},
		{"Role", orDash(u.Role)},
		{"SSN", orDash(u.SSN)},
		{"Version", strconv.FormatInt(u.Version, 10)},
	}
	label := lipgloss.NewStyle().Width(10).Bold(true)
	for _, r := range rows {
		_, _ = fmt.Fprintf(w.out, "%s %s\n", label.Render(r[0]+":"), r[1])
	}
}

// UserTable renders users as a bordered table.
func UserTable(users []*store.User) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("ID", "NAME", "EMAIL", "ROLE", "AGE")
	for _, u := range users {
		t.Row(strconv.FormatInt(u.ID, 10), FullName(u), orDash(u.Email), orDash(u.Role), ageText(u.Age))
	}
	return t.String()
}

// FullName joins first and last name.
func FullName(u *store.User) string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

func ageText(age int) string {
	if age <= 0 {
		return "-"
	}
	return strconv.Itoa(age)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
