package mcp

import (
	"fmt"
	"strings"

	"github.com/Aman-CERP/userindex/internal/store"
)

// FormatSearchResults formats search results as markdown.
func FormatSearchResults(query string, users []*store.User) string {
	if len(users) == 0 {
		return fmt.Sprintf("No users found for \"%s\"", query)
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## Users matching \"%s\"\n\n", query))
	sb.WriteString(fmt.Sprintf("Found %d user", len(users)))
	if len(users) != 1 {
		sb.WriteString("s")
	}
	sb.WriteString("\n\n")

	sb.WriteString("| ID | Name | Email | Role | Age |\n")
	sb.WriteString("|---:|------|-------|------|----:|\n")
	for _, u := range users {
		sb.WriteString(fmt.Sprintf("| %d | %s | %s | %s | %s |\n",
			u.ID, cell(FullName(u)), cell(u.Email), cell(u.Role), ageCell(u.Age)))
	}
	return sb.String()
}

// FormatUser formats a single user as markdown.
func FormatUser(u *store.User) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## %s\n\n", orDash(FullName(u))))
	sb.WriteString(fmt.Sprintf("- **ID:** %d\n", u.ID))
	sb.WriteString(fmt.Sprintf("- **Email:** %s\n", orDash(u.Email)))
	sb.WriteString(fmt.Sprintf("- **SSN:** %s\n", orDash(u.SSN)))
	sb.WriteString(fmt.Sprintf("- **Age:** %s\n", ageCell(u.Age)))
	sb.WriteString(fmt.Sprintf("- **Role:** %s\n", orDash(u.Role)))
	sb.WriteString(fmt.Sprintf("- **Version:** %d\n", u.Version))
	return sb.String()
}

// FormatLoadResult formats an ingestion outcome as markdown.
func FormatLoadResult(out LoadUsersOutput) string {
	var sb strings.Builder
	sb.WriteString("## Users loaded\n\n")
	sb.WriteString(fmt.Sprintf("Loaded **%d** users from `%s` in %s", out.Loaded, out.Source, out.Duration))
	if out.Attempts > 1 {
		sb.WriteString(fmt.Sprintf(" after %d attempts", out.Attempts))
	}
	sb.WriteString(".\n")
	if out.Skipped > 0 {
		sb.WriteString(fmt.Sprintf("\n%d record", out.Skipped))
		if out.Skipped != 1 {
			sb.WriteString("s")
		}
		sb.WriteString(" skipped:\n\n")
		for _, s := range out.Skips {
			sb.WriteString(fmt.Sprintf("- record %d: %s\n", s.Index, s.Reason))
		}
	}
	return sb.String()
}

// FullName joins first and last name, skipping empty parts.
func FullName(u *store.User) string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// cell escapes pipes so a value cannot break the table.
func cell(s string) string {
	if s == "" {
		return "-"
	}
	return strings.ReplaceAll(s, "|", "\\|")
}

func ageCell(age int) string {
	if age <= 0 {
		return "-"
	}
	return fmt.Sprintf("%d", age)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
