// Package main provides the entry point for the userindex CLI.
package main

import (
	"os"

	"github.com/Aman-CERP/userindex/cmd/userindex/cmd"
	apperrors "github.com/Aman-CERP/userindex/internal/errors"
)

func main() {
	if err := cmd.Execute(); err != nil {
		if apperrors.IsFatal(err) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}
