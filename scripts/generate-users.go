//go:build ignore

// Package main generates a synthetic users document for load testing.
// Usage: go run scripts/generate-users.go -users 10000 -output testdata/users.json
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
)

var (
	numUsers  = flag.Int("users", 1000, "Number of users to generate")
	output    = flag.String("output", "testdata/users.json", "Output file")
	seed      = flag.Int64("seed", 42, "Random seed for reproducibility")
	malformed = flag.Float64("malformed", 0.01, "Fraction of records to corrupt")
)

var firstNames = []string{
	"Emily", "Michael", "Sophia", "James", "Emma", "Oliver", "Ava", "Liam",
	"Isabella", "Noah", "Mia", "Ethan", "Charlotte", "Lucas", "Amelia", "Mason",
}

var lastNames = []string{
	"Johnson", "Williams", "Brown", "Jones", "Garcia", "Miller", "Davis",
	"Rodriguez", "Martinez", "Smith", "Wilson", "Anderson", "Taylor", "Thomas",
}

var roles = []string{"admin", "moderator", "user"}

var domains = []string{"x.dummyjson.com", "example.com", "mail.test"}

func main() {
	flag.Parse()
	rng := rand.New(rand.NewSource(*seed))

	users := make([]any, 0, *numUsers)
	corrupted := 0
	for i := 1; i <= *numUsers; i++ {
		if rng.Float64() < *malformed {
			users = append(users, corruptRecord(rng, i))
			corrupted++
			continue
		}
		users = append(users, generateUser(rng, i))
	}

	doc := map[string]any{
		"users": users,
		"total": len(users),
		"skip":  0,
		"limit": len(users),
	}

	if err := os.MkdirAll(filepath.Dir(*output), 0755); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating output directory: %v\n", err)
		os.Exit(1)
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding document: %v\n", err)
		os.Exit(1)
	}
	if err := os.WriteFile(*output, data, 0644); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing %s: %v\n", *output, err)
		os.Exit(1)
	}

	fmt.Printf("Generated %d users (%d malformed) in %s\n", len(users), corrupted, *output)
}

func randomWord(rng *rand.Rand, pool []string) string {
	return pool[rng.Intn(len(pool))]
}

func generateUser(rng *rand.Rand, id int) map[string]any {
	first := randomWord(rng, firstNames)
	last := randomWord(rng, lastNames)
	return map[string]any{
		"id":        id,
		"firstName": first,
		"lastName":  last,
		"email":     fmt.Sprintf("%s.%s%d@%s", strings.ToLower(first), strings.ToLower(last), id, randomWord(rng, domains)),
		"ssn":       fmt.Sprintf("%03d-%02d-%04d", rng.Intn(900)+100, rng.Intn(99)+1, rng.Intn(9999)+1),
		"age":       rng.Intn(60) + 18,
		"role":      randomWord(rng, roles),
	}
}

// corruptRecord returns a record the transformer rejects.
func corruptRecord(rng *rand.Rand, id int) any {
	switch rng.Intn(3) {
	case 0:
		return fmt.Sprintf("user-%d", id)
	case 1:
		u := generateUser(rng, id)
		u["id"] = fmt.Sprintf("id-%d", id)
		return u
	default:
		u := generateUser(rng, id)
		u["age"] = "unknown"
		return u
	}
}
