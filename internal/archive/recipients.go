package archive

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"filippo.io/age"
	"filippo.io/age/agessh"
)

// LoadRecipients merges inline recipients with the lines of the recipient
// file. A configured file that does not exist is an error.
func LoadRecipients(inline []string, file string) ([]age.Recipient, error) {
	values := append([]string(nil), inline...)
	if file = strings.TrimSpace(file); file != "" {
		fromFile, err := readRecipientFile(file)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("age recipient file %s not found", file)
			}
			return nil, fmt.Errorf("read age recipients from %s: %w", file, err)
		}
		values = append(values, fromFile...)
	}

	values = dedupeRecipientStrings(values)
	if len(values) == 0 {
		return nil, nil
	}
	parsed := make([]age.Recipient, 0, len(values))
	for _, value := range values {
		recipient, err := parseRecipientString(value)
		if err != nil {
			return nil, err
		}
		parsed = append(parsed, recipient)
	}
	return parsed, nil
}

func parseRecipientString(value string) (age.Recipient, error) {
	switch {
	case strings.HasPrefix(value, "age1"):
		r, err := age.ParseX25519Recipient(value)
		if err != nil {
			return nil, fmt.Errorf("invalid age recipient %q: %w", value, err)
		}
		return r, nil
	case strings.HasPrefix(strings.ToLower(value), "ssh-"):
		r, err := agessh.ParseRecipient(value)
		if err != nil {
			return nil, fmt.Errorf("invalid ssh recipient: %w", err)
		}
		return r, nil
	default:
		return nil, fmt.Errorf("unsupported age recipient format: %s", value)
	}
}

func readRecipientFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var recipients []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		recipients = append(recipients, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return recipients, nil
}

func dedupeRecipientStrings(values []string) []string {
	seen := make(map[string]struct{})
	result := make([]string, 0, len(values))
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		result = append(result, trimmed)
	}
	return result
}
