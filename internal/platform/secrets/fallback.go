package secrets

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
)

// readFallbackFile loads "secret://name[?version=N]=value" lines. A missing file is empty.
// Unversioned entries answer every version of their secret.
func readFallbackFile(path string) (map[string]string, error) {
	values := make(map[string]string)
	if path == "" {
		return values, nil
	}
	file, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return values, nil
	}
	if err != nil {
		return nil, fmt.Errorf("secrets: open fallback %s: %w", path, err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for line := 1; scanner.Scan(); line++ {
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		key, value, ok := splitFallbackLine(text)
		if !ok {
			return nil, fmt.Errorf("secrets: %s:%d: expected ref=value", path, line)
		}
		ref, err := parseReference(key)
		if err != nil {
			return nil, fmt.Errorf("secrets: %s:%d: %w", path, line, err)
		}
		if ref.version == "" {
			values[ref.canonical] = value
		} else {
			values[cacheKey(ref.canonical, ref.version)] = value
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("secrets: read fallback %s: %w", path, err)
	}
	return values, nil
}

// splitFallbackLine splits on the first "=" that does not belong to a query parameter of the reference.
func splitFallbackLine(text string) (string, string, bool) {
	inQuery, paramHasValue := false, false
	for i, r := range text {
		switch {
		case r == '?' && !inQuery:
			inQuery = true
		case r == '&' && inQuery:
			paramHasValue = false
		case r == '=' && inQuery && !paramHasValue:
			paramHasValue = true
		case r == '=':
			key, value := strings.TrimSpace(text[:i]), strings.TrimSpace(text[i+1:])
			return key, value, key != ""
		}
	}
	return "", "", false
}
