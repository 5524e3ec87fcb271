// Package slate implements the slate encoder runner: the process that
// keeps the backup channel "live" with a generated source while the
// primary is down. It is split into stream.go for key/URL handling,
// profile.go for the on-disk encoder profile, and runner.go for the
// supervised child-process loop.
package slate

import (
	"fmt"
	"strings"
)

// backupMarker is the fragment that identifies a backup-ingest URL.
const backupMarker = "backup=1/"

// SanitizeKey strips whitespace and any already-embedded "backup=1/"
// fragments from a raw stream key (a profile file may be re-derived from
// an already-normalized URL, so the sanitizer must be idempotent), and
// rejects a key that still contains characters illegal in a URL path
// segment after cleanup.
func SanitizeKey(raw string) (string, error) {
	key := strings.TrimSpace(raw)
	for strings.Contains(key, backupMarker) {
		key = strings.Replace(key, backupMarker, "", 1)
	}
	key = strings.TrimSpace(key)

	if key == "" {
		return "", fmt.Errorf("stream key is empty after sanitization")
	}
	if strings.ContainsAny(key, "?&= \t\n") {
		return "", fmt.Errorf("stream key %q contains illegal query characters after sanitization", key)
	}
	return key, nil
}

// NormalizeURL builds the backup-ingest URL for a sanitized key against a
// configured RTMPS base, rejecting any base that is not RTMPS. Any query
// already on the base is dropped and "?backup=1/<key>" is always appended,
// so the result always carries the backup marker; the base's host and path
// are not otherwise checked, and a primary-ingest base is not rejected.
// Calling NormalizeURL again on its own output with the same key returns
// the same string.
func NormalizeURL(base, key string) (string, error) {
	if !strings.HasPrefix(strings.ToLower(base), "rtmps://") {
		return "", fmt.Errorf("backup base URL %q is not RTMPS", base)
	}

	trimmedBase := strings.TrimRight(base, "/")
	if idx := strings.Index(trimmedBase, "?"); idx != -1 {
		trimmedBase = trimmedBase[:idx]
	}

	return fmt.Sprintf("%s?%s%s", trimmedBase, backupMarker, key), nil
}
