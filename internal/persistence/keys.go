package persistence

import "strings"

func keyRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	}
	return strings.ContainsRune("-_.:", r)
}

// ValidateKey checks a session key. Local keys look like <guid>_<instance>,
// remote keys like <guid>:<instance>. Keys end up in file names and SQL
// rows, so only letters, digits and "-_.:" are allowed.
func ValidateKey(key string) error {
	if key == "" {
		return ErrSessionKeyEmpty
	}
	for _, r := range key {
		if !keyRune(r) {
			return ErrSessionKeyInvalid
		}
	}
	return nil
}

// Blank reports whether s holds nothing but white space
func Blank(s string) bool {
	return strings.TrimSpace(s) == ""
}

func ValidateSnapshot(source, name string) error {
	switch {
	case Blank(source):
		return ErrSnapshotSourceEmpty
	case Blank(name):
		return ErrSnapshotNameEmpty
	}
	return nil
}
