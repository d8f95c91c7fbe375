package dedup

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"

	"jobfeed/internal/models"
)

const (
	fingerprintSeparator = "|"
	// DescriptionPrefix is how much of the description feeds the full fingerprint.
	DescriptionPrefix = 100
)

var identityFields = []string{models.FieldTitle, models.FieldCompany, models.FieldLocation}

// BasicFingerprint digests (title, company, location). It is available
// before the detail fetch.
func BasicFingerprint(r models.Record) (string, error) {
	parts, err := identityParts(r)
	if err != nil {
		return "", err
	}
	return digest(parts...), nil
}

// FullFingerprint digests (title, company, location, description prefix).
// Two records with equal full fingerprints always share a basic fingerprint.
func FullFingerprint(r models.Record) (string, error) {
	parts, err := identityParts(r)
	if err != nil {
		return "", err
	}
	return digest(append(parts, runePrefix(r.Get(models.FieldDescription), DescriptionPrefix))...), nil
}

func identityParts(r models.Record) ([]string, error) {
	parts := make([]string, 0, len(identityFields)+1)
	for _, f := range identityFields {
		v, ok := r.Lookup(f)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingField, f)
		}
		parts = append(parts, v)
	}
	return parts, nil
}

func digest(parts ...string) string {
	sum := md5.Sum([]byte(strings.Join(parts, fingerprintSeparator)))
	return hex.EncodeToString(sum[:])
}

func runePrefix(s string, n int) string {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
