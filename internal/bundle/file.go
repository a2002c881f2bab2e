package bundle

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/ulikunitz/xz"

	"github.com/lmoretti/punchcard/internal/apperr"
	"github.com/lmoretti/punchcard/internal/models"
)

// WriteFile writes the bundle as indented JSON. Paths ending in .xz get
// xz-compressed transparently.
func WriteFile(path string, b *models.Bundle) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if strings.HasSuffix(path, ".xz") {
		w, err := xz.NewWriter(f)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(b); err != nil {
			return err
		}
		return w.Close()
	}

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(b)
}

// ReadFile reads a bundle file written by WriteFile or any compatible
// exporter. A payload that does not decode is a malformed bundle, not an
// I/O error.
func ReadFile(path string) (*models.Bundle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var b models.Bundle
	if strings.HasSuffix(path, ".xz") {
		r, err := xz.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("%v: %w", err, apperr.ErrMalformedBundle)
		}
		if err := json.NewDecoder(r).Decode(&b); err != nil {
			return nil, fmt.Errorf("%v: %w", err, apperr.ErrMalformedBundle)
		}
		return &b, nil
	}

	if err := json.NewDecoder(f).Decode(&b); err != nil {
		return nil, fmt.Errorf("%v: %w", err, apperr.ErrMalformedBundle)
	}
	return &b, nil
}
