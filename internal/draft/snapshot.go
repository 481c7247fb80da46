package draft

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// ErrInvalidSnapshot is returned when a snapshot cannot be decoded.
var ErrInvalidSnapshot = errors.New("invalid draft snapshot")

var unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9_-]`)

// Export writes the draft as indented JSON.
func Export(w io.Writer, d *Draft) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(d)
}

// Import decodes a snapshot. A missing id is replaced with a fresh one.
func Import(r io.Reader) (*Draft, error) {
	var d Draft
	dec := json.NewDecoder(r)
	if err := dec.Decode(&d); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	d.Normalize()
	return &d, nil
}

// SnapshotFilename returns the download name for a draft snapshot.
func SnapshotFilename(d *Draft) string {
	number := ""
	if d != nil {
		number = strings.TrimSpace(d.Invoice.Number)
	}
	if number == "" {
		number = "draft"
	}
	return "invoice_" + unsafeFilenameChars.ReplaceAllString(number, "_") + ".json"
}
