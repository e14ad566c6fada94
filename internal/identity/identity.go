package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// Attributes holds the personal fields used to derive a subject identity.
// They are consumed for hashing only and never persisted verbatim.
type Attributes struct {
	Name      string
	Surname   string
	BirthDate string
	UniqueID  string
}

// Empty reports whether no attribute field is set. An empty attribute set
// still derives a (fixed, reproducible) subject ID; callers use this to flag
// the degenerate case.
func (a Attributes) Empty() bool {
	return strings.TrimSpace(a.Name) == "" &&
		strings.TrimSpace(a.Surname) == "" &&
		strings.TrimSpace(a.BirthDate) == "" &&
		strings.TrimSpace(a.UniqueID) == ""
}

// SubjectID is a fixed-length lowercase hexadecimal digest identifying a
// subject without exposing personal data.
type SubjectID string

// PseudoMRN is a workspace-scoped one-way derivative of a medical record
// number, usable as a join key without exposing the MRN.
type PseudoMRN string

// birthDateLayouts lists accepted input forms, day-first for the separator
// variants, tried in order.
var birthDateLayouts = []string{
	"2006-01-02",
	"02/01/2006",
	"02-01-2006",
	"02.01.2006",
	"2/1/2006",
	"02-Jan-2006",
}

// CanonicalBirthDate normalizes a date-of-birth string to 2006-01-02 so
// equivalent dates in different input formats collapse to the same identity.
// Unparseable input is returned trimmed, unchanged.
func CanonicalBirthDate(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}
	for _, layout := range birthDateLayouts {
		if parsed, err := time.Parse(layout, trimmed); err == nil {
			return parsed.Format("2006-01-02")
		}
	}
	return trimmed
}

// DeriveSubjectID concatenates the attribute string forms in fixed order
// (name, surname, canonical birth date, unique ID), strips all whitespace,
// and returns the hex sha256 digest. Same attributes always yield the same
// ID; an empty attribute set yields the digest of the empty string.
func DeriveSubjectID(attrs Attributes) SubjectID {
	joined := attrs.Name + attrs.Surname + CanonicalBirthDate(attrs.BirthDate) + attrs.UniqueID
	stripped := strings.Join(strings.Fields(joined), "")
	sum := sha256.Sum256([]byte(stripped))
	return SubjectID(hex.EncodeToString(sum[:]))
}

// DerivePseudoMRN digests the MRN concatenated with the workspace identifier
// so the same MRN maps to different pseudonyms in different workspaces. The
// second return is false when the MRN is absent, an expected non-exceptional
// case.
func DerivePseudoMRN(mrn, workspaceID string) (PseudoMRN, bool) {
	mrn = strings.TrimSpace(mrn)
	if mrn == "" {
		return "", false
	}
	sum := sha256.Sum256([]byte(mrn + workspaceID))
	return PseudoMRN(hex.EncodeToString(sum[:])), true
}
