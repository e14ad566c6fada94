package edf

import (
	"fmt"
	"io"
	"strings"
)

// Encode writes the recording back out. Header bytes are copied from the
// decoded original; the patient and recording identification fields are
// rebuilt only when their parsed values were modified, so everything else is
// reproduced bit-for-bit.
func (r *Recording) Encode(w io.Writer) error {
	header := make([]byte, len(r.rawHeader))
	copy(header, r.rawHeader)

	if r.fieldChanged(KeyPatientCode, KeySex, KeyBirthdate, KeyPatientName, KeyPatientAdditional) {
		copy(header[8:88], padField(r.buildPatientField(), 80))
	}
	if r.fieldChanged(KeyStartDate, KeyAdminCode, KeyTechnician, KeyEquipment, KeyRecordingAdditional) {
		copy(header[88:168], padField(r.buildRecordingField(), 80))
	}

	if _, err := w.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if _, err := w.Write(r.records); err != nil {
		return fmt.Errorf("write data records: %w", err)
	}
	return nil
}

func (r *Recording) fieldChanged(keys ...string) bool {
	for _, key := range keys {
		current, currentOK := r.Header[key]
		original, originalOK := r.origHeader[key]
		if currentOK != originalOK || current != original {
			return true
		}
	}
	return false
}

func (r *Recording) buildPatientField() string {
	tokens := []string{
		subfield(r.Header[KeyPatientCode]),
		subfield(r.Header[KeySex]),
		subfield(r.Header[KeyBirthdate]),
		subfield(r.Header[KeyPatientName]),
	}
	if additional := strings.TrimSpace(r.Header[KeyPatientAdditional]); additional != "" {
		tokens = append(tokens, additional)
	}
	return strings.Join(tokens, " ")
}

func (r *Recording) buildRecordingField() string {
	tokens := []string{
		"Startdate",
		subfield(r.Header[KeyStartDate]),
		subfield(r.Header[KeyAdminCode]),
		subfield(r.Header[KeyTechnician]),
		subfield(r.Header[KeyEquipment]),
	}
	if additional := strings.TrimSpace(r.Header[KeyRecordingAdditional]); additional != "" {
		tokens = append(tokens, additional)
	}
	return strings.Join(tokens, " ")
}

// subfield sanitizes a value for the space-delimited identification fields:
// empty values become the EDF+ unknown marker, inner spaces become
// underscores.
func subfield(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "X"
	}
	return strings.ReplaceAll(value, " ", "_")
}

// padField space-pads (or truncates) a value to the fixed field width.
func padField(value string, width int) []byte {
	field := make([]byte, width)
	for i := range field {
		field[i] = ' '
	}
	if len(value) > width {
		value = value[:width]
	}
	copy(field, value)
	return field
}
