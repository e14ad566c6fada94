// Package anonymizer redacts personal fields from recording headers.
package anonymizer

import (
	"fmt"

	"edfanon/internal/edf"
	"edfanon/internal/services"
)

// Anonymize overwrites each requested header field with its paired
// replacement, in order. Fields absent from the header are skipped silently;
// header vocabularies vary across recordings. A length mismatch between
// fields and replacements fails before any mutation. Sample data is never
// touched.
func Anonymize(header edf.Header, fields, replacements []string) error {
	if len(fields) != len(replacements) {
		return services.Wrap(services.ErrValidation, "anonymizer", "redact",
			fmt.Sprintf("%d fields but %d replacements", len(fields), len(replacements)), nil)
	}
	for i, field := range fields {
		if _, ok := header[field]; ok {
			header[field] = replacements[i]
		}
	}
	return nil
}
