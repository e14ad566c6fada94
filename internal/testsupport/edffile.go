package testsupport

import (
	"fmt"
	"strings"
	"testing"
)

// Channel describes one signal in a generated EDF fixture.
type Channel struct {
	Label            string
	Dimension        string
	Prefilter        string
	SamplesPerRecord int
	// Samples holds one record's worth of data, repeated for every record.
	Samples []int16
}

// EDFOptions controls the generated fixture.
type EDFOptions struct {
	PatientField   string
	RecordingField string
	StartDate      string // dd.mm.yy, defaults to 04.03.21
	StartTime      string // hh.mm.ss, defaults to 10.30.00
	NumRecords     int
	RecordDuration string // seconds as ASCII, defaults to "1"
	Channels       []Channel
}

// BuildEDF assembles a syntactically valid EDF byte stream from opts.
// It exists so codec and pipeline tests can run against real container bytes
// without fixture files.
func BuildEDF(t testing.TB, opts EDFOptions) []byte {
	t.Helper()

	if opts.NumRecords == 0 {
		opts.NumRecords = 2
	}
	if opts.StartDate == "" {
		opts.StartDate = "04.03.21"
	}
	if opts.StartTime == "" {
		opts.StartTime = "10.30.00"
	}
	if opts.RecordDuration == "" {
		opts.RecordDuration = "1"
	}
	if len(opts.Channels) == 0 {
		opts.Channels = []Channel{{
			Label:            "EEG Fpz-Cz",
			Dimension:        "uV",
			Prefilter:        "HP:0.1Hz LP:75Hz",
			SamplesPerRecord: 4,
		}}
	}

	ns := len(opts.Channels)
	var b strings.Builder
	pad := func(value string, width int) {
		if len(value) > width {
			t.Fatalf("fixture field %q exceeds width %d", value, width)
		}
		b.WriteString(value)
		b.WriteString(strings.Repeat(" ", width-len(value)))
	}

	pad("0", 8)
	pad(opts.PatientField, 80)
	pad(opts.RecordingField, 80)
	pad(opts.StartDate, 8)
	pad(opts.StartTime, 8)
	pad(fmt.Sprintf("%d", 256+ns*256), 8)
	pad("", 44)
	pad(fmt.Sprintf("%d", opts.NumRecords), 8)
	pad(opts.RecordDuration, 8)
	pad(fmt.Sprintf("%d", ns), 4)

	for _, c := range opts.Channels {
		pad(c.Label, 16)
	}
	for range opts.Channels {
		pad("", 80) // transducer
	}
	for _, c := range opts.Channels {
		pad(c.Dimension, 8)
	}
	for range opts.Channels {
		pad("-500", 8)
	}
	for range opts.Channels {
		pad("500", 8)
	}
	for range opts.Channels {
		pad("-2048", 8)
	}
	for range opts.Channels {
		pad("2047", 8)
	}
	for _, c := range opts.Channels {
		pad(c.Prefilter, 80)
	}
	for _, c := range opts.Channels {
		pad(fmt.Sprintf("%d", c.SamplesPerRecord), 8)
	}
	for range opts.Channels {
		pad("", 32) // reserved
	}

	data := []byte(b.String())
	for rec := 0; rec < opts.NumRecords; rec++ {
		for _, c := range opts.Channels {
			for n := 0; n < c.SamplesPerRecord; n++ {
				var sample int16
				if n < len(c.Samples) {
					sample = c.Samples[n]
				} else {
					sample = int16(rec*100 + n)
				}
				data = append(data, byte(uint16(sample)&0xff), byte(uint16(sample)>>8))
			}
		}
	}
	return data
}
