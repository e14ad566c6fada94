package edf

import (
	"fmt"
	"strings"
	"time"
)

// Header holds the subject and administrative attributes parsed from the
// container's patient and recording identification fields. Keys come from a
// fixed vocabulary; a key absent from the file is absent from the map.
type Header map[string]string

// Known header keys.
const (
	KeyPatientCode         = "patientcode"
	KeySex                 = "sex"
	KeyBirthdate           = "birthdate"
	KeyPatientName         = "patientname"
	KeyPatientAdditional   = "patient_additional"
	KeyStartDate           = "startdate"
	KeyAdminCode           = "admincode"
	KeyTechnician          = "technician"
	KeyEquipment           = "equipment"
	KeyRecordingAdditional = "recording_additional"
)

// Clone returns an independent copy of the header.
func (h Header) Clone() Header {
	clone := make(Header, len(h))
	for k, v := range h {
		clone[k] = v
	}
	return clone
}

// SignalHeader describes one channel of a recording.
type SignalHeader struct {
	Label            string
	Transducer       string
	Dimension        string
	PhysicalMin      float64
	PhysicalMax      float64
	DigitalMin       int
	DigitalMax       int
	Prefilter        string
	SamplesPerRecord int
}

// SampleRate returns the channel's sampling rate in Hz given the record
// duration in seconds.
func (s SignalHeader) SampleRate(recordDuration float64) float64 {
	if recordDuration <= 0 {
		return 0
	}
	return float64(s.SamplesPerRecord) / recordDuration
}

// Recording is a decoded EDF container. Header mutations are picked up by
// Encode; everything else is reproduced from the original bytes so an
// unmodified recording round-trips bit-identically.
type Recording struct {
	Header         Header
	Signals        []SignalHeader
	NumRecords     int
	RecordDuration float64

	rawHeader  []byte
	origHeader Header
	records    []byte
}

// Records exposes the raw data-record bytes. Callers must not modify them.
func (r *Recording) Records() []byte {
	return r.records
}

// ChannelSamples decodes the sample array for channel index i.
func (r *Recording) ChannelSamples(i int) ([]int16, error) {
	if i < 0 || i >= len(r.Signals) {
		return nil, fmt.Errorf("channel index %d out of range (%d channels)", i, len(r.Signals))
	}
	perRecord := r.Signals[i].SamplesPerRecord
	samples := make([]int16, 0, perRecord*r.NumRecords)

	offset := 0
	for c := 0; c < i; c++ {
		offset += r.Signals[c].SamplesPerRecord
	}
	recordSamples := 0
	for _, s := range r.Signals {
		recordSamples += s.SamplesPerRecord
	}

	for rec := 0; rec < r.NumRecords; rec++ {
		base := (rec*recordSamples + offset) * 2
		for n := 0; n < perRecord; n++ {
			lo := r.records[base+2*n]
			hi := r.records[base+2*n+1]
			samples = append(samples, int16(uint16(lo)|uint16(hi)<<8))
		}
	}
	return samples, nil
}

// StartDateTime returns the recording start moment from the fixed-format
// startdate/starttime header fields, formatted as "2006-01-02 15:04:05".
// It returns the raw concatenation when the fields do not parse.
func (r *Recording) StartDateTime() string {
	date := strings.TrimSpace(string(r.rawHeader[168:176]))
	clock := strings.TrimSpace(string(r.rawHeader[176:184]))
	parsed, err := time.Parse("02.01.06 15.04.05", date+" "+clock)
	if err != nil {
		return strings.TrimSpace(date + " " + clock)
	}
	return parsed.Format("2006-01-02 15:04:05")
}

// FileDuration returns the total recording length in seconds.
func (r *Recording) FileDuration() float64 {
	if r.NumRecords < 0 {
		return 0
	}
	return float64(r.NumRecords) * r.RecordDuration
}
