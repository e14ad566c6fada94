package edf

import (
	"fmt"
	"io"
	"strconv"
	"strings"
)

const (
	fixedHeaderSize     = 256
	perSignalHeaderSize = 256
	bytesPerSample      = 2
)

// Decode reads an EDF or EDF+ container. The original header bytes are
// retained so that Encode can reproduce untouched regions exactly.
func Decode(r io.Reader) (*Recording, error) {
	fixed := make([]byte, fixedHeaderSize)
	if _, err := io.ReadFull(r, fixed); err != nil {
		return nil, fmt.Errorf("read fixed header: %w", err)
	}

	numSignals, err := headerInt(fixed[252:256], "number of signals")
	if err != nil {
		return nil, err
	}
	if numSignals <= 0 {
		return nil, fmt.Errorf("invalid signal count %d", numSignals)
	}
	headerBytes, err := headerInt(fixed[184:192], "header size")
	if err != nil {
		return nil, err
	}
	if want := fixedHeaderSize + numSignals*perSignalHeaderSize; headerBytes != want {
		return nil, fmt.Errorf("header size %d does not match %d signals (want %d)", headerBytes, numSignals, want)
	}
	numRecords, err := headerInt(fixed[236:244], "record count")
	if err != nil {
		return nil, err
	}
	recordDuration, err := headerFloat(fixed[244:252], "record duration")
	if err != nil {
		return nil, err
	}

	signalBlock := make([]byte, numSignals*perSignalHeaderSize)
	if _, err := io.ReadFull(r, signalBlock); err != nil {
		return nil, fmt.Errorf("read signal headers: %w", err)
	}
	signals, err := parseSignalHeaders(signalBlock, numSignals)
	if err != nil {
		return nil, err
	}

	records, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read data records: %w", err)
	}

	samplesPerRecord := 0
	for _, s := range signals {
		samplesPerRecord += s.SamplesPerRecord
	}
	recordSize := samplesPerRecord * bytesPerSample
	if numRecords < 0 && recordSize > 0 {
		// -1 means "unknown"; infer the count from the payload length.
		numRecords = len(records) / recordSize
	}
	if recordSize > 0 && len(records) != numRecords*recordSize {
		return nil, fmt.Errorf("data payload is %d bytes, want %d records of %d bytes",
			len(records), numRecords, recordSize)
	}

	header := parseHeader(fixed)
	raw := make([]byte, 0, len(fixed)+len(signalBlock))
	raw = append(raw, fixed...)
	raw = append(raw, signalBlock...)

	return &Recording{
		Header:         header,
		Signals:        signals,
		NumRecords:     numRecords,
		RecordDuration: recordDuration,
		rawHeader:      raw,
		origHeader:     header.Clone(),
		records:        records,
	}, nil
}

func parseHeader(fixed []byte) Header {
	header := make(Header)
	parsePatientField(header, strings.TrimSpace(string(fixed[8:88])))
	parseRecordingField(header, strings.TrimSpace(string(fixed[88:168])))
	return header
}

// parsePatientField splits the EDF+ local patient identification field into
// its ordered subfields: code, sex, birthdate, name, then free text.
func parsePatientField(header Header, field string) {
	tokens := strings.Fields(field)
	keys := []string{KeyPatientCode, KeySex, KeyBirthdate, KeyPatientName}
	for i, key := range keys {
		if i >= len(tokens) {
			return
		}
		header[key] = tokens[i]
	}
	if len(tokens) > len(keys) {
		header[KeyPatientAdditional] = strings.Join(tokens[len(keys):], " ")
	}
}

// parseRecordingField splits the EDF+ local recording identification field.
// Non-plus files carry free text, which lands in recording_additional.
func parseRecordingField(header Header, field string) {
	tokens := strings.Fields(field)
	if len(tokens) == 0 {
		return
	}
	if !strings.EqualFold(tokens[0], "Startdate") {
		header[KeyRecordingAdditional] = field
		return
	}
	keys := []string{KeyStartDate, KeyAdminCode, KeyTechnician, KeyEquipment}
	rest := tokens[1:]
	for i, key := range keys {
		if i >= len(rest) {
			return
		}
		header[key] = rest[i]
	}
	if len(rest) > len(keys) {
		header[KeyRecordingAdditional] = strings.Join(rest[len(keys):], " ")
	}
}

func parseSignalHeaders(block []byte, numSignals int) ([]SignalHeader, error) {
	field := func(offset, width, index int) string {
		start := offset*numSignals + index*width
		return strings.TrimSpace(string(block[start : start+width]))
	}

	signals := make([]SignalHeader, numSignals)
	for i := range signals {
		s := &signals[i]
		s.Label = field(0, 16, i)
		s.Transducer = field(16, 80, i)
		s.Dimension = field(96, 8, i)

		var err error
		if s.PhysicalMin, err = signalFloat(field(104, 8, i), "physical minimum", i); err != nil {
			return nil, err
		}
		if s.PhysicalMax, err = signalFloat(field(112, 8, i), "physical maximum", i); err != nil {
			return nil, err
		}
		if s.DigitalMin, err = signalInt(field(120, 8, i), "digital minimum", i); err != nil {
			return nil, err
		}
		if s.DigitalMax, err = signalInt(field(128, 8, i), "digital maximum", i); err != nil {
			return nil, err
		}
		s.Prefilter = field(136, 80, i)
		if s.SamplesPerRecord, err = signalInt(field(216, 8, i), "samples per record", i); err != nil {
			return nil, err
		}
	}
	return signals, nil
}

func headerInt(raw []byte, what string) (int, error) {
	value, err := strconv.Atoi(strings.TrimSpace(string(raw)))
	if err != nil {
		return 0, fmt.Errorf("parse %s %q: %w", what, strings.TrimSpace(string(raw)), err)
	}
	return value, nil
}

func headerFloat(raw []byte, what string) (float64, error) {
	value, err := strconv.ParseFloat(strings.TrimSpace(string(raw)), 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s %q: %w", what, strings.TrimSpace(string(raw)), err)
	}
	return value, nil
}

func signalFloat(raw, what string, index int) (float64, error) {
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("signal %d: parse %s %q: %w", index, what, raw, err)
	}
	return value, nil
}

func signalInt(raw, what string, index int) (int, error) {
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("signal %d: parse %s %q: %w", index, what, raw, err)
	}
	return value, nil
}
