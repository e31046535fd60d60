package uartwifi

import (
	"fmt"
	"strconv"
	"strings"
)

// record is one verb-opened, end-terminated reply on the wire.
type record struct {
	verb   string
	fields []string
}

// splitRecords cuts a raw read into records. Fields are comma separated and
// a lone `end` field closes a record; anything after it starts the next
// one. Trailing garbage without an `end` (a truncated broadcast) is
// dropped.
func splitRecords(raw string) []record {
	var records []record
	var current []string
	for _, field := range strings.Split(raw, ",") {
		if strings.TrimSpace(field) == "end" {
			if len(current) > 0 {
				records = append(records, record{
					verb:   strings.TrimSpace(current[0]),
					fields: current[1:],
				})
			}
			current = nil
			continue
		}
		current = append(current, field)
	}
	return records
}

// findRecord returns the first record answering verb. The stream is shared
// between every connected client, so replies to other clients' requests are
// expected and skipped.
func findRecord(raw, verb string) (record, bool) {
	for _, rec := range splitRecords(raw) {
		if rec.verb == verb {
			return rec, true
		}
	}
	return record{}, false
}

// parseStatus decodes a getstatus record. Time fields keep their wire
// units; callers apply NormalizeUnits once the model is known.
func parseStatus(rec record) (*Status, error) {
	if len(rec.fields) == 0 {
		return nil, fmt.Errorf("uartwifi: empty getstatus record")
	}
	status := &Status{State: State(strings.TrimSpace(rec.fields[0]))}
	if len(rec.fields) < 9 {
		// Idle printers send only the state.
		return status, nil
	}

	status.File, status.InternalFile = splitFileField(rec.fields[1])
	status.TotalLayers = atoiLenient(rec.fields[2])
	status.PercentComplete = atofLenient(rec.fields[3])
	status.CurrentLayer = atoiLenient(rec.fields[4])
	status.ElapsedSeconds = atoiLenient(rec.fields[5])
	status.RemainingSeconds = atoiLenient(rec.fields[6])
	status.VolumeMilliliters = parseVolume(rec.fields[7])
	status.Mode = strings.TrimSpace(rec.fields[8])
	status.Complete = true
	return status, nil
}

// NormalizeUnits converts elapsed/remaining to seconds. Models that report
// minutes on the wire (everything but the 6K generation) are scaled up.
func (s *Status) NormalizeUnits(reportsSeconds bool) {
	if reportsSeconds {
		return
	}
	s.ElapsedSeconds *= 60
	s.RemainingSeconds *= 60
}

// parseSysInfo decodes a sysinfo record: model, firmware, serial, SSID.
func parseSysInfo(rec record) (*SysInfo, error) {
	if len(rec.fields) < 4 {
		return nil, fmt.Errorf("uartwifi: short sysinfo record (%d fields)", len(rec.fields))
	}
	return &SysInfo{
		Model:    strings.TrimSpace(rec.fields[0]),
		Firmware: strings.TrimSpace(rec.fields[1]),
		Serial:   strings.TrimSpace(rec.fields[2]),
		WifiSSID: strings.TrimSpace(rec.fields[3]),
	}, nil
}

// parseFiles decodes a getfile record into its name/internal pairs.
func parseFiles(rec record) []FileEntry {
	var entries []FileEntry
	for _, field := range rec.fields {
		name, internal := splitFileField(field)
		if name == "" {
			continue
		}
		entries = append(entries, FileEntry{Name: name, InternalName: internal})
	}
	return entries
}

// parseAck decodes a command reply such as `gopause,OK,end`.
func parseAck(rec record) *Ack {
	raw := ""
	if len(rec.fields) > 0 {
		raw = strings.TrimSpace(rec.fields[0])
	}
	return &Ack{Verb: rec.verb, OK: strings.EqualFold(raw, "OK"), Raw: raw}
}

// splitFileField separates `Widget.pwmb/46.pwmb` into the display name and
// the board's internal name. A field without a slash is all display name.
func splitFileField(field string) (name, internal string) {
	field = strings.TrimSpace(field)
	if idx := strings.IndexByte(field, '/'); idx >= 0 {
		return field[:idx], field[idx+1:]
	}
	return field, ""
}

// parseVolume strips the decoration from a resin volume field (`~178mL`).
func parseVolume(field string) float64 {
	cleaned := strings.TrimSpace(field)
	cleaned = strings.TrimPrefix(cleaned, "~")
	cleaned = strings.TrimSuffix(cleaned, "mL")
	cleaned = strings.TrimSuffix(cleaned, "ml")
	v, err := strconv.ParseFloat(strings.TrimSpace(cleaned), 64)
	if err != nil {
		return 0
	}
	return v
}

// atoiLenient parses an int field, tolerating the stray whitespace and
// decorations the firmware occasionally emits. Unparseable fields become
// zero rather than failing the record.
func atoiLenient(field string) int {
	v, err := strconv.Atoi(strings.TrimSpace(field))
	if err != nil {
		return 0
	}
	return v
}

func atofLenient(field string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
	if err != nil {
		return 0
	}
	return v
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToUpper(s), strings.ToUpper(substr))
}
