package uartwifi

import (
	"errors"
	"fmt"
)

// DefaultPort is the TCP port the uart-wifi board listens on.
const DefaultPort = 6000

// ErrOffline is returned when the printer cannot be reached at all.
var ErrOffline = errors.New("uartwifi: printer unreachable")

// ErrNoReply is returned when a connection was made but no record matching
// the requested verb arrived before the deadline.
var ErrNoReply = errors.New("uartwifi: no matching reply")

// State is the printer's coarse run state as reported in a status record.
type State string

const (
	StatePrinting State = "print"
	StatePaused   State = "pause"
	StateStopped  State = "stop"
	StateFinished State = "finish"
	StateOffline  State = "offline"
)

// Status is a decoded `getstatus` record.
//
// ElapsedSeconds and RemainingSeconds are in the wire's units until
// NormalizeUnits is applied: minutes on every model except the ones that
// report seconds natively. When the printer is idle the record carries only
// the state and every other field is zero, with Complete false.
type Status struct {
	State State

	// File is the job file as shown on the printer, and InternalFile the
	// board's internal name. The wire carries them joined by a slash.
	File         string
	InternalFile string

	TotalLayers       int
	PercentComplete   float64
	CurrentLayer      int
	ElapsedSeconds    int
	RemainingSeconds  int
	VolumeMilliliters float64
	Mode              string

	// Complete reports whether the record carried the full printing
	// attribute set, or only the bare state.
	Complete bool
}

// RemainingLayers derives the layer count still to print.
func (s *Status) RemainingLayers() int {
	return s.TotalLayers - s.CurrentLayer
}

// TotalSeconds derives the whole job duration from elapsed plus remaining.
func (s *Status) TotalSeconds() int {
	return s.ElapsedSeconds + s.RemainingSeconds
}

// SysInfo is a decoded `sysinfo` record identifying the printer.
type SysInfo struct {
	Model    string
	Firmware string
	Serial   string
	WifiSSID string
}

// ReportsSeconds reports whether this model writes elapsed/remaining time
// in seconds on the wire. Only the 6K generation does; everything else
// reports minutes.
func (s *SysInfo) ReportsSeconds() bool {
	return containsFold(s.Model, "6K")
}

// FileEntry is one slot of a `getfile` listing.
type FileEntry struct {
	Name         string
	InternalName string
}

func (f FileEntry) String() string {
	return fmt.Sprintf("%s/%s", f.Name, f.InternalName)
}

// Ack is the reply to a command verb (gopause, goresume, gostop, goprint).
type Ack struct {
	Verb string
	OK   bool
	Raw  string
}
