// Package sensors turns raw protocol records into the stable, named sensor
// set that sinks publish. Every snapshot carries the same keys so
// downstream consumers (Home Assistant entities, dashboards, the history
// store) see a fixed schema regardless of printer state.
package sensors

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vk/monoxbridge/internal/uartwifi"
)

// Sensor keys present in every snapshot. Keys without data (an idle or
// offline printer) map to nil so consumers can mark them unavailable
// instead of silently dropping them.
const (
	KeyStatus          = "status"
	KeyFile            = "file"
	KeyInternalFile    = "internal_file"
	KeyTotalLayers     = "total_layers"
	KeyCurrentLayer    = "current_layer"
	KeyRemainingLayers = "remaining_layers"
	KeyPercentComplete = "percent_complete"
	KeyElapsed         = "elapsed"
	KeyRemaining       = "remaining"
	KeyTotalTime       = "total_time"
	KeyVolumeML        = "volume_ml"
	KeyMode            = "mode"
)

// Keys lists every sensor key in publication order.
var Keys = []string{
	KeyStatus,
	KeyFile,
	KeyInternalFile,
	KeyTotalLayers,
	KeyCurrentLayer,
	KeyRemainingLayers,
	KeyPercentComplete,
	KeyElapsed,
	KeyRemaining,
	KeyTotalTime,
	KeyVolumeML,
	KeyMode,
}

// Identity names the printer a snapshot belongs to.
type Identity struct {
	Name     string `json:"name"`
	Host     string `json:"host"`
	Model    string `json:"model,omitempty"`
	Serial   string `json:"serial,omitempty"`
	Firmware string `json:"firmware,omitempty"`
}

// Snapshot is one observation of one printer.
type Snapshot struct {
	ID      string         `json:"id"`
	Printer Identity       `json:"printer"`
	TakenAt time.Time      `json:"taken_at"`
	State   string         `json:"state"`
	Online  bool           `json:"online"`
	Values  map[string]any `json:"values"`
}

// FromStatus builds a snapshot from a decoded status record. The status
// must already be unit-normalized for the printer's model.
func FromStatus(id Identity, status *uartwifi.Status, takenAt time.Time) *Snapshot {
	snap := &Snapshot{
		ID:      uuid.NewString(),
		Printer: id,
		TakenAt: takenAt,
		State:   string(status.State),
		Online:  true,
		Values:  emptyValues(),
	}
	snap.Values[KeyStatus] = string(status.State)

	if !status.Complete {
		// Idle printers report nothing beyond the state; the layer and
		// time sensors literally do not exist until a job runs.
		return snap
	}

	snap.Values[KeyFile] = status.File
	snap.Values[KeyInternalFile] = status.InternalFile
	snap.Values[KeyTotalLayers] = status.TotalLayers
	snap.Values[KeyCurrentLayer] = status.CurrentLayer
	snap.Values[KeyRemainingLayers] = status.RemainingLayers()
	snap.Values[KeyPercentComplete] = status.PercentComplete
	snap.Values[KeyElapsed] = FormatDuration(status.ElapsedSeconds)
	snap.Values[KeyRemaining] = FormatDuration(status.RemainingSeconds)
	snap.Values[KeyTotalTime] = FormatDuration(status.TotalSeconds())
	snap.Values[KeyVolumeML] = status.VolumeMilliliters
	snap.Values[KeyMode] = status.Mode
	return snap
}

// Offline builds the snapshot published after the poller gives up on a
// printer. The status sensor carries "offline", everything else is nil.
func Offline(id Identity, takenAt time.Time) *Snapshot {
	snap := &Snapshot{
		ID:      uuid.NewString(),
		Printer: id,
		TakenAt: takenAt,
		State:   string(uartwifi.StateOffline),
		Online:  false,
		Values:  emptyValues(),
	}
	snap.Values[KeyStatus] = string(uartwifi.StateOffline)
	return snap
}

// FormatDuration renders seconds as H:MM:SS, matching what the printer's
// own display shows for elapsed and remaining time.
func FormatDuration(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	h := seconds / 3600
	m := seconds % 3600 / 60
	s := seconds % 60
	return fmt.Sprintf("%d:%02d:%02d", h, m, s)
}

func emptyValues() map[string]any {
	values := make(map[string]any, len(Keys))
	for _, key := range Keys {
		values[key] = nil
	}
	return values
}
