package uartwifi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitRecords(t *testing.T) {
	t.Run("single record", func(t *testing.T) {
		records := splitRecords("getstatus,stop\r\n,end")
		require.Len(t, records, 1)
		assert.Equal(t, "getstatus", records[0].verb)
		require.Len(t, records[0].fields, 1)
	})

	t.Run("batched records", func(t *testing.T) {
		raw := "sysinfo,Photon Mono X 6K,V0.2.2,0000170300020034,SkyNet,end,getstatus,stop\r\n,end"
		records := splitRecords(raw)
		require.Len(t, records, 2)
		assert.Equal(t, "sysinfo", records[0].verb)
		assert.Equal(t, "getstatus", records[1].verb)
	})

	t.Run("truncated trailing record is dropped", func(t *testing.T) {
		records := splitRecords("getstatus,stop\r\n,end,sysinfo,Photon")
		require.Len(t, records, 1)
		assert.Equal(t, "getstatus", records[0].verb)
	})
}

func TestFindRecord(t *testing.T) {
	// The board broadcasts to every client, so a reply meant for someone
	// else can precede ours.
	raw := "getfile,Widget.pwmb/0.pwmb,end,getstatus,stop\r\n,end"

	rec, ok := findRecord(raw, "getstatus")
	require.True(t, ok)
	assert.Equal(t, "getstatus", rec.verb)

	_, ok = findRecord(raw, "sysinfo")
	assert.False(t, ok)
}

func TestParseStatus(t *testing.T) {
	t.Run("idle printer sends only the state", func(t *testing.T) {
		rec, ok := findRecord("getstatus,stop\r\n,end", "getstatus")
		require.True(t, ok)

		status, err := parseStatus(rec)
		require.NoError(t, err)
		assert.Equal(t, StateStopped, status.State)
		assert.False(t, status.Complete)
		assert.Zero(t, status.TotalLayers)
	})

	t.Run("printing record carries the full attribute set", func(t *testing.T) {
		raw := "getstatus,print,Widget.pwmb/46.pwmb,2338,88.2,196,1260,9739,~178mL,UV,39,end"
		rec, ok := findRecord(raw, "getstatus")
		require.True(t, ok)

		status, err := parseStatus(rec)
		require.NoError(t, err)
		assert.True(t, status.Complete)
		assert.Equal(t, StatePrinting, status.State)
		assert.Equal(t, "Widget.pwmb", status.File)
		assert.Equal(t, "46.pwmb", status.InternalFile)
		assert.Equal(t, 2338, status.TotalLayers)
		assert.InDelta(t, 88.2, status.PercentComplete, 0.001)
		assert.Equal(t, 196, status.CurrentLayer)
		assert.Equal(t, 1260, status.ElapsedSeconds)
		assert.Equal(t, 9739, status.RemainingSeconds)
		assert.InDelta(t, 178.0, status.VolumeMilliliters, 0.001)
		assert.Equal(t, "UV", status.Mode)
		assert.Equal(t, 2142, status.RemainingLayers())
		assert.Equal(t, 10999, status.TotalSeconds())
	})

	t.Run("garbage numeric fields degrade to zero", func(t *testing.T) {
		raw := "getstatus,print,Widget.pwmb/46.pwmb,xx,??,196,1260,9739,?,UV,39,end"
		rec, ok := findRecord(raw, "getstatus")
		require.True(t, ok)

		status, err := parseStatus(rec)
		require.NoError(t, err)
		assert.Zero(t, status.TotalLayers)
		assert.Zero(t, status.PercentComplete)
		assert.Equal(t, 196, status.CurrentLayer)
	})
}

func TestNormalizeUnits(t *testing.T) {
	status := &Status{ElapsedSeconds: 21, RemainingSeconds: 162}

	// 6K models already report seconds.
	status.NormalizeUnits(true)
	assert.Equal(t, 21, status.ElapsedSeconds)

	// Everything else reports minutes.
	status.NormalizeUnits(false)
	assert.Equal(t, 21*60, status.ElapsedSeconds)
	assert.Equal(t, 162*60, status.RemainingSeconds)
}

func TestParseSysInfo(t *testing.T) {
	rec, ok := findRecord("sysinfo,Photon Mono X 6K,V0.2.2,0000170300020034,SkyNet,end", "sysinfo")
	require.True(t, ok)

	info, err := parseSysInfo(rec)
	require.NoError(t, err)
	assert.Equal(t, "Photon Mono X 6K", info.Model)
	assert.Equal(t, "V0.2.2", info.Firmware)
	assert.Equal(t, "0000170300020034", info.Serial)
	assert.Equal(t, "SkyNet", info.WifiSSID)
	assert.True(t, info.ReportsSeconds())

	info.Model = "Photon Mono X"
	assert.False(t, info.ReportsSeconds())
}

func TestParseSysInfoShortRecord(t *testing.T) {
	rec, ok := findRecord("sysinfo,Photon,end", "sysinfo")
	require.True(t, ok)

	_, err := parseSysInfo(rec)
	assert.ErrorContains(t, err, "short sysinfo record")
}

func TestParseFiles(t *testing.T) {
	rec, ok := findRecord("getfile,Widget.pwmb/0.pwmb,Lattice.pwmb/1.pwmb,end", "getfile")
	require.True(t, ok)

	entries := parseFiles(rec)
	require.Len(t, entries, 2)
	assert.Equal(t, "Widget.pwmb", entries[0].Name)
	assert.Equal(t, "0.pwmb", entries[0].InternalName)
	assert.Equal(t, "Lattice.pwmb/1.pwmb", entries[1].String())
}

func TestParseAck(t *testing.T) {
	rec, ok := findRecord("gopause,OK,end", "gopause")
	require.True(t, ok)
	ack := parseAck(rec)
	assert.True(t, ack.OK)
	assert.Equal(t, "gopause", ack.Verb)

	rec, ok = findRecord("goprint,ERROR,end", "goprint")
	require.True(t, ok)
	assert.False(t, parseAck(rec).OK)
}

func TestParseVolume(t *testing.T) {
	assert.InDelta(t, 178.0, parseVolume("~178mL"), 0.001)
	assert.InDelta(t, 16.5, parseVolume("16.5mL"), 0.001)
	assert.Zero(t, parseVolume("unknown"))
}
