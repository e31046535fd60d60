package uartwifi_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/monoxbridge/internal/simulator"
	"github.com/vk/monoxbridge/internal/uartwifi"
)

// startFakePrinter runs a simulator on a random port and returns a client
// pointed at it. The port travels inside the host string, the same trick
// the configuration layer supports for real printers.
func startFakePrinter(t *testing.T) (*simulator.Simulator, *uartwifi.Client) {
	t.Helper()
	sim := simulator.New(simulator.DefaultIdentity)
	require.NoError(t, sim.Start(context.Background(), "127.0.0.1:0"))
	t.Cleanup(sim.Shutdown)
	return sim, uartwifi.NewClient(sim.Addr(), uartwifi.DefaultPort)
}

func TestClientStatus(t *testing.T) {
	t.Parallel()
	_, client := startFakePrinter(t)

	status, err := client.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uartwifi.StateStopped, status.State)
	assert.False(t, status.Complete)
}

func TestClientSysInfo(t *testing.T) {
	t.Parallel()
	_, client := startFakePrinter(t)

	info, err := client.SysInfo(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Photon Mono X 6K", info.Model)
	assert.Equal(t, "0000170300020034", info.Serial)
}

func TestClientPrintLifecycle(t *testing.T) {
	t.Parallel()
	_, client := startFakePrinter(t)
	ctx := context.Background()

	files, err := client.Files(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, files)

	ack, err := client.Print(ctx, files[0].InternalName)
	require.NoError(t, err)
	assert.True(t, ack.OK)

	status, err := client.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, uartwifi.StatePrinting, status.State)
	assert.True(t, status.Complete)
	assert.Equal(t, "Widget.pwmb", status.File)

	ack, err = client.StopPrint(ctx)
	require.NoError(t, err)
	assert.True(t, ack.OK)

	status, err = client.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, uartwifi.StateStopped, status.State)
}

func TestClientWifi(t *testing.T) {
	t.Parallel()
	_, client := startFakePrinter(t)

	ssid, err := client.Wifi(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "SkyNet", ssid)
}

func TestClientOffline(t *testing.T) {
	t.Parallel()

	// A port nothing listens on: dialing must fail fast and wrap ErrOffline.
	client := uartwifi.NewClient("127.0.0.1:1", uartwifi.DefaultPort)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := client.Status(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, uartwifi.ErrOffline)
}

func TestNewClientHostPortSplit(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "192.168.1.254:6000", uartwifi.NewClient("192.168.1.254", 0).Addr())
	assert.Equal(t, "192.168.1.254:6000", uartwifi.NewClient("192.168.1.254", uartwifi.DefaultPort).Addr())
	assert.Equal(t, "10.0.0.9:9123", uartwifi.NewClient("10.0.0.9:9123", uartwifi.DefaultPort).Addr())
	assert.Equal(t, "10.0.0.9", uartwifi.NewClient("10.0.0.9:9123", uartwifi.DefaultPort).Host())
}
