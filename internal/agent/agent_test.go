package agent

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf16"

	"github.com/Hara602/secSentry/internal/model"
	"github.com/Hara602/secSentry/internal/sink"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSource 按脚本交付通知,脚本走完后交付 shutdown
type fakeSource struct {
	notifs       []model.Notification
	exitCode     int
	clipErr      error
	devErr       error
	unregistered bool
	i            int
}

func (f *fakeSource) RegisterClipboard() error { return f.clipErr }
func (f *fakeSource) RegisterDevice() error    { return f.devErr }
func (f *fakeSource) UnregisterClipboard()     { f.unregistered = true }
func (f *fakeSource) Close()                   {}

func (f *fakeSource) Next() model.Notification {
	if f.i >= len(f.notifs) {
		return model.Notification{Kind: model.KindShutdown, ExitCode: f.exitCode}
	}
	n := f.notifs[f.i]
	f.i++
	return n
}

func wide(s string) []uint16 { return utf16.Encode([]rune(s)) }

func openAudit(t *testing.T, console *bytes.Buffer) *sink.AuditLog {
	t.Helper()
	a, err := sink.Open(filepath.Join(t.TempDir(), "audit.txt"), console)
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a
}

func TestRunLogsEventsInDeliveryOrder(t *testing.T) {
	src := &fakeSource{
		exitCode: 7,
		notifs: []model.Notification{
			{Kind: model.KindClipboard},
			{
				Kind:      model.KindDeviceInterface,
				Op:        model.OpArrival,
				HasHeader: true,
				Class:     model.ClassUSBDevice,
				NameW:     wide(`\\?\USB#VID_1234&PID_5678#x`),
			},
			{Kind: model.KindVolume, Op: model.OpRemoval},
		},
	}
	var console bytes.Buffer

	a := New(src, openAudit(t, &console), nil)
	code := a.Run()

	assert.Equal(t, 7, code, "exit code must come from the shutdown notification")
	assert.True(t, src.unregistered, "clipboard listener must be unregistered on exit")

	lines := strings.Split(strings.TrimRight(console.String(), "\n"), "\n")
	require.Len(t, lines, 5)
	assert.Contains(t, lines[0], "Starting message loop. Monitoring active...")
	assert.Contains(t, lines[1], "Clipboard content changed (Copy/Paste detected).")
	assert.Contains(t, lines[2], `USB Device Plugged In: \\?\USB#VID_1234&PID_5678#x`)
	assert.Contains(t, lines[3], "Volume/Drive Removed.")
	assert.Contains(t, lines[4], "--- secSentry Stopping ---")
}

func TestRunDropsMalformedDeviceNotification(t *testing.T) {
	src := &fakeSource{
		notifs: []model.Notification{
			{Kind: model.KindDeviceInterface, Op: model.OpArrival}, // 无载荷头
		},
	}
	var console bytes.Buffer

	New(src, openAudit(t, &console), nil).Run()

	assert.NotContains(t, console.String(), "Device", "null-header payloads must not reach the audit trail")
}

func TestClipboardRegistrationFailureIsDegraded(t *testing.T) {
	src := &fakeSource{
		clipErr: errors.New("access denied"),
		notifs: []model.Notification{
			{
				Kind:      model.KindDeviceInterface,
				Op:        model.OpRemoval,
				HasHeader: true,
				Class:     model.ClassUSBDevice,
				NameW:     wide(`\\?\USB#VID_1234&PID_5678#x`),
			},
		},
	}
	var console bytes.Buffer

	a := New(src, openAudit(t, &console), nil)
	a.RegisterListeners()
	code := a.Run()

	assert.Equal(t, 0, code)
	warnings := strings.Count(console.String(), "WARNING: Failed to register clipboard listener")
	assert.Equal(t, 1, warnings, "exactly one warning line per failed registration attempt")
	assert.Contains(t, console.String(), "Successfully registered for device notifications.")
	assert.Contains(t, console.String(), "USB Device Removed:", "loop must keep processing device events")
}

func TestRegisterListenersOrderAndOutcomeLines(t *testing.T) {
	src := &fakeSource{}
	var console bytes.Buffer

	New(src, openAudit(t, &console), nil).RegisterListeners()

	out := console.String()
	clip := strings.Index(out, "Successfully registered clipboard listener.")
	dev := strings.Index(out, "Successfully registered for device notifications.")
	require.GreaterOrEqual(t, clip, 0)
	require.GreaterOrEqual(t, dev, 0)
	assert.Less(t, clip, dev, "clipboard registration is always logged first")
}

func TestVolumeArrivalSweepFlagsMasquerade(t *testing.T) {
	mount := t.TempDir()
	require.NoError(t, os.WriteFile(
		filepath.Join(mount, "holiday.jpg"), []byte{0x4D, 0x5A, 0x90, 0x00}, 0644))
	require.NoError(t, os.WriteFile(
		filepath.Join(mount, "notes.txt"), []byte("plain text"), 0644))

	src := &fakeSource{
		notifs: []model.Notification{
			{Kind: model.KindVolume, Op: model.OpArrival, MountPath: mount},
		},
	}
	var console bytes.Buffer

	New(src, openAudit(t, &console), nil).Run()

	assert.Contains(t, console.String(), "WARNING: Masquerading file on new volume:")
	assert.Contains(t, console.String(), "holiday.jpg")
	assert.NotContains(t, console.String(), "notes.txt")
}
