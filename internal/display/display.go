// Package display renders device screens. The hardware target is an
// e-paper panel; this package drives a console stand-in with the same
// screen set so the agent can run on a bench without one.
package display

import (
	"github.com/smdworks/smdagent/internal/serverapi"
)

// Settings are the display-affecting fields of the device
// configuration, resolved by the caller at render time.
type Settings struct {
	Rotation   int
	ShowLogo   bool
	Brightness int
}

// Identity is the device identity shown on the provisioning and
// waiting screens.
type Identity struct {
	MAC        string
	DeviceType string
	Version    string
}

// Renderer draws the device's screens. Implementations must tolerate
// repeated renders of identical content; callers do not dedupe.
type Renderer interface {
	// RenderContent draws the assigned content record.
	RenderContent(content *serverapi.ContentData, settings Settings) error

	// RenderProvisioning draws the setup-mode screen shown while the
	// device waits for serial provisioning commands.
	RenderProvisioning(id Identity) error

	// RenderWaiting draws the screen shown when the device is
	// provisioned but the server has no content assigned to it yet.
	RenderWaiting(id Identity) error
}

// Nop is a Renderer that draws nothing. Used headless and in tests.
type Nop struct{}

func (Nop) RenderContent(*serverapi.ContentData, Settings) error { return nil }
func (Nop) RenderProvisioning(Identity) error                    { return nil }
func (Nop) RenderWaiting(Identity) error                         { return nil }
