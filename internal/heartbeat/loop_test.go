package heartbeat

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smdworks/smdagent/internal/battery"
	"github.com/smdworks/smdagent/internal/credstore"
	"github.com/smdworks/smdagent/internal/deviceconfig"
	"github.com/smdworks/smdagent/internal/display"
	"github.com/smdworks/smdagent/internal/serverapi"
)

var testID = display.Identity{
	MAC:        "C4:BE:84:74:86:37",
	DeviceType: "SMD_2inch9",
	Version:    "2.0.0",
}

// fakeAPI scripts the server's heartbeat and content responses.
type fakeAPI struct {
	heartbeatVersion int
	heartbeatErr     error
	content          *serverapi.ContentData
	contentErr       error

	heartbeats  []*serverapi.HeartbeatReport
	contentReqs int
}

func (f *fakeAPI) SendHeartbeat(report *serverapi.HeartbeatReport) (int, error) {
	f.heartbeats = append(f.heartbeats, report)
	if f.heartbeatErr != nil {
		return serverapi.UnknownConfigVersion, f.heartbeatErr
	}
	return f.heartbeatVersion, nil
}

func (f *fakeAPI) FetchContent(mac string) (*serverapi.ContentData, error) {
	f.contentReqs++
	if f.contentErr != nil {
		return nil, f.contentErr
	}
	if f.content == nil {
		return &serverapi.ContentData{Title: "Test", Status: "OK"}, nil
	}
	return f.content, nil
}

// fakeNetwork scripts connectivity. Connect attempts are recorded as
// "ssid/password" strings.
type fakeNetwork struct {
	connected   bool
	connectErrs map[string]error

	attempts []string
}

func (f *fakeNetwork) Connected() bool { return f.connected }

func (f *fakeNetwork) Connect(ssid, password string, timeout time.Duration) error {
	f.attempts = append(f.attempts, ssid+"/"+password)
	if err, ok := f.connectErrs[ssid]; ok {
		return err
	}
	f.connected = true
	return nil
}

func (f *fakeNetwork) SignalStrength() int { return -61 }
func (f *fakeNetwork) IPAddress() string   { return "192.168.1.41" }

type fakeBattery struct {
	status battery.Status
}

func (f *fakeBattery) Read() battery.Status { return f.status }

// fakeRenderer counts renders per screen kind.
type fakeRenderer struct {
	contentRenders int
	waitingRenders int
	lastSettings   display.Settings
}

func (f *fakeRenderer) RenderContent(_ *serverapi.ContentData, s display.Settings) error {
	f.contentRenders++
	f.lastSettings = s
	return nil
}
func (f *fakeRenderer) RenderProvisioning(display.Identity) error { return nil }
func (f *fakeRenderer) RenderWaiting(display.Identity) error {
	f.waitingRenders++
	return nil
}

// fakeFetcher backs the config manager during loop tests.
type fakeFetcher struct {
	env   *deviceconfig.Envelope
	err   error
	calls int
}

func (f *fakeFetcher) FetchDeviceConfig(mac string) (*deviceconfig.Envelope, error) {
	f.calls++
	return f.env, f.err
}

type fixture struct {
	loop     *Loop
	store    *credstore.Store
	config   *deviceconfig.Manager
	api      *fakeAPI
	net      *fakeNetwork
	bat      *fakeBattery
	renderer *fakeRenderer
	fetcher  *fakeFetcher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := credstore.NewStore(filepath.Join(t.TempDir(), "credentials.yaml"))
	require.NoError(t, store.SetWiFiSSID("HomeNet"))
	require.NoError(t, store.SetWiFiPassword("pw"))

	fetcher := &fakeFetcher{}
	config := deviceconfig.NewManager(fetcher)
	api := &fakeAPI{heartbeatVersion: config.ConfigVersion()}
	net := &fakeNetwork{connected: true}
	bat := &fakeBattery{}
	renderer := &fakeRenderer{}

	return &fixture{
		loop:     New(store, config, api, net, bat, renderer, testID),
		store:    store,
		config:   config,
		api:      api,
		net:      net,
		bat:      bat,
		renderer: renderer,
		fetcher:  fetcher,
	}
}

func envelopeWithVersion(version int) *deviceconfig.Envelope {
	interval := 120
	return &deviceconfig.Envelope{
		Success:       true,
		Config:        &deviceconfig.Update{HeartbeatIntervalSeconds: &interval},
		ConfigVersion: &version,
	}
}

func TestCycleStableVersionNoRefresh(t *testing.T) {
	fx := newFixture(t)

	fx.loop.cycle()

	require.Len(t, fx.api.heartbeats, 1)
	assert.Zero(t, fx.fetcher.calls, "matching version must not trigger a config fetch")
	assert.Zero(t, fx.renderer.contentRenders, "display_refresh_on_heartbeat defaults off")
}

func TestCycleVersionChangeTriggersRefresh(t *testing.T) {
	fx := newFixture(t)
	fx.api.heartbeatVersion = 7
	fx.fetcher.env = envelopeWithVersion(7)

	fx.loop.cycle()

	assert.Equal(t, 1, fx.fetcher.calls, "version mismatch must fetch config")
	assert.Equal(t, 7, fx.config.ConfigVersion())
	assert.Equal(t, 120, fx.config.Config().HeartbeatIntervalSeconds)
	assert.Equal(t, 1, fx.renderer.contentRenders, "config change re-renders the display")
}

func TestCycleVersionRollbackTriggersRefresh(t *testing.T) {
	fx := newFixture(t)
	fx.api.heartbeatVersion = 9
	fx.fetcher.env = envelopeWithVersion(9)
	fx.loop.cycle()
	require.Equal(t, 9, fx.config.ConfigVersion())

	// The server rolls back to a numerically lower tag.
	fx.api.heartbeatVersion = 3
	fx.fetcher.env = envelopeWithVersion(3)
	fx.loop.cycle()

	assert.Equal(t, 3, fx.config.ConfigVersion(), "rollback must still refresh")
}

func TestCycleRefreshSuppressesPolicyRender(t *testing.T) {
	fx := newFixture(t)
	fx.config.Config().DisplayRefreshOnHeartbeat = true
	fx.api.heartbeatVersion = 7
	fx.fetcher.env = envelopeWithVersion(7)

	fx.loop.cycle()

	assert.Equal(t, 1, fx.renderer.contentRenders,
		"config-change render and policy render must not stack in one cycle")
}

func TestCyclePolicyRender(t *testing.T) {
	fx := newFixture(t)
	fx.config.Config().DisplayRefreshOnHeartbeat = true

	fx.loop.cycle()

	assert.Zero(t, fx.fetcher.calls)
	assert.Equal(t, 1, fx.renderer.contentRenders)
}

func TestCycleSentinelVersionNoAction(t *testing.T) {
	fx := newFixture(t)
	fx.api.heartbeatVersion = serverapi.UnknownConfigVersion

	fx.loop.cycle()

	assert.Zero(t, fx.fetcher.calls, "unknown server version must not trigger a fetch")
	assert.Zero(t, fx.renderer.contentRenders)
}

func TestCycleHeartbeatFailureStillHonorsRefreshPolicy(t *testing.T) {
	fx := newFixture(t)
	fx.config.Config().DisplayRefreshOnHeartbeat = true
	fx.api.heartbeatErr = errors.New("connection refused")

	fx.loop.cycle()

	assert.Zero(t, fx.fetcher.calls, "no version known, no config fetch")
	assert.Equal(t, 1, fx.renderer.contentRenders,
		"a failed heartbeat must not block the policy render")
}

func TestCycleHeartbeatFailureNoPolicyNoRender(t *testing.T) {
	fx := newFixture(t)
	fx.api.heartbeatErr = errors.New("connection refused")

	fx.loop.cycle()

	assert.Zero(t, fx.fetcher.calls)
	assert.Zero(t, fx.renderer.contentRenders)
}

func TestCycleFailedConfigFetchKeepsLocal(t *testing.T) {
	fx := newFixture(t)
	local := fx.config.ConfigVersion()
	fx.api.heartbeatVersion = 7
	fx.fetcher.err = errors.New("boom")

	fx.loop.cycle()

	assert.Equal(t, 1, fx.fetcher.calls)
	assert.Equal(t, local, fx.config.ConfigVersion(), "failed fetch leaves config unchanged")
	assert.Zero(t, fx.renderer.contentRenders, "failed refresh must not render")
}

func TestCycleReconnectPrimary(t *testing.T) {
	fx := newFixture(t)
	fx.net.connected = false

	fx.loop.cycle()

	require.Equal(t, []string{"HomeNet/pw"}, fx.net.attempts)
	assert.Len(t, fx.api.heartbeats, 1, "heartbeat proceeds after reconnect")
	assert.Equal(t, 1, fx.renderer.contentRenders, "fresh connection redraws the panel")
}

func TestCycleReconnectFallsBackToBackup(t *testing.T) {
	fx := newFixture(t)
	require.NoError(t, fx.store.SetWiFiSSIDBackup("BackupNet"))
	require.NoError(t, fx.store.SetWiFiPasswordBackup("bpw"))
	fx.net.connected = false
	fx.net.connectErrs = map[string]error{"HomeNet": errors.New("timeout")}

	fx.loop.cycle()

	require.Equal(t, []string{"HomeNet/pw", "BackupNet/bpw"}, fx.net.attempts)
	assert.Len(t, fx.api.heartbeats, 1)
}

func TestCycleReconnectFailureSkipsCycle(t *testing.T) {
	fx := newFixture(t)
	fx.net.connected = false
	fx.net.connectErrs = map[string]error{"HomeNet": errors.New("timeout")}

	fx.loop.cycle()

	assert.Empty(t, fx.api.heartbeats, "no heartbeat without connectivity")
	assert.Zero(t, fx.renderer.contentRenders)
}

func TestBuildReportWithBattery(t *testing.T) {
	fx := newFixture(t)
	fx.bat.status = battery.Status{VoltageMV: 4100, Percent: 87, Charging: true, Valid: true}

	report := fx.loop.buildReport()

	assert.Equal(t, testID.MAC, report.MACAddress)
	assert.Equal(t, -61, report.SignalStrength)
	assert.Equal(t, "2.0.0", report.FirmwareVersion)
	require.NotNil(t, report.BatteryMV)
	assert.Equal(t, 4100, *report.BatteryMV)
	require.NotNil(t, report.BatteryPercent)
	assert.Equal(t, 87, *report.BatteryPercent)
	require.NotNil(t, report.Metadata.BatteryCharging)
	assert.True(t, *report.Metadata.BatteryCharging)
	assert.Equal(t, "192.168.1.41", report.Metadata.IPAddress)
	assert.Equal(t, fx.config.ConfigVersion(), report.Metadata.ConfigVersion)
}

func TestBuildReportWithoutBattery(t *testing.T) {
	fx := newFixture(t)
	fx.bat.status = battery.Status{Percent: -1}

	report := fx.loop.buildReport()

	assert.Nil(t, report.BatteryMV)
	assert.Nil(t, report.BatteryPercent)
	assert.Nil(t, report.Metadata.BatteryCharging)
}

func TestRefreshContentUnassignedShowsWaiting(t *testing.T) {
	fx := newFixture(t)
	fx.api.contentErr = serverapi.ErrNotAssigned

	require.NoError(t, fx.loop.RefreshContent())
	assert.Equal(t, 1, fx.renderer.waitingRenders)
	assert.Zero(t, fx.renderer.contentRenders)
}

func TestRefreshContentUsesDisplaySettings(t *testing.T) {
	fx := newFixture(t)
	fx.config.Config().DisplayRotation = 3
	fx.config.Config().ShowLogo = false
	fx.config.Config().ScreenBrightness = 40

	require.NoError(t, fx.loop.RefreshContent())

	assert.Equal(t, display.Settings{Rotation: 3, ShowLogo: false, Brightness: 40}, fx.renderer.lastSettings)
}

func TestRunStopsOnCancel(t *testing.T) {
	fx := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan error, 1)
	go func() { done <- fx.loop.Run(ctx) }()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop on context cancel")
	}
	assert.Len(t, fx.api.heartbeats, 1, "one cycle runs before the cancel is observed")
}
