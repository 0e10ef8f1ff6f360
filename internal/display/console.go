package display

import (
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/smdworks/smdagent/internal/logging"
	"github.com/smdworks/smdagent/internal/serverapi"
)

const productName = "SMD"

// Console renders screens as bordered text panels on a writer.
type Console struct {
	out   io.Writer
	width int
}

// NewConsole returns a console renderer sized to the terminal.
func NewConsole(out io.Writer) *Console {
	return &Console{out: out, width: PanelWidth()}
}

// NewConsoleWidth returns a console renderer with a fixed panel width.
func NewConsoleWidth(out io.Writer, width int) *Console {
	if width < MinPanelWidth {
		width = MinPanelWidth
	}
	return &Console{out: out, width: width}
}

// RenderContent draws the assigned content record as the main panel.
func (c *Console) RenderContent(content *serverapi.ContentData, settings Settings) error {
	logging.Debug("Rendering content screen",
		zap.String("title", content.Title),
		zap.String("status", content.Status),
		zap.Int("rotation", settings.Rotation))

	sections := []string{
		TitleStyle.Render(content.Title),
		SubtitleStyle.Render(content.Subtitle),
		"",
		StatusStyle(content.Status).Render(content.Status),
		"",
		LineStyle.Render(content.Line1),
		LineStyle.Render(content.Line2),
		LineStyle.Render(content.Line3),
		LineStyle.Render(content.Line4),
	}
	if settings.ShowLogo {
		sections = append(sections, "", LogoStyle.Render(productName))
	}

	return c.panel(strings.Join(sections, "\n"))
}

// RenderProvisioning draws the setup-mode screen.
func (c *Console) RenderProvisioning(id Identity) error {
	sections := []string{
		LogoStyle.Render(productName + " Setup"),
		"",
		LabelStyle.Render("Device:") + " " + id.DeviceType,
		LabelStyle.Render("MAC:") + " " + id.MAC,
		LabelStyle.Render("Firmware:") + " " + id.Version,
		"",
		StatusStyle("WAITING").Render("AWAITING PROVISIONING"),
		FooterStyle.Render("Connect over serial to configure"),
	}
	return c.panel(strings.Join(sections, "\n"))
}

// RenderWaiting draws the provisioned-but-unassigned screen.
func (c *Console) RenderWaiting(id Identity) error {
	sections := []string{
		TitleStyle.Render("Unregistered"),
		"",
		LabelStyle.Render("MAC:") + " " + id.MAC,
		"",
		StatusStyle("WAITING").Render("WAITING FOR ASSIGNMENT"),
		FooterStyle.Render("Register this device on the management server"),
	}
	return c.panel(strings.Join(sections, "\n"))
}

func (c *Console) panel(content string) error {
	rendered := PanelStyle(c.width).Render(content)
	if _, err := fmt.Fprintln(c.out, rendered); err != nil {
		return fmt.Errorf("display write failed: %w", err)
	}
	return nil
}

var _ Renderer = (*Console)(nil)
