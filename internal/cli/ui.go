package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// stdout receives all human-oriented output; logs go to the logger's writer.
var stdout io.Writer = os.Stdout

var (
	colorAccent = lipgloss.Color("36")
	colorOK     = lipgloss.Color("35")
	colorWarn   = lipgloss.Color("220")
	colorFail   = lipgloss.Color("167")
	colorLink   = lipgloss.Color("75")
	colorValue  = lipgloss.Color("255")
	colorLabel  = lipgloss.Color("245")
	colorMuted  = lipgloss.Color("240")
)

// Styles shared by the commands.
var (
	StyleHighlight = lipgloss.NewStyle().Foreground(colorAccent)
	StyleNumber    = lipgloss.NewStyle().Foreground(colorAccent).Bold(true)
	StyleLink      = lipgloss.NewStyle().Foreground(colorLink).Underline(true)
	StyleDim       = lipgloss.NewStyle().Foreground(colorMuted)
	StyleValue     = lipgloss.NewStyle().Foreground(colorValue)
	StyleWarning   = lipgloss.NewStyle().Foreground(colorWarn)

	styleFail        = lipgloss.NewStyle().Foreground(colorFail)
	styleLabel       = lipgloss.NewStyle().Foreground(colorLabel).Width(12)
	styleIconSpinner = lipgloss.NewStyle().Foreground(colorAccent)
)

// marker is the leading symbol of a status line.
type marker struct {
	icon  string
	style lipgloss.Style
}

var (
	markOK   = marker{"✓", lipgloss.NewStyle().Foreground(colorOK)}
	markFail = marker{"✗", styleFail}
	markWarn = marker{"!", StyleWarning}
	markInfo = marker{"›", lipgloss.NewStyle().Foreground(colorLabel)}
)

func status(m marker, msg string) {
	fmt.Fprintln(stdout, m.style.Render(m.icon)+" "+msg)
}

func printSuccess(format string, args ...any) { status(markOK, fmt.Sprintf(format, args...)) }
func printError(format string, args ...any)   { status(markFail, fmt.Sprintf(format, args...)) }
func printInfo(format string, args ...any)    { status(markInfo, fmt.Sprintf(format, args...)) }

func printWarning(format string, args ...any) {
	status(markWarn, StyleWarning.Render(fmt.Sprintf(format, args...)))
}

// printDetail prints an indented, muted line under the previous status.
func printDetail(format string, args ...any) {
	fmt.Fprintln(stdout, "  "+StyleDim.Render(fmt.Sprintf(format, args...)))
}

func printFile(path string) {
	fmt.Fprintln(stdout, "  "+StyleDim.Render("→")+" "+StyleValue.Render(path))
}

func printKeyValue(key, value string) {
	fmt.Fprintln(stdout, styleLabel.Render(key)+" "+StyleValue.Render(value))
}

// printStats summarizes a render run on one line, omitting zero counts
// except the total.
func printStats(images, cached, skipped, failed int) {
	parts := []string{fmt.Sprintf("%d images", images)}
	add := func(n int, label string, style lipgloss.Style) {
		if n > 0 {
			parts = append(parts, style.Render(fmt.Sprintf("%d %s", n, label)))
		}
	}
	add(images-cached, "fresh", styleLabel.UnsetWidth())
	add(cached, "cached", markOK.style)
	add(skipped, "skipped", StyleWarning)
	add(failed, "failed", styleFail)
	fmt.Fprintln(stdout, "  "+strings.Join(parts, StyleDim.Render(" · ")))
}

func printNextStep(description, cmd string) {
	fmt.Fprintln(stdout, StyleDim.Render(description+":")+" "+StyleLink.UnsetUnderline().Render(cmd))
}

func printNewline() { fmt.Fprintln(stdout) }
