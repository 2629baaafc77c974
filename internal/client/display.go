package client

import (
	"fmt"
	"io"
	"strings"

	"charm.land/lipgloss/v2"
	"github.com/charmbracelet/glamour"

	"github.com/phonewise/phonewise/internal/catalog"
)

const accentBlue = "#4285F4"

// Styles contains the lipgloss styles for the terminal client.
type Styles struct {
	Banner    lipgloss.Style
	Status    lipgloss.Style
	Prompt    lipgloss.Style
	Error     lipgloss.Style
	CardTitle lipgloss.Style
	CardBody  lipgloss.Style
	Selected  lipgloss.Style
	Separator lipgloss.Style
}

// DefaultStyles returns the default style configuration.
func DefaultStyles() Styles {
	return Styles{
		Banner:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(accentBlue)),
		Status:    lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("240")),
		Prompt:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86")),
		Error:     lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		CardTitle: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212")),
		CardBody:  lipgloss.NewStyle().Foreground(lipgloss.Color("250")),
		Selected:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86")),
		Separator: lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
	}
}

// Display renders conversation output to the terminal. Markdown answers go
// through glamour; status lines and phone cards are styled with lipgloss.
type Display struct {
	out      io.Writer
	styles   Styles
	renderer *glamour.TermRenderer
}

// NewDisplay creates a display writing to out. A nil glamour renderer (e.g.
// in a dumb terminal) degrades to plain text output.
func NewDisplay(out io.Writer) *Display {
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		renderer = nil
	}
	return &Display{out: out, styles: DefaultStyles(), renderer: renderer}
}

// Welcome prints the session banner.
func (d *Display) Welcome(server string) {
	fmt.Fprintln(d.out, d.styles.Banner.Render("phonewise"))
	fmt.Fprintln(d.out, d.styles.CardBody.Render("Server: "+server))
	fmt.Fprintln(d.out, d.styles.CardBody.Render("Commands: /select <n> | /compare | /clear | /exit"))
	fmt.Fprintln(d.out)
}

// Status prints a transient progress line.
func (d *Display) Status(line string) {
	fmt.Fprintln(d.out, d.styles.Status.Render("  "+line))
}

// Answer renders the assistant's markdown reply.
func (d *Display) Answer(markdown string) {
	if d.renderer != nil {
		if rendered, err := d.renderer.Render(markdown); err == nil {
			fmt.Fprint(d.out, rendered)
			return
		}
	}
	fmt.Fprintln(d.out, markdown)
}

// Cards prints the numbered phone cards attached to an answer, marking the
// ones currently selected for comparison.
func (d *Display) Cards(phones []catalog.Phone, selection *SelectionSet) {
	if len(phones) == 0 {
		return
	}

	fmt.Fprintln(d.out, d.styles.Separator.Render(strings.Repeat("─", 60)))
	for i, p := range phones {
		marker := " "
		if selection != nil && selection.Contains(p.ID) {
			marker = d.styles.Selected.Render("✓")
		}
		title := fmt.Sprintf("[%d]%s %s", i+1, marker, p.Name)
		fmt.Fprintln(d.out, d.styles.CardTitle.Render(title))

		body := fmt.Sprintf("    ₹%d · %s · %s · %s", p.Price, p.Display, p.Camera, p.Battery)
		fmt.Fprintln(d.out, d.styles.CardBody.Render(body))
		if len(p.Highlights) > 0 {
			fmt.Fprintln(d.out, d.styles.CardBody.Render("    "+strings.Join(p.Highlights, " · ")))
		}
	}
	fmt.Fprintln(d.out, d.styles.Separator.Render(strings.Repeat("─", 60)))
}

// Prompt prints the input prompt.
func (d *Display) Prompt() {
	fmt.Fprint(d.out, d.styles.Prompt.Render("❯ "))
}

// Error prints an error line.
func (d *Display) Error(msg string) {
	fmt.Fprintln(d.out, d.styles.Error.Render("error: "+msg))
}

// Info prints a neutral informational line.
func (d *Display) Info(msg string) {
	fmt.Fprintln(d.out, d.styles.CardBody.Render(msg))
}
