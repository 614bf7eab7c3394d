package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

func modalBodyWidth(width int) int {
	w := width - 10
	if w > 72 {
		w = 72
	}
	if w < 20 {
		w = 20
	}
	return w
}

// renderAlertModal renders a blocking notice. It is dismissed with enter or esc.
func renderAlertModal(width int, title, body string) string {
	bodyW := modalBodyWidth(width)

	// No nested borders: some terminals show background artifacts inside a colored modal.
	btn := lipgloss.NewStyle().
		Padding(0, 1).
		Foreground(colorAccentFg).
		Background(colorAccent).
		Bold(true).
		Render("OK")

	content := strings.Join([]string{
		lipgloss.NewStyle().Width(bodyW).Render(body),
		"",
		btn,
		"",
		styleMuted().Width(bodyW).Render("enter/esc: dismiss"),
	}, "\n")

	head := lipgloss.NewStyle().Bold(true).Foreground(colorAlertBorder).Render(title)
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(colorAlertBorder).
		Padding(1, 2).
		Render(head + "\n\n" + content)
}

// placeCentered puts s in the middle of a width x height area.
func placeCentered(width, height int, s string) string {
	if width <= 0 || height <= 0 {
		return s
	}
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, s)
}
