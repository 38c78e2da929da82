package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/zlnvch/flashlist/client"
	"github.com/zlnvch/flashlist/models"
)

var (
	headerStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("33"))
	completedStyle = lipgloss.NewStyle().Faint(true).Strikethrough(true)
	positionStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	warningStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	successStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
)

const indentWidth = 2

func checkbox(item models.Item) string {
	if item.Completed {
		return "[x]"
	}
	return "[ ]"
}

// renderOutline lists items with their 1-based positions, indented by
// level.
func renderOutline(items []models.Item) string {
	if len(items) == 0 {
		return positionStyle.Render("(empty)") + "\n"
	}

	width := len(fmt.Sprint(len(items)))
	var b strings.Builder
	for i, item := range items {
		b.WriteString(positionStyle.Render(fmt.Sprintf("%*d", width, i+1)))
		b.WriteString(" ")
		b.WriteString(strings.Repeat(" ", item.Level*indentWidth))

		switch {
		case item.Type == models.ItemHeader:
			b.WriteString(headerStyle.Render("# " + item.Text))
		case item.Completed:
			b.WriteString(completedStyle.Render(checkbox(item) + " " + item.Text))
		default:
			b.WriteString(checkbox(item) + " " + item.Text)
		}
		b.WriteString("\n")
	}
	return b.String()
}

func printSuccess(msg string) {
	fmt.Println(successStyle.Render(msg))
}

func printWarning(msg string) {
	fmt.Fprintln(os.Stderr, warningStyle.Render("warning: "+msg))
}

func printError(err error) {
	msg := err.Error()
	var apiErr *client.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		msg = apiErr.Message
	}
	fmt.Fprintln(os.Stderr, errorStyle.Render("error: "+msg))
}
