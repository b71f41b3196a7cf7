package theme

import (
	"fmt"
	"io"

	"charm.land/lipgloss/v2"
)

var (
	Primary   = lipgloss.Color("#8B5CF6")
	Secondary = lipgloss.Color("#14B8A6")
	TextDim   = lipgloss.Color("#94A3B8")

	knot    = lipgloss.NewStyle().Foreground(Primary).Bold(true)
	thread  = lipgloss.NewStyle().Foreground(Secondary)
	name    = lipgloss.NewStyle().Bold(true)
	tagline = lipgloss.NewStyle().Foreground(TextDim).Italic(true)
)

// Banner returns the LinkLoom banner.
func Banner() string {
	return knot.Render("  ╭─╮ ╭─╮ ╭─╮  ") + name.Render("LinkLoom") + "\n" +
		thread.Render("  ╰─┼─┼─┼─┼─╯  ") + tagline.Render("weaving topic graphs from seed followers") + "\n" +
		knot.Render("    ╰─╯ ╰─╯") + "\n"
}

// PrintBanner writes the banner to w.
func PrintBanner(w io.Writer) {
	fmt.Fprint(w, Banner())
}
