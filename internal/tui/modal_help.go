package tui

import (
	"fmt"
	"strings"
)

func newHelpModal(keys KeyMap) Modal {
	return newScrollModal("help", "Help", func(int) string {
		return renderHelpContent(keys)
	}, "?")
}

func renderHelpContent(keys KeyMap) string {
	var b strings.Builder
	for i, group := range keys.helpGroups() {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(chartTitleStyle.Render(group.Title))
		b.WriteString("\n")
		for _, binding := range group.Bindings {
			h := binding.Help()
			fmt.Fprintf(&b, "  %-10s %s\n", h.Key, h.Desc)
		}
	}
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("New records are held while paused and shown on resume.\nOnly the newest records up to the configured cap stay visible."))
	return b.String()
}
