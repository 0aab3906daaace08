package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

func printStartupBanner(cfg appConfig, streamURL string) {
	dim := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	green := lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	cyan := lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	yellow := lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	bold := lipgloss.NewStyle().Bold(true)

	check := green.Render("●")
	dot := dim.Render("●")

	row := func(on bool, name, value string) string {
		mark := dot
		if on {
			mark = check
		}
		return fmt.Sprintf("    %s  %-14s %s", mark, name, value)
	}

	logo := cyan.Bold(true).Render(`
    ╦  ╔═╗╔═╗╔╦╗╔═╗╦╦
    ║  ║ ║║ ╦ ║ ╠═╣║║
    ╩═╝╚═╝╚═╝ ╩ ╩ ╩╩╩═╝`)

	separator := dim.Render("    ─────────────────────────────────")

	lines := []string{"", logo, "    " + dim.Render("v"+version), "", separator, ""}

	lines = append(lines, bold.Render("    Stream"), "")
	lines = append(lines, row(true, "Source", cyan.Render(streamURL)))
	lines = append(lines, row(true, "History", dim.Render(fmt.Sprintf("%d records", cfg.MaxRecords))))
	if cfg.Reconnect {
		lines = append(lines, row(true, "Reconnect", dim.Render("every "+cfg.ReconnectDelay.String())))
	} else {
		lines = append(lines, row(false, "Reconnect", dim.Render("disabled")))
	}
	lines = append(lines, "")

	lines = append(lines, bold.Render("    Gateway"), "")
	if cfg.APIEnabled {
		lines = append(lines, row(true, "HTTP API", cyan.Render(cfg.APIAddr)))
	} else {
		lines = append(lines, row(false, "HTTP API", dim.Render("disabled")))
	}
	lines = append(lines, row(true, "Unix Socket", cyan.Render(shortenPath(cfg.SocketPath))))
	lines = append(lines, "")

	lines = append(lines, bold.Render("    Storage"), "")
	if cfg.ArchiveEnabled {
		lines = append(lines, row(true, "Archive", dim.Render(shortenPath(cfg.DBPath))))
		if cfg.JournalEnabled {
			lines = append(lines, row(true, "Journal", dim.Render(shortenPath(cfg.JournalPath))))
		} else {
			lines = append(lines, row(false, "Journal", dim.Render("disabled")))
		}
	} else {
		lines = append(lines, row(false, "Archive", dim.Render("disabled")))
	}
	if cfg.RecordPath != "" {
		lines = append(lines, row(true, "Recording", dim.Render(shortenPath(cfg.RecordPath))))
	} else {
		lines = append(lines, row(false, "Recording", dim.Render("disabled")))
	}
	lines = append(lines, "")

	lines = append(lines, bold.Render("    Config"), "")
	if cfg.ConfigPath != "" {
		lines = append(lines, row(true, "Config File", dim.Render(shortenPath(cfg.ConfigPath))))
	} else {
		lines = append(lines, row(false, "Config File", dim.Render("default (no file)")))
	}

	lines = append(lines, "", separator, "")
	lines = append(lines, "    "+dim.Render("Press ")+yellow.Render("Ctrl+C")+dim.Render(" to stop"), "")

	fmt.Println(strings.Join(lines, "\n"))
}

func shortenPath(path string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	if strings.HasPrefix(path, home) {
		return "~" + path[len(home):]
	}
	return path
}
