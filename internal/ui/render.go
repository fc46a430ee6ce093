package ui

import (
	"fmt"
	"net/netip"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/muurk/mdnswatch/internal/discovery"
)

// RenderHosts renders the hosts of one service type as a titled block.
func RenderHosts(service string, hosts []discovery.MatchedHost, width int) string {
	width = clampWidth(width)
	lines := []string{ServiceStyle.Render(service), RenderHorizontalDivider(width - 2)}
	if len(hosts) == 0 {
		lines = append(lines, MutedStyle.Render("  no hosts"))
		return strings.Join(lines, "\n")
	}
	for _, h := range hosts {
		lines = append(lines, renderHostLine(h, false))
	}
	return strings.Join(lines, "\n")
}

func renderHostLine(h discovery.MatchedHost, selected bool) string {
	marker, name := "  "+HostMarker+" ", HostNameStyle.Render(h.HostName)
	if selected {
		marker, name = SelectedHostStyle.Render(" "+SelectedMarker+" "), SelectedHostStyle.Render(h.HostName)
	}
	return fmt.Sprintf("%s%s:%d  %s", marker, name, h.Port, AddressStyle.Render(joinAddrs(h.Addresses)))
}

func joinAddrs(addrs []netip.Addr) string {
	parts := make([]string, len(addrs))
	for i, a := range addrs {
		parts[i] = a.String()
	}
	return strings.Join(parts, ", ")
}

// RenderConflict renders the warning box shown while other machines
// advertise our service. It returns "" when there is no conflict.
func RenderConflict(hosts []discovery.ConflictingHost, width int) string {
	if len(hosts) == 0 {
		return ""
	}
	width = clampWidth(width)

	lines := []string{ConflictTitleStyle.Render(WarningMarker + "  NAMING CONFLICT"), ""}
	for _, h := range hosts {
		lines = append(lines, fmt.Sprintf("%s advertised by %s", h.Instance, HostNameStyle.Render(h.MachineName)))
		if len(h.Addresses) > 0 {
			lines = append(lines, AddressStyle.Render("  "+joinAddrs(h.Addresses)))
		}
	}
	return ConflictBoxStyle(width).Render(strings.Join(lines, "\n"))
}

// RenderError renders an error box with optional troubleshooting tips.
func RenderError(title string, err error, tips []string, width int) string {
	width = clampWidth(width)
	lines := []string{ErrorTitleStyle.Render(FailureMarker + "  " + title)}
	if err != nil {
		lines = append(lines, "", lipgloss.NewStyle().Foreground(ErrorColor).Render("Error: "+err.Error()))
	}
	if len(tips) > 0 {
		lines = append(lines, "")
		for _, tip := range tips {
			lines = append(lines, MutedStyle.Render("  "+HostMarker+" "+tip))
		}
	}
	return ErrorBoxStyle(width).Render(strings.Join(lines, "\n"))
}
