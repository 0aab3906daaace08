package tui

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/keepwatching/logtail/internal/model"
)

func newDetailsModal(r model.LogRecord) Modal {
	return newScrollModal("details:"+r.ID, "Log Details", func(int) string {
		return formatDetails(r)
	}, "enter")
}

// formatDetails renders the common fields, the origin body as YAML and the
// raw payload indented.
func formatDetails(r model.LogRecord) string {
	var b strings.Builder
	field := func(name, value string) {
		fmt.Fprintf(&b, "%s %s\n", chartTitleStyle.Render(fmt.Sprintf("%-10s", name+":")), value)
	}
	field("ID", r.ID)
	field("Time", r.Timestamp.Local().Format(time.RFC3339Nano))
	field("Service", string(r.Service))
	field("Level", string(r.Level))
	field("Kind", string(r.Kind()))
	field("Message", r.Message)

	if origin := formatOrigin(r.Origin); origin != "" {
		b.WriteString("\n")
		b.WriteString(chartTitleStyle.Render(string(r.Kind())))
		b.WriteString("\n")
		b.WriteString(origin)
	}

	if len(r.Raw) > 0 {
		b.WriteString("\n")
		b.WriteString(chartTitleStyle.Render("Raw"))
		b.WriteString("\n")
		var pretty bytes.Buffer
		if err := json.Indent(&pretty, r.Raw, "", "  "); err != nil {
			b.Write(r.Raw)
		} else {
			b.Write(pretty.Bytes())
		}
		b.WriteString("\n")
	}
	return b.String()
}

func formatOrigin(o model.Origin) string {
	if o == nil {
		return ""
	}
	out, err := yaml.Marshal(o)
	if err != nil {
		return errorTextStyle.Render("origin: " + err.Error())
	}
	s := string(out)
	if strings.TrimSpace(s) == "{}" {
		return ""
	}
	return s
}
