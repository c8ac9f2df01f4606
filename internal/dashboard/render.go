package dashboard

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
)

// RenderText writes a plain-text rendering of v for terminals.
func RenderText(w io.Writer, v View) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	p := func(format string, args ...interface{}) {
		fmt.Fprintf(tw, format, args...)
	}

	p("ADMIN DASHBOARD\n")
	p("System status:\t%s [%s]\n", v.Overview.OverallStatus, v.Overview.Status.Level)
	p("Active users:\t%d\n", v.Overview.ActiveUsers)
	p("Security alerts:\t%d\n", v.Overview.SecurityAlerts)
	p("Critical metrics:\t%d\n", v.Overview.CriticalMetrics)

	if h := v.Health; h != nil {
		p("\nHEALTH (checked %s)\n", h.LastChecked)
		for _, c := range h.Components {
			p("  %s\t%s\t[%s]\n", c.Name, c.Status, c.Style.Level)
		}
		for _, issue := range h.Issues {
			p("  ! %s\n", issue)
		}
	}

	if si := v.SystemInfo; si != nil {
		memFlag := ""
		if si.MemoryCritical {
			memFlag = " !"
		}
		p("\nSYSTEM\n")
		p("  Application:\t%s\n", si.Application)
		p("  Runtime:\t%s\n", si.Runtime)
		p("  OS:\t%s\n", si.OS)
		p("  CPU cores:\t%d\n", si.Processors)
		p("  Started:\t%s\n", si.StartTime)
		p("  Uptime:\t%s\n", si.Uptime)
		p("  Memory:\t%s / %s (%.1f%%)%s\n", si.UsedMemory, si.TotalMemory, si.MemoryPercent, memFlag)
	}

	p("\nCRITICAL METRICS\n")
	if len(v.CriticalMetrics) == 0 {
		p("  none\n")
	} else {
		p("  METRIC\tVALUE\tSTATUS\tTIME\n")
		for _, m := range v.CriticalMetrics {
			p("  %s\t%s\t%s\t%s\n", m.Name, m.Value, m.Status, m.Timestamp)
		}
	}

	if len(v.AuditChart) > 0 {
		p("\nAUDIT ACTIONS\n")
		writeSeries(p, v.AuditChart)
	}
	if len(v.ActivityChart) > 0 {
		p("\nUSER ACTIVITY BY HOUR\n")
		writeSeries(p, v.ActivityChart)
	}

	return tw.Flush()
}

const barWidth = 30

func writeSeries(p func(string, ...interface{}), points []ChartPoint) {
	var peak int64
	for _, pt := range points {
		if pt.Count > peak {
			peak = pt.Count
		}
	}
	for _, pt := range points {
		n := 0
		if peak > 0 {
			n = int(pt.Count * barWidth / peak)
		}
		p("  %s\t%d\t%s\n", pt.Label, pt.Count, strings.Repeat("#", n))
	}
}
