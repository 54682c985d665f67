package ctl

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"

	"onnxd/pkg/types"
)

func renderStatus(st types.StatusResponse, s styles) string {
	lines := []string{
		s.title.Render("onnxd status"),
		s.header.Render(fmt.Sprintf("state: %s  uptime: %s  instances: %d",
			st.State, formatUptime(st.UptimeSeconds), len(st.Instances))),
		s.detail.Render(fmt.Sprintf("memory: %s  host: %d MB free of %d MB",
			budgetLine(st), st.Host.AvailableMB, st.Host.TotalMB)),
		s.faint.Render(fmt.Sprintf("loads: %d  evictions: %d  fetches: %d  runtime: %s",
			st.LoadsTotal, st.EvictionsTotal, st.FetchesTotal, runtimeLabel(st.RuntimeBuilt))),
	}
	if st.Error != "" {
		lines = append(lines, s.warning.Render("error: "+st.Error))
	}

	if len(st.Instances) == 0 {
		lines = append(lines, s.section.Render(s.faint.Render("No instances loaded.")))
		return lipgloss.JoinVertical(lipgloss.Left, lines...)
	}
	for _, inst := range st.Instances {
		lines = append(lines, s.section.Render(renderInstance(inst, s)))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func renderInstance(inst types.InstanceStatus, s styles) string {
	state := s.warning
	if inst.State == "ready" {
		state = s.ready
	}
	parts := []string{
		lipgloss.JoinHorizontal(lipgloss.Top,
			s.instance.Render(inst.ModelID), "  ", state.Render(inst.State)),
		s.detail.Render(fmt.Sprintf("mem: %d MB  threads: %d  queue: %d/%d  inflight: %d",
			inst.EstMemMB, inst.Threads, inst.QueueLen, inst.MaxQueueDepth, inst.Inflight)),
		s.faint.Render(fmt.Sprintf("widths: in %d / out %d  validity: %s",
			inst.InputWidth, inst.OutputWidth, formatValidity(inst.ValidFrom, inst.ValidUntil))),
	}
	if inst.Err != "" {
		parts = append(parts, s.warning.Render("error: "+inst.Err))
	}
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func renderModels(models []types.Model, s styles) string {
	lines := []string{
		s.title.Render("models"),
		s.header.Render(fmt.Sprintf("registered: %d", len(models))),
	}
	if len(models) == 0 {
		lines = append(lines, s.faint.Render("No models found."))
		return lipgloss.JoinVertical(lipgloss.Left, lines...)
	}
	for _, m := range models {
		lines = append(lines, s.detail.Render(fmt.Sprintf("%-30s %6d MB  %s", m.ID, m.SizeMB, m.Path)))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func budgetLine(st types.StatusResponse) string {
	if st.BudgetMB <= 0 {
		return fmt.Sprintf("%d MB used (no budget)", st.UsedMB)
	}
	return fmt.Sprintf("%d/%d MB used, margin %d MB", st.UsedMB, st.BudgetMB, st.MarginMB)
}

func runtimeLabel(built bool) string {
	if built {
		return "onnxruntime"
	}
	return "stub"
}

func formatValidity(from, until int64) string {
	if from < 0 || until < 0 {
		return "unset"
	}
	return fmt.Sprintf("[%d, %d]", from, until)
}

func formatUptime(seconds int64) string {
	return (time.Duration(seconds) * time.Second).String()
}
