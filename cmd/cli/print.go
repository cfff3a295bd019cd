package main

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/SanjoDeundiak/process-watchdog/pkg/lib"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

var styles = struct {
	Header lipgloss.Style
	Border lipgloss.Style
	Cell   lipgloss.Style
	Good   lipgloss.Style
	Bad    lipgloss.Style
	Faint  lipgloss.Style
}{
	Header: lipgloss.NewStyle().Bold(true),
	Border: lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
	Cell:   lipgloss.NewStyle().Padding(0, 1),
	Good:   lipgloss.NewStyle().Foreground(lipgloss.Color("2")), // green
	Bad:    lipgloss.NewStyle().Foreground(lipgloss.Color("1")), // red
	Faint:  lipgloss.NewStyle().Faint(true),
}

func printRunSummary(w io.Writer, r *lib.RunResult) {
	code := "none"
	if r.ExitCode != nil {
		code = strconv.Itoa(*r.ExitCode)
	}
	style := styles.Bad
	if r.Succeeded() {
		style = styles.Good
	}
	line := fmt.Sprintf("%s: %s, exit code %s, %s", r.Command.String(), r.Status, code, r.Duration().Round(time.Millisecond))
	if r.SpawnError != nil {
		line += ": " + r.SpawnError.Error()
	}
	fmt.Fprintln(w, style.Render(line))
}

// statusView is a watch as printed, local or remote.
type statusView struct {
	ID       string
	Command  string
	State    string
	Reason   string
	Restarts int
	Spawns   int
	PID      int
}

func printWatchStatus(w io.Writer, st statusView) {
	pid := "-"
	if st.PID != 0 {
		pid = strconv.Itoa(st.PID)
	}
	reason := st.Reason
	if reason == "none" {
		reason = ""
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(styles.Border).
		Headers("ID", "STATE", "PID", "RESTARTS", "SPAWNS", "REASON", "COMMAND").
		Row(st.ID, st.State, pid, strconv.Itoa(st.Restarts), strconv.Itoa(st.Spawns), reason, st.Command).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return styles.Header.Padding(0, 1)
			}
			return styles.Cell
		})
	fmt.Fprintln(w, t.Render())
}
