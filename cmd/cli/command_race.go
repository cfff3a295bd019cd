package main

import (
	"fmt"
	"strconv"

	"github.com/SanjoDeundiak/process-watchdog/pkg/lib/counter"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
)

func newRaceCmd(a *app) *cobra.Command {
	var iterations, runs, pairs int

	cmd := &cobra.Command{
		Use:   "race",
		Short: "Show lost updates on an unguarded counter next to a guarded one",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if iterations < 1 || runs < 1 || pairs < 1 {
				return fmt.Errorf("--iterations, --runs and --pairs must be positive")
			}

			variants := []func(int) *counter.Counter{counter.NewUnguarded, counter.NewGuarded}
			headers := []string{"RUN"}
			for _, newCounter := range variants {
				headers = append(headers, counterLabel(newCounter(0)))
			}

			diverged := 0
			rows := make([][]string, 0, runs)
			for i := 1; i <= runs; i++ {
				row := []string{strconv.Itoa(i)}
				for _, newCounter := range variants {
					c := newCounter(0)
					final := counter.RunContended(c, pairs, iterations)
					if final != 0 && !c.Guarded() {
						diverged++
					}
					a.logger.Debug("race run", "run", i, "counter", counterLabel(c), "final", final)
					row = append(row, strconv.Itoa(final))
				}
				rows = append(rows, row)
			}

			t := table.New().
				Border(lipgloss.NormalBorder()).
				BorderStyle(styles.Border).
				Headers(headers...).
				Rows(rows...).
				StyleFunc(func(row, col int) lipgloss.Style {
					if row == table.HeaderRow {
						return styles.Header.Padding(0, 1)
					}
					if col > 0 && rows[row][col] != "0" {
						return styles.Bad.Padding(0, 1)
					}
					return styles.Cell
				})

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, t.Render())
			fmt.Fprintf(out, "%d goroutine pairs x %d increments/decrements; expected final value 0\n", pairs, iterations)
			summary := fmt.Sprintf("unguarded counter diverged in %d of %d runs", diverged, runs)
			if diverged > 0 {
				fmt.Fprintln(out, styles.Bad.Render(summary))
			} else {
				fmt.Fprintln(out, styles.Good.Render(summary))
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&iterations, "iterations", 1_000_000, "increments and decrements per goroutine")
	cmd.Flags().IntVar(&runs, "runs", 5, "number of runs")
	cmd.Flags().IntVar(&pairs, "pairs", 1, "incrementer/decrementer goroutine pairs")
	return cmd
}

func counterLabel(c *counter.Counter) string {
	if c.Guarded() {
		return "GUARDED"
	}
	return "UNGUARDED"
}
