package tools

import (
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
)

// ShowTable renders rows under a header on stdout.
func ShowTable(header []string, data [][]string) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader(header)

	for _, row := range data {
		table.Append(row)
	}

	fmt.Println()
	table.SetBorders(tablewriter.Border{Left: true, Top: false, Right: true, Bottom: false})
	table.SetCenterSeparator("|")
	table.Render()
	fmt.Println()
}
