package main

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

// tableSpec describes a table for renderTable. Rows shorter than Headers are
// padded; extra cells are dropped.
type tableSpec struct {
	Title   string
	Headers []string
	Aligns  []columnAlignment
	Rows    [][]string
	Footer  []string
}

func renderTable(tbl tableSpec) string {
	columns := len(tbl.Headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	if tbl.Title != "" {
		tw.SetTitle(tbl.Title)
	}
	tw.AppendHeader(toRow(tbl.Headers, columns))
	for _, row := range tbl.Rows {
		tw.AppendRow(toRow(row, columns))
	}
	if len(tbl.Footer) > 0 {
		tw.AppendFooter(toRow(tbl.Footer, columns))
	}

	configs := make([]table.ColumnConfig, 0, columns)
	for i := range columns {
		align := text.AlignLeft
		if i < len(tbl.Aligns) && tbl.Aligns[i] == alignRight {
			align = text.AlignRight
		}
		configs = append(configs, table.ColumnConfig{
			Number:           i + 1,
			Align:            align,
			AlignHeader:      text.AlignLeft,
			AlignFooter:      align,
			WidthMax:         72,
			WidthMaxEnforcer: text.WrapSoft,
		})
	}
	tw.SetColumnConfigs(configs)

	return tw.Render()
}

func toRow(cells []string, columns int) table.Row {
	row := make(table.Row, columns)
	for i := range columns {
		if i < len(cells) {
			row[i] = cells[i]
		} else {
			row[i] = ""
		}
	}
	return row
}
