// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/jeranaias/fieldref/internal/util"
)

// maxCellWidth caps a single column so one long description cannot push the
// rest of the table off screen.
const maxCellWidth = 48

// table lays out rows in columns measured in display cells, so emoji icons
// and CJK titles stay aligned.
type table struct {
	headers []string
	rows    [][]string
}

func newTable(headers ...string) *table {
	return &table{headers: headers}
}

func (t *table) add(cells ...string) {
	row := make([]string, len(t.headers))
	for i := range row {
		if i < len(cells) {
			row[i] = util.TruncateWidth(util.SingleLine(cells[i]), maxCellWidth)
		}
	}
	t.rows = append(t.rows, row)
}

func (t *table) widths() []int {
	w := make([]int, len(t.headers))
	for i, h := range t.headers {
		w[i] = util.StringWidth(h)
	}
	for _, row := range t.rows {
		for i, cell := range row {
			if cw := util.StringWidth(cell); cw > w[i] {
				w[i] = cw
			}
		}
	}
	return w
}

func (t *table) render(w io.Writer) {
	widths := t.widths()
	line := func(cells []string) string {
		parts := make([]string, len(cells))
		for i, c := range cells {
			if i == len(cells)-1 {
				parts[i] = c
			} else {
				parts[i] = util.PadWidth(c, widths[i])
			}
		}
		return strings.TrimRight(strings.Join(parts, "  "), " ")
	}

	fmt.Fprintln(w, LabelStyle.Render(line(t.headers)))
	for _, row := range t.rows {
		fmt.Fprintln(w, line(row))
	}
}

// =============================================================================
// CONFIRMATION
// =============================================================================

// confirm asks a yes/no question on in. Anything but y/yes, including EOF,
// is a no.
func confirm(in io.Reader, out io.Writer, question string) bool {
	fmt.Fprintf(out, "%s %s ", WarningStyle.Render(question), DimStyle.Render("[y/N]"))
	answer, _ := bufio.NewReader(in).ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	}
	return false
}
