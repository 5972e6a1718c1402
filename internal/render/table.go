// ABOUTME: Table layout for the restricted-HTML renderer
// ABOUTME: Serializes a GFM table as preformatted text with a bold header row

package render

import (
	"strings"
	"unicode/utf8"

	"github.com/yuin/goldmark/ast"
	extast "github.com/yuin/goldmark/extension/ast"
)

const (
	cellSeparator   = " │ "
	separatorRune   = "─"
	minSeparatorLen = 3
)

// renderTable lays a table out as a <pre> block. Transports have no table
// markup, so header cells are bolded, a rule of dashes goes under the header,
// and each body row becomes one line. Cell text is escaped because it sits
// inside <pre>.
func renderTable(node ast.Node, source []byte) string {
	var header []string
	var rows [][]string

	for child := node.FirstChild(); child != nil; child = child.NextSibling() {
		switch child.Kind() {
		case extast.KindTableHeader:
			header = tableCells(child, source)
		case extast.KindTableRow:
			rows = append(rows, tableCells(child, source))
		}
	}

	width := minSeparatorLen
	lines := make([]string, 0, len(rows)+2)

	if len(header) > 0 {
		bold := make([]string, len(header))
		for i, cell := range header {
			bold[i] = "<b>" + textEscaper.Replace(cell) + "</b>"
		}
		width = max(width, utf8.RuneCountInString(strings.Join(header, cellSeparator)))
		lines = append(lines, strings.Join(bold, cellSeparator), "")
	}

	for _, row := range rows {
		escaped := make([]string, len(row))
		for i, cell := range row {
			escaped[i] = textEscaper.Replace(cell)
		}
		width = max(width, utf8.RuneCountInString(strings.Join(row, cellSeparator)))
		lines = append(lines, strings.Join(escaped, cellSeparator))
	}

	// The rule's length is only known once every row has been measured.
	if len(header) > 0 {
		lines[1] = strings.Repeat(separatorRune, width)
	}

	return "<pre>" + strings.Join(lines, "\n") + "</pre>"
}

func tableCells(row ast.Node, source []byte) []string {
	var cells []string
	for cell := row.FirstChild(); cell != nil; cell = cell.NextSibling() {
		if cell.Kind() != extast.KindTableCell {
			continue
		}
		cells = append(cells, strings.TrimSpace(plainText(cell, source)))
	}
	return cells
}
