package document

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
)

const sharedStringsPart = "xl/sharedStrings.xml"

// extractExcel extracts cell text from every worksheet in the workbook,
// one line per row.
func extractExcel(path string) (string, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return "", fmt.Errorf("%w: open %s: %v", ErrExtraction, path, err)
	}
	defer zr.Close()

	var shared []string
	var sheets []*zip.File

	for _, f := range zr.File {
		switch {
		case f.Name == sharedStringsPart:
			rc, err := f.Open()
			if err != nil {
				return "", fmt.Errorf("%w: open %s: %v", ErrExtraction, sharedStringsPart, err)
			}
			shared, err = parseSharedStrings(rc)
			rc.Close()
			if err != nil {
				return "", fmt.Errorf("%w: parse %s: %v", ErrExtraction, sharedStringsPart, err)
			}
		case isWorksheetPart(f.Name):
			sheets = append(sheets, f)
		}
	}

	// Worksheet parts are named sheet1.xml, sheet2.xml, ... in workbook
	// order; sort numerically so sheet10 does not precede sheet2.
	sort.Slice(sheets, func(i, j int) bool {
		return worksheetIndex(sheets[i].Name) < worksheetIndex(sheets[j].Name)
	})

	var lines []string
	for _, sheet := range sheets {
		rc, err := sheet.Open()
		if err != nil {
			return "", fmt.Errorf("%w: open %s: %v", ErrExtraction, sheet.Name, err)
		}
		rows, err := parseWorksheetRows(rc, shared)
		rc.Close()
		if err != nil {
			return "", fmt.Errorf("%w: parse %s: %v", ErrExtraction, sheet.Name, err)
		}
		lines = append(lines, rows...)
	}

	return strings.Join(lines, "\n"), nil
}

func isWorksheetPart(name string) bool {
	return strings.HasPrefix(name, "xl/worksheets/sheet") && strings.HasSuffix(name, ".xml")
}

func worksheetIndex(name string) int {
	num := strings.TrimSuffix(strings.TrimPrefix(name, "xl/worksheets/sheet"), ".xml")
	n, err := strconv.Atoi(num)
	if err != nil {
		return 0
	}
	return n
}

// parseSharedStrings reads xl/sharedStrings.xml into an index-ordered slice.
// A single string item may be split across multiple <t> runs; they
// concatenate into one entry.
func parseSharedStrings(r io.Reader) ([]string, error) {
	decoder := xml.NewDecoder(r)

	var (
		strs    []string
		current strings.Builder
		inItem  bool
		inText  bool
	)

	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		switch t := token.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "si":
				inItem = true
				current.Reset()
			case "t":
				inText = true
			}
		case xml.CharData:
			if inItem && inText {
				current.Write(t)
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "si":
				inItem = false
				strs = append(strs, current.String())
			}
		}
	}

	return strs, nil
}

// parseWorksheetRows reads a worksheet part and renders each row as a line
// of non-empty cell values joined by single spaces. Empty cells contribute
// nothing, never a placeholder.
func parseWorksheetRows(r io.Reader, shared []string) ([]string, error) {
	decoder := xml.NewDecoder(r)

	var (
		rows     []string
		cells    []string
		cellType string
		value    strings.Builder
		inValue  bool
		inInline bool
		inRow    bool
	)

	flushCell := func() {
		v := value.String()
		value.Reset()
		if cellType == "s" {
			idx, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil || idx < 0 || idx >= len(shared) {
				return
			}
			v = shared[idx]
		}
		if v != "" {
			cells = append(cells, v)
		}
	}

	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		switch t := token.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "row":
				inRow = true
				cells = cells[:0]
			case "c":
				cellType = ""
				for _, attr := range t.Attr {
					if attr.Name.Local == "t" {
						cellType = attr.Value
					}
				}
			case "v":
				inValue = true
			case "is":
				inInline = true
			case "t":
				if inInline {
					inValue = true
				}
			}
		case xml.CharData:
			if inRow && inValue {
				value.Write(t)
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "v":
				inValue = false
				flushCell()
			case "t":
				if inInline {
					inValue = false
				}
			case "is":
				inInline = false
				flushCell()
			case "row":
				inRow = false
				rows = append(rows, strings.Join(cells, " "))
			}
		}
	}

	return rows, nil
}
