package table

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/couchcryptid/drift-batch/internal/domain"
)

// stripFormatLiterals removes quoted text, escaped characters and bracketed
// sections ([Red], [$-409]) from a custom number format before token checks.
var stripFormatLiterals = regexp.MustCompile(`"[^"]*"|\\.|\[[^\]]*\]`)

// normalizeDates rewrites numeric cells that carry a date number format as
// "YYYY-MM-DD HH:MM:SS" text, the same form a text timestamp column uses.
// Header cells (row 0) are left alone.
func normalizeDates(f *excelize.File, sheet string, rows [][]string) error {
	dateStyles := make(map[int]bool)
	for r := 1; r < len(rows); r++ {
		for c, v := range rows[r] {
			serial, err := strconv.ParseFloat(v, 64)
			if err != nil {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				return err
			}
			styleID, err := f.GetCellStyle(sheet, cell)
			if err != nil {
				return fmt.Errorf("read style of %s: %w", cell, err)
			}
			isDate, ok := dateStyles[styleID]
			if !ok {
				isDate = styleIsDate(f, styleID)
				dateStyles[styleID] = isDate
			}
			if !isDate {
				continue
			}
			t, err := excelize.ExcelDateToTime(serial, false)
			if err != nil {
				continue
			}
			rows[r][c] = t.Round(time.Second).Format(domain.StartTimeLayout)
		}
	}
	return nil
}

func styleIsDate(f *excelize.File, styleID int) bool {
	if styleID == 0 {
		return false
	}
	style, err := f.GetStyle(styleID)
	if err != nil || style == nil {
		return false
	}
	if style.CustomNumFmt != nil {
		return isDateFormatCode(*style.CustomNumFmt)
	}
	return isBuiltinDateFormat(style.NumFmt)
}

// isBuiltinDateFormat reports whether a built-in number format ID renders dates or times.
func isBuiltinDateFormat(id int) bool {
	return (id >= 14 && id <= 22) || (id >= 45 && id <= 47)
}

func isDateFormatCode(code string) bool {
	code = strings.ToLower(stripFormatLiterals.ReplaceAllString(code, ""))
	return strings.ContainsAny(code, "ydh") || strings.Contains(code, "mm:ss")
}
