package export

import (
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// Sheet names of the workbook.
const (
	SummarySheet = "summary"
	SourcesSheet = "sources"
)

var sourceColumns = []string{
	"question_id", "analysis_type", "run", "domain", "source_type", "citation_count",
	"cited_by", "is_video", "top_url", "title",
}

// WriteXLSX writes a workbook with the CSV rows on the summary sheet and one
// row per merged source on the sources sheet.
func WriteXLSX(w io.Writer, b Bundle) error {
	f := xlsx.NewFile()

	summary, err := f.AddSheet(SummarySheet)
	if err != nil {
		return eris.Wrap(err, "export: add summary sheet")
	}
	addStrings(summary, Columns)
	for _, r := range Rows(b.Report) {
		addStrings(summary, r)
	}

	src, err := f.AddSheet(SourcesSheet)
	if err != nil {
		return eris.Wrap(err, "export: add sources sheet")
	}
	addStrings(src, sourceColumns)
	for _, qs := range b.Sources {
		for _, ms := range qs.Sources {
			names := make([]string, len(ms.CitedBy))
			for i, n := range ms.CitedBy {
				names[i] = string(n)
			}
			top := ""
			if len(ms.URLs) > 0 {
				top = ms.URLs[0].URL
			}

			row := src.AddRow()
			row.AddCell().SetString(qs.QuestionID)
			row.AddCell().SetString(string(qs.Type))
			row.AddCell().SetInt(qs.Run)
			row.AddCell().SetString(ms.Domain)
			row.AddCell().SetString(string(ms.SourceType))
			row.AddCell().SetInt(ms.CitationCount)
			row.AddCell().SetString(strings.Join(names, ", "))
			row.AddCell().SetBool(ms.IsVideo)
			row.AddCell().SetString(top)
			row.AddCell().SetString(ms.Title)
		}
	}

	if err := f.Write(w); err != nil {
		return eris.Wrap(err, "export: write xlsx")
	}
	return nil
}

func addStrings(sheet *xlsx.Sheet, values []string) {
	row := sheet.AddRow()
	for _, v := range values {
		row.AddCell().SetString(v)
	}
}
