package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/tealeg/xlsx"

	"whisperflow/internal/app/model"
)

// WriteXLSX renders the transcript as a spreadsheet: one summary row
// followed by a sheet of timed segments.
func WriteXLSX(w io.Writer, result *model.Result) error {
	file := xlsx.NewFile()

	summary, err := file.AddSheet("Summary")
	if err != nil {
		return fmt.Errorf("failed to create summary sheet: %w", err)
	}
	header := summary.AddRow()
	header.AddCell().SetString("Job")
	header.AddCell().SetString("Language")
	header.AddCell().SetString("Segments")
	row := summary.AddRow()
	row.AddCell().SetString(result.JobID)
	row.AddCell().SetString(result.Language)
	row.AddCell().SetInt(result.SegmentCount)

	segs, err := file.AddSheet("Segments")
	if err != nil {
		return fmt.Errorf("failed to create segments sheet: %w", err)
	}
	header = segs.AddRow()
	header.AddCell().SetString("Index")
	header.AddCell().SetString("Start")
	header.AddCell().SetString("End")
	header.AddCell().SetString("Text")

	for i, seg := range result.Segments {
		row := segs.AddRow()
		row.AddCell().SetInt(i + 1)
		row.AddCell().SetString(srtTimestamp(seg.Start))
		row.AddCell().SetString(srtTimestamp(seg.End))
		row.AddCell().SetString(strings.TrimSpace(seg.Text))
	}

	return file.Write(w)
}
