package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/samber/lo"

	"whisperflow/internal/app/apperr"
	"whisperflow/internal/app/model"
)

// Format names accepted by Write.
const (
	FormatSRT  = "srt"
	FormatVTT  = "vtt"
	FormatTXT  = "txt"
	FormatJSON = "json"
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

// Formats lists the supported export formats.
func Formats() []string {
	return []string{FormatSRT, FormatVTT, FormatTXT, FormatJSON, FormatCSV, FormatXLSX}
}

// Write renders the result in the named format.
func Write(w io.Writer, format string, result *model.Result) error {
	switch format {
	case FormatSRT:
		return WriteSRT(w, result.Segments)
	case FormatVTT:
		return WriteVTT(w, result.Segments)
	case FormatTXT:
		return WriteTXT(w, result.Segments)
	case FormatJSON:
		return WriteJSON(w, result)
	case FormatCSV:
		return WriteCSV(w, result.Segments)
	case FormatXLSX:
		return WriteXLSX(w, result)
	default:
		return apperr.Newf(apperr.KindValidation, "unsupported export format %q", format)
	}
}

// WriteSRT renders SubRip subtitles. Cue numbering starts at 1.
func WriteSRT(w io.Writer, segments []model.Segment) error {
	for i, seg := range segments {
		_, err := fmt.Fprintf(w, "%d\n%s --> %s\n%s\n\n",
			i+1,
			srtTimestamp(seg.Start),
			srtTimestamp(seg.End),
			strings.TrimSpace(seg.Text),
		)
		if err != nil {
			return err
		}
	}
	return nil
}

// WriteVTT renders WebVTT subtitles.
func WriteVTT(w io.Writer, segments []model.Segment) error {
	if _, err := io.WriteString(w, "WEBVTT\n\n"); err != nil {
		return err
	}
	for _, seg := range segments {
		_, err := fmt.Fprintf(w, "%s --> %s\n%s\n\n",
			vttTimestamp(seg.Start),
			vttTimestamp(seg.End),
			strings.TrimSpace(seg.Text),
		)
		if err != nil {
			return err
		}
	}
	return nil
}

// WriteTXT renders plain text, one segment per line.
func WriteTXT(w io.Writer, segments []model.Segment) error {
	for _, seg := range segments {
		if _, err := fmt.Fprintln(w, strings.TrimSpace(seg.Text)); err != nil {
			return err
		}
	}
	return nil
}

// WriteJSON renders the full result, segments included.
func WriteJSON(w io.Writer, result *model.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// WriteCSV renders index,start,end,duration,text rows with a header.
func WriteCSV(w io.Writer, segments []model.Segment) error {
	cw := csv.NewWriter(w)

	if err := cw.Write([]string{"index", "start", "end", "duration", "text"}); err != nil {
		return err
	}

	rows := lo.Map(segments, func(seg model.Segment, i int) []string {
		return []string{
			fmt.Sprintf("%d", i+1),
			fmt.Sprintf("%.3f", seg.Start),
			fmt.Sprintf("%.3f", seg.End),
			fmt.Sprintf("%.3f", seg.End-seg.Start),
			strings.TrimSpace(seg.Text),
		}
	})
	if err := cw.WriteAll(rows); err != nil {
		return err
	}

	cw.Flush()
	return cw.Error()
}

// srtTimestamp formats seconds as HH:MM:SS,mmm.
func srtTimestamp(seconds float64) string {
	h, m, s, ms := splitTime(seconds)
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms)
}

// vttTimestamp formats seconds as HH:MM:SS.mmm.
func vttTimestamp(seconds float64) string {
	h, m, s, ms := splitTime(seconds)
	return fmt.Sprintf("%02d:%02d:%02d.%03d", h, m, s, ms)
}

func splitTime(seconds float64) (h, m, s, ms int) {
	if seconds < 0 {
		seconds = 0
	}
	total := int(seconds * 1000)
	ms = total % 1000
	total /= 1000
	s = total % 60
	total /= 60
	m = total % 60
	h = total / 60
	return
}
