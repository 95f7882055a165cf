package export

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"whisperflow/internal/app/apperr"
	"whisperflow/internal/app/model"
)

var testSegments = []model.Segment{
	{Index: 0, Start: 0, End: 2.5, Text: "Hello there."},
	{Index: 1, Start: 2.5, End: 65.123, Text: "How are you?"},
}

func testResult() *model.Result {
	return &model.Result{
		JobID:        "job-1",
		Text:         "Hello there. How are you?",
		Language:     "en",
		SegmentCount: len(testSegments),
		Segments:     testSegments,
	}
}

func TestWriteSRT(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteSRT(&buf, testSegments))

	want := "1\n00:00:00,000 --> 00:00:02,500\nHello there.\n\n" +
		"2\n00:00:02,500 --> 00:01:05,123\nHow are you?\n\n"
	assert.Equal(t, want, buf.String())
}

func TestWriteVTT(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteVTT(&buf, testSegments))

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "WEBVTT\n\n"))
	assert.Contains(t, out, "00:00:00.000 --> 00:00:02.500")
	assert.Contains(t, out, "00:01:05.123")
}

func TestWriteTXT(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteTXT(&buf, testSegments))
	assert.Equal(t, "Hello there.\nHow are you?\n", buf.String())
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, testResult()))

	var decoded model.Result
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "job-1", decoded.JobID)
	assert.Len(t, decoded.Segments, 2)
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, testSegments))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "index,start,end,duration,text", lines[0])
	assert.Equal(t, "1,0.000,2.500,2.500,Hello there.", lines[1])
	assert.Equal(t, "2,2.500,65.123,62.623,How are you?", lines[2])
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, testResult()))
	assert.NotZero(t, buf.Len())
}

func TestWrite_FormatDispatch(t *testing.T) {
	for _, format := range Formats() {
		var buf bytes.Buffer
		require.NoError(t, Write(&buf, format, testResult()), "format %s", format)
		assert.NotZero(t, buf.Len(), "format %s produced no output", format)
	}

	var buf bytes.Buffer
	err := Write(&buf, "docx", testResult())
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
}
