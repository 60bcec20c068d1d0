package service

import (
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tsvHeader = "level\tpage_num\tblock_num\tpar_num\tline_num\tword_num\tleft\ttop\twidth\theight\tconf\ttext"

func tsvRow(level, block, line int, conf, text string) string {
	return strings.Join([]string{
		strconv.Itoa(level), "1", strconv.Itoa(block), "1", strconv.Itoa(line), "1",
		"0", "0", "10", "10", conf, text,
	}, "\t")
}

func TestParseTesseractTSV(t *testing.T) {
	tsv := strings.Join([]string{
		tsvHeader,
		tsvRow(1, 1, 0, "-1", ""), // page row, no confidence
		tsvRow(5, 1, 1, "90", "Hello"),
		tsvRow(5, 1, 1, "80", "world"),
		tsvRow(5, 1, 2, "70", "again"),
		tsvRow(5, 2, 1, "60", "bye"),
	}, "\n")

	text, conf, err := parseTesseractTSV(tsv)
	require.NoError(t, err)
	assert.Equal(t, "Hello world\nagain\n\nbye", text)
	assert.InDelta(t, 0.75, conf, 1e-9) // (90+80+70+60)/4/100
}

func TestParseTesseractTSV_SkipsNegativeConfidence(t *testing.T) {
	tsv := strings.Join([]string{
		tsvHeader,
		tsvRow(5, 1, 1, "-1", "ghost"),
		tsvRow(5, 1, 1, "88", "real"),
	}, "\n")

	text, conf, err := parseTesseractTSV(tsv)
	require.NoError(t, err)
	assert.Equal(t, "real", text)
	assert.InDelta(t, 0.88, conf, 1e-9)
}

func TestParseTesseractTSV_Empty(t *testing.T) {
	text, conf, err := parseTesseractTSV(tsvHeader)
	require.NoError(t, err)
	assert.Empty(t, text)
	assert.Equal(t, 0.0, conf)
}
