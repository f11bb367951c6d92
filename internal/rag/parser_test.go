package rag

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/docuchat/backend-go/internal/errors"
)

func TestTextParserSupports(t *testing.T) {
	p := &TextParser{}
	assert.True(t, p.Supports("notes.txt"))
	assert.True(t, p.Supports("README.md"))
	assert.True(t, p.Supports("DOC.MARKDOWN"))
	assert.False(t, p.Supports("report.pdf"))
	assert.False(t, p.Supports("data.csv"))
}

func TestTextParserParse(t *testing.T) {
	p := &TextParser{}
	content := "第一行\nsecond line\n"
	got, err := p.Parse(strings.NewReader(content), "notes.txt")
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestWordParserRejectsDoc(t *testing.T) {
	p := &WordParser{}
	_, err := p.Parse(strings.NewReader("legacy"), "old.doc")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeInvalidFileFormat))
}

func TestParserManagerRoutesByExtension(t *testing.T) {
	m := NewFileParserManager()

	got, err := m.ParseFile(strings.NewReader("plain content"), "file.txt")
	require.NoError(t, err)
	assert.Equal(t, "plain content", got)
}

func TestParserManagerUnsupportedFormat(t *testing.T) {
	m := NewFileParserManager()

	_, err := m.ParseFile(strings.NewReader("binary"), "image.png")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeInvalidFileFormat))
}

func TestParserManagerSupportedFormats(t *testing.T) {
	m := NewFileParserManager()
	formats := m.SupportedFormats()
	assert.Contains(t, formats, ".pdf")
	assert.Contains(t, formats, ".docx")
	assert.Contains(t, formats, ".txt")
}
