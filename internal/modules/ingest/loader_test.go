package ingest

import (
	"archive/zip"
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectFormat(t *testing.T) {
	cases := []struct {
		name, ct string
		want     Format
	}{
		{"Biology S1.PDF", "", FormatPDF},
		{"notes.md", "", FormatMarkdown},
		{"unit.docx", "", FormatDOCX},
		{"page.htm", "", FormatHTML},
		{"plain.txt", "", FormatText},
		{"upload", "application/pdf", FormatPDF},
		{"upload", "text/plain; charset=utf-8", FormatText},
	}
	for _, tc := range cases {
		got, err := DetectFormat(tc.name, tc.ct)
		require.NoError(t, err, tc.name)
		assert.Equal(t, tc.want, got, tc.name)
	}

	_, err := DetectFormat("virus.exe", "application/octet-stream")
	require.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestLoadMarkdown(t *testing.T) {
	src := "# Photosynthesis\n\nPlants use **light** to make food.\n\n- Chlorophyll\n- Water\n\n```\ncode here\n```\n"

	pages, err := Load(FormatMarkdown, []byte(src))

	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Equal(t, 1, pages[0].Number)
	assert.Contains(t, pages[0].Text, "# Photosynthesis")
	assert.Contains(t, pages[0].Text, "Plants use light to make food.")
	assert.Contains(t, pages[0].Text, "- Chlorophyll")
	assert.Contains(t, pages[0].Text, "code here")
	assert.NotContains(t, pages[0].Text, "**")
}

func TestLoadHTML(t *testing.T) {
	src := `<html><head><style>p{color:red}</style><script>alert(1)</script></head>
<body><h1>Cells</h1><p>The cell is the   basic unit of life.</p><ul><li>Nucleus</li></ul></body></html>`

	pages, err := Load(FormatHTML, []byte(src))

	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Contains(t, pages[0].Text, "## Cells")
	assert.Contains(t, pages[0].Text, "The cell is the basic unit of life.")
	assert.Contains(t, pages[0].Text, "- Nucleus")
	assert.NotContains(t, pages[0].Text, "alert")
	assert.NotContains(t, pages[0].Text, "color")
}

func TestLoadTextFormFeeds(t *testing.T) {
	pages, err := Load(FormatText, []byte("page one\fpage two"))

	require.NoError(t, err)
	require.Len(t, pages, 2)
	assert.Equal(t, Page{Number: 2, Text: "page two"}, pages[1])
}

func TestLoadDOCX(t *testing.T) {
	body := `<?xml version="1.0" encoding="UTF-8"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>
<w:p><w:r><w:t>Fractions</w:t></w:r></w:p>
<w:p><w:r><w:t xml:space="preserve">A half is </w:t></w:r><w:r><w:t>one of two parts.</w:t></w:r></w:p>
<w:p><w:r><w:br w:type="page"/></w:r></w:p>
<w:p><w:r><w:t>Decimals</w:t></w:r></w:p>
</w:body></w:document>`
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(body))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	pages, err := Load(FormatDOCX, buf.Bytes())

	require.NoError(t, err)
	require.Len(t, pages, 2)
	assert.Contains(t, pages[0].Text, "A half is one of two parts.")
	assert.Equal(t, "Decimals", pages[1].Text)
	assert.Equal(t, 2, pages[1].Number)
}

func TestLoadDOCXRejectsGarbage(t *testing.T) {
	_, err := Load(FormatDOCX, []byte("not a zip"))
	require.Error(t, err)
}
