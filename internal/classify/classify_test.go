package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		path string
		want Category
	}{
		{"/data/budget.xlsx", Spreadsheet},
		{"/data/BUDGET.XLSX", Spreadsheet},
		{"/data/export.csv", Spreadsheet},
		{"/data/photo.JPeG", Image},
		{"/data/logo.png", Image},
		{"/data/letter.docx", Document},
		{"/data/report.pdf", PDF},
		{"/data/deck.pptx", Presentation},
		{"/data/notes.txt", Text},
		{"/data/archive.tar.gz", Other},
		{"/data/Makefile", Other},
		{"/data/.hidden", Other},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.path))
		})
	}
}

func TestCategoryRoundTrip(t *testing.T) {
	for _, c := range []Category{Other, Spreadsheet, Image, Document, PDF, Presentation, Text} {
		assert.Equal(t, c, Parse(c.String()))
	}
	assert.Equal(t, Other, Parse("bogus"))
}

func TestLabel(t *testing.T) {
	assert.Equal(t, "Excel file", Label(Spreadsheet))
	assert.Equal(t, "file", Label(Other))
}
