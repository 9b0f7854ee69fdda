// Package classify maps file paths to the coarse content categories used to
// label change events.
package classify

import (
	"path/filepath"
	"strings"
)

// Category is the content family of a watched file.
type Category int

const (
	// Other is any file whose extension is not recognised.
	Other Category = iota
	// Spreadsheet covers workbook formats (.xlsx, .xls, .csv, ...).
	Spreadsheet
	// Image covers raster image formats.
	Image
	// Document covers word-processor documents.
	Document
	// PDF covers portable documents.
	PDF
	// Presentation covers slide decks.
	Presentation
	// Text covers plain text files.
	Text
)

// String returns the category tag.
func (c Category) String() string {
	switch c {
	case Spreadsheet:
		return "spreadsheet"
	case Image:
		return "image"
	case Document:
		return "document"
	case PDF:
		return "pdf"
	case Presentation:
		return "presentation"
	case Text:
		return "text"
	default:
		return "other"
	}
}

// Parse is the inverse of String. Unknown tags map to Other.
func Parse(tag string) Category {
	for _, c := range []Category{Spreadsheet, Image, Document, PDF, Presentation, Text} {
		if c.String() == tag {
			return c
		}
	}
	return Other
}

var byExt = map[string]Category{
	".xlsx": Spreadsheet,
	".xlsm": Spreadsheet,
	".xls":  Spreadsheet,
	".ods":  Spreadsheet,
	".csv":  Spreadsheet,
	".jpg":  Image,
	".jpeg": Image,
	".png":  Image,
	".gif":  Image,
	".bmp":  Image,
	".tif":  Image,
	".tiff": Image,
	".webp": Image,
	".docx": Document,
	".doc":  Document,
	".odt":  Document,
	".rtf":  Document,
	".pdf":  PDF,
	".pptx": Presentation,
	".ppt":  Presentation,
	".odp":  Presentation,
	".txt":  Text,
	".md":   Text,
	".log":  Text,
}

// Classify returns the category for path based on its extension, ignoring case.
func Classify(path string) Category {
	if c, ok := byExt[strings.ToLower(filepath.Ext(path))]; ok {
		return c
	}
	return Other
}

// Label is the noun used in human-readable event descriptions.
func Label(c Category) string {
	switch c {
	case Spreadsheet:
		return "Excel file"
	case Image:
		return "image"
	case Document:
		return "Word document"
	case PDF:
		return "PDF document"
	case Presentation:
		return "PowerPoint presentation"
	case Text:
		return "text file"
	default:
		return "file"
	}
}
