package domain

// DocumentFormat is the detected source format of an uploaded file,
// normalized to the lower-cased filename extension.
type DocumentFormat string

const (
	FormatText        DocumentFormat = ".txt"
	FormatMarkdown    DocumentFormat = ".md"
	FormatPDF         DocumentFormat = ".pdf"
	FormatDOCX        DocumentFormat = ".docx"
	FormatDOC         DocumentFormat = ".doc"
	FormatJSON        DocumentFormat = ".json"
	FormatCSV         DocumentFormat = ".csv"
	FormatXLSX        DocumentFormat = ".xlsx"
	FormatXLS         DocumentFormat = ".xls"
)

// ParsedDocument is the normalized plain-text extraction of one uploaded
// file. It is produced once per file and never mutated afterwards.
type ParsedDocument struct {
	Filename   string         `json:"filename"`
	Format     DocumentFormat `json:"format"`
	Text       string         `json:"content"`
	MimeType   string         `json:"mime_type"`
	ByteLength int            `json:"length"`
}
