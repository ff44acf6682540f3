// Package extractor turns raw uploaded bytes into normalized plain-text
// records. Dispatch is by lower-cased filename extension through a decoder
// table resolved once at construction.
package extractor

import (
	"fmt"
	"mime"
	"path/filepath"
	"sort"
	"strings"

	"github.com/avolkov/coaching-backend/internal/core/domain"
)

type decoder func(data []byte) (string, error)

type Ingestor struct {
	decoders map[domain.DocumentFormat]decoder
}

func NewIngestor() *Ingestor {
	return &Ingestor{
		decoders: map[domain.DocumentFormat]decoder{
			domain.FormatText:     decodeText,
			domain.FormatMarkdown: decodeText,
			domain.FormatPDF:      decodePDF,
			domain.FormatDOCX:     decodeDOCX,
			domain.FormatDOC:      decodeDOC,
			domain.FormatJSON:     decodeJSON,
			domain.FormatCSV:      decodeCSV,
			domain.FormatXLSX:     decodeSpreadsheet,
			domain.FormatXLS:      decodeSpreadsheet,
		},
	}
}

func (i *Ingestor) IsSupported(filename string) bool {
	_, ok := i.decoders[formatOf(filename)]
	return ok
}

func (i *Ingestor) SupportedFormats() []string {
	out := make([]string, 0, len(i.decoders))
	for format := range i.decoders {
		out = append(out, string(format))
	}
	sort.Strings(out)
	return out
}

// Parse decodes data according to the detected format. Unknown extensions
// fail before any decode attempt; decode failures carry the offending
// filename.
func (i *Ingestor) Parse(data []byte, filename string) (*domain.ParsedDocument, error) {
	format := formatOf(filename)
	decode, ok := i.decoders[format]
	if !ok {
		return nil, domain.WrapError(
			domain.ErrUnsupportedFormat,
			"parse document",
			fmt.Errorf("%s: unknown extension %q", filename, format),
		)
	}

	text, err := decode(data)
	if err != nil {
		return nil, domain.WrapError(
			domain.ErrUnsupportedContent,
			"parse document",
			fmt.Errorf("%s: %w", filename, err),
		)
	}

	return &domain.ParsedDocument{
		Filename:   filename,
		Format:     format,
		Text:       text,
		MimeType:   mimeTypeOf(filename),
		ByteLength: len(text),
	}, nil
}

func formatOf(filename string) domain.DocumentFormat {
	return domain.DocumentFormat(strings.ToLower(filepath.Ext(filename)))
}

func mimeTypeOf(filename string) string {
	if mt := mime.TypeByExtension(filepath.Ext(filename)); mt != "" {
		return mt
	}
	return "application/octet-stream"
}
