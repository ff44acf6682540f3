package extractor

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode"

	"github.com/richardlehane/mscfb"
	"golang.org/x/text/encoding/charmap"
	textunicode "golang.org/x/text/encoding/unicode"
)

// decodeDOC salvages readable text from the WordDocument stream of a legacy
// Word compound file. The binary piece table is not interpreted; the stream
// is decoded as UTF-16LE or CP-1252 (whichever yields more letters) and
// filtered to printable runs. Good enough for prompt context, lossy for
// layout.
func decodeDOC(data []byte) (string, error) {
	compound, err := mscfb.New(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("open compound file: %w", err)
	}

	var stream []byte
	for entry, err := compound.Next(); err == nil; entry, err = compound.Next() {
		if entry.Name != "WordDocument" {
			continue
		}
		stream, err = io.ReadAll(entry)
		if err != nil {
			return "", fmt.Errorf("read WordDocument stream: %w", err)
		}
		break
	}
	if len(stream) == 0 {
		return "", errors.New("compound file has no WordDocument stream")
	}

	text := pickReadable(decodeUTF16LE(stream), decodeCP1252(stream))
	if text == "" {
		return "", errors.New("no readable text in WordDocument stream")
	}
	return text, nil
}

func decodeUTF16LE(data []byte) string {
	decoded, err := textunicode.UTF16(textunicode.LittleEndian, textunicode.IgnoreBOM).NewDecoder().Bytes(data)
	if err != nil {
		return ""
	}
	return filterPrintable(string(decoded))
}

func decodeCP1252(data []byte) string {
	decoded, err := charmap.Windows1252.NewDecoder().Bytes(data)
	if err != nil {
		return ""
	}
	return filterPrintable(string(decoded))
}

func pickReadable(a, b string) string {
	if letterRatio(a) >= letterRatio(b) {
		return a
	}
	return b
}

func letterRatio(text string) float64 {
	if text == "" {
		return 0
	}
	letters := 0
	total := 0
	for _, r := range text {
		total++
		if unicode.IsLetter(r) || r == ' ' {
			letters++
		}
	}
	return float64(letters) / float64(total)
}

// filterPrintable keeps runs of at least four consecutive printable runes,
// which drops the binary header and formatting tables while keeping prose.
func filterPrintable(text string) string {
	const minRun = 4

	var (
		out strings.Builder
		run []rune
	)
	flush := func() {
		if len(run) >= minRun {
			if out.Len() > 0 {
				out.WriteByte('\n')
			}
			out.WriteString(strings.TrimSpace(string(run)))
		}
		run = run[:0]
	}

	for _, r := range text {
		if unicode.IsPrint(r) && r != unicode.ReplacementChar {
			run = append(run, r)
			continue
		}
		flush()
	}
	flush()

	return strings.TrimSpace(out.String())
}
