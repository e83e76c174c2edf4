package document

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

const wordDocumentPart = "word/document.xml"

// extractWord extracts paragraph text from word/document.xml inside the
// zip container, one line per paragraph.
func extractWord(path string) (string, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return "", fmt.Errorf("%w: open %s: %v", ErrExtraction, path, err)
	}
	defer zr.Close()

	var body io.ReadCloser
	for _, f := range zr.File {
		if f.Name == wordDocumentPart {
			body, err = f.Open()
			if err != nil {
				return "", fmt.Errorf("%w: open %s: %v", ErrExtraction, wordDocumentPart, err)
			}
			break
		}
	}
	if body == nil {
		return "", fmt.Errorf("%w: %s not found in container", ErrExtraction, wordDocumentPart)
	}
	defer body.Close()

	text, err := wordParagraphs(body)
	if err != nil {
		return "", fmt.Errorf("%w: parse %s: %v", ErrExtraction, wordDocumentPart, err)
	}
	return text, nil
}

// wordParagraphs walks the WordprocessingML token stream and joins the text
// runs of each paragraph. Runs within a paragraph concatenate directly;
// paragraphs are newline-separated.
func wordParagraphs(r io.Reader) (string, error) {
	decoder := xml.NewDecoder(r)

	var (
		paragraphs []string
		current    strings.Builder
		inBody     bool
		inText     bool
	)

	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}

		switch t := token.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "body":
				inBody = true
			case "p":
				current.Reset()
			case "t":
				inText = true
			}

		case xml.CharData:
			if inBody && inText {
				current.Write(t)
			}

		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				if inBody {
					paragraphs = append(paragraphs, current.String())
				}
			}
		}
	}

	return strings.Join(paragraphs, "\n"), nil
}
