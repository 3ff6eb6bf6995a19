// Package ingest reads input documents into plain text for segmentation.
// Long texts arrive as .txt/.md most of the time, but PDF and DOCX inputs
// are extracted natively as well.
package ingest

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dslipak/pdf"
)

// MaxFileSize - 50MB hard limit for text extraction
const MaxFileSize = 50 * 1024 * 1024

// DocType identifies which extractor handles a file.
type DocType string

const (
	TypeText    DocType = "text"
	TypePDF     DocType = "pdf"
	TypeDOCX    DocType = "docx"
	TypeUnknown DocType = "unknown"
)

// Detect maps a filename to its extractor by extension.
func Detect(path string) DocType {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".md", ".markdown":
		return TypeText
	case ".pdf":
		return TypePDF
	case ".docx":
		return TypeDOCX
	default:
		return TypeUnknown
	}
}

// ReadDocument extracts the plain text of the file at path.
func ReadDocument(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("input file not found: %w", err)
	}
	if info.Size() > MaxFileSize {
		return "", fmt.Errorf("file exceeds size limit of 50MB")
	}

	switch Detect(path) {
	case TypeText:
		return readText(path)
	case TypePDF:
		return readPDF(path)
	case TypeDOCX:
		return readDOCX(path)
	default:
		return "", fmt.Errorf("unsupported file type: %s", filepath.Ext(path))
	}
}

func readText(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(content), nil
}

func readPDF(path string) (string, error) {
	r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open PDF: %w", err)
	}

	b, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("failed to read PDF text: %w", err)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(b); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// DOCX is a ZIP holding word/document.xml; stream-decode the XML and keep
// the character data, with paragraph tags becoming line breaks.
func readDOCX(path string) (string, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return "", fmt.Errorf("failed to open DOCX zip: %w", err)
	}
	defer r.Close()

	var documentXML *zip.File
	for _, f := range r.File {
		if f.Name == "word/document.xml" {
			documentXML = f
			break
		}
	}
	if documentXML == nil {
		return "", fmt.Errorf("invalid docx: missing word/document.xml")
	}

	rc, err := documentXML.Open()
	if err != nil {
		return "", err
	}
	defer rc.Close()

	decoder := xml.NewDecoder(rc)
	var sb strings.Builder

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
			if t.Name.Local == "p" {
				sb.WriteString("\n")
			}
		case xml.CharData:
			sb.Write(t)
		}
	}

	return sb.String(), nil
}
