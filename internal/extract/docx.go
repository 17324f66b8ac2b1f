package extract

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

const docxBodyPart = "word/document.xml"

// ReadDOCX returns the text of a .docx file: body paragraphs in order, then
// every table with one line per row and non-empty cells joined by " | ".
// Blocks are separated by blank lines.
func ReadDOCX(path string) (string, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return "", fmt.Errorf("open docx: %w", err)
	}
	defer func() { _ = zr.Close() }()

	for _, f := range zr.File {
		if f.Name != docxBodyPart {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", fmt.Errorf("open %s: %w", docxBodyPart, err)
		}
		defer func() { _ = rc.Close() }()
		return parseDocumentXML(rc)
	}
	return "", fmt.Errorf("docx has no %s", docxBodyPart)
}

type docxParser struct {
	paragraphs []string
	tables     []string

	// tableDepth > 0 while inside <w:tbl>; nested tables flatten into the outer one.
	tableDepth int
	rows       []string
	cells      []string
	cellParas  []string
	para       strings.Builder
	inPara     bool
}

func parseDocumentXML(r io.Reader) (string, error) {
	dec := xml.NewDecoder(r)
	p := &docxParser{}

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("parse %s: %w", docxBodyPart, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if err := p.start(dec, t); err != nil {
				return "", err
			}
		case xml.EndElement:
			p.end(t)
		}
	}

	blocks := make([]string, 0, len(p.paragraphs)+len(p.tables))
	blocks = append(blocks, p.paragraphs...)
	blocks = append(blocks, p.tables...)
	return strings.Join(blocks, "\n\n"), nil
}

func (p *docxParser) start(dec *xml.Decoder, t xml.StartElement) error {
	switch t.Name.Local {
	case "tbl":
		if p.tableDepth == 0 {
			p.rows = nil
		}
		p.tableDepth++
	case "tr":
		if p.tableDepth == 1 {
			p.cells = nil
		}
	case "tc":
		if p.tableDepth == 1 {
			p.cellParas = nil
		}
	case "p":
		p.inPara = true
		p.para.Reset()
	case "t":
		if !p.inPara {
			return dec.Skip()
		}
		var s string
		if err := dec.DecodeElement(&s, &t); err != nil {
			return fmt.Errorf("parse text run: %w", err)
		}
		p.para.WriteString(s)
	case "tab":
		if p.inPara {
			p.para.WriteByte('\t')
		}
	case "br", "cr":
		if p.inPara {
			p.para.WriteByte('\n')
		}
	}
	return nil
}

func (p *docxParser) end(t xml.EndElement) {
	switch t.Name.Local {
	case "p":
		p.inPara = false
		text := strings.TrimSpace(p.para.String())
		if text == "" {
			return
		}
		if p.tableDepth > 0 {
			p.cellParas = append(p.cellParas, text)
		} else {
			p.paragraphs = append(p.paragraphs, text)
		}
	case "tc":
		if p.tableDepth == 1 {
			if cell := strings.TrimSpace(strings.Join(p.cellParas, "\n")); cell != "" {
				p.cells = append(p.cells, cell)
			}
			p.cellParas = nil
		}
	case "tr":
		if p.tableDepth == 1 && len(p.cells) > 0 {
			p.rows = append(p.rows, strings.Join(p.cells, " | "))
		}
	case "tbl":
		p.tableDepth--
		if p.tableDepth == 0 && len(p.rows) > 0 {
			p.tables = append(p.tables, strings.Join(p.rows, "\n"))
		}
	}
}
