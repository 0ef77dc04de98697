package convpipe

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// sheetPolicy is the final sanitization pass over spreadsheet markup. The
// DOM pass below removes non-content elements and attributes; this policy
// guards the remainder, keeping rowspan/colspan on table cells (merged-cell
// semantics break silently without them). The element list stays permissive:
// only the six non-content elements are dropped, everything else the office
// export emits survives. In particular multi-sheet exports separate sheets
// with <hr> and render charts as <img>.
var sheetPolicy = func() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements(
		"table", "caption", "colgroup", "col", "thead", "tbody", "tfoot",
		"tr", "td", "th",
		"p", "br", "hr", "div", "span", "font", "pre", "code",
		"b", "i", "u", "em", "strong", "sub", "sup", "small", "big",
		"s", "strike", "center", "blockquote",
		"ul", "ol", "li", "dl", "dt", "dd",
		"h1", "h2", "h3", "h4", "h5", "h6",
		"a", "img",
	)
	p.AllowAttrs("rowspan", "colspan").OnElements("td", "th")
	// bluemonday drops img when every attribute is stripped unless the
	// element is explicitly allowed bare.
	p.AllowNoAttrs().OnElements("img")
	return p
}()

// sheetToText converts a spreadsheet to sanitized HTML (or Markdown,
// depending on Config.SheetFormat) via LibreOffice. Failures are reported
// as a descriptive string in the text channel; a populated text field always
// holds a plain string.
func (p *Pipeline) sheetToText(ctx context.Context, inputPath, outDir string) string {
	out, err := p.run.Run(ctx, p.cfg.SofficePath,
		"--headless",
		"--convert-to", "html",
		"--outdir", outDir,
		inputPath,
	)
	if err != nil {
		p.logger.Warn("sheet to html failed", "input", inputPath, "error", err, "stderr", strings.TrimSpace(out.Stderr))
		return fmt.Sprintf("Error converting spreadsheet: %v", err)
	}

	base := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
	htmlPath := filepath.Join(outDir, base+".html")
	data, err := os.ReadFile(htmlPath)
	if err != nil {
		p.logger.Warn("sheet to html produced no file", "input", inputPath, "expected", htmlPath)
		return "Conversion failed: Output file not found."
	}

	markup, err := sanitizeSheetHTML(data)
	if err != nil {
		p.logger.Warn("sheet markup sanitize failed, returning raw output", "input", inputPath, "error", err)
		return string(data)
	}

	if p.cfg.SheetFormat == SheetFormatMarkdown {
		md, err := p.mdConverter.ConvertString(markup)
		if err != nil {
			p.logger.Warn("sheet markdown conversion failed, returning markup", "input", inputPath, "error", err)
			return markup
		}
		return md
	}
	return markup
}

// droppedElements are stripped wholesale from spreadsheet markup, content
// included.
var droppedElements = map[atom.Atom]bool{
	atom.Style:  true,
	atom.Script: true,
	atom.Meta:   true,
	atom.Link:   true,
	atom.Title:  true,
	atom.Head:   true,
}

// sanitizeSheetHTML removes non-content elements, strips every attribute
// except rowspan and colspan, and returns the inner markup of the body (or
// the whole document when no body is present).
func sanitizeSheetHTML(data []byte) (string, error) {
	doc, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return "", err
	}

	pruneSheetNodes(doc)

	var buf bytes.Buffer
	if body := findElement(doc, atom.Body); body != nil {
		for c := body.FirstChild; c != nil; c = c.NextSibling {
			if err := html.Render(&buf, c); err != nil {
				return "", err
			}
		}
	} else if err := html.Render(&buf, doc); err != nil {
		return "", err
	}

	return sheetPolicy.Sanitize(buf.String()), nil
}

// pruneSheetNodes drops non-content elements and strips attributes in place.
func pruneSheetNodes(n *html.Node) {
	var next *html.Node
	for c := n.FirstChild; c != nil; c = next {
		next = c.NextSibling
		if c.Type == html.ElementNode && droppedElements[c.DataAtom] {
			n.RemoveChild(c)
			continue
		}
		pruneSheetNodes(c)
	}

	if n.Type == html.ElementNode && len(n.Attr) > 0 {
		kept := n.Attr[:0]
		for _, a := range n.Attr {
			if a.Key == "rowspan" || a.Key == "colspan" {
				kept = append(kept, a)
			}
		}
		n.Attr = kept
	}
}

func findElement(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, a); found != nil {
			return found
		}
	}
	return nil
}
