package export

import (
	"archive/zip"
	"bytes"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/yuin/goldmark"
	emoji "github.com/yuin/goldmark-emoji"
	"github.com/yuin/goldmark/extension"
	ghtml "github.com/yuin/goldmark/renderer/html"

	"quillborn-cli/internal/model"
)

// No Typographer here: it emits named entities (&ldquo;) that XML parsers reject.
var xhtmlRenderer = goldmark.New(
	goldmark.WithExtensions(extension.GFM, emoji.Emoji),
	goldmark.WithRendererOptions(ghtml.WithXHTML(), ghtml.WithHardWraps()),
)

const epubContainer = `<?xml version="1.0" encoding="UTF-8"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles>
    <rootfile full-path="OEBPS/content.opf" media-type="application/oebps-package+xml" />
  </rootfiles>
</container>
`

const epubStyle = `body { font-family: Georgia, "Times New Roman", serif; line-height: 1.7; color: #2a2a2a; margin: 1em; }
h1 { text-align: center; font-size: 2em; margin-bottom: 0.3em; }
h2 { font-size: 1.5em; margin-top: 2em; margin-bottom: 1em; }
p { margin-bottom: 0.8em; text-align: justify; text-indent: 1.5em; }
.author { text-align: center; font-style: italic; color: #666; margin-bottom: 2em; }
.title-page { text-align: center; padding-top: 30%; }
blockquote { margin: 1em 2em; padding-left: 1em; border-left: 3px solid #999; font-style: italic; }
blockquote p { text-indent: 0; }
hr { border: none; border-top: 1px solid #ccc; margin: 2em 0; }
code { font-family: "Courier New", monospace; }
`

const xhtmlPage = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE html>
<html xmlns="http://www.w3.org/1999/xhtml" xmlns:epub="http://www.idpf.org/2007/ops" xml:lang="en" lang="en">
<head>
  <meta charset="UTF-8" />
  <title>%s</title>
  <link rel="stylesheet" type="text/css" href="style.css" />
</head>
<body>
%s</body>
</html>
`

type epubFile struct{ name, content string }

type epubPage struct {
	file  string
	title string
	body  string
}

// EPUB packages the manuscript as an EPUB 3 book: a title page plus one XHTML page per part,
// chapter or scene, with nav.xhtml and toc.ncx listing them in order. The book identifier is
// derived from the title and creation time, so re-exports of one project keep it.
func EPUB(meta model.ProjectMetadata, sections []Section) ([]byte, error) {
	title := html.EscapeString(strings.TrimSpace(meta.Title))
	author := html.EscapeString(strings.TrimSpace(meta.Author))
	uid := uuid.NewSHA1(uuid.NameSpaceURL, []byte("quillborn:"+meta.Title+":"+meta.CreatedAt.UTC().Format(time.RFC3339)))
	modified := meta.ModifiedAt
	if modified.IsZero() {
		modified = time.Now()
	}

	titleBody := "  <div class=\"title-page\">\n    <h1>" + title + "</h1>\n"
	if author != "" {
		titleBody += "    <p class=\"author\">by " + author + "</p>\n"
	}
	titleBody += "  </div>\n"
	pages := []epubPage{{file: "title.xhtml", title: title, body: titleBody}}

	for i, s := range sections {
		heading := html.EscapeString(s.Title)
		var body strings.Builder
		switch s.Kind {
		case model.NodeKindPart, model.NodeKindBook:
			body.WriteString("  <h1>" + heading + "</h1>\n")
		case model.NodeKindScene:
			body.WriteString("  <h3>" + heading + "</h3>\n")
		default:
			body.WriteString("  <h2>" + heading + "</h2>\n")
		}
		if src := strings.TrimSpace(s.Text); src != "" {
			if err := xhtmlRenderer.Convert([]byte(src), &body); err != nil {
				return nil, fmt.Errorf("render %q: %w", s.Title, err)
			}
		}
		pages = append(pages, epubPage{file: fmt.Sprintf("section-%03d.xhtml", i+1), title: heading, body: body.String()})
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	// The mimetype entry must come first and be stored uncompressed.
	mw, err := zw.CreateHeader(&zip.FileHeader{Name: "mimetype", Method: zip.Store})
	if err != nil {
		return nil, err
	}
	if _, err := mw.Write([]byte("application/epub+zip")); err != nil {
		return nil, err
	}

	files := []epubFile{
		{"META-INF/container.xml", epubContainer},
		{"OEBPS/style.css", epubStyle},
	}
	for _, p := range pages {
		files = append(files, epubFile{"OEBPS/" + p.file, fmt.Sprintf(xhtmlPage, p.title, p.body)})
	}
	files = append(files,
		epubFile{"OEBPS/nav.xhtml", epubNav(pages)},
		epubFile{"OEBPS/toc.ncx", epubNCX(uid.String(), title, pages)},
		epubFile{"OEBPS/content.opf", epubOPF(uid.String(), title, author, modified, pages)},
	)
	for _, f := range files {
		w, err := zw.Create(f.name)
		if err != nil {
			return nil, err
		}
		if _, err := w.Write([]byte(f.content)); err != nil {
			return nil, err
		}
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func pageLabel(i int, p epubPage) string {
	if i == 0 {
		return "Title Page"
	}
	return p.title
}

func epubNav(pages []epubPage) string {
	var items strings.Builder
	for i, p := range pages {
		fmt.Fprintf(&items, "      <li><a href=\"%s\">%s</a></li>\n", p.file, pageLabel(i, p))
	}
	body := "  <nav epub:type=\"toc\" id=\"toc\">\n    <h1>Table of Contents</h1>\n    <ol>\n" + items.String() + "    </ol>\n  </nav>\n"
	return fmt.Sprintf(xhtmlPage, "Table of Contents", body)
}

func epubNCX(uid, title string, pages []epubPage) string {
	var points strings.Builder
	for i, p := range pages {
		fmt.Fprintf(&points, "    <navPoint id=\"p%d\" playOrder=\"%d\">\n      <navLabel><text>%s</text></navLabel>\n      <content src=\"%s\" />\n    </navPoint>\n",
			i+1, i+1, pageLabel(i, p), p.file)
	}
	return `<?xml version="1.0" encoding="UTF-8"?>
<ncx xmlns="http://www.daisy.org/z3986/2005/ncx/" version="2005-1">
  <head>
    <meta name="dtb:uid" content="urn:uuid:` + uid + `" />
    <meta name="dtb:depth" content="1" />
    <meta name="dtb:totalPageCount" content="0" />
    <meta name="dtb:maxPageNumber" content="0" />
  </head>
  <docTitle><text>` + title + `</text></docTitle>
  <navMap>
` + points.String() + `  </navMap>
</ncx>
`
}

func epubOPF(uid, title, author string, modified time.Time, pages []epubPage) string {
	var manifest, spine strings.Builder
	manifest.WriteString("    <item id=\"style\" href=\"style.css\" media-type=\"text/css\" />\n")
	manifest.WriteString("    <item id=\"nav\" href=\"nav.xhtml\" media-type=\"application/xhtml+xml\" properties=\"nav\" />\n")
	manifest.WriteString("    <item id=\"ncx\" href=\"toc.ncx\" media-type=\"application/x-dtbncx+xml\" />\n")
	for i, p := range pages {
		fmt.Fprintf(&manifest, "    <item id=\"p%d\" href=\"%s\" media-type=\"application/xhtml+xml\" />\n", i+1, p.file)
		fmt.Fprintf(&spine, "    <itemref idref=\"p%d\" />\n", i+1)
	}
	return `<?xml version="1.0" encoding="UTF-8"?>
<package xmlns="http://www.idpf.org/2007/opf" version="3.0" unique-identifier="book-id">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/">
    <dc:identifier id="book-id">urn:uuid:` + uid + `</dc:identifier>
    <dc:title>` + title + `</dc:title>
    <dc:creator>` + author + `</dc:creator>
    <dc:language>en</dc:language>
    <meta property="dcterms:modified">` + modified.UTC().Format("2006-01-02T15:04:05Z") + `</meta>
  </metadata>
  <manifest>
` + manifest.String() + `  </manifest>
  <spine toc="ncx">
` + spine.String() + `  </spine>
</package>
`
}
