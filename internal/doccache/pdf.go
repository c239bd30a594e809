package doccache

import (
	"fmt"
	"html"

	"github.com/ledongthuc/pdf"
)

// PageCount opens the PDF at path and returns its number of pages.
func PageCount(path string) (n int, err error) {
	defer func() {
		// The parser panics on some truncated files.
		if r := recover(); r != nil {
			n, err = 0, fmt.Errorf("%w: %v", ErrInvalidPDF, r)
		}
	}()
	f, r, err := pdf.Open(path)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidPDF, err)
	}
	defer f.Close()

	n = r.NumPage()
	if n < 1 {
		return 0, fmt.Errorf("%w: no pages", ErrInvalidPDF)
	}
	return n, nil
}

// XHTML wraps an HTML fragment in a complete page titled title.
func XHTML(title, body string) string {
	t := html.EscapeString(title)
	return `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE html>
<html xmlns="http://www.w3.org/1999/xhtml" lang="es">
<head>
<meta charset="UTF-8" />
<title>` + t + `</title>
</head>
<body>
<h1>` + t + `</h1>
` + body + `
</body>
</html>
`
}
