// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ingest

import (
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// textExtensions are formats whose content is indexed as UTF-8 text.
var textExtensions = map[string]string{
	".txt":      "text/plain",
	".md":       "text/markdown",
	".markdown": "text/markdown",
	".fountain": "text/plain",
	".csv":      "text/csv",
	".json":     "application/json",
	".yaml":     "application/yaml",
	".yml":      "application/yaml",
	".html":     "text/html",
	".htm":      "text/html",
}

// binaryExtensions are formats accepted as opaque bytes and converted to
// text at index time.
var binaryExtensions = map[string]string{
	".pdf":  "application/pdf",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".doc":  "application/msword",
	".pptx": "application/vnd.openxmlformats-officedocument.presentationml.presentation",
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	".rtf":  "application/rtf",
	".odt":  "application/vnd.oasis.opendocument.text",
	".epub": "application/epub+zip",
}

// Format is the detected shape of an upload.
type Format struct {
	ContentType string
	Binary      bool
}

// Detect classifies an upload by extension, falling back to content
// sniffing for unknown extensions.
func Detect(filename string, content []byte) Format {
	ext := strings.ToLower(filepath.Ext(filename))
	if ct, ok := textExtensions[ext]; ok {
		return Format{ContentType: ct}
	}
	if ct, ok := binaryExtensions[ext]; ok {
		return Format{ContentType: ct, Binary: true}
	}

	sniffed := http.DetectContentType(content)
	mediaType, _, err := mime.ParseMediaType(sniffed)
	if err != nil {
		mediaType = sniffed
	}
	if strings.HasPrefix(mediaType, "text/") {
		return Format{ContentType: mediaType}
	}
	return Format{ContentType: mediaType, Binary: true}
}

// validText reports whether content can be indexed as text.
func validText(content []byte) bool {
	return utf8.Valid(content)
}
