package models

import (
	"fmt"
	"strings"
)

const previewLength = 150

// UniqueDocuments drops documents sharing a filePath or fileName with any
// earlier entry, kept or not. Storage keeps duplicates; only rendered lists are deduped.
func UniqueDocuments(docs []Document) []Document {
	if len(docs) == 0 {
		return nil
	}

	seenPaths := make(map[string]struct{}, len(docs))
	seenNames := make(map[string]struct{}, len(docs))
	unique := make([]Document, 0, len(docs))

	for _, doc := range docs {
		_, pathSeen := seenPaths[doc.FilePath]
		_, nameSeen := seenNames[doc.FileName]
		dup := (doc.FilePath != "" && pathSeen) || (doc.FileName != "" && nameSeen)

		// dropped documents still claim their keys for later entries
		if doc.FilePath != "" {
			seenPaths[doc.FilePath] = struct{}{}
		}
		if doc.FileName != "" {
			seenNames[doc.FileName] = struct{}{}
		}
		if !dup {
			unique = append(unique, doc)
		}
	}

	return unique
}

// FormatSimilarity renders a 0-1 relevance score as a whole percentage.
// A zero score renders as an empty string.
func (d Document) FormatSimilarity() string {
	if d.Similarity == 0 {
		return ""
	}
	return fmt.Sprintf("%.0f%%", d.Similarity*100)
}

func (d Document) Preview() string {
	runes := []rune(d.Content)
	if len(runes) <= previewLength {
		return d.Content
	}
	return string(runes[:previewLength]) + "..."
}

func (d Document) Kind() string {
	fileType := strings.ToLower(d.FileType)
	switch {
	case fileType == "":
		return "file"
	case strings.Contains(fileType, "image"):
		return "image"
	case strings.Contains(fileType, "pdf"):
		return "pdf"
	case strings.Contains(fileType, "spreadsheet"), strings.Contains(fileType, "excel"):
		return "spreadsheet"
	}
	return "file"
}
