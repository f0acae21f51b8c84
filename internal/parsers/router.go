package parsers

import (
	"path/filepath"
	"strings"
)

// Source types assigned by the router.
const (
	SourceRSS   = "rss"
	SourceAPI   = "api"
	SourceExcel = "excel"
	SourcePDF   = "pdf"
	SourceDOCX  = "docx"
	SourceTxt   = "txt"
	SourceJSON  = "json"
)

// DetectSourceType maps an incoming reference to its source type.
// HTTP URLs mentioning a feed are treated as RSS, other URLs as API
// sources. File paths route on extension. Returns ("", false) for
// unsupported references, which callers skip.
func DetectSourceType(ref string) (string, bool) {
	lower := strings.ToLower(ref)

	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		if strings.Contains(lower, "feed") || strings.Contains(lower, "rss") {
			return SourceRSS, true
		}
		return SourceAPI, true
	}

	switch filepath.Ext(lower) {
	case ".xlsx", ".xls", ".csv":
		return SourceExcel, true
	case ".pdf":
		return SourcePDF, true
	case ".docx":
		return SourceDOCX, true
	case ".txt":
		return SourceTxt, true
	case ".json":
		return SourceJSON, true
	}
	return "", false
}
