package naming

import "strings"

// reservedReplacer maps each character reserved on Windows, macOS or Linux to "_".
var reservedReplacer = strings.NewReplacer(
	"<", "_",
	">", "_",
	":", "_",
	`"`, "_",
	"/", "_",
	`\`, "_",
	"|", "_",
	"?", "_",
	"*", "_",
)

// Sanitize replaces reserved filename characters with "_" and trims
// surrounding whitespace. It never fails and is idempotent.
func Sanitize(name string) string {
	return strings.TrimSpace(reservedReplacer.Replace(name))
}

// PDFExt is the suffix every output name carries.
const PDFExt = ".pdf"

// HasPDFSuffix reports whether name ends in ".pdf" in any letter case.
func HasPDFSuffix(name string) bool {
	return len(name) >= len(PDFExt) && strings.EqualFold(name[len(name)-len(PDFExt):], PDFExt)
}

// EnsurePDFSuffix appends ".pdf" only when name does not already end with it.
func EnsurePDFSuffix(name string) string {
	if HasPDFSuffix(name) {
		return name
	}
	return name + PDFExt
}
