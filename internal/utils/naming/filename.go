package naming

import (
	"fmt"
	"regexp"

	"mapscraper-desktop/internal/common"
)

// Matches what a JavaScript \s matches, Unicode spaces included
var whitespaceRun = regexp.MustCompile(`[\s\v\p{Zs}\x{2028}\x{2029}\x{FEFF}]+`)

// SanitizeJobName replaces every whitespace run in a job name with "_"
func SanitizeJobName(name string) string {
	return whitespaceRun.ReplaceAllString(name, "_")
}

// ExportFilename creates the file name for an exported job artifact
// Format: {sanitizedJobName}_results.{ext}
func ExportFilename(jobName string, format common.ExportFormat) string {
	return fmt.Sprintf("%s_results.%s", SanitizeJobName(jobName), format.Extension())
}
