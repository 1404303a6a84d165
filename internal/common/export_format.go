package common

import (
	"fmt"
	"strings"
)

// ExportFormat represents the artifact formats the service can export
type ExportFormat string

const (
	ExportJSON  ExportFormat = "json"
	ExportCSV   ExportFormat = "csv"
	ExportExcel ExportFormat = "excel"
)

// ParseExportFormat converts a format string to an ExportFormat
// Accepted values: "json", "csv", "excel" (and "xlsx" as an alias of excel)
func ParseExportFormat(format string) (ExportFormat, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "json":
		return ExportJSON, nil
	case "csv":
		return ExportCSV, nil
	case "excel", "xlsx":
		return ExportExcel, nil
	default:
		return "", fmt.Errorf("invalid format: %s (must be 'json', 'csv', or 'excel')", format)
	}
}

// Extension returns the file extension written for the format
func (f ExportFormat) Extension() string {
	if f == ExportExcel {
		return "xlsx"
	}
	return string(f)
}

// Valid reports whether f is one of the known formats
func (f ExportFormat) Valid() bool {
	switch f {
	case ExportJSON, ExportCSV, ExportExcel:
		return true
	}
	return false
}
