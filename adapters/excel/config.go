package excel

// ExcelConfig describes where observations live in a workbook or CSV file.
// Empty column names are detected from the header row.
type ExcelConfig struct {
	FilePath    string `json:"file_path"`
	Sheet       string `json:"sheet"`
	StartColumn string `json:"start_column"`
	EndColumn   string `json:"end_column"`
	ValueColumn string `json:"value_column"`
	// InclusiveEnd treats the end date as the last day of the period
	InclusiveEnd bool `json:"inclusive_end"`
}

// DefaultExcelConfig returns the configuration for a file with detected columns
func DefaultExcelConfig(path string) ExcelConfig {
	return ExcelConfig{FilePath: path}
}

var (
	startColumnNames = []string{"start", "start_date", "from", "period_start", "begin"}
	endColumnNames   = []string{"end", "end_date", "to", "period_end", "until"}
	valueColumnNames = []string{"value", "total", "amount", "quantity", "sum"}
)
