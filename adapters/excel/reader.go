package excel

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gocal/domain/calendar"
	"gocal/internal"

	"github.com/xuri/excelize/v2"
)

// dateLayouts are tried in order before falling back to spreadsheet serials
var dateLayouts = []string{
	calendar.DateLayout,
	"2006/01/02",
	"01/02/2006",
	"1/2/2006",
	"02.01.2006",
	time.RFC3339,
}

// DataReader handles reading Excel and CSV files
type DataReader struct {
	filePath string
	fileType string // "xlsx" or "csv"
	sheet    string
	logger   *internal.Logger
}

// NewDataReader creates a new data reader that handles both Excel and CSV files
func NewDataReader(filePath string) *DataReader {
	ext := strings.ToLower(filepath.Ext(filePath))
	fileType := "xlsx"
	if ext == ".csv" {
		fileType = "csv"
	}
	return &DataReader{
		filePath: filePath,
		fileType: fileType,
		logger:   internal.DefaultLogger.WithComponent("DataReader"),
	}
}

// WithSheet selects the worksheet to read; the first sheet is used otherwise
func (r *DataReader) WithSheet(sheet string) *DataReader {
	r.sheet = sheet
	return r
}

// ReadData reads data from Excel or CSV files into structured format
func (r *DataReader) ReadData() (*ExcelData, error) {
	r.logger.Debug("reading %s file: %s", r.fileType, r.filePath)

	if _, err := os.Stat(r.filePath); os.IsNotExist(err) {
		return nil, fmt.Errorf("%s file not found: %s", strings.ToUpper(r.fileType), r.filePath)
	}

	switch r.fileType {
	case "csv":
		return r.readCSVData()
	case "xlsx":
		return r.readExcelData()
	default:
		return nil, fmt.Errorf("unsupported file type: %s", r.fileType)
	}
}

// readExcelData reads the raw cell values of one sheet; dates stay serial
// numbers so that display formats do not matter
func (r *DataReader) readExcelData() (*ExcelData, error) {
	startTime := time.Now()
	f, err := excelize.OpenFile(r.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	sheet := r.sheet
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("Excel file has no sheets")
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", sheet, err)
	}
	r.logger.Debug("%s read in %v (%d rows)", sheet, time.Since(startTime), len(rows))

	if len(rows) < 1 {
		return nil, fmt.Errorf("Excel file must have a header row")
	}
	return r.processRows(rows)
}

// readCSVData reads CSV data into structured format
func (r *DataReader) readCSVData() (*ExcelData, error) {
	file, err := os.Open(r.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()
	return r.readCSV(file)
}

func (r *DataReader) readCSV(in io.Reader) (*ExcelData, error) {
	reader := csv.NewReader(in)
	reader.TrimLeadingSpace = true
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV file: %w", err)
	}

	if len(rows) < 1 {
		return nil, fmt.Errorf("CSV file must have a header row")
	}
	return r.processRows(rows)
}

// processRows converts raw string rows into ExcelData format
func (r *DataReader) processRows(rows [][]string) (*ExcelData, error) {
	headerRow := rows[0]
	headers := make([]string, len(headerRow))
	for i, header := range headerRow {
		headers[i] = strings.TrimSpace(header)
	}

	var dataRows []RawRowData
	for i := 1; i < len(rows); i++ {
		rowData := make(RawRowData)
		empty := true
		for j, cell := range rows[i] {
			if j < len(headers) {
				rowData[headers[j]] = strings.TrimSpace(cell)
				if rowData[headers[j]] != "" {
					empty = false
				}
			}
		}
		if !empty {
			dataRows = append(dataRows, rowData)
		}
	}

	r.logger.Debug("%s file processed (%d columns, %d rows)", strings.ToUpper(r.fileType), len(headers), len(dataRows))
	return &ExcelData{Headers: headers, Rows: dataRows}, nil
}

// DetectColumn finds the header matching one of the candidate names,
// ignoring case and surrounding spaces
func (r *DataReader) DetectColumn(data *ExcelData, candidates []string) (string, error) {
	for _, name := range candidates {
		for _, header := range data.Headers {
			if strings.EqualFold(strings.TrimSpace(header), name) {
				return header, nil
			}
		}
	}
	return "", fmt.Errorf("none of the columns %v found in header %v", candidates, data.Headers)
}

// ReadObservations loads period observations as described by cfg
func ReadObservations(cfg ExcelConfig) ([]calendar.PeriodObservation, error) {
	reader := NewDataReader(cfg.FilePath).WithSheet(cfg.Sheet)
	data, err := reader.ReadData()
	if err != nil {
		return nil, err
	}
	obs, err := reader.observations(data, cfg)
	if err != nil {
		return nil, err
	}
	reader.logger.Info("loaded %d observations from %s", len(obs), cfg.FilePath)
	return obs, nil
}

// ParseObservationsCSV reads observations from CSV text with a header row.
// Only the column and InclusiveEnd settings of cfg are used.
func ParseObservationsCSV(in io.Reader, cfg ExcelConfig) ([]calendar.PeriodObservation, error) {
	reader := &DataReader{fileType: "csv", logger: internal.DefaultLogger.WithComponent("DataReader")}
	data, err := reader.readCSV(in)
	if err != nil {
		return nil, err
	}
	return reader.observations(data, cfg)
}

func (r *DataReader) observations(data *ExcelData, cfg ExcelConfig) ([]calendar.PeriodObservation, error) {
	var err error

	columns := [3]string{cfg.StartColumn, cfg.EndColumn, cfg.ValueColumn}
	for i, candidates := range [][]string{startColumnNames, endColumnNames, valueColumnNames} {
		if columns[i] != "" {
			continue
		}
		if columns[i], err = r.DetectColumn(data, candidates); err != nil {
			return nil, err
		}
	}

	obs := make([]calendar.PeriodObservation, 0, len(data.Rows))
	for i, row := range data.Rows {
		line := i + 2
		start, err := ParseDate(row[columns[0]])
		if err != nil {
			return nil, fmt.Errorf("row %d: start: %w", line, err)
		}
		end, err := ParseDate(row[columns[1]])
		if err != nil {
			return nil, fmt.Errorf("row %d: end: %w", line, err)
		}
		if cfg.InclusiveEnd {
			end = calendar.AddDays(end, 1)
		}
		value, err := strconv.ParseFloat(strings.ReplaceAll(row[columns[2]], ",", ""), 64)
		if err != nil {
			return nil, fmt.Errorf("row %d: value %q is not a number", line, row[columns[2]])
		}
		obs = append(obs, calendar.PeriodObservation{Start: start, End: end, Value: value})
	}
	return obs, nil
}

// ParseDate accepts ISO and common local layouts as well as spreadsheet
// serial day numbers
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return calendar.Day(t), nil
		}
	}
	serial, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("unrecognized date %q", s)
	}
	t, err := excelize.ExcelDateToTime(serial, false)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date serial %q: %w", s, err)
	}
	return calendar.Day(t), nil
}
