package excel

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"github.com/example/studyplan/internal/catalog"
	"github.com/example/studyplan/internal/database"
	"github.com/example/studyplan/pkg/models"
)

// ImportConfig defines the import configuration
type ImportConfig struct {
	FilePath   string // Path to the Excel or CSV file
	NameColumn string // Column with the topic name
	AreaColumn string // Column with the topic area
	TierColumn string // Column with the priority tier
	SheetName  string // Name of the sheet to import
	StartRow   int    // The row to start importing from (1-based index)
}

// DefaultImportConfig returns the default import configuration
func DefaultImportConfig() ImportConfig {
	return ImportConfig{
		NameColumn: "A",
		AreaColumn: "B",
		TierColumn: "C",
		SheetName:  "Topics",
		StartRow:   2, // skip header
	}
}

// AchievementsSheet is the workbook sheet LoadAchievements reads
const AchievementsSheet = "Achievements"

// ImportResult holds the result of an import operation
type ImportResult struct {
	TotalProcessed int
	Created        int
	Updated        int
	Skipped        int
	Errors         []string
}

// ImportTopics upserts catalogue topics from an Excel or CSV file. Rows that
// fail validation are reported in the result and skipped; storage errors
// abort the whole import.
func ImportTopics(ctx context.Context, store *database.Store, config ImportConfig) (*ImportResult, error) {
	rows, err := readRows(config)
	if err != nil {
		return nil, err
	}

	result := &ImportResult{Errors: make([]string, 0)}
	err = store.WithTx(ctx, func(tx *sqlx.Tx) error {
		existing, err := store.Topics.List(ctx, tx)
		if err != nil {
			return err
		}
		byName := make(map[string]models.Topic, len(existing))
		for _, t := range existing {
			byName[strings.ToLower(t.Name)] = t
		}

		for i, row := range rows {
			rowNum := i + 1
			if rowNum < config.StartRow || isBlank(row) {
				continue
			}
			result.TotalProcessed++

			topic, err := parseTopicRow(row, config)
			if err != nil {
				result.Skipped++
				result.Errors = append(result.Errors, fmt.Sprintf("Row %d: %v", rowNum, err))
				continue
			}
			if err := upsertTopic(ctx, tx, store, byName, topic, result); err != nil {
				return errors.Wrapf(err, "row %d", rowNum)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func upsertTopic(ctx context.Context, tx *sqlx.Tx, store *database.Store, byName map[string]models.Topic,
	topic models.Topic, result *ImportResult) error {
	key := strings.ToLower(topic.Name)
	if old, ok := byName[key]; ok {
		if old.Area == topic.Area && old.Tier == topic.Tier {
			return nil
		}
		old.Area = topic.Area
		old.Tier = topic.Tier
		if err := store.Topics.Update(ctx, tx, &old); err != nil {
			return err
		}
		byName[key] = old
		result.Updated++
		return nil
	}

	if err := store.Topics.Create(ctx, tx, &topic); err != nil {
		return err
	}
	byName[key] = topic
	result.Created++
	return nil
}

func parseTopicRow(row []string, config ImportConfig) (models.Topic, error) {
	name := cell(row, config.NameColumn)
	if name == "" {
		return models.Topic{}, errors.New("topic name cannot be empty")
	}
	tier, err := models.ParseTier(cell(row, config.TierColumn))
	if err != nil {
		return models.Topic{}, err
	}
	return models.Topic{Name: name, Area: cell(row, config.AreaColumn), Tier: tier}, nil
}

// LoadAchievements reads the achievement catalogue from the Achievements
// sheet of a workbook: name, icon and threshold columns after a header row.
func LoadAchievements(path string) (catalog.Achievements, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open Excel file")
	}
	defer f.Close()

	rows, err := f.GetRows(AchievementsSheet)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get achievement rows")
	}

	var list []models.Achievement
	for i, row := range rows {
		if i == 0 || isBlank(row) {
			continue
		}
		threshold, err := strconv.ParseInt(cell(row, "C"), 10, 64)
		if err != nil {
			return nil, errors.Errorf("row %d: invalid threshold %q", i+1, cell(row, "C"))
		}
		list = append(list, models.Achievement{
			Name:      cell(row, "A"),
			Icon:      cell(row, "B"),
			Threshold: threshold,
		})
	}
	return catalog.NewAchievements(list)
}

// HasSheet reports whether the workbook at path contains the named sheet
func HasSheet(path, sheet string) bool {
	if strings.ToLower(filepath.Ext(path)) == ".csv" {
		return false
	}
	f, err := excelize.OpenFile(path)
	if err != nil {
		return false
	}
	defer f.Close()
	for _, name := range f.GetSheetList() {
		if name == sheet {
			return true
		}
	}
	return false
}

// readRows returns every row of the configured sheet or CSV file
func readRows(config ImportConfig) ([][]string, error) {
	if strings.ToLower(filepath.Ext(config.FilePath)) == ".csv" {
		return readCSV(config.FilePath)
	}

	f, err := excelize.OpenFile(config.FilePath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open Excel file")
	}
	defer f.Close()

	rows, err := f.GetRows(config.SheetName)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get rows")
	}
	return rows, nil
}

func readCSV(path string) ([][]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open CSV file")
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1 // Allow variable number of fields
	reader.TrimLeadingSpace = true

	var rows [][]string
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "error reading CSV")
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// cell returns the trimmed value of a column letter, or "" past the row end
func cell(row []string, column string) string {
	idx, err := excelize.ColumnNameToNumber(column)
	if err != nil || idx > len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx-1])
}

func isBlank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
