// Package export writes recipe backups as YAML, JSON or Parquet and reads
// them back.
package export

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/larder-app/larder/internal/models"
	"github.com/parquet-go/parquet-go"
	"gopkg.in/yaml.v3"
)

type Format string

const (
	FormatYAML    Format = "yaml"
	FormatJSON    Format = "json"
	FormatParquet Format = "parquet"
)

var Formats = []Format{FormatYAML, FormatJSON, FormatParquet}

// ParseFormat accepts a format name or a file extension.
func ParseFormat(s string) (Format, error) {
	switch strings.TrimPrefix(strings.ToLower(s), ".") {
	case "yaml", "yml":
		return FormatYAML, nil
	case "json":
		return FormatJSON, nil
	case "parquet":
		return FormatParquet, nil
	default:
		return "", fmt.Errorf("unsupported format: %s", s)
	}
}

// Backup is the YAML/JSON document layout.
type Backup struct {
	ExportedAt time.Time       `json:"exported_at" yaml:"exported_at"`
	Count      int             `json:"count" yaml:"count"`
	Recipes    []models.Recipe `json:"recipes" yaml:"recipes"`
}

// Row is one recipe in a Parquet backup. Nutrition is kept as a JSON
// object string since its keys vary per recipe.
type Row struct {
	ID               string   `parquet:"id"`
	UserID           string   `parquet:"user_id"`
	Title            string   `parquet:"title"`
	Highlight        string   `parquet:"highlight"`
	Tag              []string `parquet:"tag"`
	Ingredients      []string `parquet:"ingredients"`
	Instructions     []string `parquet:"instructions"`
	NutritionInfo    string   `parquet:"nutrition_info"`
	Image            string   `parquet:"image"`
	SupportingImages []string `parquet:"supporting_images"`
	CreatedAt        string   `parquet:"created_at"`
}

func toRow(r models.Recipe) (Row, error) {
	row := Row{
		ID:               r.ID.String(),
		UserID:           r.UserID,
		Title:            r.Title,
		Highlight:        r.Highlight,
		Tag:              r.Tag,
		Ingredients:      r.Ingredients,
		Instructions:     r.Instructions,
		Image:            r.Image,
		SupportingImages: r.SupportingImages,
	}
	if len(r.NutritionInfo) > 0 {
		b, err := json.Marshal(r.NutritionInfo)
		if err != nil {
			return Row{}, fmt.Errorf("failed to marshal nutrition for %q: %w", r.Title, err)
		}
		row.NutritionInfo = string(b)
	}
	if r.CreatedAt != nil {
		row.CreatedAt = r.CreatedAt.UTC().Format(time.RFC3339)
	}
	return row, nil
}

func fromRow(row Row) (models.Recipe, error) {
	r := models.Recipe{
		ID:               models.ID(row.ID),
		UserID:           row.UserID,
		Title:            row.Title,
		Highlight:        row.Highlight,
		Tag:              row.Tag,
		Ingredients:      row.Ingredients,
		Instructions:     row.Instructions,
		Image:            row.Image,
		SupportingImages: row.SupportingImages,
	}
	if row.NutritionInfo != "" {
		if err := json.Unmarshal([]byte(row.NutritionInfo), &r.NutritionInfo); err != nil {
			return models.Recipe{}, fmt.Errorf("invalid nutrition for %q: %w", row.Title, err)
		}
	}
	if row.CreatedAt != "" {
		ts, err := time.Parse(time.RFC3339, row.CreatedAt)
		if err != nil {
			return models.Recipe{}, fmt.Errorf("invalid created_at for %q: %w", row.Title, err)
		}
		r.CreatedAt = &ts
	}
	return r, nil
}

// Write encodes recipes to w in the given format.
func Write(w io.Writer, format Format, recipes []models.Recipe) error {
	switch format {
	case FormatParquet:
		return writeParquet(w, recipes)
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(newBackup(recipes)); err != nil {
			return fmt.Errorf("failed to encode JSON: %w", err)
		}
		return nil
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(newBackup(recipes)); err != nil {
			return fmt.Errorf("failed to encode YAML: %w", err)
		}
		return enc.Close()
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

func newBackup(recipes []models.Recipe) Backup {
	if recipes == nil {
		recipes = []models.Recipe{}
	}
	return Backup{ExportedAt: time.Now().UTC().Truncate(time.Second), Count: len(recipes), Recipes: recipes}
}

func writeParquet(w io.Writer, recipes []models.Recipe) error {
	rows := make([]Row, 0, len(recipes))
	for _, r := range recipes {
		row, err := toRow(r)
		if err != nil {
			return err
		}
		rows = append(rows, row)
	}

	writer := parquet.NewGenericWriter[Row](w)
	if _, err := writer.Write(rows); err != nil {
		return fmt.Errorf("failed to write parquet rows: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to close parquet writer: %w", err)
	}
	return nil
}

// WriteFile writes a backup to path, picking the format from its extension.
func WriteFile(path string, recipes []models.Recipe) error {
	format, err := ParseFormat(filepath.Ext(path))
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := Write(f, format, recipes); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	slog.Info("Recipes exported", "path", path, "format", format, "count", len(recipes))
	return nil
}

// Load reads a backup written by WriteFile. A YAML or JSON file may also be
// a bare list of recipes.
func Load(path string) ([]models.Recipe, error) {
	format, err := ParseFormat(filepath.Ext(path))
	if err != nil {
		return nil, err
	}
	if format == FormatParquet {
		return loadParquet(path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var backup Backup
	var list []models.Recipe
	switch format {
	case FormatJSON:
		if err = json.Unmarshal(data, &backup); err != nil {
			err = json.Unmarshal(data, &list)
		}
	default:
		if err = yaml.Unmarshal(data, &backup); err != nil {
			err = yaml.Unmarshal(data, &list)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if list != nil {
		return list, nil
	}
	return backup.Recipes, nil
}

func loadParquet(path string) ([]models.Recipe, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	pf, err := parquet.OpenFile(file, info.Size())
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet: %w", err)
	}

	reader := parquet.NewGenericReader[Row](pf)
	defer reader.Close()

	var recipes []models.Recipe
	rows := make([]Row, 128)
	for {
		n, err := reader.Read(rows)
		for _, row := range rows[:n] {
			r, convErr := fromRow(row)
			if convErr != nil {
				return nil, convErr
			}
			recipes = append(recipes, r)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read parquet rows: %w", err)
		}
	}
	slog.Debug("Parquet backup loaded", "path", path, "rows", len(recipes))
	return recipes, nil
}
