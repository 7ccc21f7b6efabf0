package validation

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	apperrors "npastat/internal/errors"
)

// FileValidator checks the files and directories the command line tools
// read and write
type FileValidator struct {
	logger *slog.Logger
}

// NewFileValidator creates a new file validator
func NewFileValidator(logger *slog.Logger) *FileValidator {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileValidator{
		logger: logger,
	}
}

// ValidateOutputDirectory ensures output directory exists or can be created
func (v *FileValidator) ValidateOutputDirectory(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		v.logger.Error("Failed to create output directory",
			slog.String("directory", dir),
			slog.String("error", err.Error()))
		return apperrors.NewStorageError(fmt.Sprintf("failed to create output directory %s", dir), err)
	}

	// Verify it's writable by creating a test file
	testFile := filepath.Join(dir, ".write_test")
	file, err := os.Create(testFile)
	if err != nil {
		v.logger.Error("Output directory is not writable",
			slog.String("directory", dir),
			slog.String("error", err.Error()))
		return apperrors.NewStorageError(fmt.Sprintf("output directory %s is not writable", dir), err)
	}
	file.Close()
	os.Remove(testFile)

	v.logger.Info("Output directory validated",
		slog.String("directory", dir))
	return nil
}

// ValidateFile checks if a specific file exists and is readable
func (v *FileValidator) ValidateFile(path string) error {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		v.logger.Error("File does not exist",
			slog.String("file", path))
		return apperrors.NewNotFoundError("file " + path)
	}
	if err != nil {
		v.logger.Error("Failed to stat file",
			slog.String("file", path),
			slog.String("error", err.Error()))
		return apperrors.NewStorageError(fmt.Sprintf("failed to stat file %s", path), err)
	}
	if info.IsDir() {
		v.logger.Error("Path is a directory, not a file",
			slog.String("path", path))
		return apperrors.NewInvalidInputError("%s is a directory, not a file", path)
	}

	file, err := os.Open(path)
	if err != nil {
		v.logger.Error("File is not readable",
			slog.String("file", path),
			slog.String("error", err.Error()))
		return apperrors.NewStorageError(fmt.Sprintf("file %s is not readable", path), err)
	}
	file.Close()

	v.logger.Debug("File validated",
		slog.String("file", path),
		slog.Int64("size", info.Size()))
	return nil
}

func (v *FileValidator) validateExtension(path string, kind string, exts ...string) error {
	if err := v.ValidateFile(path); err != nil {
		return err
	}

	ext := strings.ToLower(filepath.Ext(path))
	for _, want := range exts {
		if ext == want {
			return nil
		}
	}
	v.logger.Error("Unexpected file type",
		slog.String("file", path),
		slog.String("extension", ext),
		slog.String("expected", kind))
	return apperrors.NewInvalidInputError("file %s is not a %s file (extension: %s)", path, kind, ext)
}

// ValidateCSVFile checks that path is a readable .csv file
func (v *FileValidator) ValidateCSVFile(path string) error {
	return v.validateExtension(path, "CSV", ".csv")
}

// ValidateCodebookFile checks that path is a readable YAML file
func (v *FileValidator) ValidateCodebookFile(path string) error {
	return v.validateExtension(path, "YAML", ".yaml", ".yml")
}

// ValidateRegistryFile checks that path is a CSV export whose header has
// every required column. Columns are matched exactly, after stripping a
// UTF-8 BOM.
func (v *FileValidator) ValidateRegistryFile(path string, required ...string) error {
	if err := v.ValidateCSVFile(path); err != nil {
		return err
	}

	file, err := os.Open(path)
	if err != nil {
		return apperrors.NewStorageError(fmt.Sprintf("file %s is not readable", path), err)
	}
	defer file.Close()

	header, err := readHeader(file)
	if err != nil {
		v.logger.Error("Failed to read CSV header",
			slog.String("file", path),
			slog.String("error", err.Error()))
		return apperrors.NewParsingError(fmt.Sprintf("failed to read header of %s", path), err)
	}

	have := make(map[string]bool, len(header))
	for _, h := range header {
		have[h] = true
	}
	var missing []string
	for _, col := range required {
		if !have[col] {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		v.logger.Error("Registry file is missing columns",
			slog.String("file", path),
			slog.Any("missing", missing))
		return apperrors.NewInvalidInputError("file %s is missing columns: %s", path, strings.Join(missing, ", "))
	}

	v.logger.Info("Registry file validated",
		slog.String("file", path),
		slog.Int("columns", len(header)))
	return nil
}

func readHeader(r io.Reader) ([]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	header, err := reader.Read()
	if err != nil {
		return nil, err
	}
	if len(header) > 0 {
		header[0] = string(bytes.TrimPrefix([]byte(header[0]), []byte("\xef\xbb\xbf")))
	}
	return header, nil
}
