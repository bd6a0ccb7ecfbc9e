// Package export writes a finished run's movements to disk.
package export

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"

	"github.com/movements-dev/triodos-movements/internal/logger"
	"github.com/movements-dev/triodos-movements/internal/model"
)

// Output formats.
const (
	FormatJSON   = "json"
	FormatCSV    = "csv"
	FormatSQLite = "sqlite"
)

// Save writes movs for year to path in the given format and returns the
// size of the resulting file.
func Save(ctx context.Context, format, path string, year int, movs []model.Movement) (int64, error) {
	var err error
	switch format {
	case FormatJSON, "":
		err = writeAtomic(path, func(w io.Writer) error { return WriteJSON(w, movs) })
	case FormatCSV:
		err = writeAtomic(path, func(w io.Writer) error { return WriteCSV(w, movs) })
	case FormatSQLite:
		err = saveSQLite(ctx, path, year, movs)
	default:
		return 0, fmt.Errorf("unknown output format %q", format)
	}
	if err != nil {
		return 0, fmt.Errorf("writing %s output: %w", format, err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("stat output: %w", err)
	}
	log := logger.FromContext(ctx)
	log.Info().
		Str("path", path).
		Str("format", format).
		Int("movements", len(movs)).
		Str("size", humanize.Bytes(uint64(info.Size()))).
		Msg("output written")
	return info.Size(), nil
}

// WriteJSON writes movs as a single indented JSON array. An empty run is "[]".
func WriteJSON(w io.Writer, movs []model.Movement) error {
	if movs == nil {
		movs = []model.Movement{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(movs)
}

// writeAtomic writes to a temp file next to path and renames it into place,
// so a failed write never leaves a partial file.
func writeAtomic(path string, write func(io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name()) // no-op after a successful rename

	if err := write(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
