package metadata

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/pkg/errors"
)

// LoadCSV reads a metadata table from a CSV file with a header row.
//
// Column names are matched case-insensitively and must include image,
// label and phase. Relative image paths are resolved against the directory
// holding the CSV. Files ending in .gz, .zst or .lz4 are decompressed on the
// fly.
func LoadCSV(path string) (*MemTable, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open metadata %s", path)
	}
	defer file.Close()

	r, closer, err := decompress(path, file)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open compressed metadata %s", path)
	}
	defer closer()

	table, err := ReadCSV(r)
	if err != nil {
		return nil, errors.WithMessagef(err, "metadata %s", path)
	}

	base := filepath.Dir(path)
	for i := range table.rows {
		img := table.rows[i].Image
		if img != "" && !filepath.IsAbs(img) && !isRemote(img) {
			table.rows[i].Image = filepath.Join(base, img)
			table.rows[i].Fields[ColumnImage] = table.rows[i].Image
		}
	}
	return table, nil
}

// ReadCSV parses metadata from r. Image paths are kept as written.
func ReadCSV(r io.Reader) (*MemTable, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, errors.Wrap(err, "failed to read header")
	}

	// Spreadsheet exports often start with a UTF-8 byte order mark.
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	colIndex := make(map[string]int, len(header))
	for i, col := range header {
		colIndex[normalizeColumn(col)] = i
	}
	for _, col := range RequiredColumns {
		if _, ok := colIndex[col]; !ok {
			return nil, errors.Errorf("required column %q not found in CSV", col)
		}
	}

	var rows []Record
	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read row at line %d", line)
		}
		fields := make(map[string]string, len(colIndex))
		for name, idx := range colIndex {
			if idx < len(record) {
				fields[name] = strings.TrimSpace(record[idx])
			}
		}
		rows = append(rows, Record{
			Image:  fields[ColumnImage],
			Label:  fields[ColumnLabel],
			Phase:  fields[ColumnPhase],
			Fields: fields,
		})
	}

	table := NewMemTable(rows)
	for name := range colIndex {
		table.columns[name] = true
	}
	return table, nil
}

func decompress(path string, r io.Reader) (io.Reader, func(), error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".gz":
		zr, err := gzip.NewReader(r)
		if err != nil {
			return nil, nil, err
		}
		return zr, func() { zr.Close() }, nil
	case ".zst":
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, nil, err
		}
		return zr, zr.Close, nil
	case ".lz4":
		return lz4.NewReader(r), func() {}, nil
	}
	return r, func() {}, nil
}

func isRemote(path string) bool {
	return strings.Contains(path, "://")
}
