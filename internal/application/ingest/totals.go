// Package ingest maintains the dataset file itself: today that means merging
// municipality CAR totals from the MGI registry into the match CSV so the
// coverage view can relate the sample to the full registry.
package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/zetta-ds/carsigef/internal/infrastructure/database/postgres"
	"github.com/zetta-ds/carsigef/internal/infrastructure/monitoring/logging"
	apperrors "github.com/zetta-ds/carsigef/pkg/errors"
)

const (
	colMunicipalityID = "idt_municipio"
	colRegistration   = "data_cadastro_imovel"
	colYear           = "ano_cadastro"
	colTotal          = "total_cars_municipio"
)

// MergeStats summarizes one merge run.
type MergeStats struct {
	Rows    int
	Matched int
}

// TotalsMerger left-joins registry totals onto the match CSV by municipality
// and registration year, rewriting the file in place.
type TotalsMerger struct {
	log logging.Logger
}

// NewTotalsMerger builds a TotalsMerger.
func NewTotalsMerger(log logging.Logger) *TotalsMerger {
	return &TotalsMerger{log: log.Named("ingest")}
}

// Merge rewrites csvPath with a fresh total_cars_municipio column. Rows whose
// municipality and year have no registry entry get an empty value. The file
// is replaced atomically; on error the original is left untouched.
func (m *TotalsMerger) Merge(csvPath string, totals []postgres.MunicipalityYearTotal) (MergeStats, error) {
	var stats MergeStats

	byKey := make(map[string]int64, len(totals))
	for _, t := range totals {
		byKey[totalKey(t.MunicipalityID, t.Year)] = t.TotalCARs
	}

	in, err := os.Open(csvPath)
	if err != nil {
		return stats, apperrors.Wrap(err, apperrors.ErrCodeDataUnavailable, "open dataset file")
	}
	defer in.Close()

	reader := csv.NewReader(in)
	header, err := reader.Read()
	if err != nil {
		return stats, apperrors.Wrap(err, apperrors.ErrCodeBadSchema, "read dataset header")
	}

	muniIdx, yearIdx, dateIdx, totalIdx := -1, -1, -1, -1
	for i, name := range header {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case colMunicipalityID:
			muniIdx = i
		case colYear:
			yearIdx = i
		case colRegistration:
			dateIdx = i
		case colTotal:
			totalIdx = i
		}
	}
	if muniIdx < 0 {
		return stats, apperrors.New(apperrors.ErrCodeBadSchema, "dataset has no idt_municipio column")
	}
	if yearIdx < 0 && dateIdx < 0 {
		return stats, apperrors.New(apperrors.ErrCodeBadSchema,
			"dataset has neither ano_cadastro nor data_cadastro_imovel")
	}

	outHeader := append([]string(nil), header...)
	appendTotal := totalIdx < 0
	if appendTotal {
		outHeader = append(outHeader, colTotal)
		totalIdx = len(outHeader) - 1
	}

	dir := filepath.Dir(csvPath)
	tmp, err := os.CreateTemp(dir, ".carsigef-merge-*.csv")
	if err != nil {
		return stats, apperrors.Wrap(err, apperrors.ErrCodeDataUnavailable, "create temp merge file")
	}
	defer os.Remove(tmp.Name())

	writer := csv.NewWriter(tmp)
	if err := writer.Write(outHeader); err != nil {
		tmp.Close()
		return stats, apperrors.Wrap(err, apperrors.ErrCodeDataUnavailable, "write merged header")
	}

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			tmp.Close()
			return stats, apperrors.Wrap(err, apperrors.ErrCodeBadSchema,
				fmt.Sprintf("read dataset row %d", stats.Rows+2))
		}

		out := append([]string(nil), record...)
		if appendTotal {
			out = append(out, "")
		}

		muni := strings.TrimSpace(record[muniIdx])
		year := rowYear(record, yearIdx, dateIdx)
		out[totalIdx] = ""
		if muni != "" && year != 0 {
			if total, ok := byKey[totalKey(muni, year)]; ok {
				out[totalIdx] = fmt.Sprintf("%d", total)
				stats.Matched++
			}
		}

		if err := writer.Write(out); err != nil {
			tmp.Close()
			return stats, apperrors.Wrap(err, apperrors.ErrCodeDataUnavailable, "write merged row")
		}
		stats.Rows++
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		tmp.Close()
		return stats, apperrors.Wrap(err, apperrors.ErrCodeDataUnavailable, "flush merged file")
	}
	if err := tmp.Close(); err != nil {
		return stats, apperrors.Wrap(err, apperrors.ErrCodeDataUnavailable, "close merged file")
	}
	if err := os.Rename(tmp.Name(), csvPath); err != nil {
		return stats, apperrors.Wrap(err, apperrors.ErrCodeDataUnavailable, "replace dataset file")
	}

	m.log.Info("merged municipality totals",
		logging.Int("rows", stats.Rows),
		logging.Int("matched", stats.Matched))
	return stats, nil
}

func totalKey(muni string, year int) string {
	return fmt.Sprintf("%s|%d", muni, year)
}

// rowYear resolves the registration year of a row, preferring an explicit
// ano_cadastro column over parsing the registration date. Zero means unknown.
func rowYear(record []string, yearIdx, dateIdx int) int {
	if yearIdx >= 0 && yearIdx < len(record) {
		if y := parseYear(strings.TrimSpace(record[yearIdx])); y != 0 {
			return y
		}
	}
	if dateIdx >= 0 && dateIdx < len(record) {
		raw := strings.TrimSpace(record[dateIdx])
		for _, layout := range []string{"2006-01-02", "2006-01-02 15:04:05", time.RFC3339} {
			if t, err := time.Parse(layout, raw); err == nil {
				return t.Year()
			}
		}
	}
	return 0
}

func parseYear(raw string) int {
	if len(raw) < 4 {
		return 0
	}
	var y int
	if _, err := fmt.Sscanf(raw, "%d", &y); err != nil {
		return 0
	}
	if y < 1900 || y > 2200 {
		return 0
	}
	return y
}
