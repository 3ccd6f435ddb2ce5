package ingest

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zetta-ds/carsigef/internal/infrastructure/database/postgres"
	"github.com/zetta-ds/carsigef/internal/infrastructure/monitoring/logging"
)

func writeRows(t *testing.T, path string, rows [][]string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	w := csv.NewWriter(f)
	require.NoError(t, w.WriteAll(rows))
	require.NoError(t, f.Close())
}

func readRows(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestMergeAppendsTotalsColumn(t *testing.T) {
	path := filepath.Join(t.TempDir(), "matches.csv")
	writeRows(t, path, [][]string{
		{"cod_imovel", "idt_municipio", "data_cadastro_imovel"},
		{"CAR-001", "3550308", "2014-05-03"},
		{"CAR-002", "3550308", "2015-01-01"},
		{"CAR-003", "2927408", "2014-07-07"},
		{"CAR-004", "2927408", "not-a-date"},
	})

	totals := []postgres.MunicipalityYearTotal{
		{MunicipalityID: "3550308", Year: 2014, TotalCARs: 1200},
		{MunicipalityID: "2927408", Year: 2014, TotalCARs: 340},
	}

	merger := NewTotalsMerger(logging.NewNopLogger())
	stats, err := merger.Merge(path, totals)
	require.NoError(t, err)
	assert.Equal(t, 4, stats.Rows)
	assert.Equal(t, 2, stats.Matched)

	rows := readRows(t, path)
	require.Len(t, rows, 5)
	assert.Equal(t, "total_cars_municipio", rows[0][3])
	assert.Equal(t, "1200", rows[1][3])
	assert.Equal(t, "", rows[2][3]) // 2015 has no registry entry
	assert.Equal(t, "340", rows[3][3])
	assert.Equal(t, "", rows[4][3]) // unparseable date
}

func TestMergeReplacesExistingTotals(t *testing.T) {
	path := filepath.Join(t.TempDir(), "matches.csv")
	writeRows(t, path, [][]string{
		{"cod_imovel", "idt_municipio", "ano_cadastro", "total_cars_municipio"},
		{"CAR-001", "3550308", "2014", "999"},
		{"CAR-002", "3550308", "2020", "999"},
	})

	totals := []postgres.MunicipalityYearTotal{
		{MunicipalityID: "3550308", Year: 2014, TotalCARs: 42},
	}

	merger := NewTotalsMerger(logging.NewNopLogger())
	stats, err := merger.Merge(path, totals)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Matched)

	rows := readRows(t, path)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"cod_imovel", "idt_municipio", "ano_cadastro", "total_cars_municipio"}, rows[0])
	assert.Equal(t, "42", rows[1][3])
	assert.Equal(t, "", rows[2][3]) // stale value cleared when registry has no entry
}

func TestMergeRejectsMissingMunicipality(t *testing.T) {
	path := filepath.Join(t.TempDir(), "matches.csv")
	writeRows(t, path, [][]string{
		{"cod_imovel", "data_cadastro_imovel"},
		{"CAR-001", "2014-05-03"},
	})

	merger := NewTotalsMerger(logging.NewNopLogger())
	_, err := merger.Merge(path, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "idt_municipio")

	// Original file untouched.
	rows := readRows(t, path)
	assert.Len(t, rows, 2)
	assert.Len(t, rows[0], 2)
}
