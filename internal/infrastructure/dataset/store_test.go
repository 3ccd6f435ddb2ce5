package dataset

import (
	"archive/zip"
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zetta-ds/carsigef/internal/config"
	"github.com/zetta-ds/carsigef/internal/infrastructure/monitoring/logging"
	apperrors "github.com/zetta-ds/carsigef/pkg/errors"
)

const testHeader = "cod_imovel,idt_municipio,municipio_nome,estado,regiao,area_sicar_ha,area_sigef_agregado_ha,area_intersecao_ha,indice_jaccard,igualdade_cpf,class_tam_imovel,status_imovel,data_cadastro_imovel"

var testRows = []string{
	"CAR-001,3550308,São Paulo,SP,sudeste,110,100,95,0.10,true,Pequeno,AT,2014-05-03",
	"CAR-002,3550308,São Paulo,SP,sudeste,200,210,180,0.30,false,Médio,AT,2015-08-20",
	"CAR-003,2927408,Salvador,BA,nordeste,50,50,48,0.60,1,Pequeno,PE,2016-01-15",
	"CAR-004,2927408,Salvador,BA,nordeste,300,0,0,0.90,t,Grande,AT,2017-11-30",
	"CAR-005,1302603,Manaus,AM,norte,80,75,74,1.0,0,Médio,SU,not-a-date",
	"CAR-006,1302603,Manaus,AM,norte,60,,55,,,Pequeno,CA,",
}

func writeCSV(t *testing.T, dir string, lines ...string) string {
	t.Helper()
	path := filepath.Join(dir, "matches.csv")
	content := strings.Join(append([]string{testHeader}, lines...), "\n") + "\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func newTestStore(t *testing.T, path string) *Store {
	t.Helper()
	return NewStore(config.DatasetConfig{Path: path}, logging.NewNopLogger(), nil)
}

func queryString(t *testing.T, db *sql.DB, query string, args ...any) *string {
	t.Helper()
	var v sql.NullString
	require.NoError(t, db.QueryRowContext(context.Background(), query, args...).Scan(&v))
	if !v.Valid {
		return nil
	}
	return &v.String
}

func TestLoadDerivesEnrichmentColumns(t *testing.T) {
	path := writeCSV(t, t.TempDir(), testRows...)
	store := newTestStore(t, path)
	defer store.Close()

	ctx := context.Background()
	require.NoError(t, store.Load(ctx))
	assert.True(t, store.Loaded())
	assert.EqualValues(t, 6, store.RowCount())

	db, err := store.Handle(ctx)
	require.NoError(t, err)

	for cod, want := range map[string]string{
		"CAR-001": "0-25%",
		"CAR-002": "25-50%",
		"CAR-003": "50-85%",
		"CAR-004": "85-100%",
		"CAR-005": "85-100%",
	} {
		got := queryString(t, db, "SELECT faixa_jaccard FROM matches WHERE cod_imovel = ?", cod)
		require.NotNil(t, got, cod)
		assert.Equal(t, want, *got, cod)
	}
	// Missing similarity yields no band.
	assert.Nil(t, queryString(t, db, "SELECT faixa_jaccard FROM matches WHERE cod_imovel = 'CAR-006'"))

	// Ownership flag variants all collapse onto the two labels.
	for cod, want := range map[string]string{
		"CAR-001": "Igual",
		"CAR-002": "Diferente",
		"CAR-003": "Igual",
		"CAR-004": "Igual",
		"CAR-005": "Diferente",
	} {
		got := queryString(t, db, "SELECT label_cpf FROM matches WHERE cod_imovel = ?", cod)
		require.NotNil(t, got, cod)
		assert.Equal(t, want, *got, cod)
	}
	assert.Nil(t, queryString(t, db, "SELECT label_cpf FROM matches WHERE cod_imovel = 'CAR-006'"))

	// Registration year from a parseable date, NULL otherwise.
	year := queryString(t, db, "SELECT ano_cadastro FROM matches WHERE cod_imovel = 'CAR-001'")
	require.NotNil(t, year)
	assert.Equal(t, "2014", *year)
	assert.Nil(t, queryString(t, db, "SELECT ano_cadastro FROM matches WHERE cod_imovel = 'CAR-005'"))

	// Discrepancy is percentual, and NULL when the SIGEF area is zero.
	var pct sql.NullFloat64
	require.NoError(t, db.QueryRowContext(ctx,
		"SELECT discrepancia_pct FROM matches WHERE cod_imovel = 'CAR-001'").Scan(&pct))
	require.True(t, pct.Valid)
	assert.InDelta(t, 10.0, pct.Float64, 1e-9)

	require.NoError(t, db.QueryRowContext(ctx,
		"SELECT discrepancia_pct FROM matches WHERE cod_imovel = 'CAR-004'").Scan(&pct))
	assert.False(t, pct.Valid)
}

func TestLoadIsIdempotent(t *testing.T) {
	path := writeCSV(t, t.TempDir(), testRows...)
	store := newTestStore(t, path)
	defer store.Close()

	ctx := context.Background()
	require.NoError(t, store.Load(ctx))
	first, err := store.Handle(ctx)
	require.NoError(t, err)

	require.NoError(t, store.Load(ctx))
	second, err := store.Handle(ctx)
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.EqualValues(t, 6, store.RowCount())
}

func TestConcurrentLoadsCollapse(t *testing.T) {
	path := writeCSV(t, t.TempDir(), testRows...)
	store := newTestStore(t, path)
	defer store.Close()

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = store.Load(context.Background())
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}
	assert.EqualValues(t, 6, store.RowCount())
}

func TestLoadFailsCleanlyOnMissingColumns(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "matches.csv")
	require.NoError(t, os.WriteFile(path,
		[]byte("cod_imovel,estado\nCAR-001,SP\n"), 0o644))
	store := newTestStore(t, path)
	defer store.Close()

	err := store.Load(context.Background())
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeBadSchema))
	assert.False(t, store.Loaded())

	// A corrected file loads on the next attempt.
	writeCSV(t, dir, testRows...)
	require.NoError(t, store.Load(context.Background()))
	assert.True(t, store.Loaded())
}

func TestLoadFailsWhenSourceMissing(t *testing.T) {
	store := newTestStore(t, filepath.Join(t.TempDir(), "nope.csv"))
	defer store.Close()

	err := store.Load(context.Background())
	require.Error(t, err)
	assert.True(t, apperrors.IsDataUnavailable(err))
	assert.False(t, store.Loaded())
}

func TestResetForcesReload(t *testing.T) {
	dir := t.TempDir()
	path := writeCSV(t, dir, testRows...)
	store := newTestStore(t, path)
	defer store.Close()

	ctx := context.Background()
	require.NoError(t, store.Load(ctx))
	assert.EqualValues(t, 6, store.RowCount())
	firstGen := store.Generation()
	assert.NotEmpty(t, firstGen)

	store.Reset()
	assert.False(t, store.Loaded())
	assert.Empty(t, store.Generation())

	// Shrink the file; the next access must observe the new contents.
	writeCSV(t, dir, testRows[0], testRows[1])
	require.NoError(t, store.Load(ctx))
	assert.EqualValues(t, 2, store.RowCount())
	assert.NotEqual(t, firstGen, store.Generation())
}

func TestLoadFromArchive(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "matches.zip")
	csvPath := filepath.Join(dir, "extracted", "matches.csv")

	f, err := os.Create(archive)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	entry, err := zw.Create("export/matches.csv")
	require.NoError(t, err)
	content := testHeader + "\n" + testRows[0] + "\n"
	_, err = entry.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	store := NewStore(config.DatasetConfig{Path: csvPath, ArchivePath: archive},
		logging.NewNopLogger(), nil)
	defer store.Close()

	require.NoError(t, store.Load(context.Background()))
	assert.EqualValues(t, 1, store.RowCount())
	assert.FileExists(t, csvPath)
}

func TestOwnershipFromDocumentPair(t *testing.T) {
	dir := t.TempDir()
	header := "cod_imovel,idt_municipio,municipio_nome,estado,regiao,area_sicar_ha,area_sigef_agregado_ha,area_intersecao_ha,indice_jaccard,cpf_cnpj_car,cpf_cnpj_sigef,class_tam_imovel,status_imovel,data_cadastro_imovel"
	rows := []string{
		"CAR-101,3550308,São Paulo,SP,sudeste,10,10,9,0.95,123.456.789-01,12345678901,Pequeno,AT,2020-01-01",
		"CAR-102,3550308,São Paulo,SP,sudeste,10,10,9,0.95,123.456.789-01,98765432100,Pequeno,AT,2020-01-01",
		"CAR-103,3550308,São Paulo,SP,sudeste,10,10,9,0.95,,,Pequeno,AT,2020-01-01",
	}
	path := filepath.Join(dir, "matches.csv")
	content := header + "\n" + strings.Join(rows, "\n") + "\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	store := newTestStore(t, path)
	defer store.Close()

	ctx := context.Background()
	require.NoError(t, store.Load(ctx))
	db, err := store.Handle(ctx)
	require.NoError(t, err)

	same := queryString(t, db, "SELECT label_cpf FROM matches WHERE cod_imovel = 'CAR-101'")
	require.NotNil(t, same)
	assert.Equal(t, "Igual", *same)

	diff := queryString(t, db, "SELECT label_cpf FROM matches WHERE cod_imovel = 'CAR-102'")
	require.NotNil(t, diff)
	assert.Equal(t, "Diferente", *diff)

	assert.Nil(t, queryString(t, db, "SELECT label_cpf FROM matches WHERE cod_imovel = 'CAR-103'"))
}

func TestMetadataListsDistinctSortedValues(t *testing.T) {
	path := writeCSV(t, t.TempDir(), testRows...)
	store := newTestStore(t, path)
	defer store.Close()

	meta, err := store.Metadata(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"nordeste", "norte", "sudeste"}, meta.Regions)
	assert.Equal(t, []string{"AM", "BA", "SP"}, meta.States)
	assert.Equal(t, []string{"Manaus", "Salvador", "São Paulo"}, meta.Municipalities)
	assert.Equal(t, []string{"Grande", "Médio", "Pequeno"}, meta.SizeClasses)
	assert.Equal(t, []string{"AT", "CA", "PE", "SU"}, meta.Statuses)
}
