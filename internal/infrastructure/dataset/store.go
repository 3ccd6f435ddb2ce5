// Package dataset owns the analytical relation: it resolves the CAR-SIGEF
// match CSV from disk, archive or remote storage, loads it into an embedded
// in-memory SQLite engine and derives the enrichment columns the aggregation
// layer filters on.
package dataset

import (
	"context"
	"database/sql"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
	_ "modernc.org/sqlite"

	"github.com/zetta-ds/carsigef/internal/config"
	"github.com/zetta-ds/carsigef/internal/domain/similarity"
	"github.com/zetta-ds/carsigef/internal/infrastructure/monitoring/logging"
	"github.com/zetta-ds/carsigef/internal/infrastructure/monitoring/metrics"
	apperrors "github.com/zetta-ds/carsigef/pkg/errors"
)

// TableMatches is the enriched relation every query reads from.
const TableMatches = "matches"

const tableStaging = "matches_staging"

// requiredColumns must all be present in the CSV header. Ownership needs
// either the precomputed igualdade_cpf flag or the raw document pair.
var requiredColumns = []string{
	"cod_imovel",
	"idt_municipio",
	"municipio_nome",
	"estado",
	"regiao",
	"area_sicar_ha",
	"area_sigef_agregado_ha",
	"area_intersecao_ha",
	"indice_jaccard",
	"class_tam_imovel",
	"status_imovel",
	"data_cadastro_imovel",
}

const (
	colOwnershipFlag = "igualdade_cpf"
	colDocumentCAR   = "cpf_cnpj_car"
	colDocumentSIGEF = "cpf_cnpj_sigef"
	colMunicipTotal  = "total_cars_municipio"
)

// Store loads the dataset on demand and hands out the embedded engine handle.
// Load is idempotent and collapsed across concurrent callers; a failed load
// leaves no half-built relation behind.
type Store struct {
	cfg     config.DatasetConfig
	log     logging.Logger
	metrics *metrics.Collector

	group singleflight.Group

	mu         sync.Mutex
	db         *sql.DB
	loaded     bool
	rows       int64
	generation string
}

// NewStore builds a Store. The collector may be nil.
func NewStore(cfg config.DatasetConfig, log logging.Logger, collector *metrics.Collector) *Store {
	return &Store{cfg: cfg, log: log.Named("dataset"), metrics: collector}
}

// Handle returns the query handle, loading the dataset first if needed.
func (s *Store) Handle(ctx context.Context) (*sql.DB, error) {
	if err := s.Load(ctx); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db, nil
}

// Loaded reports whether the relation is currently available.
func (s *Store) Loaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loaded
}

// RowCount returns the size of the loaded relation, zero when unloaded.
func (s *Store) RowCount() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rows
}

// Generation identifies the current load. It changes on every successful
// load, so clients can detect that the relation was rebuilt underneath them.
// Empty when unloaded.
func (s *Store) Generation() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

// Load materializes the enriched relation. Calling it again after success is
// a no-op until Reset.
func (s *Store) Load(ctx context.Context) error {
	s.mu.Lock()
	if s.loaded {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	_, err, _ := s.group.Do("load", func() (any, error) {
		return nil, s.loadOnce(ctx)
	})
	return err
}

func (s *Store) loadOnce(ctx context.Context) error {
	s.mu.Lock()
	if s.loaded {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	start := time.Now()

	path, err := resolveSource(ctx, s.cfg, s.log)
	if err != nil {
		return err
	}

	db, err := openEngine()
	if err != nil {
		return err
	}

	rows, err := s.build(ctx, db, path)
	if err != nil {
		db.Close()
		return err
	}

	generation := uuid.NewString()
	s.mu.Lock()
	if s.db != nil {
		s.db.Close()
	}
	s.db = db
	s.loaded = true
	s.rows = rows
	s.generation = generation
	s.mu.Unlock()

	elapsed := time.Since(start)
	if s.metrics != nil {
		s.metrics.ObserveDatasetLoad(elapsed, rows)
	}
	s.log.Info("dataset loaded",
		logging.String("generation", generation),
		logging.String("path", path),
		logging.Int64("rows", rows),
		logging.Duration("elapsed", elapsed))
	return nil
}

// Reset drops the relation so the next access reloads from the source.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db != nil {
		s.db.Close()
		s.db = nil
	}
	s.loaded = false
	s.rows = 0
	s.generation = ""
	s.log.Info("dataset reset")
}

// Close releases the engine.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	s.loaded = false
	s.rows = 0
	s.generation = ""
	return err
}

// openEngine opens an in-memory SQLite database pinned to a single
// connection so the relation survives between queries.
func openEngine() (*sql.DB, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeQueryFailure, "open embedded engine")
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	return db, nil
}

// build stages the CSV and derives the enriched relation in one pass. Any
// failure aborts before the final relation exists.
func (s *Store) build(ctx context.Context, db *sql.DB, path string) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, apperrors.Wrap(err, apperrors.ErrCodeDataUnavailable, "open dataset file")
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.ReuseRecord = true

	header, err := reader.Read()
	if err != nil {
		return 0, apperrors.Wrap(err, apperrors.ErrCodeBadSchema, "read dataset header")
	}
	layout, err := newLayout(header)
	if err != nil {
		return 0, err
	}

	if _, err := db.ExecContext(ctx, stagingDDL); err != nil {
		return 0, apperrors.Wrap(err, apperrors.ErrCodeQueryFailure, "create staging table")
	}

	rows, err := s.stage(ctx, db, reader, layout)
	if err != nil {
		return 0, err
	}

	if _, err := db.ExecContext(ctx, enrichmentSQL()); err != nil {
		return 0, apperrors.Wrap(err, apperrors.ErrCodeQueryFailure, "derive enriched relation")
	}
	if _, err := db.ExecContext(ctx, "DROP TABLE "+tableStaging); err != nil {
		return 0, apperrors.Wrap(err, apperrors.ErrCodeQueryFailure, "drop staging table")
	}
	return rows, nil
}

// layout maps the columns the loader consumes onto CSV field positions.
type layout struct {
	index map[string]int

	hasFlag     bool
	hasDocPair  bool
	hasMunTotal bool
}

func newLayout(header []string) (*layout, error) {
	l := &layout{index: make(map[string]int, len(header))}
	for i, name := range header {
		l.index[strings.ToLower(strings.TrimSpace(name))] = i
	}

	var missing []string
	for _, col := range requiredColumns {
		if _, ok := l.index[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, apperrors.New(apperrors.ErrCodeBadSchema, "dataset is missing required columns").
			WithDetail(strings.Join(missing, ", "))
	}

	_, l.hasFlag = l.index[colOwnershipFlag]
	_, hasCAR := l.index[colDocumentCAR]
	_, hasSIGEF := l.index[colDocumentSIGEF]
	l.hasDocPair = hasCAR && hasSIGEF
	if !l.hasFlag && !l.hasDocPair {
		return nil, apperrors.New(apperrors.ErrCodeBadSchema, "dataset has no ownership information").
			WithDetail("need igualdade_cpf or cpf_cnpj_car plus cpf_cnpj_sigef")
	}
	_, l.hasMunTotal = l.index[colMunicipTotal]
	return l, nil
}

func (l *layout) field(record []string, column string) string {
	i, ok := l.index[column]
	if !ok || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

// ownership resolves the CPF/CNPJ equality bit for one record. Returns nil
// when the source carries no usable information for the row.
func (l *layout) ownership(record []string) any {
	if l.hasFlag {
		if raw := l.field(record, colOwnershipFlag); raw != "" {
			if similarity.TruthyFlag(raw) {
				return int64(1)
			}
			return int64(0)
		}
	}
	if l.hasDocPair {
		car := similarity.NormalizeDocument(l.field(record, colDocumentCAR))
		sigef := similarity.NormalizeDocument(l.field(record, colDocumentSIGEF))
		if car == "" && sigef == "" {
			return nil
		}
		if similarity.DocumentsMatch(car, sigef) {
			return int64(1)
		}
		return int64(0)
	}
	return nil
}

const stagingDDL = `CREATE TABLE ` + tableStaging + ` (
	cod_imovel TEXT,
	idt_municipio TEXT,
	municipio_nome TEXT,
	estado TEXT,
	regiao TEXT,
	area_sicar_ha REAL,
	area_sigef_agregado_ha REAL,
	area_intersecao_ha REAL,
	indice_jaccard REAL,
	class_tam_imovel TEXT,
	status_imovel TEXT,
	data_cadastro_imovel TEXT,
	total_cars_municipio INTEGER,
	cpf_ok INTEGER
)`

const stagingInsert = `INSERT INTO ` + tableStaging + ` VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func (s *Store) stage(ctx context.Context, db *sql.DB, reader *csv.Reader, l *layout) (int64, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, apperrors.Wrap(err, apperrors.ErrCodeQueryFailure, "begin staging transaction")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, stagingInsert)
	if err != nil {
		return 0, apperrors.Wrap(err, apperrors.ErrCodeQueryFailure, "prepare staging insert")
	}
	defer stmt.Close()

	var count int64
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, apperrors.Wrap(err, apperrors.ErrCodeBadSchema,
				fmt.Sprintf("read dataset row %d", count+2))
		}

		_, err = stmt.ExecContext(ctx,
			textOrNull(l.field(record, "cod_imovel")),
			textOrNull(l.field(record, "idt_municipio")),
			textOrNull(l.field(record, "municipio_nome")),
			textOrNull(l.field(record, "estado")),
			textOrNull(l.field(record, "regiao")),
			floatOrNull(l.field(record, "area_sicar_ha")),
			floatOrNull(l.field(record, "area_sigef_agregado_ha")),
			floatOrNull(l.field(record, "area_intersecao_ha")),
			floatOrNull(l.field(record, "indice_jaccard")),
			textOrNull(l.field(record, "class_tam_imovel")),
			textOrNull(l.field(record, "status_imovel")),
			textOrNull(l.field(record, "data_cadastro_imovel")),
			intOrNull(l.field(record, colMunicipTotal)),
			l.ownership(record),
		)
		if err != nil {
			return 0, apperrors.Wrap(err, apperrors.ErrCodeQueryFailure,
				fmt.Sprintf("stage dataset row %d", count+2))
		}
		count++
	}

	if err := tx.Commit(); err != nil {
		return 0, apperrors.Wrap(err, apperrors.ErrCodeQueryFailure, "commit staging transaction")
	}
	return count, nil
}

func textOrNull(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func floatOrNull(v string) any {
	if v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return nil
	}
	return f
}

func intOrNull(v string) any {
	if v == "" {
		return nil
	}
	// Totals exported through pandas come back as "1234.0".
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return int64(f)
	}
	return nil
}

// enrichmentSQL derives label_cpf, ano_cadastro, faixa_jaccard and
// discrepancia_pct inside the engine, in a single projection over staging.
func enrichmentSQL() string {
	bandCase := fmt.Sprintf(`CASE
		WHEN indice_jaccard >= 0 AND indice_jaccard < %[1]g THEN '%[4]s'
		WHEN indice_jaccard >= %[1]g AND indice_jaccard < %[2]g THEN '%[5]s'
		WHEN indice_jaccard >= %[2]g AND indice_jaccard < %[3]g THEN '%[6]s'
		WHEN indice_jaccard >= %[3]g AND indice_jaccard <= 1 THEN '%[7]s'
		ELSE NULL
	END`,
		similarity.BandLowUpper,
		similarity.BandMediumUpper,
		similarity.HighConfidenceThreshold,
		similarity.Band0to25,
		similarity.Band25to50,
		similarity.Band50to85,
		similarity.Band85to100,
	)

	ownershipCase := fmt.Sprintf(`CASE
		WHEN cpf_ok = 1 THEN '%s'
		WHEN cpf_ok = 0 THEN '%s'
		ELSE NULL
	END`, similarity.OwnershipEqual, similarity.OwnershipDifferent)

	return fmt.Sprintf(`CREATE TABLE %s AS
SELECT
	cod_imovel,
	idt_municipio,
	municipio_nome,
	estado,
	regiao,
	area_sicar_ha,
	area_sigef_agregado_ha,
	area_intersecao_ha,
	indice_jaccard,
	class_tam_imovel,
	status_imovel,
	data_cadastro_imovel,
	total_cars_municipio,
	%s AS label_cpf,
	CAST(strftime('%%Y', data_cadastro_imovel) AS INTEGER) AS ano_cadastro,
	%s AS faixa_jaccard,
	(area_sicar_ha - area_sigef_agregado_ha) * 100.0
		/ NULLIF(area_sigef_agregado_ha, 0) AS discrepancia_pct
FROM %s`, TableMatches, ownershipCase, bandCase, tableStaging)
}

// Metadata returns the distinct filterable values per dimension, loading the
// dataset first if needed.
func (s *Store) Metadata(ctx context.Context) (*similarity.Metadata, error) {
	db, err := s.Handle(ctx)
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.IncQuery(metrics.QueryKindMetadata)
	}

	meta := &similarity.Metadata{}
	dims := []struct {
		column string
		dest   *[]string
	}{
		{"regiao", &meta.Regions},
		{"estado", &meta.States},
		{"municipio_nome", &meta.Municipalities},
		{"class_tam_imovel", &meta.SizeClasses},
		{"status_imovel", &meta.Statuses},
	}
	for _, dim := range dims {
		values, err := distinctValues(ctx, db, dim.column)
		if err != nil {
			if s.metrics != nil {
				s.metrics.IncQueryFailure(metrics.QueryKindMetadata)
			}
			return nil, err
		}
		*dim.dest = values
	}
	return meta, nil
}

func distinctValues(ctx context.Context, db *sql.DB, column string) ([]string, error) {
	query := fmt.Sprintf(
		"SELECT DISTINCT %[1]s FROM %[2]s WHERE %[1]s IS NOT NULL AND %[1]s != '' ORDER BY %[1]s",
		column, TableMatches)
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeQueryFailure, "query distinct "+column)
	}
	defer rows.Close()

	var values []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeQueryFailure, "scan distinct "+column)
		}
		values = append(values, v)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeQueryFailure, "iterate distinct "+column)
	}
	return values, nil
}
