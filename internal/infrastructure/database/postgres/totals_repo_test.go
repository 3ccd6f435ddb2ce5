package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zetta-ds/carsigef/internal/infrastructure/monitoring/logging"
	apperrors "github.com/zetta-ds/carsigef/pkg/errors"
)

type stubRows struct {
	data [][3]any
	idx  int
	err  error
}

func (r *stubRows) Close()                                       {}
func (r *stubRows) Err() error                                   { return r.err }
func (r *stubRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *stubRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *stubRows) Values() ([]any, error)                       { return nil, nil }
func (r *stubRows) RawValues() [][]byte                          { return nil }
func (r *stubRows) Conn() *pgx.Conn                              { return nil }

func (r *stubRows) Next() bool {
	if r.idx < len(r.data) {
		r.idx++
		return true
	}
	return false
}

func (r *stubRows) Scan(dest ...any) error {
	row := r.data[r.idx-1]
	*dest[0].(*string) = row[0].(string)
	*dest[1].(*int) = row[1].(int)
	*dest[2].(*int64) = row[2].(int64)
	return nil
}

type stubQuerier struct {
	rows   pgx.Rows
	err    error
	gotSQL string
}

func (q *stubQuerier) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	q.gotSQL = sql
	if q.err != nil {
		return nil, q.err
	}
	return q.rows, nil
}

func TestFetchTotals(t *testing.T) {
	q := &stubQuerier{rows: &stubRows{data: [][3]any{
		{"3550308", 2014, int64(1200)},
		{"3550308", 2015, int64(1450)},
		{"2927408", 2014, int64(340)},
	}}}
	repo := NewTotalsRepo(q, logging.NewNopLogger())

	totals, err := repo.FetchTotals(context.Background())
	require.NoError(t, err)
	require.Len(t, totals, 3)
	assert.Equal(t, MunicipalityYearTotal{
		MunicipalityID: "3550308", Year: 2014, TotalCARs: 1200,
	}, totals[0])

	// The aggregation counts distinct properties per municipality and year.
	assert.Contains(t, q.gotSQL, "COUNT(DISTINCT cod_imovel)")
	assert.Contains(t, q.gotSQL, "GROUP BY idt_municipio")
}

func TestFetchTotalsQueryError(t *testing.T) {
	q := &stubQuerier{err: errors.New("connection refused")}
	repo := NewTotalsRepo(q, logging.NewNopLogger())

	_, err := repo.FetchTotals(context.Background())
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeRegistryError))
}

func TestFetchTotalsIterationError(t *testing.T) {
	q := &stubQuerier{rows: &stubRows{err: errors.New("broken pipe")}}
	repo := NewTotalsRepo(q, logging.NewNopLogger())

	_, err := repo.FetchTotals(context.Background())
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeRegistryError))
}
