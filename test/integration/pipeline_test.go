// Package integration exercises the full pipeline: CSV on disk, embedded
// engine load with enrichment, filtered aggregation and cache behavior, all
// through the public API of each layer.
package integration

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appanalytics "github.com/zetta-ds/carsigef/internal/application/analytics"
	"github.com/zetta-ds/carsigef/internal/config"
	"github.com/zetta-ds/carsigef/internal/domain/similarity"
	"github.com/zetta-ds/carsigef/internal/infrastructure/dataset"
	"github.com/zetta-ds/carsigef/internal/infrastructure/monitoring/logging"
)

const header = "cod_imovel,idt_municipio,municipio_nome,estado,regiao,area_sicar_ha,area_sigef_agregado_ha,area_intersecao_ha,indice_jaccard,igualdade_cpf,class_tam_imovel,status_imovel,data_cadastro_imovel"

// buildFixture generates a deterministic spread of rows across three states.
func buildFixture(t *testing.T, n int) string {
	t.Helper()
	states := []struct{ uf, region, muni, id string }{
		{"SP", "sudeste", "São Paulo", "3550308"},
		{"BA", "nordeste", "Salvador", "2927408"},
		{"AM", "norte", "Manaus", "1302603"},
	}
	var lines []string
	for i := 0; i < n; i++ {
		st := states[i%len(states)]
		jaccard := float64(i) / float64(n-1)
		flag := "false"
		if i%2 == 0 {
			flag = "true"
		}
		lines = append(lines, fmt.Sprintf(
			"CAR-%03d,%s,%s,%s,%s,100,95,90,%.4f,%s,Pequeno,AT,%d-06-15",
			i, st.id, st.muni, st.uf, st.region, jaccard, flag, 2014+i%5))
	}
	path := filepath.Join(t.TempDir(), "matches.csv")
	content := header + "\n" + strings.Join(lines, "\n") + "\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestEndToEndPipeline(t *testing.T) {
	path := buildFixture(t, 99)
	log := logging.NewNopLogger()
	store := dataset.NewStore(config.DatasetConfig{Path: path}, log, nil)
	defer store.Close()
	service := appanalytics.NewService(store, log, nil)
	ctx := context.Background()

	// Metadata triggers the lazy load.
	meta, err := service.Metadata(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"AM", "BA", "SP"}, meta.States)
	assert.True(t, store.Loaded())
	assert.EqualValues(t, 99, store.RowCount())

	// Unfiltered aggregates over a uniform 0..1 spread: mean 50, median 50.
	aggs, err := service.FetchAggregates(ctx, similarity.FilterCriteria{})
	require.NoError(t, err)
	assert.EqualValues(t, 99, aggs.Count)
	assert.InDelta(t, 50.0, aggs.MeanSimilarity, 0.1)
	assert.InDelta(t, 50.0, aggs.MedianSimilarity, 0.1)
	assert.EqualValues(t, 3, aggs.DistinctStates)

	// Filter to one state; every third row belongs to SP.
	c := similarity.NewCriteria(similarity.Selection{States: []string{"SP"}}, meta)
	res, err := service.Primary(ctx, c)
	require.NoError(t, err)
	assert.Len(t, res.Records, 33)
	assert.EqualValues(t, 1, res.Aggregates.DistinctStates)

	// Band histogram covers the full range with no row unassigned.
	dist, err := service.BandDistribution(ctx, similarity.FilterCriteria{})
	require.NoError(t, err)
	var total int64
	for _, b := range dist {
		total += b.Count
	}
	assert.EqualValues(t, 99, total)

	// Ownership split of an alternating flag.
	breakdown, err := service.OwnershipBreakdown(ctx, similarity.FilterCriteria{})
	require.NoError(t, err)
	assert.EqualValues(t, 50, breakdown[0].Count)
	assert.EqualValues(t, 49, breakdown[1].Count)

	// Years 2014..2018, ascending.
	series, err := service.YearlyEvolution(ctx, similarity.FilterCriteria{})
	require.NoError(t, err)
	require.Len(t, series, 5)
	assert.Equal(t, 2014, series[0].Year)
	assert.Equal(t, 2018, series[4].Year)

	// Reset, then the pipeline rebuilds transparently.
	gen := store.Generation()
	service.Reset()
	assert.False(t, store.Loaded())

	res2, err := service.Primary(ctx, c)
	require.NoError(t, err)
	assert.Len(t, res2.Records, 33)
	assert.NotEqual(t, gen, store.Generation())
}
