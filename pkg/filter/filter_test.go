package filter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vulnscan/scanengine/pkg/types"
)

func mustParse(t *testing.T, input string, opts Options) []types.FilterKeyword {
	t.Helper()
	kws, err := Parse(input, opts)
	require.NoError(t, err)
	return kws
}

func TestParse_EmptyEqualsExplicitDefaults(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	empty := mustParse(t, "", Options{Now: now})
	explicit := mustParse(t, "first=1 rows=-2 sort=name", Options{Now: now})
	assert.Equal(t, explicit, empty)
}

func TestParse_DuplicateColumnDropsSecond(t *testing.T) {
	kws := mustParse(t, "sort=a sort=b", Options{})
	var sorts []types.FilterKeyword
	for _, k := range kws {
		if k.Column == "sort" {
			sorts = append(sorts, k)
		}
	}
	require.Len(t, sorts, 1)
	assert.Equal(t, "a", sorts[0].RawValue)
}

func TestParse_ClampScenario(t *testing.T) {
	kws := mustParse(t, `first=0 rows=0 min_qod=150 sort=a sort=b`, Options{})

	byColumn := map[string]types.FilterKeyword{}
	for _, k := range kws {
		if _, exists := byColumn[k.Column]; !exists {
			byColumn[k.Column] = k
		}
	}

	require.Contains(t, byColumn, "first")
	assert.Equal(t, int64(1), byColumn["first"].IntValue)

	require.Contains(t, byColumn, "rows")
	assert.Equal(t, int64(1), byColumn["rows"].IntValue)

	require.Contains(t, byColumn, "min_qod")
	assert.Equal(t, int64(100), byColumn["min_qod"].IntValue)

	require.Contains(t, byColumn, "sort")
	assert.Equal(t, "a", byColumn["sort"].RawValue)

	assert.Len(t, kws, 4)
}

func TestParse_RowsClampNegative(t *testing.T) {
	kws := mustParse(t, "rows=-5", Options{})
	assert.Equal(t, int64(-1), kws[0].IntValue)
}

func TestParse_SeveritySubstitution(t *testing.T) {
	kws := mustParse(t, `severity="Log"`, Options{})
	require.NotEmpty(t, kws)
	kw := kws[0]
	assert.Equal(t, "severity", kw.Column)
	assert.Equal(t, types.ValDouble, kw.Type)
	assert.Equal(t, SeverityLog, kw.DoubleValue)
	assert.Equal(t, types.RelColEqual, kw.Relation)
}

func TestParse_SuppressDefaultSort(t *testing.T) {
	kws := mustParse(t, "", Options{TableOrderIfSortNotSpecified: true})
	for _, k := range kws {
		assert.NotEqual(t, "sort", k.Column)
	}
}

func TestParse_RelativeTime(t *testing.T) {
	now := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)
	kws := mustParse(t, "created=-7d", Options{Now: now})
	require.NotEmpty(t, kws)
	assert.Equal(t, types.ValInteger, kws[0].Type)
	assert.Equal(t, now.AddDate(0, 0, -7).Unix(), kws[0].IntValue)
}

func TestParse_UnclosedQuoteFails(t *testing.T) {
	_, err := Parse(`name="unterminated`, Options{})
	assert.ErrorIs(t, err, ErrParseAssert)
}

func TestParse_BooleanColumnNormalizes(t *testing.T) {
	kws := mustParse(t, "notes=5", Options{})
	assert.Equal(t, int64(1), kws[0].IntValue)
}

func TestParse_BareKeywordGetsApprox(t *testing.T) {
	kws := mustParse(t, "myhost", Options{})
	require.NotEmpty(t, kws)
	assert.Equal(t, types.RelApprox, kws[0].Relation)
	assert.Equal(t, "", kws[0].Column)
}

func TestParse_ColumnRelations(t *testing.T) {
	cases := map[string]types.Relation{
		"name=foo": types.RelColEqual,
		"name~foo": types.RelColApprox,
		"name>5":   types.RelColAbove,
		"name<5":   types.RelColBelow,
		"name:foo": types.RelColRegexp,
	}
	for input, want := range cases {
		kws := mustParse(t, input, Options{})
		require.NotEmpty(t, kws, input)
		assert.Equal(t, want, kws[0].Relation, input)
		assert.Equal(t, "name", kws[0].Column, input)
	}
}
