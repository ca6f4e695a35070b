package features

import (
	"fmt"
	"math/rand/v2"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/housepricer/dataset"
	"github.com/YuminosukeSato/housepricer/pkg/errors"
)

var columns = []string{"MSSubClass", "LotArea", "OverallQual", "Street", "MoSold"}

func houses(t *testing.T, n, firstID int, withTarget bool) *dataset.Dataset {
	t.Helper()
	rng := rand.New(rand.NewPCG(uint64(firstID), 3))
	ids := make([]int, n)
	values := make([][]string, n)
	var target []float64
	if withTarget {
		target = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		ids[i] = firstID + i
		area := 5000 + rng.IntN(10000)
		qual := 1 + rng.IntN(10)
		street := "Pave"
		if i%7 == 0 {
			street = "Grvl"
		}
		lot := strconv.Itoa(area)
		if i%11 == 0 {
			lot = ""
		}
		values[i] = []string{
			[]string{"20", "60", "120"}[i%3],
			lot,
			strconv.Itoa(qual),
			street,
			strconv.Itoa(1 + i%12),
		}
		if withTarget {
			target[i] = 20000 + 10*float64(area) + 8000*float64(qual)
		}
	}
	ds, err := dataset.New(ids, columns, values, target)
	require.NoError(t, err)
	return ds
}

func TestPipelineWithoutPCA(t *testing.T) {
	train := houses(t, 50, 1, true)
	p := New(WithComponents(0))

	fm, err := p.FitEncode(train)
	require.NoError(t, err)

	summary, err := p.Describe()
	require.NoError(t, err)
	assert.Equal(t, []string{"LotArea", "OverallQual"}, summary.NumericColumns)
	assert.Equal(t, []string{"MSSubClass", "Street", "MoSold"}, summary.CategoricalColumns)

	rows, cols := fm.Dims()
	assert.Equal(t, 50, rows)
	// 2 numeric + 3 subclasses + 2 streets + 12 months
	assert.Equal(t, 19, cols)
	assert.Equal(t, train.IDs, fm.IDs)
	assert.Equal(t, "LotArea", fm.Names[0])
	assert.Contains(t, fm.Names, "MSSubClass_120")
	assert.Contains(t, fm.Names, "Street_Grvl")

	// standardised columns are centred
	var sum float64
	for i := 0; i < rows; i++ {
		sum += fm.X.At(i, 1)
	}
	assert.InDelta(t, 0, sum, 1e-9)
}

func TestPipelineWithPCA(t *testing.T) {
	train := houses(t, 80, 1, true)
	test := houses(t, 20, 1461, false)

	p := New(WithComponents(5))
	fm, err := p.FitEncode(train)
	require.NoError(t, err)
	assert.Equal(t, []string{"PC1", "PC2", "PC3", "PC4", "PC5"}, fm.Names)

	tm, err := p.Encode(test)
	require.NoError(t, err)
	rows, cols := tm.Dims()
	assert.Equal(t, 20, rows)
	assert.Equal(t, 5, cols, "test encoding has the training width")
	assert.Equal(t, test.IDs, tm.IDs)

	summary, err := p.Describe()
	require.NoError(t, err)
	assert.Len(t, summary.ExplainedVarianceRatio, 5)
}

func TestPipelineEncodeIsDeterministic(t *testing.T) {
	train := houses(t, 60, 1, true)
	p := New(WithComponents(4))
	require.NoError(t, p.Fit(train))
	fp := p.Fingerprint()
	require.NotEmpty(t, fp)

	a, err := p.Encode(train)
	require.NoError(t, err)
	b, err := p.Encode(train)
	require.NoError(t, err)
	assert.True(t, mat.Equal(a.X, b.X), "bit-identical encodings")

	// refitting on identical data reproduces the fingerprint
	q := New(WithComponents(4))
	require.NoError(t, q.Fit(train))
	assert.Equal(t, fp, q.Fingerprint())

	// different data changes it
	require.NoError(t, q.Fit(houses(t, 61, 1, true)))
	assert.NotEqual(t, fp, q.Fingerprint())
}

func TestPipelineEncodingErrors(t *testing.T) {
	train := houses(t, 30, 1, true)
	p := New(WithComponents(0))

	_, err := p.Encode(train)
	var nf *errors.NotFittedError
	require.True(t, errors.As(err, &nf))

	require.NoError(t, p.Fit(train))

	unseen, err := dataset.New([]int{9000}, columns, [][]string{{"20", "8000", "5", "Dirt", "3"}}, nil)
	require.NoError(t, err)
	_, err = p.Encode(unseen)
	var ee *errors.EncodingError
	require.True(t, errors.As(err, &ee))
	assert.True(t, errors.Is(err, errors.ErrEncoding))
	assert.Equal(t, "Street", ee.Column)
	assert.Equal(t, "Dirt", ee.Value)

	missing, err := dataset.New([]int{9001}, columns[:4], [][]string{{"20", "8000", "5", "Pave"}}, nil)
	require.NoError(t, err)
	_, err = p.Encode(missing)
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, "MoSold", ee.Column)

	garbage, err := dataset.New([]int{9002}, columns, [][]string{{"20", "large", "5", "Pave", "3"}}, nil)
	require.NoError(t, err)
	_, err = p.Encode(garbage)
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, "LotArea", ee.Column)
}

func TestPipelineUnknownIgnore(t *testing.T) {
	var warnings []error
	errors.SetWarningHandler(func(w error) { warnings = append(warnings, w) })
	defer errors.SetWarningHandler(nil)

	train := houses(t, 30, 1, true)
	p := New(WithComponents(0), WithUnknownPolicy(UnknownIgnore))
	require.NoError(t, p.Fit(train))

	unseen, err := dataset.New([]int{9000}, columns, [][]string{{"20", "8000", "5", "Dirt", "3"}}, nil)
	require.NoError(t, err)
	fm, err := p.Encode(unseen)
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0].Error(), "Dirt")

	for j, name := range fm.Names {
		if name == "Street_Grvl" || name == "Street_Pave" {
			// all-zero indicator, standardised: equals -mean/scale
			val := fm.X.At(0, j)
			assert.Less(t, val, 0.0, fmt.Sprintf("%s should be below its training mean", name))
		}
	}
}

func TestParseUnknownPolicy(t *testing.T) {
	policy, err := ParseUnknownPolicy("ignore")
	require.NoError(t, err)
	assert.Equal(t, UnknownIgnore, policy)

	_, err = ParseUnknownPolicy("bucket")
	var ve *errors.ValidationError
	assert.True(t, errors.As(err, &ve))
}
