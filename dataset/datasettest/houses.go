// Package datasettest builds synthetic House Prices style datasets for tests.
package datasettest

import (
	"encoding/csv"
	"math/rand/v2"
	"os"
	"strconv"
	"testing"

	"github.com/YuminosukeSato/housepricer/dataset"
)

// Columns is the schema of the generated datasets.
var Columns = []string{"MSSubClass", "LotArea", "OverallQual", "Neighborhood", "GrLivArea", "YearBuilt", "MoSold"}

var neighborhoods = []string{"CollgCr", "OldTown", "NAmes", "Edwards"}

// Houses returns n rows with IDs starting at firstID. The target, when
// requested, is a noisy linear function of area, quality and age.
func Houses(tb testing.TB, n, firstID int, withTarget bool) *dataset.Dataset {
	tb.Helper()
	rng := rand.New(rand.NewPCG(uint64(firstID), 7))

	ids := make([]int, n)
	values := make([][]string, n)
	var target []float64
	if withTarget {
		target = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		ids[i] = firstID + i
		lot := 4000 + rng.IntN(12000)
		qual := 1 + rng.IntN(10)
		living := 600 + rng.IntN(2400)
		year := 1900 + rng.IntN(110)
		hood := neighborhoods[rng.IntN(len(neighborhoods))]

		lotCell := strconv.Itoa(lot)
		if i%13 == 5 {
			lotCell = ""
		}
		values[i] = []string{
			[]string{"20", "60", "120"}[i%3],
			lotCell,
			strconv.Itoa(qual),
			hood,
			strconv.Itoa(living),
			strconv.Itoa(year),
			strconv.Itoa(1 + i%12),
		}
		if withTarget {
			price := 30000 + 2*float64(lot) + 9000*float64(qual) + 55*float64(living) + 300*float64(year-1900)
			if hood == "OldTown" {
				price -= 15000
			}
			target[i] = price + rng.NormFloat64()*2000
		}
	}

	ds, err := dataset.New(ids, Columns, values, target)
	if err != nil {
		tb.Fatalf("datasettest: %v", err)
	}
	return ds
}

// TrainTest returns a training set of nTrain rows and a test set of nTest rows
// whose IDs follow the training IDs.
func TrainTest(tb testing.TB, nTrain, nTest int) (*dataset.Dataset, *dataset.Dataset) {
	tb.Helper()
	return Houses(tb, nTrain, 1, true), Houses(tb, nTest, nTrain+1, false)
}

// WriteCSV writes ds to path in the Kaggle layout: Id first, SalePrice last
// when present and NA for missing cells.
func WriteCSV(tb testing.TB, path string, ds *dataset.Dataset) {
	tb.Helper()
	f, err := os.Create(path)
	if err != nil {
		tb.Fatalf("datasettest: %v", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := append([]string{"Id"}, ds.Columns...)
	if ds.HasTarget() {
		header = append(header, "SalePrice")
	}
	records := [][]string{header}
	for i, id := range ds.IDs {
		rec := make([]string, 0, len(header))
		rec = append(rec, strconv.Itoa(id))
		for _, cell := range ds.Values[i] {
			if cell == "" {
				cell = "NA"
			}
			rec = append(rec, cell)
		}
		if ds.HasTarget() {
			rec = append(rec, strconv.FormatFloat(ds.Target[i], 'f', -1, 64))
		}
		records = append(records, rec)
	}
	if err := w.WriteAll(records); err != nil {
		tb.Fatalf("datasettest: %v", err)
	}
}
