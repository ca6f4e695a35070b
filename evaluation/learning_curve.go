package evaluation

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/housepricer/core/model"
	"github.com/YuminosukeSato/housepricer/core/parallel"
	"github.com/YuminosukeSato/housepricer/metrics"
	"github.com/YuminosukeSato/housepricer/pkg/errors"
	"github.com/YuminosukeSato/housepricer/pkg/log"
)

// DefaultTrainSizes are the training fractions of a learning curve.
var DefaultTrainSizes = []float64{0.1, 0.325, 0.55, 0.775, 1.0}

// DefaultFolds is the number of cross-validation folds.
const DefaultFolds = 5

// Fold is one train/validation split of row indices.
type Fold struct {
	Train      []int
	Validation []int
}

// KFold splits rows into consecutive folds. The first n%k folds get one
// extra validation row.
type KFold struct {
	NSplits int
	Shuffle bool
	Seed    uint64
}

// Split returns NSplits folds over n rows.
func (kf KFold) Split(n int) ([]Fold, error) {
	if kf.NSplits < 2 {
		return nil, errors.NewValidationError("evaluation.folds", "must be at least 2", kf.NSplits)
	}
	if n < kf.NSplits {
		return nil, errors.NewValidationError("evaluation.folds", "more folds than samples", kf.NSplits)
	}

	indices := make([]int, n)
	for i := range indices {
		indices[i] = i
	}
	if kf.Shuffle {
		r := rand.New(rand.NewPCG(kf.Seed, kf.Seed))
		r.Shuffle(n, func(i, j int) { indices[i], indices[j] = indices[j], indices[i] })
	}

	folds := make([]Fold, kf.NSplits)
	size, remainder := n/kf.NSplits, n%kf.NSplits
	start := 0
	for i := range folds {
		testSize := size
		if i < remainder {
			testSize++
		}
		end := start + testSize
		train := make([]int, 0, n-testSize)
		train = append(train, indices[:start]...)
		train = append(train, indices[end:]...)
		folds[i] = Fold{
			Train:      train,
			Validation: append([]int(nil), indices[start:end]...),
		}
		start = end
	}
	return folds, nil
}

// CurvePoint is the cross-validated score at one training size. Scores are
// R²; Std is the population standard deviation over folds.
type CurvePoint struct {
	TrainSize        int       `json:"train_size"`
	TrainMean        float64   `json:"train_mean"`
	TrainStd         float64   `json:"train_std"`
	ValidationMean   float64   `json:"validation_mean"`
	ValidationStd    float64   `json:"validation_std"`
	TrainScores      []float64 `json:"train_scores"`
	ValidationScores []float64 `json:"validation_scores"`
}

// CurveOption configures LearningCurve.
type CurveOption func(*curveConfig)

type curveConfig struct {
	folds      int
	trainSizes []float64
	workers    int
	shuffle    bool
	seed       uint64
}

// WithFolds sets the number of cross-validation folds.
func WithFolds(k int) CurveOption {
	return func(c *curveConfig) { c.folds = k }
}

// WithTrainSizes sets the training fractions, each in (0, 1].
func WithTrainSizes(fractions ...float64) CurveOption {
	return func(c *curveConfig) { c.trainSizes = append([]float64(nil), fractions...) }
}

// WithWorkers bounds the number of concurrent fits. 0 uses every CPU.
func WithWorkers(n int) CurveOption {
	return func(c *curveConfig) { c.workers = n }
}

// WithShuffle shuffles rows with seed before splitting. Rows keep their order
// by default.
func WithShuffle(seed uint64) CurveOption {
	return func(c *curveConfig) {
		c.shuffle = true
		c.seed = seed
	}
}

// LearningCurve fits a fresh estimator from factory for every fold and
// training size and scores it on the training subset and the held-out fold.
// Cancelling ctx stops scheduling new fits and returns ctx.Err(); no partial
// curve is returned.
func LearningCurve(ctx context.Context, factory model.Factory, X mat.Matrix, y []float64, opts ...CurveOption) ([]CurvePoint, error) {
	cfg := curveConfig{folds: DefaultFolds, trainSizes: DefaultTrainSizes}
	for _, opt := range opts {
		opt(&cfg)
	}
	if factory == nil || X == nil {
		return nil, errors.NewValueError("LearningCurve", "nil factory or features")
	}
	n, _ := X.Dims()
	if n != len(y) {
		return nil, errors.NewDimensionError("LearningCurve", n, len(y), 0)
	}

	folds, err := KFold{NSplits: cfg.folds, Shuffle: cfg.shuffle, Seed: cfg.seed}.Split(n)
	if err != nil {
		return nil, err
	}
	// the first fold holds the most validation rows, so the fewest training rows
	sizes, err := absoluteSizes(cfg.trainSizes, len(folds[0].Train))
	if err != nil {
		return nil, err
	}

	logger := log.GetLoggerWithName("evaluation")
	start := time.Now()

	dense := mat.DenseCopyOf(X)
	train := make([][]float64, len(sizes)) // [size][fold]
	valid := make([][]float64, len(sizes))
	for s := range sizes {
		train[s] = make([]float64, len(folds))
		valid[s] = make([]float64, len(folds))
	}

	jobs := len(sizes) * len(folds)
	err = parallel.ForEach(ctx, jobs, cfg.workers, func(ctx context.Context, job int) error {
		s, f := job/len(folds), job%len(folds)
		fold := folds[f]
		rows := fold.Train[:sizes[s]]

		trainScore, validScore, err := scoreFold(ctx, factory, dense, y, rows, fold.Validation)
		if err != nil {
			return err
		}
		train[s][f], valid[s][f] = trainScore, validScore
		logger.Debug("Learning curve fold scored",
			log.FoldKey, f,
			log.TrainSizeKey, sizes[s],
			log.R2ScoreKey, validScore,
		)
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}

	points := make([]CurvePoint, len(sizes))
	for s, size := range sizes {
		tm, ts := stat.PopMeanStdDev(train[s], nil)
		vm, vs := stat.PopMeanStdDev(valid[s], nil)
		points[s] = CurvePoint{
			TrainSize:        size,
			TrainMean:        tm,
			TrainStd:         ts,
			ValidationMean:   vm,
			ValidationStd:    vs,
			TrainScores:      train[s],
			ValidationScores: valid[s],
		}
	}
	logger.Info("Learning curve computed",
		log.OperationKey, log.OperationLearningCurve,
		log.SamplesKey, n,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return points, nil
}

// absoluteSizes converts fractions of maxTrain to distinct row counts.
func absoluteSizes(fractions []float64, maxTrain int) ([]int, error) {
	if len(fractions) == 0 {
		return nil, errors.NewValidationError("evaluation.train_sizes", "must not be empty", fractions)
	}
	var sizes []int
	seen := make(map[int]bool, len(fractions))
	for _, f := range fractions {
		if !(f > 0 && f <= 1) {
			return nil, errors.NewValidationError("evaluation.train_sizes", "fractions must be in (0, 1]", f)
		}
		size := int(math.Floor(f * float64(maxTrain)))
		if size < 1 {
			size = 1
		}
		if !seen[size] {
			seen[size] = true
			sizes = append(sizes, size)
		}
	}
	return sizes, nil
}

type contextFitter interface {
	FitContext(ctx context.Context, X, y mat.Matrix) error
}

func scoreFold(ctx context.Context, factory model.Factory, X *mat.Dense, y []float64, trainRows, validRows []int) (float64, float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, 0, err
	}
	xTrain, yTrain := subset(X, y, trainRows)
	xValid, yValid := subset(X, y, validRows)

	est := factory()
	var err error
	if cf, ok := est.(contextFitter); ok {
		err = cf.FitContext(ctx, xTrain, yTrain)
	} else {
		err = est.Fit(xTrain, yTrain)
	}
	if err != nil {
		return 0, 0, err
	}

	trainScore, err := r2(est, xTrain, yTrain)
	if err != nil {
		return 0, 0, err
	}
	validScore, err := r2(est, xValid, yValid)
	if err != nil {
		return 0, 0, err
	}
	return trainScore, validScore, nil
}

func r2(m model.Predictor, X mat.Matrix, y *mat.VecDense) (float64, error) {
	pred, err := m.Predict(X)
	if err != nil {
		return 0, err
	}
	p, err := metrics.ColumnVector(pred)
	if err != nil {
		return 0, err
	}
	return metrics.R2Score(y, p)
}

func subset(X *mat.Dense, y []float64, rows []int) (*mat.Dense, *mat.VecDense) {
	_, cols := X.Dims()
	xs := mat.NewDense(len(rows), cols, nil)
	ys := mat.NewVecDense(len(rows), nil)
	for i, r := range rows {
		xs.SetRow(i, X.RawRowView(r))
		ys.SetVec(i, y[r])
	}
	return xs, ys
}
