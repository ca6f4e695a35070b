package registry

import (
	"context"
	"math"
	"sync"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/housepricer/core/model"
	"github.com/YuminosukeSato/housepricer/dataset"
	"github.com/YuminosukeSato/housepricer/features"
	"github.com/YuminosukeSato/housepricer/pkg/errors"
	"github.com/YuminosukeSato/housepricer/pkg/log"
)

// Trained is a fitted estimator together with the exact training inputs used
// to fit it.
type Trained struct {
	Kind     ModelKind
	Model    model.Regressor
	X        *features.FeatureMatrix
	Y        []float64
	FittedAt time.Time
	Duration time.Duration
}

// YVector returns the targets as a column vector.
func (t *Trained) YVector() *mat.VecDense {
	return mat.NewVecDense(len(t.Y), append([]float64(nil), t.Y...))
}

// contextFitter is implemented by estimators whose Fit can be cancelled.
type contextFitter interface {
	FitContext(ctx context.Context, X, y mat.Matrix) error
}

// Option configures a Registry.
type Option func(*Registry)

// WithCache keeps one fitted model per kind until Invalidate is called or the
// pipeline fingerprint changes.
func WithCache(enabled bool) Option {
	return func(r *Registry) { r.cache = enabled }
}

// WithParams overrides hyperparameters of one kind.
func WithParams(kind ModelKind, params Params) Option {
	return func(r *Registry) {
		if spec, ok := r.specs[kind]; ok {
			r.specs[kind] = spec.Merge(params)
		}
	}
}

type slot struct {
	mu          sync.Mutex
	trained     *Trained
	fingerprint string
}

// Registry trains estimators on the encoded training set. Requests for the
// same kind are serialised; different kinds train concurrently.
type Registry struct {
	pipeline *features.Pipeline
	train    *dataset.Dataset
	specs    map[ModelKind]Spec
	build    map[ModelKind]model.Factory
	cache    bool
	slots    map[ModelKind]*slot

	now func() time.Time
}

// New creates a registry over a training dataset. The pipeline is fitted on
// train on first use if it is not fitted yet.
func New(pipeline *features.Pipeline, train *dataset.Dataset, opts ...Option) (*Registry, error) {
	if pipeline == nil {
		return nil, errors.NewValidationError("pipeline", "must not be nil", nil)
	}
	if train == nil || !train.HasTarget() {
		return nil, errors.NewValidationError("train", "training dataset with SalePrice required", nil)
	}
	r := &Registry{
		pipeline: pipeline,
		train:    train,
		specs:    DefaultSpecs(),
		build:    make(map[ModelKind]model.Factory, len(Kinds())),
		slots:    make(map[ModelKind]*slot, len(Kinds())),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	for _, k := range Kinds() {
		spec := r.specs[k]
		if err := spec.Validate(); err != nil {
			return nil, err
		}
		r.build[k] = func() model.Regressor {
			m, _ := spec.New() // validated above
			return m
		}
		r.slots[k] = &slot{}
	}
	return r, nil
}

// Spec returns the estimator configuration of kind.
func (r *Registry) Spec(kind ModelKind) (Spec, error) {
	spec, ok := r.specs[kind]
	if !ok {
		return Spec{}, errors.NewUnknownModelKindError(kind.String())
	}
	return spec, nil
}

// Factory returns a constructor of fresh unfitted estimators for kind.
func (r *Registry) Factory(kind ModelKind) (model.Factory, error) {
	f, ok := r.build[kind]
	if !ok {
		return nil, errors.NewUnknownModelKindError(kind.String())
	}
	return f, nil
}

// Pipeline returns the feature pipeline the registry encodes with.
func (r *Registry) Pipeline() *features.Pipeline { return r.pipeline }

// Caching reports whether fitted models are kept between calls.
func (r *Registry) Caching() bool { return r.cache }

// Invalidate drops every cached model.
func (r *Registry) Invalidate() {
	for _, k := range Kinds() {
		s := r.slots[k]
		s.mu.Lock()
		s.trained = nil
		s.fingerprint = ""
		s.mu.Unlock()
	}
}

// GetOrTrain fits the estimator of kind on the full training set and returns
// it with the inputs used. Without a cache every call refits.
func (r *Registry) GetOrTrain(ctx context.Context, kind ModelKind) (*Trained, error) {
	s, ok := r.slots[kind]
	if !ok {
		return nil, errors.NewUnknownModelKindError(kind.String())
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	X, err := r.encodeTrain()
	if err != nil {
		return nil, err
	}
	fingerprint := r.pipeline.Fingerprint()

	logger := log.GetLoggerWithName("registry").With(log.ModelKindKey, kind.String())
	if r.cache && s.trained != nil {
		if s.fingerprint == fingerprint {
			logger.Debug("Model served from cache", log.CacheHitKey, true)
			return s.trained, nil
		}
		logger.Info("Pipeline changed, dropping cached model")
		s.trained = nil
	}

	trained, err := r.fit(ctx, kind, X)
	if err != nil {
		logger.Error("Training failed", err)
		return nil, err
	}
	logger.Info("Model trained",
		log.OperationKey, log.OperationFit,
		log.SamplesKey, len(trained.Y),
		log.FeaturesKey, len(X.Names),
		log.DurationMsKey, trained.Duration.Milliseconds(),
		log.CacheHitKey, false,
	)

	if r.cache {
		s.trained = trained
		s.fingerprint = fingerprint
	}
	return trained, nil
}

func (r *Registry) encodeTrain() (*features.FeatureMatrix, error) {
	if !r.pipeline.IsFitted() {
		return r.pipeline.FitEncode(r.train)
	}
	return r.pipeline.Encode(r.train)
}

func (r *Registry) fit(ctx context.Context, kind ModelKind, X *features.FeatureMatrix) (*Trained, error) {
	est := r.build[kind]()
	y := append([]float64(nil), r.train.Target...)
	yVec := mat.NewVecDense(len(y), y)

	start := r.now()
	err := errors.SafeExecute(kind.EstimatorName()+".Fit", func() error {
		if cf, ok := est.(contextFitter); ok {
			return cf.FitContext(ctx, X.X, yVec)
		}
		return est.Fit(X.X, yVec)
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, errors.NewTrainingError(kind.String(), err)
	}
	if err := checkPredictions(kind, est, X); err != nil {
		return nil, err
	}

	return &Trained{
		Kind:     kind,
		Model:    est,
		X:        X,
		Y:        y,
		FittedAt: r.now(),
		Duration: r.now().Sub(start),
	}, nil
}

// checkPredictions rejects a fit whose in-sample predictions are not finite.
func checkPredictions(kind ModelKind, est model.Regressor, X *features.FeatureMatrix) error {
	pred, err := est.Predict(X.X)
	if err != nil {
		return errors.NewTrainingError(kind.String(), err)
	}
	rows, _ := pred.Dims()
	for i := 0; i < rows; i++ {
		if v := pred.At(i, 0); math.IsNaN(v) || math.IsInf(v, 0) {
			return errors.NewTrainingError(kind.String(),
				errors.NewNumericalInstabilityError(kind.EstimatorName()+".Predict", []float64{v}, i))
		}
	}
	return nil
}
