// Package pipeline wires the dataset, feature pipeline, model registry,
// evaluation engine and submission mapper into one Service used by the CLI
// and the JSON API.
package pipeline

import (
	"context"
	"time"

	"github.com/YuminosukeSato/housepricer/config"
	"github.com/YuminosukeSato/housepricer/core/parallel"
	"github.com/YuminosukeSato/housepricer/dataset"
	"github.com/YuminosukeSato/housepricer/eda"
	"github.com/YuminosukeSato/housepricer/evaluation"
	"github.com/YuminosukeSato/housepricer/features"
	"github.com/YuminosukeSato/housepricer/metrics"
	"github.com/YuminosukeSato/housepricer/pkg/errors"
	"github.com/YuminosukeSato/housepricer/pkg/log"
	"github.com/YuminosukeSato/housepricer/registry"
	"github.com/YuminosukeSato/housepricer/submission"
)

// Option configures a Service.
type Option func(*Service)

// WithPipelineOptions configures the feature pipeline.
func WithPipelineOptions(opts ...features.Option) Option {
	return func(s *Service) { s.pipelineOpts = append(s.pipelineOpts, opts...) }
}

// WithRegistryOptions configures the model registry.
func WithRegistryOptions(opts ...registry.Option) Option {
	return func(s *Service) { s.registryOpts = append(s.registryOpts, opts...) }
}

// WithCurveOptions configures learning curves.
func WithCurveOptions(opts ...evaluation.CurveOption) Option {
	return func(s *Service) { s.curveOpts = append(s.curveOpts, opts...) }
}

// WithHistogramBins sets the SalePrice histogram bin count.
func WithHistogramBins(n int) Option {
	return func(s *Service) { s.bins = n }
}

// Service owns one training set, one test set and everything fitted on them.
// It is safe for concurrent use.
type Service struct {
	train *dataset.Dataset
	test  *dataset.Dataset

	features *features.Pipeline
	registry *registry.Registry
	mapper   *submission.Mapper
	store    *submission.Store

	pipelineOpts []features.Option
	registryOpts []registry.Option
	curveOpts    []evaluation.CurveOption
	bins         int
}

// New fits the feature pipeline on train. test may be nil, in which case
// submissions are unavailable.
func New(train, test *dataset.Dataset, opts ...Option) (*Service, error) {
	if train == nil || !train.HasTarget() {
		return nil, errors.NewValidationError("train", "training dataset with SalePrice required", nil)
	}
	s := &Service{train: train, test: test, store: submission.NewStore(), bins: eda.DefaultBins}
	for _, opt := range opts {
		opt(s)
	}
	if test != nil {
		if err := dataset.CheckCompatible(train, test); err != nil {
			return nil, err
		}
	}

	s.features = features.New(s.pipelineOpts...)
	if err := s.features.Fit(train); err != nil {
		return nil, err
	}
	reg, err := registry.New(s.features, train, s.registryOpts...)
	if err != nil {
		return nil, err
	}
	s.registry = reg
	if test != nil {
		if s.mapper, err = submission.NewMapper(reg, test); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// FromConfig loads both tables named by cfg and builds a Service.
func FromConfig(cfg *config.Config) (*Service, error) {
	opts := cfg.DatasetOptions()
	train, err := dataset.LoadFile(cfg.Data.Train, append(opts, dataset.WithRequireTarget(true))...)
	if err != nil {
		return nil, err
	}
	var test *dataset.Dataset
	if cfg.Data.Test != "" {
		if test, err = dataset.LoadFile(cfg.Data.Test, append(opts, dataset.WithRequireTarget(false))...); err != nil {
			return nil, err
		}
	}
	return New(train, test,
		WithPipelineOptions(cfg.PipelineOptions()...),
		WithRegistryOptions(cfg.RegistryOptions()...),
		WithCurveOptions(cfg.CurveOptions()...),
		WithHistogramBins(cfg.Evaluation.HistogramBins),
	)
}

// Go runs fn on a worker goroutine. Abandoning the returned future discards
// its result.
func Go[T any](ctx context.Context, fn func(ctx context.Context) (T, error)) *parallel.Future[T] {
	return parallel.Go(ctx, fn)
}

// Registry returns the model registry.
func (s *Service) Registry() *registry.Registry { return s.registry }

// Store returns the per-session submission store.
func (s *Service) Store() *submission.Store { return s.store }

// Test returns the test dataset, nil when none was loaded.
func (s *Service) Test() *dataset.Dataset { return s.test }

// Report is the metrics view of one model kind.
type Report struct {
	Kind       registry.ModelKind `json:"kind"`
	Estimator  string             `json:"estimator"`
	Label      string             `json:"label"`
	Metrics    metrics.Report     `json:"metrics"`
	Samples    int                `json:"samples"`
	Features   int                `json:"features"`
	FittedAt   time.Time          `json:"fitted_at"`
	DurationMs int64              `json:"duration_ms"`
}

// Train fits kind and reports its in-sample metrics.
func (s *Service) Train(ctx context.Context, kind registry.ModelKind) (*Report, error) {
	trained, err := s.registry.GetOrTrain(ctx, kind)
	if err != nil {
		return nil, err
	}
	m, err := evaluation.Metrics(trained.Model, trained.X.X, trained.Y)
	if err != nil {
		return nil, err
	}
	rows, cols := trained.X.Dims()
	log.GetLoggerWithName("pipeline").Info("Model evaluated",
		log.ModelKindKey, kind.String(),
		log.MAEKey, m.MAE,
		log.MAPEKey, m.MAPE,
		log.R2ScoreKey, m.R2,
	)
	return &Report{
		Kind:       kind,
		Estimator:  kind.EstimatorName(),
		Label:      kind.Label(),
		Metrics:    m,
		Samples:    rows,
		Features:   cols,
		FittedAt:   trained.FittedAt,
		DurationMs: trained.Duration.Milliseconds(),
	}, nil
}

// ResidualReport is the residual series of one kind with its summary table.
type ResidualReport struct {
	Kind      registry.ModelKind         `json:"kind"`
	Residuals []evaluation.Residual      `json:"residuals"`
	Summary   evaluation.ResidualSummary `json:"summary"`
}

// Residuals fits kind and returns its in-sample residuals.
func (s *Service) Residuals(ctx context.Context, kind registry.ModelKind) (*ResidualReport, error) {
	trained, err := s.registry.GetOrTrain(ctx, kind)
	if err != nil {
		return nil, err
	}
	res, err := evaluation.Residuals(trained.Model, trained.X, trained.Y)
	if err != nil {
		return nil, err
	}
	return &ResidualReport{Kind: kind, Residuals: res, Summary: evaluation.SummarizeResiduals(res)}, nil
}

// Scatter fits kind and returns predicted against actual prices.
func (s *Service) Scatter(ctx context.Context, kind registry.ModelKind) ([]evaluation.Point, error) {
	trained, err := s.registry.GetOrTrain(ctx, kind)
	if err != nil {
		return nil, err
	}
	return evaluation.PredictedVsActual(trained.Model, trained.X, trained.Y)
}

// Importance fits kind and ranks its features.
func (s *Service) Importance(ctx context.Context, kind registry.ModelKind) (*evaluation.Importance, error) {
	trained, err := s.registry.GetOrTrain(ctx, kind)
	if err != nil {
		return nil, err
	}
	return evaluation.FeatureImportance(trained.Model, trained.X.Names)
}

// LearningCurve cross-validates fresh estimators of kind. It is the slowest
// operation; cancel ctx to abort it.
func (s *Service) LearningCurve(ctx context.Context, kind registry.ModelKind) ([]evaluation.CurvePoint, error) {
	factory, err := s.registry.Factory(kind)
	if err != nil {
		return nil, err
	}
	fm, err := s.features.Encode(s.train)
	if err != nil {
		return nil, err
	}
	return evaluation.LearningCurve(ctx, factory, fm.X, s.train.Target, s.curveOpts...)
}

// Submission predicts the test set with kind and stores the table in session
// under label (kind.Label() when empty).
func (s *Service) Submission(ctx context.Context, session string, kind registry.ModelKind, label string) (*submission.Table, error) {
	if s.mapper == nil {
		return nil, errors.NewValueError("Submission", "no test dataset loaded")
	}
	table, err := s.mapper.PredictSubmission(ctx, kind, label)
	if err != nil {
		return nil, err
	}
	s.store.Session(session).Put(table)
	return table, nil
}

// SubmissionFor resolves label to a kind, as the original label-only
// download did.
func (s *Service) SubmissionFor(ctx context.Context, session, label string) (*submission.Table, error) {
	if s.mapper == nil {
		return nil, errors.NewValueError("Submission", "no test dataset loaded")
	}
	table, err := s.mapper.ResolveAndPredict(ctx, label)
	if err != nil {
		return nil, err
	}
	s.store.Session(session).Put(table)
	return table, nil
}

// PriceHistogram returns the SalePrice distribution of the training set.
func (s *Service) PriceHistogram() (*eda.Histogram, error) {
	return eda.PriceHistogram(s.train, s.bins)
}

// PCA projects the encoded training rows onto two principal components.
func (s *Service) PCA() (*eda.Projection, error) {
	fm, err := s.features.Encode(s.train)
	if err != nil {
		return nil, err
	}
	return eda.PCAProjection(fm, s.train.Target)
}

// Features describes the fitted feature pipeline.
func (s *Service) Features() (*features.Summary, error) {
	return s.features.Describe()
}
