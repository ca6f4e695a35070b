// Package housepricer predicts residential sale prices for the Kaggle House
// Prices competition and reports how well each regressor does.
//
// The module loads the competition CSVs, encodes them with a feature pipeline
// fitted once on the training table (imputation, one-hot encoding,
// standardization and optional PCA) and trains four regressors on the
// result: linear regression, a decision tree, a random forest and gradient
// boosting.
//
// # Quick Start
//
//	package main
//
//	import (
//	    "context"
//	    "fmt"
//	    "log"
//
//	    "github.com/YuminosukeSato/housepricer/dataset"
//	    "github.com/YuminosukeSato/housepricer/pipeline"
//	    "github.com/YuminosukeSato/housepricer/registry"
//	)
//
//	func main() {
//	    train, err := dataset.LoadFile("data/train.csv", dataset.WithRequireTarget(true))
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    test, err := dataset.LoadFile("data/test.csv")
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//
//	    svc, err := pipeline.New(train, test)
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    report, err := svc.Train(context.Background(), registry.Forest)
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    fmt.Printf("R2 %.3f MAE %.0f\n", report.Metrics.R2, report.Metrics.MAE)
//	}
//
// # Packages
//
//   - dataset: CSV loading with the Id and SalePrice columns split off
//   - features: the fitted encoding pipeline producing a FeatureMatrix
//   - registry: model kinds, hyperparameters and the trained-model cache
//   - evaluation: metrics, residuals, feature importance and learning curves
//   - submission: test set predictions and per-session submission storage
//   - eda: price distribution and PCA projection of the training set
//   - plots: gonum/plot renderings of every report
//   - pipeline: the Service tying the packages above together
//   - server: the gin JSON API over a Service
//   - config: viper configuration from file, environment and flags
//   - linear, sklearn/tree, sklearn/ensemble: the regressors
//   - preprocessing, metrics: numeric building blocks
//   - core/model, core/parallel: estimator contracts and worker helpers
//   - pkg/errors, pkg/log: error taxonomy and structured logging
//
// # Command Line
//
//	housepricer train --config housepricer.yaml
//	housepricer submit --label RandomForestModel --out submissions/
//	housepricer plot learning-curve --model gradient --out curve.svg
//	housepricer serve --addr :8080
package housepricer
