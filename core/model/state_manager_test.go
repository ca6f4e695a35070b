package model

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/housepricer/pkg/errors"
)

func TestStateManagerLifecycle(t *testing.T) {
	s := NewStateManager()
	assert.False(t, s.IsFitted())

	err := s.RequireFitted("DecisionTreeRegressor", "Predict")
	require.Error(t, err)
	var nf *errors.NotFittedError
	assert.True(t, errors.As(err, &nf))
	assert.Equal(t, "Predict", nf.Method)

	s.SetFitted(3, 100)
	require.NoError(t, s.RequireFitted("DecisionTreeRegressor", "Predict"))
	nFeatures, nSamples := s.GetDimensions()
	assert.Equal(t, 3, nFeatures)
	assert.Equal(t, 100, nSamples)

	assert.NoError(t, s.RequireFeatures("m", "Predict", mat.NewDense(2, 3, nil)))
	err = s.RequireFeatures("m", "Predict", mat.NewDense(2, 4, nil))
	var dim *errors.DimensionError
	require.True(t, errors.As(err, &dim))
	assert.Equal(t, 3, dim.Expected)
	assert.Equal(t, 4, dim.Got)

	state := s.GetState()
	assert.True(t, state.Fitted)
	assert.Equal(t, 3, state.NFeatures)

	s.Reset()
	assert.False(t, s.IsFitted())
	assert.Equal(t, ModelState{}, s.GetState())
}

func TestStateManagerConcurrentAccess(t *testing.T) {
	s := NewStateManager()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			s.SetFitted(n, n)
		}(i)
		go func() {
			defer wg.Done()
			_ = s.IsFitted()
			_, _ = s.GetDimensions()
		}()
	}
	wg.Wait()
	assert.True(t, s.IsFitted())
}
