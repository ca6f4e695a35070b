package linear

// Option is a function that configures LinearRegression
type Option func(*LinearRegression)

// WithFitIntercept sets whether to calculate the intercept
func WithFitIntercept(fit bool) Option {
	return func(lr *LinearRegression) {
		lr.fitIntercept = fit
	}
}

// WithTol sets the reciprocal condition number below which XᵀX is treated as
// singular and the ridge jitter is applied
func WithTol(tol float64) Option {
	return func(lr *LinearRegression) {
		lr.tol = tol
	}
}

// WithJitter sets the ridge term, relative to the largest diagonal entry of
// XᵀX, added when XᵀX is singular
func WithJitter(jitter float64) Option {
	return func(lr *LinearRegression) {
		lr.jitter = jitter
	}
}
