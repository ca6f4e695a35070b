// Package server exposes a pipeline.Service as a JSON API over gin.
package server

import (
	"bytes"
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/YuminosukeSato/housepricer/evaluation"
	"github.com/YuminosukeSato/housepricer/pipeline"
	"github.com/YuminosukeSato/housepricer/pkg/errors"
	"github.com/YuminosukeSato/housepricer/pkg/log"
	"github.com/YuminosukeSato/housepricer/plots"
	"github.com/YuminosukeSato/housepricer/registry"
	"github.com/YuminosukeSato/housepricer/submission"
)

// SessionHeader carries the client session owning stored submissions.
const SessionHeader = "X-Session-ID"

// DefaultSession is used when a request carries no session header.
const DefaultSession = "anonymous"

// Server routes HTTP requests to a Service.
type Server struct {
	svc    *pipeline.Service
	engine *gin.Engine
	http   *http.Server
}

// New builds the router. mode is a gin mode ("debug", "release", "test").
func New(svc *pipeline.Service, mode string) *Server {
	gin.SetMode(mode)
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())

	s := &Server{svc: svc, engine: r}

	r.GET("/healthz", s.getHealth)

	e := r.Group("/eda")
	e.GET("/price-histogram", s.getPriceHistogram)
	e.GET("/pca", s.getPCA)
	e.GET("/features", s.getFeatures)

	m := r.Group("/models/:kind")
	m.POST("/train", s.postTrain)
	m.GET("/residuals", s.getResiduals)
	m.GET("/scatter", s.getScatter)
	m.GET("/importance", s.getImportance)
	m.GET("/learning-curve", s.getLearningCurve)

	r.GET("/plots/:chart", s.getPlot)

	sub := r.Group("/submissions")
	sub.GET("", s.listSubmissions)
	sub.POST("/:label", s.postSubmission)
	sub.GET("/:label", s.getSubmission)
	sub.DELETE("", s.deleteSubmissions)

	return s
}

// Handler returns the router.
func (s *Server) Handler() http.Handler { return s.engine }

// ListenAndServe serves on addr until ctx is cancelled, then shuts down.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	s.http = &http.Server{Addr: addr, Handler: s.engine, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() { errCh <- s.http.ListenAndServe() }()

	log.GetLoggerWithName("server").Info("Listening", "addr", addr)
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, "listen")
	case <-ctx.Done():
		shutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return errors.Wrap(s.http.Shutdown(shutdown), "shutdown")
	}
}

func requestLogger() gin.HandlerFunc {
	logger := log.GetLoggerWithName("server")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("Request handled",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			log.DurationMsKey, time.Since(start).Milliseconds(),
		)
	}
}

// getHealth uses to check server health.
func (s *Server) getHealth(c *gin.Context) {
	c.JSON(http.StatusOK, http.StatusText(http.StatusOK))
}

func (s *Server) getPriceHistogram(c *gin.Context) {
	h, err := s.svc.PriceHistogram()
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, h)
}

func (s *Server) getPCA(c *gin.Context) {
	p, err := s.svc.PCA()
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (s *Server) getFeatures(c *gin.Context) {
	summary, err := s.svc.Features()
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

type kindParams struct {
	Kind string `uri:"kind" binding:"required"`
}

func bindKind(c *gin.Context) (registry.ModelKind, bool) {
	var params kindParams
	if err := c.ShouldBindUri(&params); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"errors": err.Error()})
		return 0, false
	}
	kind, err := registry.ParseModelKind(params.Kind)
	if err != nil {
		abort(c, err)
		return 0, false
	}
	return kind, true
}

func (s *Server) postTrain(c *gin.Context) {
	kind, ok := bindKind(c)
	if !ok {
		return
	}
	report, err := s.svc.Train(c.Request.Context(), kind)
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (s *Server) getResiduals(c *gin.Context) {
	kind, ok := bindKind(c)
	if !ok {
		return
	}
	report, err := s.svc.Residuals(c.Request.Context(), kind)
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (s *Server) getScatter(c *gin.Context) {
	kind, ok := bindKind(c)
	if !ok {
		return
	}
	points, err := s.svc.Scatter(c.Request.Context(), kind)
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"kind": kind, "points": points})
}

func (s *Server) getImportance(c *gin.Context) {
	kind, ok := bindKind(c)
	if !ok {
		return
	}
	imp, err := s.svc.Importance(c.Request.Context(), kind)
	if err != nil {
		abort(c, err)
		return
	}
	if top := c.Query("top"); top != "" {
		n, err := strconv.Atoi(top)
		if err != nil || n < 0 {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"errors": "top must be a non-negative integer"})
			return
		}
		imp.Features = imp.Top(n)
	}
	c.JSON(http.StatusOK, imp)
}

// getLearningCurve runs the curve on a worker. A client that goes away
// cancels the request context, which aborts the remaining fits.
func (s *Server) getLearningCurve(c *gin.Context) {
	kind, ok := bindKind(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	future := pipeline.Go(ctx, func(ctx context.Context) ([]evaluation.CurvePoint, error) {
		return s.svc.LearningCurve(ctx, kind)
	})
	points, err := future.Await(ctx)
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"kind": kind, "points": points})
}

func (s *Server) getPlot(c *gin.Context) {
	chart, err := pipeline.ParseChart(c.Param("chart"))
	if err != nil {
		abort(c, err)
		return
	}
	kind := registry.Linear
	if chart.ModelChart() {
		if kind, err = registry.ParseModelKind(c.Query("kind")); err != nil {
			abort(c, err)
			return
		}
	}
	format := c.DefaultQuery("format", "png")

	p, err := s.svc.Render(c.Request.Context(), chart, kind)
	if err != nil {
		abort(c, err)
		return
	}
	var buf bytes.Buffer
	if err := plots.Write(p, &buf, format); err != nil {
		abort(c, err)
		return
	}
	c.Data(http.StatusOK, plots.ContentType(format), buf.Bytes())
}

func session(c *gin.Context) string {
	if id := c.GetHeader(SessionHeader); id != "" {
		return id
	}
	return DefaultSession
}

type submissionParams struct {
	Label string `uri:"label" binding:"required"`
}

type submissionQuery struct {
	Kind string `form:"kind"`
}

// postSubmission predicts the test set. The kind comes from ?kind= or, when
// absent, from resolving the label itself.
func (s *Server) postSubmission(c *gin.Context) {
	var params submissionParams
	if err := c.ShouldBindUri(&params); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"errors": err.Error()})
		return
	}
	var query submissionQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"errors": err.Error()})
		return
	}

	ctx := c.Request.Context()
	var (
		table *submission.Table
		err   error
	)
	if query.Kind != "" {
		kind, perr := registry.ParseModelKind(query.Kind)
		if perr != nil {
			abort(c, perr)
			return
		}
		table, err = s.svc.Submission(ctx, session(c), kind, params.Label)
	} else {
		table, err = s.svc.SubmissionFor(ctx, session(c), params.Label)
	}
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusCreated, table)
}

// getSubmission downloads a stored submission as CSV.
func (s *Server) getSubmission(c *gin.Context) {
	var params submissionParams
	if err := c.ShouldBindUri(&params); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"errors": err.Error()})
		return
	}
	table, ok := s.svc.Store().Session(session(c)).Get(params.Label)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"errors": http.StatusText(http.StatusNotFound)})
		return
	}
	var buf bytes.Buffer
	if err := table.WriteCSV(&buf); err != nil {
		abort(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+table.Filename()+`"`)
	c.Data(http.StatusOK, "text/csv", buf.Bytes())
}

func (s *Server) listSubmissions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"labels": s.svc.Store().Session(session(c)).Labels()})
}

func (s *Server) deleteSubmissions(c *gin.Context) {
	s.svc.Store().Drop(session(c))
	c.Status(http.StatusNoContent)
}
