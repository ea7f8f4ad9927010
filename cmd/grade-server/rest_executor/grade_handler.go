package restexecutor

import (
	"errors"
	"io/fs"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/curriculagg/curricula-grade/cmd/grade-server/model"
	"github.com/curriculagg/curricula-grade/store"
	"github.com/curriculagg/curricula-grade/worker"
)

type gradeHandle struct {
	worker worker.Worker
	store  store.Store
	logger *zap.Logger
}

// NewGradeHandle creates a new grade handle
func NewGradeHandle(worker worker.Worker, store store.Store, logger *zap.Logger) Register {
	return &gradeHandle{
		worker: worker,
		store:  store,
		logger: logger,
	}
}

func (g *gradeHandle) Register(r *gin.Engine) {
	r.POST("/grade", g.handleGrade)
}

func (g *gradeHandle) handleGrade(c *gin.Context) {
	var req model.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(err)
		c.AbortWithStatusJSON(http.StatusBadRequest, err.Error())
		return
	}
	if req.Submission == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, "no submission provided")
		return
	}

	r := model.ConvertRequest(&req)
	g.logger.Debug("request", zap.String("requestId", r.RequestID), zap.String("submission", r.Submission))
	rt := <-g.worker.Submit(c.Request.Context(), r)
	if rt.Report == nil {
		if rt.Error != nil {
			c.Error(rt.Error)
		}
		c.AbortWithStatusJSON(statusOf(rt.Error), model.ConvertResponse(rt, "", req.Thin))
		return
	}
	if rt.Error != nil {
		c.Error(rt.Error)
	}

	id, err := g.store.Add(rt.RequestID, rt.Report)
	if err != nil {
		c.Error(err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, model.ConvertResponse(rt, id, req.Thin))
}

// statusOf maps an error that prevented grading to a http status
func statusOf(err error) int {
	switch {
	case errors.Is(err, worker.ErrSubmissionNotAllowed):
		return http.StatusForbidden
	case errors.Is(err, fs.ErrNotExist):
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}
