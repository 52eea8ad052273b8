package api

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/bs3vcenk/Netrix-sub000/internal/config"
	"github.com/bs3vcenk/Netrix-sub000/internal/logger"
	"github.com/bs3vcenk/Netrix-sub000/internal/model"
	"github.com/bs3vcenk/Netrix-sub000/internal/settings"
	"github.com/bs3vcenk/Netrix-sub000/pkg/errors"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Service is the user facing surface of the application controller.
type Service interface {
	Login(ctx context.Context, username, password string) (string, error)
	Logout(ctx context.Context, token string) error
	Classes(ctx context.Context, token string) ([]model.Class, error)
	Aggregate(ctx context.Context, token string, classIndex int) (*model.ClassAggregate, error)
	EnqueueRefresh(ctx context.Context, token string, classIndex int) error
	Export(ctx context.Context, token string, classIndex int) ([]byte, error)
	Settings(ctx context.Context, token string) (settings.Preferences, error)
	UpdateSettings(ctx context.Context, token string, update model.SettingsUpdate) (settings.Preferences, error)
	Reminders(ctx context.Context, token string) ([]model.ScheduledReminder, error)
	ScheduleReminders(ctx context.Context, token string) (int, error)
	DisableReminder(ctx context.Context, token, id string) error
	DisableAllReminders(ctx context.Context, token string) error
	RecordStats(ctx context.Context, report model.StatsReport) error
}

type Handler struct {
	svc Service
	cfg *config.Config
	log zerolog.Logger
}

func NewHandler(svc Service, cfg *config.Config) *Handler {
	return &Handler{
		svc: svc,
		cfg: cfg,
		log: logger.Component("api"),
	}
}

func (h *Handler) Login(c *gin.Context) {
	var req model.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid request body"})
		return
	}

	token, err := h.svc.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, model.TokenResponse{Token: token})
}

func (h *Handler) Logout(c *gin.Context) {
	if err := h.svc.Logout(c.Request.Context(), c.Param("token")); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}

func (h *Handler) GetClasses(c *gin.Context) {
	classes, err := h.svc.Classes(c.Request.Context(), c.Param("token"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"classes": classes})
}

func (h *Handler) GetSubjects(c *gin.Context) {
	agg, ok := h.aggregate(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"subjects":  agg.Subjects,
		"class_avg": agg.ClassAverage,
		"complete":  agg.Complete,
		"partial":   agg.Partial,
		"errors":    agg.Errors,
	})
}

func (h *Handler) GetSubject(c *gin.Context) {
	agg, ok := h.aggregate(c)
	if !ok {
		return
	}

	id, err := strconv.Atoi(c.Param("subject_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid subject ID"})
		return
	}
	subject, found := agg.Subject(id)
	if !found {
		h.respondError(c, fmt.Errorf("%w: %d", errors.ErrInvalidSubject, id))
		return
	}
	c.JSON(http.StatusOK, subject)
}

// GetTests lists the exams of a class. ?current=true limits the list to
// exams that have not happened yet.
func (h *Handler) GetTests(c *gin.Context) {
	agg, ok := h.aggregate(c)
	if !ok {
		return
	}

	exams := agg.Exams
	if c.Query("current") == "true" {
		exams = make([]model.Exam, 0, len(agg.Exams))
		for _, e := range agg.Exams {
			if e.Current {
				exams = append(exams, e)
			}
		}
	}
	c.JSON(http.StatusOK, gin.H{"tests": exams})
}

func (h *Handler) GetAbsences(c *gin.Context) {
	agg, ok := h.aggregate(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"overview":      agg.AbsenceOverview,
		"full_absences": agg.Absences,
	})
}

func (h *Handler) ExportClass(c *gin.Context) {
	classIndex, ok := h.classIndex(c)
	if !ok {
		return
	}

	data, err := h.svc.Export(c.Request.Context(), c.Param("token"), classIndex)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="netrix-class-%d.xlsx"`, classIndex))
	c.Data(http.StatusOK, xlsxContentType, data)
}

func (h *Handler) TriggerRefresh(c *gin.Context) {
	classIndex := 0
	if raw := c.Query("class_id"); raw != "" {
		var err error
		if classIndex, err = strconv.Atoi(raw); err != nil {
			c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid class ID"})
			return
		}
	}

	if err := h.svc.EnqueueRefresh(c.Request.Context(), c.Param("token"), classIndex); err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"message": "Refresh queued"})
}

func (h *Handler) GetSettings(c *gin.Context) {
	prefs, err := h.svc.Settings(c.Request.Context(), c.Param("token"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, prefs)
}

func (h *Handler) UpdateSettings(c *gin.Context) {
	var update model.SettingsUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid request body"})
		return
	}

	prefs, err := h.svc.UpdateSettings(c.Request.Context(), c.Param("token"), update)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, prefs)
}

func (h *Handler) GetNotifications(c *gin.Context) {
	reminders, err := h.svc.Reminders(c.Request.Context(), c.Param("token"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": reminders})
}

func (h *Handler) ScheduleNotifications(c *gin.Context) {
	n, err := h.svc.ScheduleReminders(c.Request.Context(), c.Param("token"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"scheduled": n})
}

func (h *Handler) DeleteNotification(c *gin.Context) {
	if err := h.svc.DisableReminder(c.Request.Context(), c.Param("token"), c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) DeleteNotifications(c *gin.Context) {
	if err := h.svc.DisableAllReminders(c.Request.Context(), c.Param("token")); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) SubmitStats(c *gin.Context) {
	var report model.StatsReport
	if err := c.ShouldBindJSON(&report); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid request body"})
		return
	}

	if err := h.svc.RecordStats(c.Request.Context(), report); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Report saved"})
}

func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": h.cfg.App.Name,
		"version": h.cfg.App.Version,
	})
}

func (h *Handler) classIndex(c *gin.Context) (int, bool) {
	classIndex, err := strconv.Atoi(c.Param("class_id"))
	if err != nil || classIndex < 0 {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid class ID"})
		return 0, false
	}
	return classIndex, true
}

func (h *Handler) aggregate(c *gin.Context) (*model.ClassAggregate, bool) {
	classIndex, ok := h.classIndex(c)
	if !ok {
		return nil, false
	}

	agg, err := h.svc.Aggregate(c.Request.Context(), c.Param("token"), classIndex)
	if err != nil {
		h.respondError(c, err)
		return nil, false
	}
	return agg, true
}

func (h *Handler) respondError(c *gin.Context, err error) {
	status := statusOf(err)
	if status >= http.StatusInternalServerError {
		h.log.Error().Err(err).Str("path", c.FullPath()).Msg("Request failed")
	} else {
		h.log.Debug().Err(err).Str("path", c.FullPath()).Msg("Request rejected")
	}
	c.JSON(status, model.ErrorResponse{Error: err.Error(), Code: errors.Code(err)})
}

func statusOf(err error) int {
	switch {
	case stderrors.Is(err, errors.ErrTokenNotFound), errors.IsAuth(err):
		return http.StatusUnauthorized
	case stderrors.Is(err, errors.ErrInvalidClassIndex), stderrors.Is(err, errors.ErrInvalidSubject):
		return http.StatusNotFound
	case stderrors.Is(err, errors.ErrInvalidLeadTime), stderrors.Is(err, errors.ErrInvalidSetting):
		return http.StatusBadRequest
	case errors.IsMaintenance(err):
		return http.StatusServiceUnavailable
	case errors.IsNetwork(err), errors.IsParse(err):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
