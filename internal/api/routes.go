package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ferndale/shiftboard/internal/blobstore"
	"github.com/ferndale/shiftboard/internal/catalog"
	"github.com/ferndale/shiftboard/internal/evidence"
	"github.com/ferndale/shiftboard/internal/lifecycle"
	"github.com/ferndale/shiftboard/internal/period"
)

// registerRoutes sets up all API routes on the Gin router.
func registerRoutes(router *gin.Engine, engine *lifecycle.Engine) {
	router.GET("/api/status", handleStatus(engine))
	router.GET("/api/tasks", handleTasks(engine))
	router.GET("/api/tasks/:id", handleTaskQuery(engine))
	router.POST("/api/tasks/:id/submit", handleSubmit(engine))
	router.POST("/api/tasks/:id/review", handleReview(engine))
	router.GET("/api/triggers", handleTriggerList(engine))
	router.POST("/api/triggers", handleTriggerRaise(engine))
	router.GET("/api/events", handleSSE(engine))
}

// periodView is the JSON shape for a resolved period.
type periodView struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Start       string `json:"start"`
	End         string `json:"end"`
}

func toPeriodView(p *period.Period) *periodView {
	if p == nil {
		return nil
	}
	return &periodView{
		ID:          p.ID,
		DisplayName: p.DisplayName,
		Start:       period.FormatMinutes(p.Start),
		End:         period.FormatMinutes(p.End),
	}
}

// instanceView is the JSON shape for a task instance.
type instanceView struct {
	TemplateID      string             `json:"template_id"`
	BusinessDate    string             `json:"business_date"`
	Status          string             `json:"status"`
	SubmissionID    string             `json:"submission_id,omitempty"`
	SubmittedBy     string             `json:"submitted_by,omitempty"`
	Evidence        *evidence.Evidence `json:"evidence,omitempty"`
	RejectionReason string             `json:"rejection_reason,omitempty"`
	ReviewerID      string             `json:"reviewer_id,omitempty"`
	SubmittedAt     *time.Time         `json:"submitted_at,omitempty"`
	ReviewedAt      *time.Time         `json:"reviewed_at,omitempty"`
}

func toInstanceView(in *lifecycle.Instance) instanceView {
	return instanceView{
		TemplateID:      in.TemplateID,
		BusinessDate:    in.BusinessDate,
		Status:          string(in.Status),
		SubmissionID:    in.SubmissionID,
		SubmittedBy:     in.SubmittedBy,
		Evidence:        in.Evidence,
		RejectionReason: in.RejectionReason,
		ReviewerID:      in.ReviewerID,
		SubmittedAt:     in.SubmittedAt,
		ReviewedAt:      in.ReviewedAt,
	}
}

// taskView is the JSON shape for one entry in a task listing.
type taskView struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Role        string `json:"role"`
	Evidence    string `json:"evidence"`
	Notice      bool   `json:"notice,omitempty"`
	Floating    bool   `json:"floating,omitempty"`
	Status      string `json:"status"`
}

func handleStatus(engine *lifecycle.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"period":      toPeriodView(engine.CurrentPeriod()),
			"next_period": toPeriodView(engine.NextPeriod()),
			"triggers":    engine.Triggers(),
		})
	}
}

func handleTasks(engine *lifecycle.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := catalog.Role(c.Query("role"))
		if !catalog.ValidRoles[role] {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown role: " + string(role)})
			return
		}
		views := engine.TasksNow(role)
		out := make([]taskView, 0, len(views))
		for _, v := range views {
			out = append(out, taskView{
				ID:          v.Template.ID,
				Title:       v.Template.Title,
				Description: v.Template.Description,
				Role:        string(v.Template.Role),
				Evidence:    string(v.Template.Evidence),
				Notice:      v.Template.Notice,
				Floating:    v.Template.Floating,
				Status:      string(v.Status),
			})
		}
		c.JSON(http.StatusOK, gin.H{"tasks": out})
	}
}

func handleTaskQuery(engine *lifecycle.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, toInstanceView(engine.Query(c.Param("id"))))
	}
}

type submitRequest struct {
	SubmittedBy string                 `json:"submitted_by"`
	Evidence    evidence.RawSubmission `json:"evidence"`
}

func handleSubmit(engine *lifecycle.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req submitRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
			return
		}
		in, err := engine.Submit(c.Request.Context(), c.Param("id"), req.SubmittedBy, req.Evidence)
		if err != nil {
			c.JSON(statusFor(err), errBody(err))
			return
		}
		c.JSON(http.StatusOK, toInstanceView(in))
	}
}

type reviewRequest struct {
	Decision   string `json:"decision"`
	ReviewerID string `json:"reviewer_id"`
	Reason     string `json:"reason"`
}

func handleReview(engine *lifecycle.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req reviewRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
			return
		}
		in, err := engine.Review(c.Param("id"), lifecycle.Decision(req.Decision), req.ReviewerID, req.Reason)
		if err != nil {
			c.JSON(statusFor(err), errBody(err))
			return
		}
		c.JSON(http.StatusOK, toInstanceView(in))
	}
}

func handleTriggerList(engine *lifecycle.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"triggers": engine.Triggers()})
	}
}

type triggerRequest struct {
	Name     string `json:"name"`
	RaisedBy string `json:"raised_by"`
}

func handleTriggerRaise(engine *lifecycle.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req triggerRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
			return
		}
		if err := engine.RaiseTrigger(req.Name, req.RaisedBy); err != nil {
			c.JSON(statusFor(err), errBody(err))
			return
		}
		c.JSON(http.StatusOK, gin.H{"raised": req.Name})
	}
}

// statusFor maps engine errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, lifecycle.ErrUnknownTemplate):
		return http.StatusNotFound
	case errors.Is(err, lifecycle.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, lifecycle.ErrVerifyDenied):
		return http.StatusForbidden
	case errors.Is(err, blobstore.ErrUploadFailed):
		return http.StatusBadGateway
	case errors.Is(err, lifecycle.ErrNotActionable),
		errors.Is(err, lifecycle.ErrReasonRequired),
		errors.Is(err, evidence.ErrKindMismatch),
		errors.Is(err, evidence.ErrIncompleteChecklist):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// errBody builds the error response, including a remediation hint when the
// taxonomy has one for this error.
func errBody(err error) gin.H {
	body := gin.H{"error": err.Error()}
	if remedy := lifecycle.Remedy(err); remedy != "" {
		body["remedy"] = remedy
	}
	return body
}
