package handler

import (
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"thumbforge-client/internal/auth"
	"thumbforge-client/internal/history"
	"thumbforge-client/internal/model"
	"thumbforge-client/internal/preview"
	"thumbforge-client/internal/quota"
	"thumbforge-client/internal/service"
	"thumbforge-client/internal/theme"
	"thumbforge-client/internal/utils"
	"thumbforge-client/internal/validator"
	"thumbforge-client/pkg/logger"

	"github.com/gin-gonic/gin"
)

const heartbeatInterval = 30 * time.Second

// DashboardHandler serves one dashboard window: the form being edited, the
// selected image and the generation state of this process.
type DashboardHandler struct {
	gate     *auth.Gate
	tracker  *quota.Tracker
	previews *preview.Manager
	orch     *service.Orchestrator
	prefs    *theme.Preferences
	history  *history.Recorder
	// downloadDir is used when a download request names no directory.
	downloadDir string

	mu   sync.Mutex
	form model.FormState

	events *hub
}

type DashboardDeps struct {
	Gate         *auth.Gate
	Tracker      *quota.Tracker
	Previews     *preview.Manager
	Orchestrator *service.Orchestrator
	Theme        *theme.Preferences
	// History may be nil.
	History     *history.Recorder
	DownloadDir string
}

func NewDashboardHandler(deps DashboardDeps) *DashboardHandler {
	h := &DashboardHandler{
		gate:        deps.Gate,
		tracker:     deps.Tracker,
		previews:    deps.Previews,
		orch:        deps.Orchestrator,
		prefs:       deps.Theme,
		history:     deps.History,
		downloadDir: deps.DownloadDir,
		events:      newHub(),
	}

	h.tracker.OnChange(func(u model.Usage) { h.events.broadcast("usage", u) })
	h.gate.OnChange(func(authenticated bool) {
		h.events.broadcast("auth", gin.H{"authenticated": authenticated})
	})
	h.prefs.OnChange(func(t model.Theme) { h.events.broadcast("theme", gin.H{"theme": t}) })
	h.orch.OnTransition(func(s service.State) { h.events.broadcast("state", h.snapshot()) })

	return h
}

// Register mounts the dashboard routes on the /api group.
func (h *DashboardHandler) Register(api *gin.RouterGroup) {
	api.GET("/state", h.GetState)
	api.POST("/signin", h.SignIn)
	api.POST("/signout", h.SignOut)
	api.PUT("/form", h.UpdateForm)
	api.POST("/image", h.UploadImage)
	api.POST("/generate", h.Generate)
	api.POST("/download", h.Download)
	api.GET("/theme", h.GetTheme)
	api.PUT("/theme", h.SetTheme)
	api.POST("/theme/toggle", h.ToggleTheme)
	api.POST("/refresh", h.Refresh)
	api.GET("/history", h.ListHistory)
	api.GET("/events", h.Events)
}

func (h *DashboardHandler) currentForm() model.FormState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.form
}

func (h *DashboardHandler) snapshot() model.StateResponse {
	form := h.currentForm()
	ready := h.orch.Readiness(form)
	state := h.orch.State()

	resp := model.StateResponse{
		Authenticated: ready.Authenticated,
		Usage:         ready.Usage,
		CanSubmit:     ready.Enabled,
		Reason:        ready.Reason,
		Missing:       ready.Validation.MissingNames(),
		Phase:         string(state.Phase()),
		Result:        state.LastResult(),
		Form:          form,
		DisplayName:   form.DisplayCategory(),
		Theme:         h.prefs.Current(),
	}
	if idle, ok := state.(service.Idle); ok && idle.Failure != nil {
		resp.Failure = idle.Failure.Error()
	}
	if session, ok := h.gate.Session(); ok {
		resp.Username = session.Username
	}
	if handle, ok := h.previews.Current(); ok {
		p := &model.PreviewResponse{ID: handle.ID, URI: handle.URI}
		if img, ok := h.previews.SelectedFile(); ok {
			p.Name = img.Name
			p.ContentType = img.ContentType
			p.Size = len(img.Data)
		}
		resp.Preview = p
	}
	return resp
}

func (h *DashboardHandler) GetState(c *gin.Context) {
	c.JSON(http.StatusOK, h.snapshot())
}

func (h *DashboardHandler) SignIn(c *gin.Context) {
	var req model.SignInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	session, err := h.gate.SignIn(c.Request.Context(), req.Username, req.Password)
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	case errors.Is(err, auth.ErrInvalidResponse):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"username": session.Username, "issued_at": session.IssuedAt})
}

func (h *DashboardHandler) SignOut(c *gin.Context) {
	if err := h.gate.SignOut(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *DashboardHandler) UpdateForm(c *gin.Context) {
	var form model.FormState
	if err := c.ShouldBindJSON(&form); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.mu.Lock()
	h.form = form
	h.mu.Unlock()

	c.JSON(http.StatusOK, h.snapshot())
}

func (h *DashboardHandler) UploadImage(c *gin.Context) {
	header, err := c.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "image file required"})
		return
	}
	file, err := header.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	defer file.Close()

	handle, err := h.previews.Select(header.Filename, file)
	switch {
	case errors.Is(err, preview.ErrImageTooLarge):
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": err.Error()})
		return
	case errors.Is(err, preview.ErrUnsupportedImage):
		c.JSON(http.StatusUnsupportedMediaType, gin.H{"error": err.Error()})
		return
	case errors.Is(err, preview.ErrEmptyImage):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := model.PreviewResponse{ID: handle.ID, URI: handle.URI, Name: header.Filename}
	if img, ok := h.previews.SelectedFile(); ok {
		resp.ContentType = img.ContentType
		resp.Size = len(img.Data)
	}
	h.events.broadcast("state", h.snapshot())
	c.JSON(http.StatusOK, resp)
}

func (h *DashboardHandler) Generate(c *gin.Context) {
	result, err := h.orch.Submit(c.Request.Context(), h.currentForm())
	if err != nil {
		c.JSON(generateStatus(err), gin.H{"error": err.Error(), "state": h.snapshot()})
		return
	}
	c.JSON(http.StatusOK, result)
}

func generateStatus(err error) int {
	switch {
	case errors.Is(err, service.ErrSubmitInProgress):
		return http.StatusConflict
	case errors.Is(err, service.ErrUnauthenticated), errors.Is(err, quota.ErrQuotaExceeded):
		return http.StatusForbidden
	case errors.Is(err, validator.ErrValidation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, service.ErrGeneration):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (h *DashboardHandler) Download(c *gin.Context) {
	var req model.DownloadRequest
	// an empty body downloads to the default directory
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Dir == "" {
		req.Dir = h.downloadDir
	}

	path, err := h.orch.DownloadResult(c.Request.Context(), req.Dir)
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, service.ErrNoResult) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"path": path})
}

func (h *DashboardHandler) GetTheme(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"theme": h.prefs.Current()})
}

func (h *DashboardHandler) SetTheme(c *gin.Context) {
	var req model.ThemeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	t, err := model.ParseTheme(req.Theme)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.prefs.Set(t); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"theme": t})
}

func (h *DashboardHandler) ToggleTheme(c *gin.Context) {
	t, err := h.prefs.Toggle()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"theme": t})
}

// Refresh re-reads shared state, as a window does when it becomes visible
// again.
func (h *DashboardHandler) Refresh(c *gin.Context) {
	if err := h.tracker.Refresh(); err != nil {
		logger.Warnf("refreshing usage: %v", err)
	}
	c.JSON(http.StatusOK, h.snapshot())
}

func (h *DashboardHandler) ListHistory(c *gin.Context) {
	if h.history == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "history is disabled"})
		return
	}
	var query struct {
		Limit int `form:"limit"`
	}
	if err := c.ShouldBindQuery(&query); err != nil || query.Limit <= 0 {
		query.Limit = 20
	}
	generations, err := h.history.List(c.Request.Context(), query.Limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"generations": generations})
}

// Events streams usage, auth, theme and state changes until the client goes
// away.
func (h *DashboardHandler) Events(c *gin.Context) {
	stream := h.events.join()
	defer h.events.leave(stream)

	sseWriter := utils.NewSSEWriter(c.Writer)
	ctx := c.Request.Context()

	if err := sseWriter.WriteJSON("state", h.snapshot()); err != nil {
		return
	}

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case ev := <-stream:
			if err := sseWriter.WriteJSON(ev.name, ev.payload); err != nil {
				logger.Warnf("writing %s event: %v", ev.name, err)
				return
			}
		case <-heartbeat.C:
			if err := sseWriter.Comment("heartbeat"); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}
