package aiclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Himu336/MockManch-Backend-Gateway/internal/api"
	"github.com/Himu336/MockManch-Backend-Gateway/internal/auth"
	"github.com/Himu336/MockManch-Backend-Gateway/internal/gate"
	"github.com/Himu336/MockManch-Backend-Gateway/internal/logger"
)

const (
	requestKey = "ai_request"

	msgInterviewFields  = "Missing required fields: job_role, experience_level and interview_type are required"
	msgNumQuestions     = "num_questions must be between 3 and 15"
	msgRAGFields        = "Missing required fields: message is required"
	msgAnswerFields     = "Missing required fields: answer and question_id are required"
	msgTranscribeFields = "Missing required fields: session_id and audio_data are required"
	msgStartFields      = "session_id is required in request body"
	msgProcessFields    = "Missing required fields: session_id and user_message are required"
	msgInvalidBody      = "invalid request body"

	defaultAudioFormat = "webm"
	defaultSampleRate  = 16000
)

// Upstream calls the AI microservice.
type Upstream interface {
	Post(ctx context.Context, endpoint Endpoint, payload interface{}) (*Response, error)
	Call(ctx context.Context, method string, endpoint Endpoint, sessionID string, payload interface{}) (*Response, error)
}

type InterviewRequest struct {
	JobRole         string `json:"job_role" binding:"required"`
	ExperienceLevel string `json:"experience_level" binding:"required"`
	Company         string `json:"company,omitempty"`
	JobDescription  string `json:"job_description,omitempty"`
	InterviewType   string `json:"interview_type" binding:"required"`
	NumQuestions    *int   `json:"num_questions,omitempty" binding:"omitempty,min=3,max=15"`
	UserID          string `json:"user_id"`
}

type VoiceInterviewRequest struct {
	InterviewRequest
	InterviewRole   string `json:"interview_role,omitempty"`
	Difficulty      string `json:"difficulty,omitempty"`
	DurationMinutes *int   `json:"duration_minutes,omitempty" binding:"omitempty,min=1"`
}

type RAGRequest struct {
	Message string `json:"message" binding:"required"`
	UserID  string `json:"user_id"`
}

type AnswerRequest struct {
	Answer     string `json:"answer" binding:"required"`
	QuestionID *int   `json:"question_id" binding:"required"`
}

type TranscribeRequest struct {
	SessionID   string `json:"session_id" binding:"required"`
	AudioData   string `json:"audio_data" binding:"required"`
	AudioFormat string `json:"audio_format"`
	SampleRate  int    `json:"sample_rate"`
	StopReason  string `json:"stop_reason,omitempty" binding:"omitempty,oneof=manual silence timeout"`
}

type StartRequest struct {
	SessionID string `json:"session_id" binding:"required"`
}

type ProcessRequest struct {
	SessionID    string `json:"session_id" binding:"required"`
	UserMessage  string `json:"user_message" binding:"required"`
	IncludeAudio *bool  `json:"include_audio"`
}

type Handler struct {
	client Upstream
}

func NewHandler(client Upstream) *Handler {
	return &Handler{client: client}
}

// ValidateInterview, ValidateVoiceInterview and ValidateRAG run before the charge
// gate so a malformed request is never billed.
func (h *Handler) ValidateInterview(c *gin.Context) {
	var req InterviewRequest
	if bind(c, &req, msgInterviewFields) {
		c.Set(requestKey, &req)
		c.Next()
	}
}

func (h *Handler) ValidateVoiceInterview(c *gin.Context) {
	var req VoiceInterviewRequest
	if bind(c, &req, msgInterviewFields) {
		c.Set(requestKey, &req)
		c.Next()
	}
}

func (h *Handler) ValidateRAG(c *gin.Context) {
	var req RAGRequest
	if bind(c, &req, msgRAGFields) {
		c.Set(requestKey, &req)
		c.Next()
	}
}

func bind(c *gin.Context, req interface{}, missing string) bool {
	err := c.ShouldBindJSON(req)
	if err == nil {
		return true
	}

	fields := api.FieldErrors(err)
	if fields == nil {
		api.Abort(c, http.StatusBadRequest, msgInvalidBody)
		return false
	}
	msg := fields[0].Message
	for _, f := range fields {
		if f.Tag == "required" {
			msg = missing
			break
		}
		if f.Field == "num_questions" {
			msg = msgNumQuestions
		}
	}
	api.Abort(c, http.StatusBadRequest, msg)
	return false
}

// CreateInterview godoc
// @Summary      Start a text interview session
// @Tags         ai
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        request body InterviewRequest true "Interview settings"
// @Success      201 {object} api.Envelope
// @Failure      400 {object} api.ErrorResponse
// @Failure      402 {object} api.ErrorResponse
// @Failure      503 {object} api.ErrorResponse
// @Failure      504 {object} api.ErrorResponse
// @Router       /api/v1/interview/create [post]
func (h *Handler) CreateInterview(c *gin.Context) {
	var req *InterviewRequest
	if !loadRequest(c, &req) {
		return
	}
	req.UserID, _ = auth.GetUserID(c)
	h.forward(c, InterviewCreate, req, http.StatusCreated)
}

// CreateVoiceInterview godoc
// @Summary      Start a voice interview session
// @Tags         ai
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        request body VoiceInterviewRequest true "Voice interview settings"
// @Success      201 {object} api.Envelope
// @Failure      400 {object} api.ErrorResponse
// @Failure      402 {object} api.ErrorResponse
// @Router       /api/v1/voice-interview/create [post]
func (h *Handler) CreateVoiceInterview(c *gin.Context) {
	var req *VoiceInterviewRequest
	if !loadRequest(c, &req) {
		return
	}
	req.UserID, _ = auth.GetUserID(c)
	h.forward(c, VoiceInterviewCreate, req, http.StatusCreated)
}

// Query godoc
// @Summary      Ask the interview assistant
// @Tags         ai
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        request body RAGRequest true "Question"
// @Success      200 {object} api.Envelope
// @Failure      400 {object} api.ErrorResponse
// @Failure      402 {object} api.ErrorResponse
// @Router       /api/v1/rag [post]
func (h *Handler) Query(c *gin.Context) {
	var req *RAGRequest
	if !loadRequest(c, &req) {
		return
	}
	req.UserID, _ = auth.GetUserID(c)
	h.forward(c, RAG, req, http.StatusOK)
}

// loadRequest picks up the request parsed by the matching Validate step,
// binding the body itself when that step was not mounted.
func loadRequest[T any](c *gin.Context, dst **T) bool {
	if v, ok := c.Get(requestKey); ok {
		if req, ok := v.(*T); ok {
			*dst = req
			return true
		}
	}

	req := new(T)
	if err := c.ShouldBindJSON(req); err != nil {
		api.Fail(c, http.StatusBadRequest, msgInvalidBody)
		return false
	}
	*dst = req
	return true
}

func (h *Handler) forward(c *gin.Context, endpoint Endpoint, payload interface{}, fallback int) {
	resp, err := h.client.Post(c.Request.Context(), endpoint, payload)
	if err != nil {
		if service, left, ok := gate.Charge(c); ok {
			userID, _ := auth.GetUserID(c)
			logger.Warn("Charged request failed upstream",
				"user_id", userID, "service", service, "tokens_left", left, "endpoint", string(endpoint))
		}
		h.fail(c, endpoint, err)
		return
	}

	status := resp.Status
	if endpoint == RAG || status == 0 {
		status = fallback
	}
	api.OK(c, status, resp.Body)
}

func (h *Handler) fail(c *gin.Context, endpoint Endpoint, err error) {
	var e *Error
	if !errors.As(err, &e) {
		logger.WithError(err).WithField("endpoint", string(endpoint)).Error("AI request failed")
		api.Fail(c, http.StatusInternalServerError, "Internal server error")
		return
	}
	out := api.Envelope{Success: false, Error: e.Message}
	if len(e.Data) > 0 {
		out.Data = e.Data
	}
	c.JSON(e.Status, out)
}

// Session follow-ups are not charged: the session was paid for when it was created.

// InterviewQuestion godoc
// @Summary      Current question of a text interview
// @Tags         ai
// @Security     BearerAuth
// @Produce      json
// @Param        session_id path string true "Session ID"
// @Success      200 {object} api.Envelope
// @Failure      400 {object} api.ErrorResponse
// @Router       /api/v1/interview/{session_id}/question [get]
func (h *Handler) InterviewQuestion(c *gin.Context) {
	h.sessionGet(c, InterviewQuestion)
}

// InterviewAnalysis godoc
// @Summary      Analysis of a finished text interview
// @Tags         ai
// @Security     BearerAuth
// @Produce      json
// @Param        session_id path string true "Session ID"
// @Success      200 {object} api.Envelope
// @Router       /api/v1/interview/{session_id}/analysis [get]
func (h *Handler) InterviewAnalysis(c *gin.Context) {
	h.sessionGet(c, InterviewAnalysis)
}

// InterviewStatus godoc
// @Summary      Status of a text interview
// @Tags         ai
// @Security     BearerAuth
// @Produce      json
// @Param        session_id path string true "Session ID"
// @Success      200 {object} api.Envelope
// @Router       /api/v1/interview/{session_id}/status [get]
func (h *Handler) InterviewStatus(c *gin.Context) {
	h.sessionGet(c, InterviewStatus)
}

// SubmitAnswer godoc
// @Summary      Answer the current interview question
// @Tags         ai
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        session_id path string true "Session ID"
// @Param        request body AnswerRequest true "Answer"
// @Success      200 {object} api.Envelope
// @Failure      400 {object} api.ErrorResponse
// @Router       /api/v1/interview/{session_id}/answer [post]
func (h *Handler) SubmitAnswer(c *gin.Context) {
	sessionID, ok := sessionParamFrom(c)
	if !ok {
		return
	}
	var req AnswerRequest
	if !bind(c, &req, msgAnswerFields) {
		return
	}
	h.call(c, http.MethodPost, InterviewAnswer, sessionID, &req)
}

// Transcribe godoc
// @Summary      Transcribe an audio chunk of a voice interview
// @Tags         ai
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        request body TranscribeRequest true "Audio chunk"
// @Success      200 {object} api.Envelope
// @Failure      400 {object} api.ErrorResponse
// @Router       /api/v1/voice-interview/transcribe [post]
func (h *Handler) Transcribe(c *gin.Context) {
	var req TranscribeRequest
	if !bind(c, &req, msgTranscribeFields) {
		return
	}
	if req.AudioFormat == "" {
		req.AudioFormat = defaultAudioFormat
	}
	if req.SampleRate <= 0 {
		req.SampleRate = defaultSampleRate
	}
	h.call(c, http.MethodPost, VoiceTranscribe, "", &req)
}

// StartVoiceInterview godoc
// @Summary      Start a voice interview and get the greeting
// @Tags         ai
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        request body StartRequest true "Session"
// @Success      200 {object} api.Envelope
// @Failure      400 {object} api.ErrorResponse
// @Router       /api/v1/voice-interview/start [post]
func (h *Handler) StartVoiceInterview(c *gin.Context) {
	var req StartRequest
	if !bind(c, &req, msgStartFields) {
		return
	}
	h.call(c, http.MethodPost, VoiceStart, "", &req)
}

// ProcessVoiceMessage godoc
// @Summary      Send a candidate message and get the interviewer's reply
// @Tags         ai
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        request body ProcessRequest true "Message"
// @Success      200 {object} api.Envelope
// @Failure      400 {object} api.ErrorResponse
// @Router       /api/v1/voice-interview/process [post]
func (h *Handler) ProcessVoiceMessage(c *gin.Context) {
	var req ProcessRequest
	if !bind(c, &req, msgProcessFields) {
		return
	}
	if req.IncludeAudio == nil {
		include := true
		req.IncludeAudio = &include
	}
	h.call(c, http.MethodPost, VoiceProcess, "", &req)
}

// VoiceState godoc
// @Summary      Current state of a voice interview
// @Tags         ai
// @Security     BearerAuth
// @Produce      json
// @Param        session_id path string true "Session ID"
// @Success      200 {object} api.Envelope
// @Router       /api/v1/voice-interview/{session_id}/state [get]
func (h *Handler) VoiceState(c *gin.Context) {
	h.sessionGet(c, VoiceState)
}

// VoiceStatus godoc
// @Summary      Status of a voice interview
// @Tags         ai
// @Security     BearerAuth
// @Produce      json
// @Param        session_id path string true "Session ID"
// @Success      200 {object} api.Envelope
// @Router       /api/v1/voice-interview/{session_id}/status [get]
func (h *Handler) VoiceStatus(c *gin.Context) {
	h.sessionGet(c, VoiceStatus)
}

// VoiceAnalysis godoc
// @Summary      Analysis of a finished voice interview
// @Tags         ai
// @Security     BearerAuth
// @Produce      json
// @Param        session_id path string true "Session ID"
// @Success      200 {object} api.Envelope
// @Router       /api/v1/voice-interview/{session_id}/analysis [get]
func (h *Handler) VoiceAnalysis(c *gin.Context) {
	h.sessionGet(c, VoiceAnalysis)
}

func (h *Handler) sessionGet(c *gin.Context, endpoint Endpoint) {
	sessionID, ok := sessionParamFrom(c)
	if !ok {
		return
	}
	h.call(c, http.MethodGet, endpoint, sessionID, nil)
}

// sessionParamFrom rejects the literal "undefined" and "null" ids browsers
// send when a client loses its session.
func sessionParamFrom(c *gin.Context) (string, bool) {
	id := strings.TrimSpace(c.Param("session_id"))
	if id == "" || id == "undefined" || id == "null" {
		received := id
		if received == "" {
			received = "undefined"
		}
		api.Fail(c, http.StatusBadRequest, fmt.Sprintf("session_id parameter is required. Received: %s", received))
		return "", false
	}
	return id, true
}

func (h *Handler) call(c *gin.Context, method string, endpoint Endpoint, sessionID string, payload interface{}) {
	resp, err := h.client.Call(c.Request.Context(), method, endpoint, sessionID, payload)
	if err != nil {
		h.fail(c, endpoint, err)
		return
	}

	status := resp.Status
	if status == 0 {
		status = http.StatusOK
	}
	api.OK(c, status, resp.Body)
}
