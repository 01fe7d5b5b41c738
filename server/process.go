package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/maastricht-university/talktime/aggregate"
	"github.com/maastricht-university/talktime/metrics"
	"github.com/maastricht-university/talktime/orchestrator"
)

// Processor runs the speech/classification pipeline for one saved upload.
type Processor interface {
	Process(ctx context.Context, ws *orchestrator.Workspace, audioPath string) (aggregate.Report, error)
}

// Client-facing messages; detail stays in the server log.
const (
	msgNoAudio    = "No audio file provided"
	msgNoFilename = "No selected file"
	msgTooLarge   = "Audio file too large"
	msgUnreadable = "Could not read upload"
	msgFailed     = "Transcription failed"
)

var (
	errNoAudio    = errors.New("no audio part in request")
	errNoFilename = errors.New("audio part has an empty filename")
	errPanic      = errors.New("handler panic")
)

// Response is the JSON body returned for a processed recording.
type Response struct {
	FemaleRatio   float64  `json:"female_ratio"`
	MaleRatio     float64  `json:"male_ratio"`
	FemaleSeconds string   `json:"female_seconds"`
	MaleSeconds   string   `json:"male_seconds"`
	TotalSeconds  string   `json:"total_seconds"`
	Transcript    []string `json:"transcript"`
}

func NewResponse(r aggregate.Report) Response {
	transcript := r.Transcript
	if transcript == nil {
		transcript = []string{}
	}
	return Response{
		FemaleRatio:   r.FemaleRatio,
		MaleRatio:     r.MaleRatio,
		FemaleSeconds: fmt.Sprintf("%.1f", r.FemaleSeconds),
		MaleSeconds:   fmt.Sprintf("%.1f", r.MaleSeconds),
		TotalSeconds:  fmt.Sprintf("%.1f", r.TotalSeconds),
		Transcript:    transcript,
	}
}

func errorBody(msg string) gin.H { return gin.H{"error": msg} }

// handleProcess serves POST /process.
func (s *Server) handleProcess(c *gin.Context) {
	log := s.log.WithField("request_id", requestID(c))

	limit := s.cfg.Server.MaxUploadMB << 20
	if limit > 0 {
		// stop reading once the body cannot hold an acceptable file
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit+multipartSlack)
	}

	fh, err := c.FormFile("audio")
	if err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			s.tooLarge(c, log.WithField("limit", tooLarge.Limit))
		case errors.Is(err, http.ErrMissingFile):
			inputErr := errNoAudio
			if form := c.Request.MultipartForm; form != nil && len(form.Value["audio"]) > 0 {
				// a part without filename is parsed as a plain value
				inputErr = errNoFilename
			}
			s.reject(c, log, inputErr, err)
		case errors.Is(err, http.ErrNotMultipart), errors.Is(err, http.ErrMissingBoundary):
			s.reject(c, log, errNoAudio, err)
		default:
			log.WithError(err).Warn("upload rejected: body unreadable")
			metrics.RecordRequest("bad_request")
			c.JSON(http.StatusBadRequest, errorBody(msgUnreadable))
		}
		return
	}
	if strings.TrimSpace(fh.Filename) == "" {
		s.reject(c, log, errNoFilename, nil)
		return
	}
	if limit > 0 && fh.Size > limit {
		s.tooLarge(c, log.WithField("size", fh.Size))
		return
	}

	ws, err := orchestrator.NewWorkspace(s.cfg.Paths.Uploads, requestID(c))
	if err != nil {
		s.fail(c, log, fmt.Errorf("create workspace: %w", err))
		return
	}
	if !s.cfg.Paths.KeepArtifacts {
		defer func() {
			if err := ws.Remove(); err != nil {
				log.WithError(err).Warn("workspace cleanup failed")
			}
		}()
	}

	savePath := ws.Path(fh.Filename)
	if err := c.SaveUploadedFile(fh, savePath); err != nil {
		s.fail(c, log, fmt.Errorf("save upload: %w", err))
		return
	}
	log.WithFields(logrus.Fields{"path": savePath, "size": fh.Size}).Info("audio file saved")

	rep, err := s.proc.Process(c.Request.Context(), ws, savePath)
	if err != nil {
		s.fail(c, log, err)
		return
	}

	metrics.RecordRequest("ok")
	c.JSON(http.StatusOK, NewResponse(rep))
}

// multipartSlack covers part headers and boundaries around the file itself.
const multipartSlack = 64 << 10

func (s *Server) tooLarge(c *gin.Context, log logrus.FieldLogger) {
	log.Warn("upload rejected: too large")
	metrics.RecordRequest("bad_request")
	c.JSON(http.StatusRequestEntityTooLarge, errorBody(msgTooLarge))
}

func (s *Server) reject(c *gin.Context, log logrus.FieldLogger, inputErr, cause error) {
	msg := msgNoAudio
	if errors.Is(inputErr, errNoFilename) {
		msg = msgNoFilename
	}
	entry := log.WithField("reason", inputErr.Error())
	if cause != nil {
		entry = entry.WithError(cause)
	}
	entry.Info("upload rejected")
	metrics.RecordRequest("bad_request")
	c.JSON(http.StatusBadRequest, errorBody(msg))
}

func (s *Server) fail(c *gin.Context, log logrus.FieldLogger, err error) {
	stage := "internal"
	switch {
	case errors.Is(err, orchestrator.ErrAudio):
		stage = "audio"
	case errors.Is(err, orchestrator.ErrTranscription):
		stage = "transcription"
	case errors.Is(err, orchestrator.ErrClassification):
		stage = "classification"
	case errors.Is(err, errPanic):
		stage = "panic"
	}
	log.WithError(err).WithField("stage", stage).Error("transcription failed")
	metrics.RecordRequest("failed")
	c.AbortWithStatusJSON(http.StatusInternalServerError, errorBody(msgFailed))
}
