package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/babelcloud/vidcap/config"
	"github.com/babelcloud/vidcap/internal/capture/core"
	"github.com/babelcloud/vidcap/internal/capture/pipeline"
	"github.com/babelcloud/vidcap/internal/capture/recorder"
	"github.com/babelcloud/vidcap/internal/capture/sampler"
	"github.com/babelcloud/vidcap/internal/preset"
	"github.com/babelcloud/vidcap/internal/util"
	"github.com/babelcloud/vidcap/internal/version"
)

type cropSpec struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

func (c cropSpec) toCore() core.CropArea {
	return core.CropArea{X: c.X, Y: c.Y, Width: c.Width, Height: c.Height}
}

// captureRequest is shared by the frames and clip endpoints; each endpoint
// reads only the override fields that apply to it. A client that wants live
// progress picks its own job_id and subscribes to it before posting.
type captureRequest struct {
	JobID   string   `json:"job_id,omitempty"`
	Path    string   `json:"path"`
	StartMS int64    `json:"start_ms"`
	EndMS   int64    `json:"end_ms"`
	Crop    cropSpec `json:"crop"`
	Preset  string   `json:"preset,omitempty"`

	FrameBudget   int     `json:"frame_budget,omitempty"`
	BoxSize       int     `json:"box_size,omitempty"`
	Quality       float64 `json:"quality,omitempty"`
	Bitrate       int     `json:"bitrate,omitempty"`
	UpscaleTarget float64 `json:"upscale_target,omitempty"`
}

type frameDTO struct {
	Data        []byte `json:"data"`
	MIME        string `json:"mime"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	TimestampMS int64  `json:"timestamp_ms"`
}

type framesResponse struct {
	JobID  string     `json:"job_id"`
	Frames []frameDTO `json:"frames"`
}

type clipResponse struct {
	JobID      string `json:"job_id"`
	Data       []byte `json:"data"`
	MIME       string `json:"mime"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	DurationMS int64  `json:"duration_ms"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": version.Version,
	})
}

func (s *Server) handleCaptureFrames(w http.ResponseWriter, r *http.Request) {
	req, jobID, ok := s.decodeCapture(w, r)
	if !ok {
		return
	}
	b := s.jobs.broadcaster(jobID)
	defer s.jobs.finish(jobID)

	h, err := s.pool.Handle(r.Context(), req.Path)
	if err != nil {
		writeError(w, http.StatusNotFound, fmt.Errorf("open source: %w", err))
		return
	}

	opts := sampler.Options{
		FrameBudget: config.GetFrameBudget(),
		BoxSize:     config.GetStillBox(),
		Quality:     config.GetStillQuality(),
		CaptureFPS:  config.GetCaptureFPS(),
		SeekTimeout: config.GetSeekTimeout(),
	}
	if req.FrameBudget > 0 {
		opts.FrameBudget = req.FrameBudget
	}
	if req.BoxSize > 0 {
		opts.BoxSize = req.BoxSize
	}
	if req.Quality > 0 {
		opts.Quality = req.Quality
	}

	frames, err := s.sample(h, captureRange(req), req.Crop.toCore(), opts, func(done, total int) {
		b.Publish(pipeline.ProgressEvent{Job: jobID, Phase: "sampling", Done: done, Total: total})
	})
	if err != nil {
		b.Publish(pipeline.ProgressEvent{Job: jobID, Phase: "failed"})
		writeError(w, statusForError(err), err)
		return
	}
	b.Publish(pipeline.ProgressEvent{Job: jobID, Phase: "resolved", Done: len(frames), Total: len(frames)})

	resp := framesResponse{JobID: jobID, Frames: make([]frameDTO, 0, len(frames))}
	for _, f := range frames {
		resp.Frames = append(resp.Frames, frameDTO{
			Data:        f.Data,
			MIME:        f.MIME,
			Width:       f.Width,
			Height:      f.Height,
			TimestampMS: f.Timestamp.Milliseconds(),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCaptureClip(w http.ResponseWriter, r *http.Request) {
	req, jobID, ok := s.decodeCapture(w, r)
	if !ok {
		return
	}
	b := s.jobs.broadcaster(jobID)
	defer s.jobs.finish(jobID)

	h, err := s.pool.Handle(r.Context(), req.Path)
	if err != nil {
		writeError(w, http.StatusNotFound, fmt.Errorf("open source: %w", err))
		return
	}

	opts := recorder.Options{
		Bitrate:          config.GetBitrate(),
		FPS:              config.GetCaptureFPS(),
		UpscaleTarget:    config.GetUpscaleTarget(),
		MaxDimension:     config.GetMaxDimension(),
		SeekTimeout:      config.GetSeekTimeout(),
		WatchdogGrace:    config.GetWatchdogGrace(),
		MuteRestoreDelay: config.GetMuteRestoreDelay(),
		FFmpegPath:       config.GetFFmpegPath(),
		OnPhase: func(phase recorder.Phase) {
			b.Publish(pipeline.ProgressEvent{Job: jobID, Phase: string(phase)})
		},
	}
	if req.Bitrate > 0 {
		opts.Bitrate = req.Bitrate
	}
	if req.UpscaleTarget > 0 {
		opts.UpscaleTarget = req.UpscaleTarget
	}

	clip, err := s.record(h, captureRange(req), req.Crop.toCore(), opts)
	if err != nil {
		writeError(w, statusForError(err), err)
		return
	}

	writeJSON(w, http.StatusOK, clipResponse{
		JobID:      jobID,
		Data:       clip.Data,
		MIME:       clip.MIME,
		Width:      clip.Width,
		Height:     clip.Height,
		DurationMS: clip.Duration.Milliseconds(),
	})
}

// decodeCapture parses the request body, folds in the named preset, and
// assigns a job id when the client did not pick one.
func (s *Server) decodeCapture(w http.ResponseWriter, r *http.Request) (captureRequest, string, bool) {
	var req captureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return req, "", false
	}
	if req.Path == "" {
		writeError(w, http.StatusBadRequest, errors.New("path is required"))
		return req, "", false
	}
	if err := applyPreset(&req); err != nil {
		writeError(w, statusForError(err), err)
		return req, "", false
	}
	jobID := req.JobID
	if jobID == "" {
		jobID = uuid.NewString()
	}
	return req, jobID, true
}

// applyPreset fills zero-valued request fields from the named preset, so
// explicit request values always win over stored ones.
func applyPreset(req *captureRequest) error {
	if req.Preset == "" {
		return nil
	}
	p, err := preset.Default.Resolve(req.Preset)
	if err != nil {
		return &core.ValidationError{Reason: err.Error()}
	}
	if req.Crop.Width == 0 && req.Crop.Height == 0 && p.Crop != "" {
		c, err := core.ParseCrop(p.Crop)
		if err != nil {
			return err
		}
		req.Crop = cropSpec{X: c.X, Y: c.Y, Width: c.Width, Height: c.Height}
	}
	if req.FrameBudget == 0 {
		req.FrameBudget = p.FrameBudget
	}
	if req.BoxSize == 0 {
		req.BoxSize = p.BoxSize
	}
	if req.Quality == 0 {
		req.Quality = p.Quality
	}
	if req.Bitrate == 0 {
		req.Bitrate = p.Bitrate
	}
	if req.UpscaleTarget == 0 {
		req.UpscaleTarget = p.UpscaleTarget
	}
	return nil
}

func captureRange(req captureRequest) core.TimeRange {
	return core.TimeRange{
		Start: time.Duration(req.StartMS) * time.Millisecond,
		End:   time.Duration(req.EndMS) * time.Millisecond,
	}
}

func statusForError(err error) int {
	var validationErr *core.ValidationError
	var timeoutErr *core.TimeoutError
	var playbackErr *core.PlaybackError

	switch {
	case errors.As(err, &validationErr):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrSourceBusy):
		return http.StatusConflict
	case errors.As(err, &timeoutErr):
		return http.StatusGatewayTimeout
	case errors.As(err, &playbackErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		util.GetLogger().Warn("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}
