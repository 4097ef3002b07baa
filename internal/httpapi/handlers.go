package httpapi

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"codeberg.org/veldt/ventctl/internal/control"
	"codeberg.org/veldt/ventctl/internal/errors"
	"codeberg.org/veldt/ventctl/internal/history"
	"codeberg.org/veldt/ventctl/internal/logger"
)

// statusResponse mirrors the controller snapshot. Unknown readings are
// serialized as null so the UI can distinguish "no data" from zero.
type statusResponse struct {
	SensorOK     bool     `json:"sensor_ok"`
	ManualMode   bool     `json:"manual_mode"`
	Running      bool     `json:"running"`
	TargetRate   int      `json:"target_bpm"`
	CycleMS      int64    `json:"cycle_ms"`
	Saturation   *float64 `json:"spo2"`
	PulseRate    *float64 `json:"hr"`
	TempC        *float64 `json:"temp_c"`
	TempF        *float64 `json:"temp_f"`
	AlarmActive  bool     `json:"alarm_active"`
	BeatDetected bool     `json:"beat_detected"`
	PPG          []uint16 `json:"ppg,omitempty"`
}

type resultResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	snap := s.ctl.Snapshot()

	writeJSON(w, http.StatusOK, statusResponse{
		SensorOK:     snap.SensorOK,
		ManualMode:   snap.ManualMode,
		Running:      snap.Running,
		TargetRate:   snap.TargetRate,
		CycleMS:      snap.CycleDuration.Milliseconds(),
		Saturation:   nullable(snap.Saturation),
		PulseRate:    nullable(snap.PulseRate),
		TempC:        nullable(snap.TempC),
		TempF:        nullable(snap.TempF),
		AlarmActive:  snap.AlarmActive,
		BeatDetected: snap.BeatDetected,
		PPG:          snap.PPG,
	})
}

func (s *Server) handleStart(w http.ResponseWriter, _ *http.Request) {
	s.ctl.Start(time.Now())
	writeJSON(w, http.StatusOK, resultResponse{Status: "ok", Message: "ventilation started"})
}

func (s *Server) handleStop(w http.ResponseWriter, _ *http.Request) {
	s.ctl.Stop()
	writeJSON(w, http.StatusOK, resultResponse{Status: "ok", Message: "ventilation stopped"})
}

func (s *Server) handleSetSaturation(w http.ResponseWriter, r *http.Request) {
	val, err := strconv.ParseFloat(r.URL.Query().Get("val"), 64)
	if err != nil {
		writeError(w, errors.New().WithMessage(control.ErrSaturationOutOfRange, "val must be a number"))
		return
	}

	if err := s.ctl.SetManualSaturation(val); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, resultResponse{Status: "ok", Message: "manual saturation engaged"})
}

func (s *Server) handleSetAuto(w http.ResponseWriter, _ *http.Request) {
	s.ctl.SetAuto()
	writeJSON(w, http.StatusOK, resultResponse{Status: "ok", Message: "automatic rate selection engaged"})
}

func (s *Server) handleSetRate(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	rate, err := strconv.Atoi(q.Get("bpm"))
	if err != nil {
		writeError(w, errors.New().WithMessage(control.ErrRateOutOfRange, "bpm must be an integer"))
		return
	}

	if err := s.ctl.SetTargetRate(q.Get("password"), rate); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, resultResponse{Status: "ok", Message: "target rate override applied"})
}

func (s *Server) handleGetData(w http.ResponseWriter, r *http.Request) {
	window := r.URL.Query().Get("duration")
	if window == "" {
		window = "all"
	}

	now := time.Now()
	points, err := s.ctl.History(now, window)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"age", "spo2", "hr", "temp_f", "target_bpm"})
	for _, p := range points {
		_ = cw.Write(csvRow(now, p))
	}
	cw.Flush()
}

// csvRow renders one trend row. Ages are whole minutes; unknown
// readings become empty fields.
func csvRow(now time.Time, p history.Point) []string {
	age := int(now.Sub(p.Timestamp).Minutes())

	return []string{
		fmt.Sprintf("%d min ago", age),
		csvFloat(p.Saturation),
		csvFloat(p.PulseRate),
		csvFloat(p.TempF),
		strconv.Itoa(p.TargetRate),
	}
}

func csvFloat(v float64) string {
	if math.IsNaN(v) {
		return ""
	}

	return strconv.FormatFloat(v, 'f', 1, 64)
}

func nullable(v float64) *float64 {
	if math.IsNaN(v) {
		return nil
	}

	return &v
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Error().Err(err).Msg("Failed to encode response")
	}
}

// writeError maps domain error codes onto HTTP statuses: a failed
// passphrase is forbidden, every other command rejection is a bad
// request.
func writeError(w http.ResponseWriter, err error) {
	code := errors.CodeOf(err)

	status := http.StatusBadRequest
	if code == control.ErrBadPassphrase {
		status = http.StatusForbidden
	}

	writeJSON(w, status, errorResponse{Error: string(code), Message: err.Error()})
}
