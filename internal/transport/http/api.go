package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"speak-assessment-service/internal/app"
	"speak-assessment-service/internal/domain"
	"speak-assessment-service/internal/export"
	"speak-assessment-service/internal/scoring"

	"github.com/go-chi/chi/v5"
)

const maxScoreBody = 64 << 10

type sectionView struct {
	domain.Section
	TimeMinutes int `json:"timeMinutes"`
}

type scoreRequest struct {
	Reference string `json:"reference"`
	Spoken    string `json:"spoken"`
}

type scoreResponse struct {
	AccuracyPercent int                 `json:"accuracyPercent"`
	Level           string              `json:"level"`
	Words           []scoring.WordMatch `json:"words"`
}

// API serves the REST surface around the websocket sessions: the section catalog,
// stateless scoring and the completed-session handoff.
type API struct {
	service *app.AssessmentService
	logger  *slog.Logger
}

func NewAPI(service *app.AssessmentService, logger *slog.Logger) *API {
	if logger == nil {
		logger = slog.Default()
	}
	return &API{service: service, logger: logger}
}

func (a *API) Mount(r chi.Router) {
	r.Get("/sections", a.listSections)
	r.Post("/score", a.score)
	r.Get("/results/{id}", a.getResult)
	r.Get("/results/{id}/export.xlsx", a.exportResult)
}

func (a *API) listSections(w http.ResponseWriter, _ *http.Request) {
	catalog := domain.Catalog()
	out := make([]sectionView, len(catalog))
	for i, s := range catalog {
		out[i] = sectionView{Section: s, TimeMinutes: s.TimeBudgetMinutes()}
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) score(w http.ResponseWriter, r *http.Request) {
	var req scoreRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxScoreBody))
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid score request")
		return
	}
	acc := scoring.Accuracy(req.Reference, req.Spoken)
	writeJSON(w, http.StatusOK, scoreResponse{
		AccuracyPercent: acc,
		Level:           string(scoring.Level(acc)),
		Words:           scoring.WordDiff(req.Reference, req.Spoken),
	})
}

func (a *API) getResult(w http.ResponseWriter, r *http.Request) {
	completion, ok := a.result(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, completePayload{
		Completion: completion,
		Summary:    scoring.Summarize(completion.AnswerRecords),
	})
}

func (a *API) exportResult(w http.ResponseWriter, r *http.Request) {
	completion, ok := a.result(w, r)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := export.WriteWorkbook(&buf, completion, scoring.Summarize(completion.AnswerRecords)); err != nil {
		a.logger.ErrorContext(r.Context(), "export result", "session_id", completion.SessionID, "err", err)
		writeError(w, http.StatusInternalServerError, "internal", "export failed")
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="`+completion.SessionID+`.xlsx"`)
	_, _ = w.Write(buf.Bytes())
}

func (a *API) result(w http.ResponseWriter, r *http.Request) (domain.Completion, bool) {
	completion, err := a.service.Result(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, domain.ErrResultNotFound) {
			writeError(w, http.StatusNotFound, errorCode(err), "result not found or expired")
			return domain.Completion{}, false
		}
		a.logger.ErrorContext(r.Context(), "load result", "err", err)
		writeError(w, http.StatusInternalServerError, "internal", "could not load result")
		return domain.Completion{}, false
	}
	return completion, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorPayload{Code: code, Message: message})
}
