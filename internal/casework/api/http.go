package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	authz "github.com/oncoayuda/casework/internal/auth"
	"github.com/oncoayuda/casework/internal/casework/domain"
	"github.com/oncoayuda/casework/internal/casework/service"
	"github.com/oncoayuda/casework/internal/shared/auth"
	"github.com/oncoayuda/casework/internal/shared/errors"
	"github.com/oncoayuda/casework/internal/shared/types"
)

// Handler provides HTTP handlers for the casework workflow
type Handler struct {
	svc *service.Service
	log *zap.Logger
}

// NewHandler creates a new casework handler
func NewHandler(svc *service.Service, log *zap.Logger) *Handler {
	return &Handler{svc: svc, log: log}
}

// Routes registers the casework routes
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Route("/cases", func(r chi.Router) {
		r.Get("/", h.ListCases)
		r.Post("/", h.RegisterCase)

		r.Route("/{caseID}", func(r chi.Router) {
			r.Get("/", h.GetCase)
			r.Get("/beneficiary", h.GetCaseBeneficiary)

			// Evaluations
			r.Get("/social-evaluation", h.GetSocialEvaluation)
			r.Post("/social-evaluation", h.RecordSocialEvaluation)
			r.Get("/psychological-evaluation", h.GetPsychologicalEvaluation)
			r.Post("/psychological-evaluation", h.RecordPsychologicalEvaluation)

			// Decision
			r.Post("/decide", h.DecideCase)
			r.Post("/reject", h.RejectCase)
		})
	})

	r.Route("/beneficiaries", func(r chi.Router) {
		r.Get("/", h.ListBeneficiaries)

		r.Route("/{beneficiaryID}", func(r chi.Router) {
			r.Get("/", h.GetBeneficiary)
			r.Post("/medical-status", h.TransitionMedicalStatus)
			r.Put("/treatment-progress", h.UpdateTreatmentProgress)
			r.Put("/owner", h.ReassignOwner)
			r.Put("/status", h.ChangeAdministrativeStatus)
			r.Get("/medical-history", h.GetMedicalHistory)

			r.Get("/aid-requests", h.ListBeneficiaryAidRequests)
			r.Post("/aid-requests", h.SubmitAidRequest)
		})
	})

	r.Route("/aid-requests", func(r chi.Router) {
		r.Get("/", h.ListAidRequests)

		r.Route("/{requestID}", func(r chi.Router) {
			r.Get("/", h.GetAidRequest)
			r.Post("/review", h.ReviewAidRequest)
			r.Post("/deliver", h.DeliverAidRequest)
		})
	})

	return r
}

// --- Request types ---

type SocialEvaluationRequest struct {
	Scores       domain.SocialScores `json:"scores"`
	Observations string              `json:"observations"`
}

type DecideCaseRequest struct {
	AssigneeID types.ID `json:"assignee_id"`
}

type RejectCaseRequest struct {
	Reason string `json:"reason"`
}

type MedicalTransitionRequest struct {
	To      domain.MedicalStatus  `json:"estado_medico"`
	Details domain.MedicalDetails `json:"details"`
}

type TreatmentProgressRequest struct {
	Phase string `json:"treatment_phase"`
	Week  *int   `json:"protocol_week,omitempty"`
}

type ReassignOwnerRequest struct {
	OwnerID types.ID `json:"owner_id"`
}

type AdminStatusRequest struct {
	Status domain.AdminStatus `json:"estado_beneficiario"`
}

type ReviewAidRequestRequest struct {
	Decision       domain.ReviewDecision `json:"decision"`
	ApprovedAmount *float64              `json:"approved_amount,omitempty"`
	Reason         string                `json:"reason,omitempty"`
}

// --- Cases ---

func (h *Handler) ListCases(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	if code := q.Get("code"); code != "" {
		h.findCaseByCode(w, r, actor, code)
		return
	}

	filter := domain.CaseFilter{Page: pageFrom(r)}
	if s := q.Get("status"); s != "" {
		status := domain.CaseStatus(s)
		filter.Status = &status
	}
	if c := q.Get("created_by"); c != "" {
		createdBy := types.ID(c)
		filter.CreatedBy = &createdBy
	}

	cases, total, err := h.svc.ListCases(r.Context(), actor, filter)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"data":  cases,
		"total": total,
	})
}

// findCaseByCode answers a code lookup in list shape; an unknown code is an empty list.
func (h *Handler) findCaseByCode(w http.ResponseWriter, r *http.Request, actor authz.Actor, code string) {
	c, err := h.svc.FindCaseByCode(r.Context(), actor, code)
	if errors.Is(err, errors.ErrNotFound) {
		writeJSON(w, http.StatusOK, map[string]any{"data": []domain.CaseRecord{}, "total": 0})
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"data":  []*domain.CaseRecord{c},
		"total": 1,
	})
}

func (h *Handler) RegisterCase(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	var req domain.CaseIntake
	if !h.decode(w, r, &req) {
		return
	}

	c, err := h.svc.RegisterCase(r.Context(), actor, req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (h *Handler) GetCase(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "caseID")
	if !ok {
		return
	}

	c, err := h.svc.GetCase(r.Context(), actor, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *Handler) GetCaseBeneficiary(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "caseID")
	if !ok {
		return
	}

	b, err := h.svc.GetCaseBeneficiary(r.Context(), actor, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (h *Handler) RecordSocialEvaluation(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "caseID")
	if !ok {
		return
	}
	var req SocialEvaluationRequest
	if !h.decode(w, r, &req) {
		return
	}

	e, err := h.svc.RecordSocialEvaluation(r.Context(), actor, id, req.Scores, req.Observations)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

func (h *Handler) GetSocialEvaluation(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "caseID")
	if !ok {
		return
	}

	e, err := h.svc.GetSocialEvaluation(r.Context(), actor, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (h *Handler) RecordPsychologicalEvaluation(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "caseID")
	if !ok {
		return
	}
	var req domain.PsychologicalReport
	if !h.decode(w, r, &req) {
		return
	}

	e, err := h.svc.RecordPsychologicalEvaluation(r.Context(), actor, id, req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

func (h *Handler) GetPsychologicalEvaluation(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "caseID")
	if !ok {
		return
	}

	e, err := h.svc.GetPsychologicalEvaluation(r.Context(), actor, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (h *Handler) DecideCase(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "caseID")
	if !ok {
		return
	}
	var req DecideCaseRequest
	if !h.decode(w, r, &req) {
		return
	}

	b, err := h.svc.DecideCase(r.Context(), actor, id, req.AssigneeID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

func (h *Handler) RejectCase(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "caseID")
	if !ok {
		return
	}
	var req RejectCaseRequest
	if r.ContentLength != 0 && !h.decode(w, r, &req) {
		return
	}

	c, err := h.svc.RejectCase(r.Context(), actor, id, req.Reason)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// --- Beneficiaries ---

func (h *Handler) ListBeneficiaries(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	filter := domain.BeneficiaryFilter{Page: pageFrom(r)}
	if o := q.Get("owner_id"); o != "" {
		owner := types.ID(o)
		filter.OwnerID = &owner
	}
	if s := q.Get("estado_beneficiario"); s != "" {
		status := domain.AdminStatus(s)
		filter.AdminStatus = &status
	}
	if s := q.Get("estado_medico"); s != "" {
		status := domain.MedicalStatus(s)
		filter.MedicalStatus = &status
	}

	list, total, err := h.svc.ListBeneficiaries(r.Context(), actor, filter)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"data":  list,
		"total": total,
	})
}

func (h *Handler) GetBeneficiary(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "beneficiaryID")
	if !ok {
		return
	}

	b, err := h.svc.GetBeneficiary(r.Context(), actor, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (h *Handler) TransitionMedicalStatus(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "beneficiaryID")
	if !ok {
		return
	}
	var req MedicalTransitionRequest
	if !h.decode(w, r, &req) {
		return
	}

	b, err := h.svc.TransitionMedicalStatus(r.Context(), actor, id, req.To, req.Details)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (h *Handler) UpdateTreatmentProgress(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "beneficiaryID")
	if !ok {
		return
	}
	var req TreatmentProgressRequest
	if !h.decode(w, r, &req) {
		return
	}

	b, err := h.svc.UpdateTreatmentProgress(r.Context(), actor, id, req.Phase, req.Week)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (h *Handler) ReassignOwner(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "beneficiaryID")
	if !ok {
		return
	}
	var req ReassignOwnerRequest
	if !h.decode(w, r, &req) {
		return
	}

	b, err := h.svc.ReassignOwner(r.Context(), actor, id, req.OwnerID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (h *Handler) ChangeAdministrativeStatus(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "beneficiaryID")
	if !ok {
		return
	}
	var req AdminStatusRequest
	if !h.decode(w, r, &req) {
		return
	}

	b, err := h.svc.ChangeAdministrativeStatus(r.Context(), actor, id, req.Status)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (h *Handler) GetMedicalHistory(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "beneficiaryID")
	if !ok {
		return
	}

	history, err := h.svc.GetMedicalHistory(r.Context(), actor, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"data":  history,
		"total": len(history),
	})
}

// --- Aid requests ---

func (h *Handler) SubmitAidRequest(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "beneficiaryID")
	if !ok {
		return
	}
	var req domain.AidRequestInput
	if !h.decode(w, r, &req) {
		return
	}

	ar, err := h.svc.SubmitAidRequest(r.Context(), actor, id, req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ar)
}

func (h *Handler) ListBeneficiaryAidRequests(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "beneficiaryID")
	if !ok {
		return
	}
	h.listAidRequests(w, r, &id)
}

func (h *Handler) ListAidRequests(w http.ResponseWriter, r *http.Request) {
	var beneficiary *types.ID
	if b := r.URL.Query().Get("beneficiary_id"); b != "" {
		id, err := types.ParseID(b)
		if err != nil {
			writeError(w, errors.BadRequest("invalid beneficiary ID"))
			return
		}
		beneficiary = &id
	}
	h.listAidRequests(w, r, beneficiary)
}

func (h *Handler) listAidRequests(w http.ResponseWriter, r *http.Request, beneficiary *types.ID) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	filter := domain.AidRequestFilter{BeneficiaryID: beneficiary, Page: pageFrom(r)}
	if s := r.URL.Query().Get("estado"); s != "" {
		status := domain.AidStatus(s)
		filter.Status = &status
	}

	list, total, err := h.svc.ListAidRequests(r.Context(), actor, filter)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"data":  list,
		"total": total,
	})
}

func (h *Handler) GetAidRequest(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "requestID")
	if !ok {
		return
	}

	ar, err := h.svc.GetAidRequest(r.Context(), actor, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ar)
}

func (h *Handler) ReviewAidRequest(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "requestID")
	if !ok {
		return
	}
	var req ReviewAidRequestRequest
	if !h.decode(w, r, &req) {
		return
	}

	ar, err := h.svc.ReviewAidRequest(r.Context(), actor, id, req.Decision, req.ApprovedAmount, req.Reason)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ar)
}

func (h *Handler) DeliverAidRequest(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "requestID")
	if !ok {
		return
	}
	var req domain.DeliveryInput
	if !h.decode(w, r, &req) {
		return
	}

	ar, err := h.svc.DeliverAidRequest(r.Context(), actor, id, req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ar)
}

// --- Helpers ---

// actor reads the authenticated caller placed in the context by the auth middleware.
func (h *Handler) actor(w http.ResponseWriter, r *http.Request) (authz.Actor, bool) {
	actor, ok := auth.GetActor(r.Context())
	if !ok {
		writeError(w, errors.Unauthorized("authentication required"))
		return authz.Actor{}, false
	}
	return actor, true
}

func pathID(w http.ResponseWriter, r *http.Request, param string) (types.ID, bool) {
	id, err := types.ParseID(chi.URLParam(r, param))
	if err != nil {
		writeError(w, errors.BadRequest("invalid "+param))
		return "", false
	}
	return id, true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.log.Debug("rejected request body", zap.String("path", r.URL.Path), zap.Error(err))
		writeError(w, errors.BadRequest("invalid request body"))
		return false
	}
	return true
}

func pageFrom(r *http.Request) domain.Page {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	return domain.Page{Limit: limit, Offset: offset}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")

	if appErr, ok := errors.As(err); ok {
		if appErr.Retryable() {
			w.Header().Set("Retry-After", "1")
		}
		w.WriteHeader(appErr.HTTPStatus)
		json.NewEncoder(w).Encode(map[string]any{
			"error":   appErr.Message,
			"code":    appErr.Code,
			"details": appErr.Details,
		})
		return
	}

	w.WriteHeader(http.StatusInternalServerError)
	json.NewEncoder(w).Encode(map[string]string{"error": "internal server error"})
}
