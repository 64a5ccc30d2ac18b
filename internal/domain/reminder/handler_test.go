package reminder

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/dosewatch/dosewatch/internal/platform/auth"
)

func newTestHandler() (*Handler, *echo.Echo, *mockRepo) {
	repo := newMockRepo()
	h := NewHandler(newTestService(repo))
	return h, echo.New(), repo
}

func newAuthedContext(e *echo.Echo, method, target, body, role string, patientID uuid.UUID) (echo.Context, *httptest.ResponseRecorder) {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	ctx := context.WithValue(req.Context(), auth.RoleKey, role)
	if patientID != uuid.Nil {
		ctx = context.WithValue(ctx, auth.PatientIDKey, patientID.String())
	}
	req = req.WithContext(ctx)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func httpStatus(t *testing.T, err error) int {
	t.Helper()
	if err == nil {
		return 0
	}
	he, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected *echo.HTTPError, got %T: %v", err, err)
	}
	return he.Code
}

func TestHandlerCreate_PatientPinnedToOwnRecord(t *testing.T) {
	h, e, _ := newTestHandler()
	own := uuid.New()
	other := uuid.New()

	// The body claims another patient; the token wins.
	body := `{"patient_id":"` + other.String() + `","medication_name":"Metformin","dose_text":"500mg","interval_seconds":3600,"total_doses":10}`
	c, rec := newAuthedContext(e, http.MethodPost, "/api/v1/reminders", body, auth.RolePatient, own)

	if err := h.Create(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}

	var created Reminder
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatal(err)
	}
	if created.PatientID != own {
		t.Errorf("expected reminder pinned to token patient %s, got %s", own, created.PatientID)
	}
	if created.NextDoseAt == nil {
		t.Error("expected next dose to be scheduled")
	}
}

func TestHandlerCreate_ClinicianRequiresPatientID(t *testing.T) {
	h, e, _ := newTestHandler()
	body := `{"medication_name":"Metformin","dose_text":"500mg","interval_seconds":3600,"total_doses":10}`
	c, _ := newAuthedContext(e, http.MethodPost, "/api/v1/reminders", body, auth.RoleClinician, uuid.Nil)

	if got := httpStatus(t, h.Create(c)); got != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", got)
	}
}

func TestHandlerCreate_InvalidPayload(t *testing.T) {
	h, e, _ := newTestHandler()
	body := `{"medication_name":"","interval_seconds":0,"total_doses":0}`
	c, _ := newAuthedContext(e, http.MethodPost, "/api/v1/reminders", body, auth.RolePatient, uuid.New())

	if got := httpStatus(t, h.Create(c)); got != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", got)
	}
}

func TestHandlerGet_HidesOtherPatients(t *testing.T) {
	h, e, _ := newTestHandler()
	owner := uuid.New()
	r := &Reminder{PatientID: owner, MedicationName: "Metformin", DoseText: "500mg", IntervalSeconds: 3600, TotalDoses: 5}
	if err := h.svc.Create(context.Background(), r); err != nil {
		t.Fatal(err)
	}

	c, _ := newAuthedContext(e, http.MethodGet, "/", "", auth.RolePatient, uuid.New())
	c.SetParamNames("id")
	c.SetParamValues(r.ID.String())

	if got := httpStatus(t, h.Get(c)); got != http.StatusNotFound {
		t.Errorf("expected 404 for foreign reminder, got %d", got)
	}
}

func TestHandlerGet_OwnerSucceeds(t *testing.T) {
	h, e, _ := newTestHandler()
	owner := uuid.New()
	r := &Reminder{PatientID: owner, MedicationName: "Metformin", DoseText: "500mg", IntervalSeconds: 3600, TotalDoses: 5}
	if err := h.svc.Create(context.Background(), r); err != nil {
		t.Fatal(err)
	}

	c, rec := newAuthedContext(e, http.MethodGet, "/", "", auth.RolePatient, owner)
	c.SetParamNames("id")
	c.SetParamValues(r.ID.String())

	if err := h.Get(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestHandlerGet_InvalidID(t *testing.T) {
	h, e, _ := newTestHandler()
	c, _ := newAuthedContext(e, http.MethodGet, "/", "", auth.RolePatient, uuid.New())
	c.SetParamNames("id")
	c.SetParamValues("not-a-uuid")

	if got := httpStatus(t, h.Get(c)); got != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", got)
	}
}

func TestHandlerMarkTaken_Success(t *testing.T) {
	h, e, repo := newTestHandler()
	owner := uuid.New()
	r := &Reminder{PatientID: owner, MedicationName: "Metformin", DoseText: "500mg", IntervalSeconds: 3600, TotalDoses: 5}
	if err := h.svc.Create(context.Background(), r); err != nil {
		t.Fatal(err)
	}

	c, rec := newAuthedContext(e, http.MethodPost, "/", "", auth.RolePatient, owner)
	c.SetParamNames("id")
	c.SetParamValues(r.ID.String())

	if err := h.MarkTaken(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if len(repo.events) != 1 {
		t.Errorf("expected a dose event, got %d", len(repo.events))
	}
}

func TestHandlerMarkTaken_CompletedConflict(t *testing.T) {
	h, e, _ := newTestHandler()
	owner := uuid.New()
	r := &Reminder{PatientID: owner, MedicationName: "Metformin", DoseText: "500mg", IntervalSeconds: 3600, TotalDoses: 1}
	if err := h.svc.Create(context.Background(), r); err != nil {
		t.Fatal(err)
	}
	if _, err := h.svc.MarkTaken(context.Background(), r.ID); err != nil {
		t.Fatal(err)
	}

	// Course is complete; deactivated reminders stay fetchable but further
	// acknowledgments conflict.
	c, _ := newAuthedContext(e, http.MethodPost, "/", "", auth.RolePatient, owner)
	c.SetParamNames("id")
	c.SetParamValues(r.ID.String())

	if got := httpStatus(t, h.MarkTaken(c)); got != http.StatusConflict {
		t.Errorf("expected 409, got %d", got)
	}
}

func TestHandlerDelete_Success(t *testing.T) {
	h, e, _ := newTestHandler()
	owner := uuid.New()
	r := &Reminder{PatientID: owner, MedicationName: "Metformin", DoseText: "500mg", IntervalSeconds: 3600, TotalDoses: 5}
	if err := h.svc.Create(context.Background(), r); err != nil {
		t.Fatal(err)
	}

	c, rec := newAuthedContext(e, http.MethodDelete, "/", "", auth.RolePatient, owner)
	c.SetParamNames("id")
	c.SetParamValues(r.ID.String())

	if err := h.Delete(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}
}

func TestHandlerList_PatientScopedAutomatically(t *testing.T) {
	h, e, _ := newTestHandler()
	owner := uuid.New()
	for i := 0; i < 2; i++ {
		r := &Reminder{PatientID: owner, MedicationName: "Metformin", DoseText: "500mg", IntervalSeconds: 3600, TotalDoses: 5}
		if err := h.svc.Create(context.Background(), r); err != nil {
			t.Fatal(err)
		}
	}
	other := &Reminder{PatientID: uuid.New(), MedicationName: "Aspirin", DoseText: "81mg", IntervalSeconds: 86400, TotalDoses: 30}
	if err := h.svc.Create(context.Background(), other); err != nil {
		t.Fatal(err)
	}

	c, rec := newAuthedContext(e, http.MethodGet, "/api/v1/reminders", "", auth.RolePatient, owner)
	if err := h.List(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var resp struct {
		Total int `json:"total"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Total != 2 {
		t.Errorf("expected 2 reminders for owner, got %d", resp.Total)
	}
}

func TestHandlerList_ClinicianNeedsPatientParam(t *testing.T) {
	h, e, _ := newTestHandler()
	c, _ := newAuthedContext(e, http.MethodGet, "/api/v1/reminders", "", auth.RoleClinician, uuid.Nil)

	if got := httpStatus(t, h.List(c)); got != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", got)
	}
}

func TestHandlerHistory_ReturnsEvents(t *testing.T) {
	h, e, _ := newTestHandler()
	owner := uuid.New()
	r := &Reminder{PatientID: owner, MedicationName: "Metformin", DoseText: "500mg", IntervalSeconds: 3600, TotalDoses: 5}
	if err := h.svc.Create(context.Background(), r); err != nil {
		t.Fatal(err)
	}
	if _, err := h.svc.MarkTaken(context.Background(), r.ID); err != nil {
		t.Fatal(err)
	}

	c, rec := newAuthedContext(e, http.MethodGet, "/", "", auth.RolePatient, owner)
	c.SetParamNames("id")
	c.SetParamValues(r.ID.String())

	if err := h.History(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var resp struct {
		Total int `json:"total"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Total != 1 {
		t.Errorf("expected 1 event, got %d", resp.Total)
	}
}
