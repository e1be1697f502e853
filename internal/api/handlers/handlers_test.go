package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/drfirst/go-clinidoc/internal/api/middleware"
	"github.com/drfirst/go-clinidoc/internal/auth"
	"github.com/drfirst/go-clinidoc/internal/domain/prescription"
	"github.com/drfirst/go-clinidoc/internal/history"
	"github.com/drfirst/go-clinidoc/internal/institution"
	"github.com/drfirst/go-clinidoc/internal/protocol"
	"github.com/drfirst/go-clinidoc/internal/record"
	"github.com/drfirst/go-clinidoc/internal/render"
	"github.com/drfirst/go-clinidoc/internal/storage/memory"
)

var doctor = auth.Session{DoctorID: "doc-1", Name: "Ana Souza", Email: "ana@example.com", License: "CRM-SP 123456"}

func do(t *testing.T, h http.Handler, method, path string, body any, sess *auth.Session) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if sess != nil {
		req = req.WithContext(middleware.WithSession(req.Context(), *sess))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return v
}

func sampleState(meds int) *prescription.State {
	s := prescription.Default(time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC))
	s.Patient.Name = "João da Silva"
	for i := 0; i < meds; i++ {
		s.AddMedication(prescription.Medication{
			Name:     "Dipirona 500mg",
			Dosage:   "1 comprimido",
			Quantity: "10",
			Unit:     prescription.UnitTablet,
		})
	}
	return s
}

func TestDocumentHandler_PrintJob(t *testing.T) {
	h := NewDocumentHandler(nil, nil, nil).Routes()

	rec := do(t, h, http.MethodPost, "/layout/print-job", PrintJobRequest{State: sampleState(7)}, &doctor)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	job := decodeBody[struct {
		Copies int               `json:"copies"`
		Sheets []json.RawMessage `json:"sheets"`
	}](t, rec)
	if job.Copies != 1 {
		t.Errorf("expected 1 copy, got %d", job.Copies)
	}
	if len(job.Sheets) != 2 {
		t.Errorf("expected 2 sheets for 7 medications, got %d", len(job.Sheets))
	}

	req := PrintJobRequest{State: sampleState(3)}
	req.Options.Copies = 2
	rec = do(t, h, http.MethodPost, "/layout/print-job", req, &doctor)
	job = decodeBody[struct {
		Copies int               `json:"copies"`
		Sheets []json.RawMessage `json:"sheets"`
	}](t, rec)
	if job.Copies != 2 || len(job.Sheets) != 2 {
		t.Errorf("expected 2 copies of 1 sheet, got %d copies and %d sheets", job.Copies, len(job.Sheets))
	}

	rec = do(t, h, http.MethodPost, "/layout/print-job", `{}`, &doctor)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 without state, got %d", rec.Code)
	}

	rec = do(t, h, http.MethodPost, "/layout/print-job", `{"state":`, &doctor)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for malformed json, got %d", rec.Code)
	}

	req = PrintJobRequest{State: sampleState(3)}
	req.Options.Copies = 1 << 62
	rec = do(t, h, http.MethodPost, "/layout/print-job", req, &doctor)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for too many copies, got %d", rec.Code)
	}
}

func TestDocumentHandler_PaginateText(t *testing.T) {
	h := NewDocumentHandler(nil, nil, nil).Routes()

	rec := do(t, h, http.MethodPost, "/layout/text", TextRequest{Text: "   \n  "}, nil)
	resp := decodeBody[struct {
		Pages []json.RawMessage `json:"pages"`
	}](t, rec)
	if resp.Pages == nil || len(resp.Pages) != 0 {
		t.Errorf("expected an empty page array for blank text, got %s", rec.Body.String())
	}

	lines := make([]string, 30)
	for i := range lines {
		lines[i] = "linha"
	}
	rec = do(t, h, http.MethodPost, "/layout/text", TextRequest{Text: strings.Join(lines, "\n")}, nil)
	resp = decodeBody[struct {
		Pages []json.RawMessage `json:"pages"`
	}](t, rec)
	if len(resp.Pages) != 2 {
		t.Errorf("expected 2 pages for 30 short lines, got %d", len(resp.Pages))
	}

	rec = do(t, h, http.MethodPost, "/layout/text", `{"text":"a","config":{"linesPerPage":100000}}`, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for an oversized page, got %d", rec.Code)
	}
}

func TestDocumentHandler_Scores(t *testing.T) {
	h := NewDocumentHandler(nil, nil, nil).Routes()

	rec := do(t, h, http.MethodGet, "/scores", nil, nil)
	list := decodeBody[[]map[string]any](t, rec)
	if len(list) != 8 {
		t.Errorf("expected 8 calculators, got %d", len(list))
	}

	rec = do(t, h, http.MethodPost, "/scores/bmi", `{"weight": 70, "height": "175"}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	res := decodeBody[map[string]any](t, rec)
	if got := res["score"].(float64); got < 22.8 || got > 22.9 {
		t.Errorf("expected bmi 22.86, got %v", got)
	}

	rec = do(t, h, http.MethodPost, "/scores/apgar", `{}`, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown calculator, got %d", rec.Code)
	}
}

func TestDocumentHandler_ComposeNote(t *testing.T) {
	h := NewDocumentHandler(nil, nil, nil).Routes()

	rec := do(t, h, http.MethodPost, "/notes/compose", `{"standard": {}}`, &doctor)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	resp := decodeBody[map[string]string](t, rec)
	if resp["mode"] != "standard" {
		t.Errorf("expected standard mode, got %q", resp["mode"])
	}
	if !strings.Contains(resp["text"], "SUBJETIVO") {
		t.Errorf("expected standard sections, got %q", resp["text"])
	}
	if !strings.Contains(resp["text"], doctor.Name) {
		t.Errorf("expected the session doctor to sign, got %q", resp["text"])
	}

	rec = do(t, h, http.MethodPost, "/notes/compose", `{"mode": "pediatric"}`, &doctor)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for unknown mode, got %d", rec.Code)
	}
}

func TestDocumentHandler_Certificate(t *testing.T) {
	h := NewDocumentHandler(nil, nil, nil).Routes()

	s := sampleState(0)
	rec := do(t, h, http.MethodPost, "/certificates", s, &doctor)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422 without a configured document, got %d", rec.Code)
	}

	s.Certificate.Type = prescription.DocumentCertificate
	s.Certificate.LeaveDays = 2
	rec = do(t, h, http.MethodPost, "/certificates", s, &doctor)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	resp := decodeBody[map[string]any](t, rec)
	text, _ := resp["text"].(string)
	if !strings.Contains(text, "ATESTADO MÉDICO") || !strings.Contains(text, "19/10/2026") {
		t.Errorf("unexpected certificate text %q", text)
	}
}

func TestDocumentHandler_Validate(t *testing.T) {
	h := NewDocumentHandler(nil, nil, nil).Routes()

	s := sampleState(1)
	s.Medications[0].Dosage = ""
	rec := do(t, h, http.MethodPost, "/prescriptions/validate", s, nil)
	resp := decodeBody[struct {
		Warnings []json.RawMessage `json:"warnings"`
	}](t, rec)
	if len(resp.Warnings) == 0 {
		t.Errorf("expected a warning for a missing dosage")
	}
}

func TestDocumentHandler_ExportFHIR(t *testing.T) {
	store := memory.New()
	institutions := institution.NewRepository(store)
	if _, err := institutions.Save(context.Background(), doctor.DoctorID, institution.Institution{
		ID: "ubs-1", Name: "UBS Centro", Address: "Rua A, 1", Default: true,
	}); err != nil {
		t.Fatalf("save institution: %v", err)
	}
	h := NewDocumentHandler(institutions, nil, nil).Routes()

	rec := do(t, h, http.MethodPost, "/prescriptions/fhir", FHIRRequest{State: sampleState(2)}, &doctor)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/fhir+json" {
		t.Errorf("expected fhir content type, got %q", ct)
	}
	bundle := decodeBody[struct {
		ResourceType string `json:"resourceType"`
		Entry        []struct {
			Resource map[string]any `json:"resource"`
		} `json:"entry"`
	}](t, rec)
	if bundle.ResourceType != "Bundle" {
		t.Errorf("expected Bundle, got %q", bundle.ResourceType)
	}
	var orgs, requests int
	for _, e := range bundle.Entry {
		switch e.Resource["resourceType"] {
		case "Organization":
			orgs++
		case "MedicationRequest":
			requests++
		}
	}
	if orgs != 1 || requests != 2 {
		t.Errorf("expected 1 organization and 2 requests, got %d and %d", orgs, requests)
	}

	rec = do(t, h, http.MethodPost, "/prescriptions/fhir", FHIRRequest{State: sampleState(1), InstitutionID: "missing"}, &doctor)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown institution, got %d", rec.Code)
	}

	rec = do(t, h, http.MethodPost, "/prescriptions/fhir", `{}`, &doctor)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 without state, got %d", rec.Code)
	}
	outcome := decodeBody[map[string]any](t, rec)
	if outcome["resourceType"] != "OperationOutcome" {
		t.Errorf("expected OperationOutcome, got %v", outcome["resourceType"])
	}
}

func TestRecordHandler(t *testing.T) {
	svc := record.NewService(memory.New())
	h := NewRecordHandler(svc, nil, nil).Routes()
	state := sampleState(2)

	rec := do(t, h, http.MethodPost, "/", state, &doctor)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	first := decodeBody[SaveResponse](t, rec)
	if !first.Created || first.Record == nil {
		t.Fatalf("expected a created record, got %+v", first)
	}

	rec = do(t, h, http.MethodPost, "/", state, &doctor)
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 for a duplicate save, got %d", rec.Code)
	}
	dup := decodeBody[SaveResponse](t, rec)
	if dup.Created || dup.Record == nil || dup.Record.ID != first.Record.ID {
		t.Errorf("expected the existing record back, got %+v", dup)
	}

	badDate := sampleState(2)
	badDate.Date = "19/10/2026"
	rec = do(t, h, http.MethodPost, "/", badDate, &doctor)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for a malformed date, got %d", rec.Code)
	}

	guest := auth.GuestSession()
	rec = do(t, h, http.MethodPost, "/", state, &guest)
	if got := decodeBody[SaveResponse](t, rec); got.Created || got.Record != nil {
		t.Errorf("expected guests to save nothing, got %+v", got)
	}
	rec = do(t, h, http.MethodGet, "/", nil, &guest)
	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403 for guest listing, got %d", rec.Code)
	}

	rec = do(t, h, http.MethodGet, "/?q=JOAO", nil, &doctor)
	if list := decodeBody[[]record.PatientRecord](t, rec); len(list) != 1 {
		t.Errorf("expected 1 search hit, got %d", len(list))
	}

	rec = do(t, h, http.MethodPut, "/"+first.Record.ID+"/favorite", `{"favorite": true}`, &doctor)
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	rec = do(t, h, http.MethodGet, "/?favorites=true", nil, &doctor)
	if list := decodeBody[[]record.PatientRecord](t, rec); len(list) != 1 || !list[0].Favorite {
		t.Errorf("expected 1 favorite, got %+v", list)
	}

	other := auth.Session{DoctorID: "doc-2", Name: "Outro"}
	rec = do(t, h, http.MethodGet, "/"+first.Record.ID, nil, &other)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for another doctor's record, got %d", rec.Code)
	}

	rec = do(t, h, http.MethodDelete, "/"+first.Record.ID, nil, &doctor)
	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}
	rec = do(t, h, http.MethodGet, "/"+first.Record.ID, nil, &doctor)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 after delete, got %d", rec.Code)
	}
}

func TestHistoryAndInstitutionHandlers(t *testing.T) {
	store := memory.New()
	hist := NewHistoryHandler(history.NewRepository(store), nil).Routes()
	inst := NewInstitutionHandler(institution.NewRepository(store), nil).Routes()
	guest := auth.GuestSession()

	rec := do(t, hist, http.MethodGet, "/", nil, &guest)
	if list := decodeBody[[]history.Entry](t, rec); len(list) != 0 {
		t.Errorf("expected empty guest history, got %d", len(list))
	}
	rec = do(t, hist, http.MethodPost, "/", sampleState(1), &doctor)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	rec = do(t, hist, http.MethodGet, "/?limit=10", nil, &doctor)
	if list := decodeBody[[]history.Entry](t, rec); len(list) != 1 || list[0].PatientName != "João da Silva" {
		t.Errorf("unexpected history %+v", list)
	}
	rec = do(t, hist, http.MethodGet, "/?limit=x", nil, &doctor)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for a bad limit, got %d", rec.Code)
	}

	rec = do(t, inst, http.MethodPost, "/", institution.Institution{Name: "  "}, &doctor)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 without a name, got %d", rec.Code)
	}
	rec = do(t, inst, http.MethodPost, "/", institution.Institution{Name: "Hospital Geral"}, &doctor)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	saved := decodeBody[institution.Institution](t, rec)
	rec = do(t, inst, http.MethodDelete, "/"+saved.ID, nil, &doctor)
	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}
	rec = do(t, inst, http.MethodDelete, "/"+saved.ID, nil, &doctor)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 on second delete, got %d", rec.Code)
	}
}

func TestProtocolHandler(t *testing.T) {
	h := NewProtocolHandler(protocol.NewService(memory.New()), nil).Routes()
	guest := auth.GuestSession()

	rec := do(t, h, http.MethodPost, "/itu-nao-complicada/apply", sampleState(0), &guest)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	applied := decodeBody[prescription.State](t, rec)
	if len(applied.Medications) == 0 {
		t.Errorf("expected protocol medications to be applied")
	}

	rec = do(t, h, http.MethodPost, "/", protocol.Protocol{Name: "Meu"}, &guest)
	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403 for guest save, got %d", rec.Code)
	}
	rec = do(t, h, http.MethodPost, "/", protocol.Protocol{Name: "Vazio"}, &doctor)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 without medications, got %d", rec.Code)
	}
	rec = do(t, h, http.MethodDelete, "/itu-nao-complicada", nil, &doctor)
	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403 deleting a builtin, got %d", rec.Code)
	}
	rec = do(t, h, http.MethodGet, "/nope", nil, &doctor)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}

	rec = do(t, h, http.MethodPost, "/itu-nao-complicada/favorite", nil, &doctor)
	if got := decodeBody[map[string]bool](t, rec); !got["favorite"] {
		t.Errorf("expected favorite toggled on, got %v", got)
	}
}

func TestAuthHandler(t *testing.T) {
	tokens := auth.NewTokenIssuer(auth.TokenConfig{Secret: "test-secret", Issuer: "clinidoc-test", TTL: time.Hour})
	svc := auth.NewService(memory.New(), tokens, nil, bcrypt.MinCost)
	h := NewAuthHandler(svc, nil).Routes()

	form := auth.RegisterRequest{
		Name: "Ana Souza", Email: "ana@example.com", License: "CRM-SP 123456",
		Password: "segredo123", ConfirmPassword: "outra",
	}
	rec := do(t, h, http.MethodPost, "/register", form, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 on password mismatch, got %d", rec.Code)
	}
	if res := decodeBody[auth.Result](t, rec); res.Message != auth.MsgPasswordMismatch {
		t.Errorf("expected %q, got %q", auth.MsgPasswordMismatch, res.Message)
	}

	long := form
	long.Password = strings.Repeat("a", 80)
	long.ConfirmPassword = long.Password
	rec = do(t, h, http.MethodPost, "/register", long, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for an 80-byte password, got %d", rec.Code)
	}
	if res := decodeBody[auth.Result](t, rec); res.Message != auth.MsgPasswordTooLong {
		t.Errorf("expected %q, got %q", auth.MsgPasswordTooLong, res.Message)
	}

	form.ConfirmPassword = form.Password
	rec = do(t, h, http.MethodPost, "/register", form, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = do(t, h, http.MethodPost, "/login", `{"email":"ana@example.com","password":"errada"}`, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 on a wrong password, got %d", rec.Code)
	}
	rec = do(t, h, http.MethodPost, "/login", `{"email":"ANA@example.com","password":"segredo123"}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	resp := decodeBody[SessionResponse](t, rec)
	sess, err := svc.Verify(resp.Token)
	if err != nil {
		t.Fatalf("issued token does not verify: %v", err)
	}

	me := do(t, http.HandlerFunc(NewAuthHandler(svc, nil).Me), http.MethodGet, "/me", nil, &sess)
	if me.Code != http.StatusOK || !strings.Contains(me.Body.String(), "CRM-SP 123456") {
		t.Errorf("unexpected profile %d %s", me.Code, me.Body.String())
	}

	rec = do(t, h, http.MethodPost, "/guest", nil, nil)
	guest := decodeBody[SessionResponse](t, rec)
	if guest.Session == nil || !guest.Session.Guest || guest.Token == "" {
		t.Errorf("expected a guest session, got %+v", guest)
	}
}

func TestAssistHandler_Disabled(t *testing.T) {
	h := NewAssistHandler(nil, nil).Routes()

	rec := do(t, h, http.MethodPost, "/suggestions", `{"diagnosis":"ITU"}`, &doctor)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rec.Code)
	}
	rec = do(t, h, http.MethodPost, "/interactions", `{"medications":[]}`, &doctor)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rec.Code)
	}
}

type fakePublisher struct {
	mu       sync.Mutex
	messages [][]byte
	err      error
}

func (p *fakePublisher) Publish(_ context.Context, _, _ string, value []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.messages = append(p.messages, value)
	return nil
}

func TestRenderHandler(t *testing.T) {
	pub := &fakePublisher{}
	hist := history.NewRepository(memory.New())
	h := NewRenderHandler(render.NewRequester(pub, "documents.render.requests"), hist, nil).Routes()

	rec := do(t, h, http.MethodPost, "/", render.Request{State: sampleState(1)}, &doctor)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(pub.messages) != 1 {
		t.Fatalf("expected 1 published request, got %d", len(pub.messages))
	}
	var queued render.Request
	if err := json.Unmarshal(pub.messages[0], &queued); err != nil {
		t.Fatalf("decode published request: %v", err)
	}
	if queued.DoctorID != doctor.DoctorID || queued.Issuer.Name != doctor.Name {
		t.Errorf("expected the session doctor on the request, got %+v", queued)
	}
	entries, _ := hist.List(context.Background(), doctor.DoctorID, 0)
	if len(entries) != 1 {
		t.Errorf("expected printing to add a history entry, got %d", len(entries))
	}

	rec = do(t, h, http.MethodPost, "/", `{}`, &doctor)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 without state, got %d", rec.Code)
	}

	huge := render.Request{State: sampleState(1)}
	huge.Options.Copies = 1 << 62
	rec = do(t, h, http.MethodPost, "/", huge, &doctor)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for too many copies, got %d", rec.Code)
	}
	if len(pub.messages) != 1 {
		t.Errorf("expected the rejected request not to be published, got %d", len(pub.messages))
	}

	pub.err = errors.New("broker down")
	rec = do(t, h, http.MethodPost, "/", render.Request{State: sampleState(1)}, &doctor)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 when the broker is down, got %d", rec.Code)
	}
}
