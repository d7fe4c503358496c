package prescription

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
)

func newTestServer() (*echo.Echo, *Service) {
	e := echo.New()
	svc := NewService(newMockRepo())
	NewHandler(svc).RegisterRoutes(e.Group("/api/v1"))
	return e, svc
}

func doJSON(e *echo.Echo, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

const createBody = `{"patient_name":"Asha Verma","age":34,
	"items":[{"quantity":2,"price":10.0,"total":20.0}]}`

func TestSavePrescriptionCreates(t *testing.T) {
	e, _ := newTestServer()

	rec := doJSON(e, http.MethodPost, "/api/v1/prescriptions", createBody)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		ID      int64 `json:"id"`
		BatchNo int64 `json:"batch_no"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.ID == 0 || resp.BatchNo != 1 {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestSavePrescriptionRejectsEmptyItems(t *testing.T) {
	e, _ := newTestServer()
	rec := doJSON(e, http.MethodPost, "/api/v1/prescriptions", `{"patient_name":"X","items":[]}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestSavePrescriptionWithIDAppends(t *testing.T) {
	e, _ := newTestServer()
	doJSON(e, http.MethodPost, "/api/v1/prescriptions", createBody)

	rec := doJSON(e, http.MethodPost, "/api/v1/prescriptions",
		`{"id":1,"items":[{"quantity":1,"price":5.0,"total":5.0}]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(e, http.MethodGet, "/api/v1/prescriptions/1/versions", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("versions: expected 200, got %d", rec.Code)
	}
	var versions []Version
	if err := json.Unmarshal(rec.Body.Bytes(), &versions); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(versions) != 2 || versions[0].BatchNo != 2 {
		t.Errorf("expected two versions newest first, got %+v", versions)
	}
}

func TestReplacePrescriptionLeavesOneVersion(t *testing.T) {
	e, _ := newTestServer()
	doJSON(e, http.MethodPost, "/api/v1/prescriptions", createBody)
	doJSON(e, http.MethodPost, "/api/v1/prescriptions",
		`{"id":1,"items":[{"quantity":1,"price":5.0,"total":5.0}]}`)

	rec := doJSON(e, http.MethodPut, "/api/v1/prescriptions/1",
		`{"items":[{"quantity":3,"price":3.0,"total":9.0}]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(e, http.MethodGet, "/api/v1/prescriptions/1/versions", "")
	var versions []Version
	if err := json.Unmarshal(rec.Body.Bytes(), &versions); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(versions) != 1 {
		t.Errorf("expected single version after replace, got %+v", versions)
	}
}

func TestGetPrescriptionNotFound(t *testing.T) {
	e, _ := newTestServer()
	rec := doJSON(e, http.MethodGet, "/api/v1/prescriptions/99", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestGetPrescriptionIncludesLatestItems(t *testing.T) {
	e, _ := newTestServer()
	doJSON(e, http.MethodPost, "/api/v1/prescriptions", createBody)

	rec := doJSON(e, http.MethodGet, "/api/v1/prescriptions/1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp struct {
		PatientName string              `json:"patient_name"`
		Items       []*PrescriptionItem `json:"items"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.PatientName != "Asha Verma" || len(resp.Items) != 1 {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestGetVersionInvalidMarker(t *testing.T) {
	e, _ := newTestServer()
	doJSON(e, http.MethodPost, "/api/v1/prescriptions", createBody)

	rec := doJSON(e, http.MethodGet, "/api/v1/prescriptions/1/versions/99", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
	rec = doJSON(e, http.MethodGet, "/api/v1/prescriptions/1/versions/abc", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestDeletePrescriptionCascade(t *testing.T) {
	e, _ := newTestServer()
	doJSON(e, http.MethodPost, "/api/v1/prescriptions", createBody)

	rec := doJSON(e, http.MethodDelete, "/api/v1/prescriptions/1", "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	rec = doJSON(e, http.MethodDelete, "/api/v1/prescriptions/1", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 on second delete, got %d", rec.Code)
	}
}

func TestListPrescriptionsPaginated(t *testing.T) {
	e, _ := newTestServer()
	doJSON(e, http.MethodPost, "/api/v1/prescriptions", createBody)
	doJSON(e, http.MethodPost, "/api/v1/prescriptions", createBody)

	rec := doJSON(e, http.MethodGet, "/api/v1/prescriptions?limit=1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp struct {
		Total   int  `json:"total"`
		HasMore bool `json:"has_more"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Total != 2 || !resp.HasMore {
		t.Errorf("unexpected pagination: %+v", resp)
	}
}
