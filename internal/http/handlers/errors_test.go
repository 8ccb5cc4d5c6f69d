package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"driverdesk/internal/domain"

	"github.com/gin-gonic/gin"
)

func TestRespondDomainErrorMapping(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		err    error
		status int
		code   string
	}{
		{domain.IllegalTransitionError{From: domain.PhaseIdle, Attempted: domain.ActionStartBoarding}, http.StatusConflict, "illegal_transition"},
		{domain.ScannerBusyError{SessionID: "s1"}, http.StatusConflict, "scanner_busy"},
		{domain.CapacityExceededError{Requested: 1, Free: 0}, http.StatusConflict, "capacity_exceeded"},
		{domain.ValidationError{Field: "amount", Msg: "must be positive"}, http.StatusBadRequest, "validation_error"},
		{domain.NotFoundError{Resource: "booking", ID: 4}, http.StatusNotFound, "not_found"},
		{domain.ConflictError{Resource: "booking", Msg: "not accepted"}, http.StatusConflict, "conflict"},
		{errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tc := range cases {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodPost, "/", nil)

		RespondDomainError(c, tc.err)

		if w.Code != tc.status {
			t.Fatalf("%v: status = %d, want %d", tc.err, w.Code, tc.status)
		}
		var resp struct {
			Code    string         `json:"code"`
			Details map[string]any `json:"details"`
		}
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if resp.Code != tc.code {
			t.Fatalf("%v: code = %q, want %q", tc.err, resp.Code, tc.code)
		}
		if tc.code == "capacity_exceeded" && (resp.Details["requested"] != float64(1) || resp.Details["free"] != float64(0)) {
			t.Fatalf("capacity details = %v", resp.Details)
		}
	}
}

func TestWrappedDomainErrorsStillMap(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	RespondDomainError(c, errors.Join(errors.New("loading"), domain.NotFoundError{Resource: "table route_reservations"}))
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d", w.Code)
	}
}
