package handler

import (
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/dukerupert/laundrydash/internal/laundry"
	"github.com/dukerupert/laundrydash/internal/request"
	"github.com/dukerupert/laundrydash/internal/view"
	"github.com/dukerupert/laundrydash/internal/websocket"
)

// mutationPanics answers reads with an empty list and panics on any write.
type mutationPanics struct{}

func (mutationPanics) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Method != http.MethodGet {
		panic("backend client blew up")
	}
	return &http.Response{
		StatusCode: http.StatusOK,
		Header:     http.Header{"Content-Type": {"application/json"}},
		Body:       io.NopCloser(strings.NewReader("[]")),
		Request:    req,
	}, nil
}

func newServiceTypeHandler(t *testing.T, rt http.RoundTripper) *ServiceTypeHandler {
	t.Helper()
	backend := laundry.New("http://backend.test", &http.Client{Transport: rt}, nil)
	return NewServiceTypeHandler(backend, request.NewRegistry(discard), websocket.NewHub(discard), newRenderer(t), discard)
}

func TestServiceTypeSavePanicShowsFailure(t *testing.T) {
	h := newServiceTypeHandler(t, mutationPanics{})

	form := url.Values{"nama_layanan": {"Cuci Kering"}, "harga_bonus": {"1000"}}
	req := httptest.NewRequest("POST", "/tipe-layanan", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.Save(rec, req)

	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadGateway)
	}
	if !strings.Contains(rec.Body.String(), view.MsgSaveFailed) {
		t.Errorf("body missing %q", view.MsgSaveFailed)
	}
}

func TestServiceTypeDeletePanicShowsFailure(t *testing.T) {
	h := newServiceTypeHandler(t, mutationPanics{})

	req := httptest.NewRequest("POST", "/tipe-layanan/st-a/delete", nil)
	req.SetPathValue("id", "st-a")
	rec := httptest.NewRecorder()
	h.Delete(rec, req)

	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadGateway)
	}
	if !strings.Contains(rec.Body.String(), view.MsgDeleteFailed) {
		t.Errorf("body missing %q", view.MsgDeleteFailed)
	}
}
