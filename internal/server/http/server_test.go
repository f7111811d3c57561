package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rzbill/headcache/internal/headcache"
)

type fakeQuerier struct {
	result headcache.Result
	err    error
}

func (f *fakeQuerier) Get(ctx context.Context, key headcache.Key, partition headcache.Partition, offset headcache.Offset) (headcache.Result, error) {
	return f.result, f.err
}

type fakeRuntime struct {
	querier   headcache.Querier
	healthErr error
}

func (f *fakeRuntime) Querier() headcache.Querier            { return f.querier }
func (f *fakeRuntime) CheckHealth(ctx context.Context) error { return f.healthErr }
func (f *fakeRuntime) InstanceID() string                    { return "test-instance" }

func TestHandleHealthOK(t *testing.T) {
	s := New(&fakeRuntime{querier: &fakeQuerier{}})
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	s.handleHealth(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestHandleHealthUnavailable(t *testing.T) {
	s := New(&fakeRuntime{querier: &fakeQuerier{}, healthErr: errors.New("storage down")})
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	s.handleHealth(rec, req)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestHandleQueryRequiresTopicAndID(t *testing.T) {
	s := New(&fakeRuntime{querier: &fakeQuerier{}})
	req := httptest.NewRequest(http.MethodGet, "/v1/query?partition=0&offset=0", nil)
	rec := httptest.NewRecorder()
	s.handleQuery(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestHandleQueryRejectsNonGet(t *testing.T) {
	s := New(&fakeRuntime{querier: &fakeQuerier{}})
	req := httptest.NewRequest(http.MethodPost, "/v1/query", nil)
	rec := httptest.NewRecorder()
	s.handleQuery(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

func TestHandleQueryReturnsEmptyResult(t *testing.T) {
	q := &fakeQuerier{result: headcache.ValidResult(headcache.Empty())}
	s := New(&fakeRuntime{querier: q})
	req := httptest.NewRequest(http.MethodGet, "/v1/query?topic=orders&id=agg-1&partition=0&offset=0", nil)
	rec := httptest.NewRecorder()
	s.handleQuery(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp queryResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Invalid || !resp.Empty {
		t.Fatalf("expected empty=true, got %+v", resp)
	}
}

func TestHandleQueryReturnsNonEmptyResult(t *testing.T) {
	q := &fakeQuerier{result: headcache.ValidResult(headcache.NonEmpty(7, 2, true))}
	s := New(&fakeRuntime{querier: q})
	req := httptest.NewRequest(http.MethodGet, "/v1/query?topic=orders&id=agg-1&partition=0&offset=0", nil)
	rec := httptest.NewRecorder()
	s.handleQuery(rec, req)

	var resp queryResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Invalid || resp.Empty || resp.SeqNr == nil || *resp.SeqNr != 7 {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if resp.DeleteTo == nil || *resp.DeleteTo != 2 {
		t.Fatalf("expected deleteTo=2, got %+v", resp)
	}
}

func TestHandleQueryReturnsInvalidResult(t *testing.T) {
	q := &fakeQuerier{result: headcache.Invalid()}
	s := New(&fakeRuntime{querier: q})
	req := httptest.NewRequest(http.MethodGet, "/v1/query?topic=orders&id=agg-1&partition=0&offset=0", nil)
	rec := httptest.NewRecorder()
	s.handleQuery(rec, req)

	var resp queryResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Invalid {
		t.Fatalf("expected invalid=true, got %+v", resp)
	}
}

func TestHandleQueryPropagatesClosedAsServiceUnavailable(t *testing.T) {
	q := &fakeQuerier{err: headcache.ErrClosed}
	s := New(&fakeRuntime{querier: q})
	req := httptest.NewRequest(http.MethodGet, "/v1/query?topic=orders&id=agg-1&partition=0&offset=0", nil)
	rec := httptest.NewRecorder()
	s.handleQuery(rec, req)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestHandleQueryRejectsMalformedPartitionAndOffset(t *testing.T) {
	s := New(&fakeRuntime{querier: &fakeQuerier{}})

	req := httptest.NewRequest(http.MethodGet, "/v1/query?topic=orders&id=agg-1&partition=abc&offset=0", nil)
	rec := httptest.NewRecorder()
	s.handleQuery(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad partition, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/query?topic=orders&id=agg-1&partition=0&offset=xyz", nil)
	rec = httptest.NewRecorder()
	s.handleQuery(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad offset, got %d", rec.Code)
	}
}
