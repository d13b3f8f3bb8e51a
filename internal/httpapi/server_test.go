package httpapi

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"quantd/internal/domain"
)

type stubStatus struct {
	report domain.DataStatusReport
}

func (s *stubStatus) Status(_ context.Context, symbol string) (domain.DataStatusReport, error) {
	r := s.report
	r.Symbol = symbol
	return r, nil
}

type stubPortfolio struct{}

func (stubPortfolio) Document() *domain.PortfolioDocument {
	return domain.NewPortfolioDocument("test")
}

type stubFeed struct{}

func (stubFeed) TableLen(string) int { return 42 }

func newTestServer() *Server {
	return NewServer([]string{"XBTUSD"},
		&stubStatus{report: domain.DataStatusReport{Exchange: "bitmex", TotalStored: 7, TotalNeeded: 7}},
		stubPortfolio{}, stubFeed{})
}

func TestHandleStatus(t *testing.T) {
	srv := httptest.NewServer(newTestServer().Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL + "/api/status/XBTUSD")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var report domain.DataStatusReport
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if report.Symbol != "XBTUSD" || !report.Complete() {
		t.Errorf("report = %+v", report)
	}
}

func TestHandleStatusUnknownSymbol(t *testing.T) {
	srv := httptest.NewServer(newTestServer().Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL + "/api/status/DOGEUSD")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != 404 {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestHandlePortfolioAndFeed(t *testing.T) {
	srv := httptest.NewServer(newTestServer().Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL + "/api/portfolio")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	var doc domain.PortfolioDocument
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if doc.ID != "test" || doc.NextTradeID != 1 {
		t.Errorf("document = %+v", doc)
	}

	resp2, err := srv.Client().Get(srv.URL + "/api/feed/trade")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp2.Body.Close()
	var table struct {
		Table   string `json:"table"`
		Records int    `json:"records"`
	}
	if err := json.NewDecoder(resp2.Body).Decode(&table); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if table.Table != "trade" || table.Records != 42 {
		t.Errorf("table = %+v", table)
	}
}

func TestNilViewsAreNotRouted(t *testing.T) {
	srv := httptest.NewServer(NewServer(nil, nil, nil, nil).Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL + "/api/portfolio")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != 404 {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}

	health, err := srv.Client().Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	health.Body.Close()
	if health.StatusCode != 200 {
		t.Errorf("healthz = %d", health.StatusCode)
	}
}
