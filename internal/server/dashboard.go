package server

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/stecom/seopulse/internal/abtest"
	"github.com/stecom/seopulse/internal/dashboard"
	"github.com/stecom/seopulse/internal/stats"
	"github.com/stecom/seopulse/internal/store"
)

type layoutData struct {
	Title   string
	CSS     template.CSS
	Content template.HTML
}

type overviewData struct {
	URL      string
	Keywords string
	Report   string
	Tests    []testListItem
	Top      []rankRow
	Movers   []rankRow
}

type testListItem struct {
	ID          string
	Name        string
	Active      bool
	Variants    int
	Impressions string
	Clicks      string
	Conversions string
	Leader      string
	StartDate   string
}

type rankRow struct {
	Keyword  string
	URL      string
	Position int
	Change   string
	Trend    string
	Volume   string
	CPC      string
}

type testDetailData struct {
	Name              string
	Description       string
	Active            bool
	Start             string
	End               string
	Variants          []detailVariant
	Winner            string
	HasRunnerUp       bool
	Confident         bool
	ConfidencePercent float64
}

type detailVariant struct {
	ID             string
	Name           string
	Impressions    int
	Clicks         int
	Conversions    int
	CTRPercent     float64
	RatePercent    float64
	CILowerPercent float64
	CIUpperPercent float64
	Leading        bool
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("logout") == "1" {
		http.SetCookie(w, &http.Cookie{
			Name:   tokenCookieName,
			Value:  "",
			Path:   "/",
			MaxAge: -1,
		})
		http.Redirect(w, r, "/dashboard", http.StatusFound)
		return
	}

	ctx := r.Context()
	url := r.URL.Query().Get("url")
	if url == "" {
		url = s.opts.DefaultURL
	}
	keywords := splitList(r.URL.Query().Get("keywords"))
	if len(keywords) == 0 {
		keywords = s.opts.DefaultKeywords
	}

	report, err := s.ctrl.ComprehensiveReport(ctx, url, keywords)
	if err != nil {
		s.dashboardError(w, "build report", err)
		return
	}
	tests, err := s.ctrl.Tests.ListTests(ctx)
	if err != nil {
		s.dashboardError(w, "list tests", err)
		return
	}
	top, err := s.ctrl.Ranks.TopPerformers(ctx, 0)
	if err != nil {
		s.dashboardError(w, "top performers", err)
		return
	}
	movers, err := s.ctrl.Ranks.BiggestMovers(ctx, 0)
	if err != nil {
		s.dashboardError(w, "biggest movers", err)
		return
	}

	items := make([]testListItem, len(tests))
	for i, t := range tests {
		var impressions, clicks, conversions int
		for _, v := range t.Variants {
			impressions += v.Impressions
			clicks += v.Clicks
			conversions += v.Conversions
		}
		leader := ""
		if win := abtest.Winner(t.Variants); win != nil {
			leader = win.Name
		}
		items[i] = testListItem{
			ID:          t.ID,
			Name:        t.Name,
			Active:      t.Active,
			Variants:    len(t.Variants),
			Impressions: humanize.Comma(int64(impressions)),
			Clicks:      humanize.Comma(int64(clicks)),
			Conversions: humanize.Comma(int64(conversions)),
			Leader:      leader,
			StartDate:   t.StartDate.Format("Jan 2, 2006"),
		}
	}

	s.renderDashboard(w, "Dashboard", "overview.html", overviewData{
		URL:      url,
		Keywords: strings.Join(keywords, ", "),
		Report:   report,
		Tests:    items,
		Top:      rankRows(top),
		Movers:   rankRows(movers),
	})
}

func (s *Server) handleDashboardTest(w http.ResponseWriter, r *http.Request) {
	t, err := s.ctrl.Tests.GetTest(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		s.dashboardError(w, "get test", err)
		return
	}

	result := stats.Analyze(t.Variants)
	variants := make([]detailVariant, len(result.Variants))
	for i, v := range result.Variants {
		src := t.Variants[i]
		variants[i] = detailVariant{
			ID:             v.ID,
			Name:           v.Name,
			Impressions:    src.Impressions,
			Clicks:         v.Clicks,
			Conversions:    v.Conversions,
			CTRPercent:     src.CTR * 100,
			RatePercent:    v.Rate * 100,
			CILowerPercent: v.CILower * 100,
			CIUpperPercent: v.CIUpper * 100,
		}
	}

	data := testDetailData{
		Name:              t.Name,
		Description:       t.Description,
		Active:            t.Active,
		Start:             t.StartDate.Format("Jan 2, 2006"),
		End:               "ongoing",
		Variants:          variants,
		HasRunnerUp:       result.RunnerUp >= 0,
		Confident:         result.Confident,
		ConfidencePercent: result.ConfidenceLevel * 100,
	}
	if t.EndDate != nil {
		data.End = t.EndDate.Format("Jan 2, 2006")
	}
	if winner := abtest.Winner(t.Variants); winner != nil {
		data.Winner = winner.Name
		for i := range variants {
			variants[i].Leading = variants[i].ID == winner.ID
		}
	}

	s.renderDashboard(w, t.Name, "test.html", data)
}

func rankRows(rows []store.RankTrackingData) []rankRow {
	out := make([]rankRow, len(rows))
	for i, r := range rows {
		row := rankRow{
			Keyword:  r.Keyword,
			URL:      r.URL,
			Position: r.Position,
			Change:   fmt.Sprint(r.Change),
			Volume:   humanize.Comma(int64(r.SearchVolume)),
			CPC:      fmt.Sprintf("%.2f", r.CPC),
		}
		switch {
		case r.Change > 0:
			row.Change = "+" + row.Change
			row.Trend = "up"
		case r.Change < 0:
			row.Trend = "down"
		}
		out[i] = row
	}
	return out
}

func (s *Server) dashboardError(w http.ResponseWriter, op string, err error) {
	s.logger.Error("dashboard: "+op, zap.Error(err))
	http.Error(w, "Failed to load dashboard", http.StatusInternalServerError)
}

func (s *Server) renderDashboard(w http.ResponseWriter, title, contentTemplate string, data any) {
	cssBytes, err := dashboard.Assets.ReadFile("assets/style.css")
	if err != nil {
		s.dashboardError(w, "load styles", err)
		return
	}

	contentTmpl, err := template.ParseFS(dashboard.Templates, "templates/"+contentTemplate)
	if err != nil {
		s.dashboardError(w, "parse "+contentTemplate, err)
		return
	}
	var contentBuf bytes.Buffer
	if err := contentTmpl.Execute(&contentBuf, data); err != nil {
		s.dashboardError(w, "render "+contentTemplate, err)
		return
	}

	layoutTmpl, err := template.ParseFS(dashboard.Templates, "templates/layout.html")
	if err != nil {
		s.dashboardError(w, "parse layout", err)
		return
	}

	var page bytes.Buffer
	err = layoutTmpl.Execute(&page, layoutData{
		Title:   title,
		CSS:     template.CSS(cssBytes),
		Content: template.HTML(contentBuf.String()),
	})
	if err != nil {
		s.dashboardError(w, "render layout", err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(page.Bytes())
}
