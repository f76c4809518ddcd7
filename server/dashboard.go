package server

import (
	"bytes"
	"embed"
	"errors"
	"html/template"
	"net/http"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/sig-0/centavo/config"
	"github.com/sig-0/centavo/storage"
	"github.com/sig-0/centavo/storage/types"
)

//go:embed templates/dashboard.html
var templatesFS embed.FS

var dashboardTemplate = template.Must(
	template.New("dashboard.html").
		Funcs(numberFuncs(message.NewPrinter(language.English))).
		ParseFS(templatesFS, "templates/dashboard.html"),
)

type dashboardData struct {
	Run    *types.Run
	Target types.Currency
	Top    int
	MaxTop int
}

// Dashboard renders the latest run
func (s *Server) Dashboard(w http.ResponseWriter, r *http.Request) {
	run, err := s.storage.LatestRun(r.Context())
	if err != nil && !errors.Is(err, storage.ErrRunNotFound) {
		s.logger.Debug(
			"unable to fetch latest run",
			"err", err,
		)

		http.Error(w, errUnableToFetchRuns.Error(), http.StatusInternalServerError)

		return
	}

	data := dashboardData{
		Run:    run,
		Target: types.Currency(config.DefaultTargetCurrency),
		Top:    s.config.DefaultTop,
		MaxTop: config.MaxTop,
	}

	if run != nil {
		data.Target = run.Target
	}

	var buf bytes.Buffer
	if err = dashboardTemplate.Execute(&buf, data); err != nil {
		s.logger.Error(
			"unable to render dashboard",
			"err", err,
		)

		http.Error(w, "unable to render dashboard", http.StatusInternalServerError)

		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)

	_, _ = w.Write(buf.Bytes()) //nolint:errcheck // Fine to ignore
}

// numberFuncs are the template helpers for grouped number formatting
func numberFuncs(p *message.Printer) template.FuncMap {
	return template.FuncMap{
		"number": func(v any) string {
			return p.Sprintf("%.2f", deref(v))
		},
		"rate": func(v any) string {
			return p.Sprintf("%.4f", deref(v))
		},
		"integer": func(v int64) string {
			return p.Sprintf("%d", v)
		},
	}
}

func deref(v any) float64 {
	switch f := v.(type) {
	case float64:
		return f
	case *float64:
		if f == nil {
			return 0
		}

		return *f
	default:
		return 0
	}
}
