package server

import (
	"fmt"
	"html/template"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"saistats/internal/faults"
	"saistats/internal/table"
)

var templateFuncs = template.FuncMap{
	"isSection": func(row []table.Cell) bool {
		return len(row) > 0 && table.IsSectionMarker(row[0])
	},
	"sectionLabel": func(row []table.Cell) string {
		label, _ := row[0].(string)
		return strings.TrimSuffix(strings.TrimPrefix(label, "== "), " ==")
	},
	"formatCell": func(c table.Cell) string {
		switch v := c.(type) {
		case nil:
			return ""
		case string:
			return v
		case float64:
			return fmt.Sprintf("%g", v)
		case bool:
			if v {
				return "true"
			}
			return "false"
		}
		return fmt.Sprint(c)
	},
}

var resultTemplate = template.Must(template.New("result").Funcs(templateFuncs).Parse(`<!DOCTYPE html>
<html>
<head>
<title>Analysis Result</title>
<style>
body { font-family: sans-serif; margin: 2em; }
table { border-collapse: collapse; }
th, td { border: 1px solid #ccc; padding: 4px 10px; text-align: right; }
th:first-child, td:first-child { text-align: left; }
tr.section td { background: #eee; font-weight: bold; text-align: left; }
</style>
</head>
<body>
<h1>Analysis Result</h1>
<table>
<tr>{{range .Headers}}<th>{{.}}</th>{{end}}</tr>
{{range .Rows}}{{if isSection .}}<tr class="section"><td colspan="{{len $.Headers}}">{{sectionLabel .}}</td></tr>
{{else}}<tr>{{range .}}<td>{{formatCell .}}</td>{{end}}</tr>
{{end}}{{end}}</table>
<p>Results are shown once; refresh will not bring them back.</p>
</body>
</html>
`))

func (s *Server) handleViewer(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "missing token", http.StatusBadRequest)
		return
	}
	result, err := s.store.Consume(token)
	if err != nil {
		if f, ok := faults.As(err); ok {
			http.Error(w, f.Message, statusFor(f))
			return
		}
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Cache-Control", "no-cache")
	if err := resultTemplate.Execute(w, result); err != nil {
		s.log.Error("template error", zap.Error(err))
	}
}
