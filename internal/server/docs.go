package server

import "net/http"

const docsHTML = `<!DOCTYPE html>
<html>
<head><title>Caseflow API</title></head>
<body>
<h1>Caseflow API</h1>
<p>AI-assisted legal case analysis for UK probate and divorce matters.</p>
<ul>
  <li><code>POST /api/v1/cases/probate</code> &ndash; submit a probate case intake</li>
  <li><code>POST /api/v1/cases/divorce</code> &ndash; submit a divorce case intake</li>
  <li><code>GET /api/v1/cases</code> &ndash; list cases (optional <code>?status=</code> filter)</li>
  <li><code>GET /api/v1/cases/{id}/status</code> &ndash; processing progress</li>
  <li><code>GET /api/v1/cases/{id}/results</code> &ndash; the case report once completed</li>
  <li><code>GET /api/v1/reviews</code> &ndash; tasks awaiting solicitor sign-off</li>
  <li><code>POST /api/v1/reviews/{id}/decision</code> &ndash; approve or reject a held task</li>
  <li><code>GET /health</code> &ndash; liveness probe</li>
  <li><code>GET /</code> &ndash; service banner</li>
</ul>
</body>
</html>`

func (s *Server) handleDocs(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(docsHTML))
}
