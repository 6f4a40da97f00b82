package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/morezero/bridgekit/pkg/bridge"
	"github.com/morezero/bridgekit/pkg/events"
	"github.com/morezero/bridgekit/pkg/journal"
)

const handlersLogPrefix = "server:handlers"

// maxPostBody bounds the JSON payload accepted by POST /post/{topic}.
const maxPostBody = 1 << 20

// HealthChecks lists the individual checks behind HealthOutput.Status.
type HealthChecks struct {
	Comms   bool  `json:"comms"`
	Journal *bool `json:"journal,omitempty"`
}

// HealthOutput is the body of GET /health.
type HealthOutput struct {
	Status    string       `json:"status"`
	Checks    HealthChecks `json:"checks"`
	Timestamp string       `json:"timestamp"`
}

// TopicsOutput is the body of GET /topics.
type TopicsOutput struct {
	Topics     []string `json:"topics"`
	ErrorTopic string   `json:"errorTopic"`
}

// PostOutput is the body of a successful POST /post/{topic}.
type PostOutput struct {
	Ok     bool `json:"ok"`
	Result any  `json:"result"`
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleHome())
	mux.HandleFunc("GET /health", s.handleHealth())
	mux.HandleFunc("GET /ready", s.handleReady())
	mux.HandleFunc("GET /topics", s.handleTopics())
	mux.HandleFunc("GET /traffic", s.handleTraffic())
	mux.HandleFunc("POST /post/{topic}", s.handlePost())
	return mux
}

// health runs all checks within the configured health timeout.
func (s *Server) health(ctx context.Context) *HealthOutput {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.HealthCheckTimeout)
	defer cancel()

	out := &HealthOutput{
		Status:    "healthy",
		Checks:    HealthChecks{Comms: s.conn != nil && s.conn.IsConnected()},
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if !out.Checks.Comms {
		out.Status = "unhealthy"
	}
	if s.journal != nil {
		ok := s.journal.Ping(ctx) == nil
		out.Checks.Journal = &ok
		if !ok {
			out.Status = "unhealthy"
		}
	}
	return out
}

func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h := s.health(r.Context())
		status := http.StatusOK
		if h.Status != "healthy" {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, h)
	}
}

func (s *Server) handleReady() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func (s *Server) handleTopics() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, TopicsOutput{
			Topics:     s.bridge.Topics(),
			ErrorTopic: s.bridge.ErrorTopic(),
		})
	}
}

// handleTraffic serves GET /traffic?topic=&limit= from the journal.
func (s *Server) handleTraffic() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.journal == nil {
			http.Error(w, "traffic journal disabled (set DATABASE_URL)", http.StatusNotFound)
			return
		}
		params := journal.RecentParams{Topic: r.URL.Query().Get("topic")}
		if raw := r.URL.Query().Get("limit"); raw != "" {
			limit, err := strconv.Atoi(raw)
			if err != nil || limit <= 0 {
				http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
				return
			}
			params.Limit = limit
		}

		ctx, cancel := context.WithTimeout(r.Context(), s.cfg.HealthCheckTimeout)
		defer cancel()
		recent, err := s.journal.Recent(ctx, params)
		if err != nil {
			slog.Error(fmt.Sprintf("%s - traffic query: %v", handlersLogPrefix, err))
			http.Error(w, "traffic query failed", http.StatusInternalServerError)
			return
		}
		if recent == nil {
			recent = []events.TrafficEvent{}
		}
		writeJSON(w, http.StatusOK, recent)
	}
}

// handlePost sends the JSON request body to the remote context on the path topic.
// Bridge failures are answered with 502 and an ErrorResponse body.
func (s *Server) handlePost() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		topic := r.PathValue("topic")
		if topic == "" {
			http.Error(w, "topic is required", http.StatusBadRequest)
			return
		}

		body, err := io.ReadAll(io.LimitReader(r.Body, maxPostBody))
		if err != nil {
			http.Error(w, "failed to read body", http.StatusBadRequest)
			return
		}
		var payload any
		if len(body) > 0 {
			if err := json.Unmarshal(body, &payload); err != nil {
				http.Error(w, "body must be JSON", http.StatusBadRequest)
				return
			}
		}

		result, err := s.bridge.PostAndWait(r.Context(), payload, bridge.Topic{Name: topic})
		if err != nil {
			var bridgeErr *bridge.Error
			if errors.As(err, &bridgeErr) {
				writeJSON(w, http.StatusBadGateway, bridge.NewErrorResponse(bridgeErr))
				return
			}
			http.Error(w, err.Error(), http.StatusGatewayTimeout)
			return
		}
		writeJSON(w, http.StatusOK, PostOutput{Ok: true, Result: result})
	}
}

const homePageTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <title>Bridgekit</title>
  <style>
    * { box-sizing: border-box; }
    body { background: #fff; color: #000; font-family: system-ui, sans-serif; margin: 0; padding: 2rem; line-height: 1.5; }
    h1, h2 { color: #0066cc; }
    .status-healthy { color: #0066cc; font-weight: bold; }
    .status-unhealthy { color: #cc0000; font-weight: bold; }
    table { border-collapse: collapse; width: 100%; max-width: 900px; margin-top: 0.5rem; }
    th, td { text-align: left; padding: 0.5rem 0.75rem; border: 1px solid #ccc; vertical-align: top; }
    th { background: #f0f4f8; color: #0066cc; }
    code { font-size: 0.85rem; }
    section { margin-bottom: 2rem; }
    .error { color: #cc0000; }
  </style>
</head>
<body>
  <h1>Bridgekit</h1>

  <section>
    <h2>Health</h2>
    <p>Status: <span class="status-{{.Health.Status}}">{{.Health.Status}}</span></p>
    <p>COMMS: {{if .Health.Checks.Comms}}OK{{else}}<span class="error">Disconnected</span>{{end}}</p>
    <p>Timestamp: {{.Health.Timestamp}}</p>
  </section>

  <section>
    <h2>Topics</h2>
    {{if not .Topics}}
    <p>No handlers registered.</p>
    {{else}}
    <ul>{{range .Topics}}<li>{{.}}</li>{{end}}</ul>
    {{end}}
    <p>Error topic: {{.ErrorTopic}}</p>
  </section>

  <section>
    <h2>Recent traffic</h2>
    {{if .TrafficError}}
    <p class="error">{{.TrafficError}}</p>
    {{else if not .Traffic}}
    <p>No traffic recorded.</p>
    {{else}}
    <table>
      <thead><tr><th>Time</th><th>Direction</th><th>Topic</th><th>Error</th><th>Envelope</th></tr></thead>
      <tbody>
        {{range .Traffic}}
        <tr><td>{{.Timestamp}}</td><td>{{.Direction}}</td><td>{{.Topic}}</td><td>{{if .ErrorCode}}{{.ErrorCode}}{{end}}</td><td><code>{{.Envelope}}</code></td></tr>
        {{end}}
      </tbody>
    </table>
    {{end}}
  </section>
</body>
</html>
`

type homeData struct {
	Health       *HealthOutput
	Topics       []string
	ErrorTopic   string
	Traffic      []events.TrafficEvent
	TrafficError string
}

// handleHome renders health, topics and recent traffic.
func (s *Server) handleHome() http.HandlerFunc {
	tmpl := template.Must(template.New("home").Parse(homePageTemplate))
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		data := homeData{
			Health:     s.health(r.Context()),
			Topics:     s.bridge.Topics(),
			ErrorTopic: s.bridge.ErrorTopic(),
		}
		if s.journal == nil {
			data.TrafficError = "Traffic journal disabled."
		} else {
			ctx, cancel := context.WithTimeout(r.Context(), s.cfg.HealthCheckTimeout)
			recent, err := s.journal.Recent(ctx, journal.RecentParams{Limit: 20})
			cancel()
			if err != nil {
				data.TrafficError = err.Error()
			} else {
				data.Traffic = recent
			}
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := tmpl.Execute(w, data); err != nil {
			slog.Error(fmt.Sprintf("%s - home template execute: %v", handlersLogPrefix, err))
			http.Error(w, "internal error", http.StatusInternalServerError)
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error(fmt.Sprintf("%s - json encode: %v", handlersLogPrefix, err))
	}
}
