package server

import (
	"encoding/json"
	"net/http"
	"time"
)

// API 观察与管理接口：健康检查、指标、配置热更新、快照与 WS 推送
type API struct {
	server       *Server
	hub          *Hub
	pingInterval time.Duration
}

// NewAPI 创建接口并把 Hub 注册为服务端的渲染层
func NewAPI(s *Server) *API {
	hub := NewHub()
	s.AddPresenter(hub)
	return &API{server: s, hub: hub, pingInterval: pingPeriod}
}

// Handler 返回路由
func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", a.HandleMetrics)
	mux.HandleFunc("/admin/config", a.HandleAdminConfig)
	mux.HandleFunc("/snapshot", a.HandleSnapshot)
	mux.HandleFunc("/ws", a.HandleWS)
	return mux
}

// HandleAdminConfig 提供服务端配置的读取与更新（热更新延迟与渲染间隔）
// GET  /admin/config  返回当前配置
// POST /admin/config  以 JSON 载荷更新部分字段
func (a *API) HandleAdminConfig(w http.ResponseWriter, r *http.Request) {
	type cfg struct {
		LatencyMs        *int64 `json:"latencyMs,omitempty"`
		RenderIntervalMs *int64 `json:"renderIntervalMs,omitempty"`
		GridHalfExtent   int    `json:"gridHalfExtent,omitempty"`
	}

	switch r.Method {
	case http.MethodGet:
		latency := a.server.Latency().Milliseconds()
		render := a.server.RenderInterval().Milliseconds()
		cur := cfg{
			LatencyMs:        &latency,
			RenderIntervalMs: &render,
			GridHalfExtent:   a.server.GridHalfExtent(),
		}
		writeJSON(w, cur)
		return
	case http.MethodPost:
		var body cfg
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		if (body.LatencyMs != nil && *body.LatencyMs < 0) || (body.RenderIntervalMs != nil && *body.RenderIntervalMs < 0) {
			http.Error(w, "durations must be non-negative", http.StatusBadRequest)
			return
		}
		if body.LatencyMs != nil {
			a.server.SetLatency(time.Duration(*body.LatencyMs) * time.Millisecond)
		}
		if body.RenderIntervalMs != nil {
			a.server.SetRenderInterval(time.Duration(*body.RenderIntervalMs) * time.Millisecond)
		}
		writeJSON(w, map[string]any{"ok": true})
		Log.Infof("config updated: latency=%v render=%v", a.server.Latency(), a.server.RenderInterval())
		return
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
}

// HandleMetrics 输出运行指标
// GET /metrics
func (a *API) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	snap := a.server.Snapshot()
	payload := map[string]any{
		"cycle":     snap.Cycle,
		"pending":   a.server.Mailbox().Len(),
		"observers": a.hub.Len(),
		"metrics":   a.server.Metrics().Snapshot(),
	}
	writeJSON(w, payload)
}

// HandleSnapshot 输出当前快照
// GET /snapshot?format=json|msgpack|proto
func (a *API) HandleSnapshot(w http.ResponseWriter, r *http.Request) {
	format, err := ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	b, err := EncodeSnapshot(a.server.Snapshot(), format)
	if err != nil {
		Log.Errorf("encode snapshot: %v", err)
		http.Error(w, "encode failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", format.ContentType())
	_, _ = w.Write(b)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
