package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const statusPushInterval = 5 * time.Second

// WebServer serves health, status, solar events and the switch log, and
// pushes status updates to websocket clients.
type WebServer struct {
	scheduler *LightScheduler
	server    *http.Server
	port      int
	startTime time.Time
	upgrader  websocket.Upgrader
	clients   sync.Map // *websocket.Conn -> struct{}
	broadcast chan []byte
	done      chan struct{}
	stopOnce  sync.Once
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string          `json:"status"`
	Timestamp string          `json:"timestamp"`
	Version   string          `json:"version,omitempty"`
	Scheduler SchedulerHealth `json:"scheduler"`
	System    SystemHealth    `json:"system"`
}

// SchedulerHealth summarizes the lighting scheduler
type SchedulerHealth struct {
	IsRunning        bool       `json:"is_running"`
	Mode             string     `json:"mode"`
	Strategy         string     `json:"strategy"`
	FailSafeStrategy string     `json:"failsafe_strategy"`
	DryRun           bool       `json:"dry_run"`
	Relay            string     `json:"relay"`
	LastCheck        *time.Time `json:"last_check,omitempty"`
	LastAction       string     `json:"last_action,omitempty"`
	LastError        string     `json:"last_error,omitempty"`
	Failures         int        `json:"failures"`
}

// SystemHealth represents system-level health information
type SystemHealth struct {
	Uptime     string `json:"uptime"`
	Goroutines int    `json:"goroutines,omitempty"`
}

// NewWebServer creates the web server; a non-positive port disables it
func NewWebServer(scheduler *LightScheduler, port int) *WebServer {
	if port <= 0 {
		return nil
	}

	hs := &WebServer{
		scheduler: scheduler,
		port:      port,
		startTime: time.Now(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		broadcast: make(chan []byte, 16),
		done:      make(chan struct{}),
	}
	hs.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      hs.routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return hs
}

func (hs *WebServer) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/health", getOnly(hs.healthHandler))
	mux.HandleFunc("/api/ready", getOnly(hs.readinessHandler))
	mux.HandleFunc("/api/status", getOnly(hs.statusHandler))
	mux.HandleFunc("/api/events", getOnly(hs.eventsHandler))
	mux.HandleFunc("/api/switches", getOnly(hs.switchesHandler))
	mux.HandleFunc("/api/ws", hs.wsHandler)
	return mux
}

// Start listens in the background and starts the status pushes
func (hs *WebServer) Start() error {
	if hs == nil {
		return nil
	}

	go hs.pushLoop()

	go func() {
		if err := hs.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			hs.scheduler.logger.Printf("Web server error: %v", err)
		}
	}()

	return nil
}

// Stop closes the websocket clients and shuts the server down
func (hs *WebServer) Stop(ctx context.Context) error {
	if hs == nil {
		return nil
	}

	hs.stopOnce.Do(func() { close(hs.done) })
	hs.eachClient(func(conn *websocket.Conn) {
		conn.Close()
	})
	return hs.server.Shutdown(ctx)
}

// Notify queues a status update for the websocket clients. Updates are
// dropped while the queue is full.
func (hs *WebServer) Notify() {
	if hs == nil || hs.clientCount() == 0 {
		return
	}
	message, err := json.Marshal(hs.buildStatusData())
	if err != nil {
		hs.scheduler.logger.Printf("Failed to marshal status data: %v", err)
		return
	}
	select {
	case hs.broadcast <- message:
	default:
	}
}

func getOnly(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h(w, r)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}

func (hs *WebServer) healthHandler(w http.ResponseWriter, r *http.Request) {
	health := hs.buildHealth()
	code := http.StatusOK
	if health.Status != "healthy" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, health)
}

func (hs *WebServer) readinessHandler(w http.ResponseWriter, r *http.Request) {
	running := hs.scheduler.IsRunning()
	code := http.StatusOK
	if !running {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{
		"ready":     running,
		"timestamp": timestamp(),
	})
}

func (hs *WebServer) statusHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"scheduler_status": hs.scheduler.GetStatus(),
		"timestamp":        timestamp(),
	})
}

// eventsHandler reports the solar events. The optional date parameter
// (YYYY-MM-DD) selects another day at the current time of day.
func (hs *WebServer) eventsHandler(w http.ResponseWriter, r *http.Request) {
	now := time.Now()
	if date := r.URL.Query().Get("date"); date != "" {
		day, err := time.ParseInLocation(time.DateOnly, date, now.Location())
		if err != nil {
			http.Error(w, "Invalid date, expected YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		now = time.Date(day.Year(), day.Month(), day.Day(), now.Hour(), now.Minute(), now.Second(), 0, now.Location())
	}

	report, err := hs.scheduler.GetEvents(now)
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// switchesHandler returns the switch log of the last day
func (hs *WebServer) switchesHandler(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	events, err := hs.scheduler.GetSwitchEvents(r.Context(), time.Now().Add(-24*time.Hour), limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

// wsHandler sends the current status to a new websocket client, registers
// it and keeps reading until the client goes away.
func (hs *WebServer) wsHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := hs.upgrader.Upgrade(w, r, nil)
	if err != nil {
		hs.scheduler.logger.Printf("WebSocket upgrade error: %v", err)
		return
	}

	// the first write happens before pushLoop can see the connection
	if err := conn.WriteJSON(hs.buildStatusData()); err != nil {
		hs.scheduler.logger.Printf("Failed to send initial status: %v", err)
		conn.Close()
		return
	}

	hs.clients.Store(conn, struct{}{})
	hs.scheduler.logger.Printf("WebSocket client connected (%d total)", hs.clientCount())

	defer func() {
		hs.clients.Delete(conn)
		conn.Close()
		hs.scheduler.logger.Printf("WebSocket client disconnected (%d total)", hs.clientCount())
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				hs.scheduler.logger.Printf("WebSocket error: %v", err)
			}
			return
		}
	}
}

func (hs *WebServer) eachClient(fn func(conn *websocket.Conn)) {
	hs.clients.Range(func(key, _ any) bool {
		if conn, ok := key.(*websocket.Conn); ok {
			fn(conn)
		}
		return true
	})
}

func (hs *WebServer) clientCount() int {
	n := 0
	hs.eachClient(func(*websocket.Conn) { n++ })
	return n
}

// pushLoop writes queued updates to every client and queues a fresh status
// every statusPushInterval. A client that fails a write is dropped.
func (hs *WebServer) pushLoop() {
	ticker := time.NewTicker(statusPushInterval)
	defer ticker.Stop()

	for {
		select {
		case message := <-hs.broadcast:
			hs.eachClient(func(conn *websocket.Conn) {
				if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
					hs.scheduler.logger.Printf("WebSocket write error: %v", err)
					conn.Close()
					hs.clients.Delete(conn)
				}
			})
		case <-ticker.C:
			hs.Notify()
		case <-hs.done:
			return
		}
	}
}

func (hs *WebServer) buildHealth() HealthResponse {
	status := hs.scheduler.GetStatus()
	config := hs.scheduler.GetConfig()

	health := HealthResponse{
		Status:    "healthy",
		Timestamp: timestamp(),
		Version:   "1.0.0",
		Scheduler: SchedulerHealth{
			IsRunning:        status.IsRunning,
			Mode:             config.Mode,
			Strategy:         config.Strategy,
			FailSafeStrategy: config.FailSafeStrategy,
			DryRun:           config.DryRun,
			Relay:            status.Relay,
			Failures:         status.Failures,
		},
		System: SystemHealth{
			Uptime:     formatUptime(time.Since(hs.startTime)),
			Goroutines: runtime.NumGoroutine(),
		},
	}

	last := status.LastDirect
	if last == nil || (status.LastFailSafe != nil && status.LastFailSafe.Time.After(last.Time)) {
		last = status.LastFailSafe
	}
	if last != nil {
		checked := last.Time
		health.Scheduler.LastCheck = &checked
		health.Scheduler.LastAction = last.Action.String()
		health.Scheduler.LastError = last.Error
	}

	if !status.IsRunning {
		health.Status = "unhealthy"
	}
	return health
}

// buildStatusData combines health, status and today's events for websocket clients
func (hs *WebServer) buildStatusData() map[string]any {
	data := map[string]any{
		"type":   "status_update",
		"health": hs.buildHealth(),
		"status": map[string]any{
			"scheduler_status": hs.scheduler.GetStatus(),
			"timestamp":        timestamp(),
		},
	}
	if report, err := hs.scheduler.GetEvents(time.Now()); err == nil {
		data["events"] = report
	}
	return data
}

// formatUptime formats a duration as a string with seconds rounded to integer
func formatUptime(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh%dm%ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm%ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
