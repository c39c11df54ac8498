// Package mcp exposes the office query builder and services as MCP tools.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"time"

	protoclient "github.com/viant/mcp-protocol/client"

	"github.com/viant/scy"
	"github.com/viant/scy/cred"

	oa "github.com/viant/office/auth"
	"github.com/viant/office/graph"
)

// Service wires the graph manager, per-account executors and pending device logins.
type Service struct {
	manager     *graph.Manager
	baseURL     string
	useText     bool
	pending     *PendingAuths
	auth        *oa.Service
	azure       *cred.Azure
	tenantID    string
	clientID    string
	secretsBase string

	// executors are cached per namespace+alias.
	mu        sync.RWMutex
	executors map[string]*graph.Executor
}

func NewService(cfg *Config) *Service {
	if cfg == nil {
		cfg = &Config{}
	}
	useText := !cfg.UseData
	// Optionally resolve Azure OAuth2 client from scy EncodedResource.
	var az *cred.Azure
	if cfg.AzureRef != "" {
		res := cfg.AzureRef.Decode(context.Background(), cred.Azure{})
		if sec, err := scy.New().Load(context.Background(), res); err == nil {
			if v, ok := sec.Target.(*cred.Azure); ok {
				az = v
			}
		}
	}

	clientID := cfg.ClientID
	if az != nil && az.ClientID != "" {
		clientID = az.ClientID
	}
	tenantID := cfg.TenantID
	if (tenantID == "" || tenantID == "organizations") && az != nil && az.TenantID != "" {
		tenantID = az.TenantID
	}

	return &Service{
		manager:     graph.NewManager(clientID, cfg.SecretsBase),
		baseURL:     cfg.CallbackBaseURL,
		useText:     useText,
		pending:     NewPendingAuths(),
		auth:        oa.New(),
		azure:       az,
		tenantID:    tenantID,
		clientID:    clientID,
		secretsBase: cfg.SecretsBase,
		executors:   map[string]*graph.Executor{},
	}
}

// Executor returns a query executor bound to an account, cached per namespace+alias.
func (s *Service) Executor(ctx context.Context, account graph.Account) *graph.Executor {
	if account.TenantID == "" {
		account.TenantID = s.tenantID
	}
	ns, _ := s.auth.Namespace(ctx)
	if ns == "" {
		ns = "default"
	}
	key := ns + "|" + account.Alias
	s.mu.RLock()
	if executor, ok := s.executors[key]; ok {
		s.mu.RUnlock()
		return executor
	}
	s.mu.RUnlock()
	executor := graph.NewExecutor(s.manager, account, graph.DefaultScopes(), nil)
	s.mu.Lock()
	if existing, ok := s.executors[key]; ok {
		s.mu.Unlock()
		return existing
	}
	s.executors[key] = executor
	s.mu.Unlock()
	return executor
}

func (s *Service) RegisterHTTP(mux *http.ServeMux) {
	// Device code display endpoint, shows the code for a pending login.
	mux.HandleFunc("/office/auth/device/", s.DeviceHandler())
	// List/clear pending endpoints
	mux.HandleFunc("/office/auth/pending", s.PendingListHandler())
	mux.HandleFunc("/office/auth/pending/clear", s.PendingClearHandler())
}

// DeviceHandler serves the device login page for a pending auth UUID.
func (s *Service) DeviceHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// URL: /office/auth/device/{uuid}
		path := r.URL.Path
		parts := strings.Split(strings.Trim(path, "/"), "/")
		if len(parts) != 4 { // office auth device {uuid}
			http.Error(w, "invalid path", http.StatusBadRequest)
			return
		}
		uuid := parts[3]
		pend, ok := s.pending.Get(uuid)
		if !ok {
			http.Error(w, "no pending auth", http.StatusNotFound)
			return
		}
		msg := s.manager.DevicePrompt(pend.Alias)
		if msg == "" {
			deadline := time.Now().Add(8 * time.Second)
			for msg == "" && time.Now().Before(deadline) {
				time.Sleep(200 * time.Millisecond)
				msg = s.manager.DevicePrompt(pend.Alias)
			}
		}
		if msg == "" {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_, _ = fmt.Fprint(w, buildWaitingForDeviceHTML())
			return
		}
		// Render a clickable link and highlight the code for easier UX.
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = fmt.Fprint(w, buildDeviceLoginHTML(msg))
	}
}

// buildDeviceLoginHTML converts the Azure device prompt into a clickable HTML with copyable code.
func buildDeviceLoginHTML(msg string) string {
	url := extractURL(msg)
	code := extractCode(msg)
	escURL := html.EscapeString(url)
	escCode := html.EscapeString(code)
	// Fallback rendering if we couldn't parse a code
	if escCode == "" {
		escMsg := html.EscapeString(msg)
		return fmt.Sprintf(`<html><body>
<h3>Sign in to Microsoft 365</h3>
<p>Open <a href="%[1]s" target="_blank" rel="noopener noreferrer">%[1]s</a> and follow the instructions.</p>
<pre>%[2]s</pre>
<p>Keep this tab open; return to your assistant after completing sign-in.</p>
</body></html>`, escURL, escMsg)
	}
	return fmt.Sprintf(`<html><body style="font-family: -apple-system, Segoe UI, Roboto, sans-serif;">
<h3>Sign in to Microsoft 365</h3>
<p>Click to open: <a href="%[1]s" target="_blank" rel="noopener noreferrer">%[1]s</a></p>
<p>Then enter this code:</p>
<p style="font-size: 1.4em; font-weight: 600;"><code>%[2]s</code> <button onclick="navigator.clipboard.writeText('%[3]s')">Copy</button></p>
<p>Keep this tab open; return to your assistant after completing sign-in.</p>
</body></html>`, escURL, escCode, escCode)
}

func buildWaitingForDeviceHTML() string {
	url := html.EscapeString("https://microsoft.com/devicelogin")
	return fmt.Sprintf(`<!doctype html>
<html><head>
<meta http-equiv="refresh" content="2">
<meta charset="utf-8">
<title>Sign in to Microsoft 365</title>
<style>body{font-family:-apple-system,Segoe UI,Roboto,sans-serif;margin:24px}</style>
</head><body>
<h3>Sign in to Microsoft 365</h3>
<p>Preparing device login. This page refreshes automatically.</p>
<p>If it takes too long, you can open <a href="%[1]s" target="_blank" rel="noopener noreferrer">%[1]s</a> and follow the instructions.</p>
<p>Keep this tab open; return to your assistant after completing sign-in.</p>
</body></html>`, url)
}

// PendingListHandler returns JSON of pending auths for a namespace.
func (s *Service) PendingListHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		ns := r.URL.Query().Get("namespace")
		if ns == "" {
			if v, err := s.auth.Namespace(r.Context()); err == nil {
				ns = v
			}
		}
		if ns == "" {
			http.Error(w, "namespace required", http.StatusBadRequest)
			return
		}
		list := s.pending.ListNamespace(ns)
		type row struct{ UUID, Alias, TenantID, Namespace string }
		out := make([]row, 0, len(list))
		for _, v := range list {
			out = append(out, row{UUID: v.UUID, Alias: v.Alias, TenantID: v.TenantID, Namespace: v.Namespace})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(out)
	}
}

// PendingClearHandler clears all pending auths for a namespace.
func (s *Service) PendingClearHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		ns := r.URL.Query().Get("namespace")
		if ns == "" {
			if v, err := s.auth.Namespace(r.Context()); err == nil {
				ns = v
			}
		}
		if ns == "" {
			http.Error(w, "namespace required", http.StatusBadRequest)
			return
		}
		cleared := s.pending.ClearNamespace(ns)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"cleared": len(cleared), "uuids": cleared})
	}
}

func (s *Service) Manager() *graph.Manager { return s.manager }
func (s *Service) UseTextField() bool      { return s.useText }
func (s *Service) BaseURL() string         { return s.baseURL }
func (s *Service) Pending() *PendingAuths  { return s.pending }
func (s *Service) Auth() *oa.Service       { return s.auth }
func (s *Service) TenantID() string        { return s.tenantID }
func (s *Service) ClientID() string        { return s.clientID }
func (s *Service) SecretsBase() string     { return s.secretsBase }

// NewOperationsHook allows passing protocol client operations if needed later.
func (s *Service) NewOperationsHook(_ protoclient.Operations) {}

// Minimal helpers to extract device login URL/code from Azure prompt message.
func extractURL(msg string) string {
	if m := regexp.MustCompile(`https?://[^\s]+`).FindString(msg); m != "" {
		return m
	}
	return "https://microsoft.com/devicelogin"
}

func extractCode(msg string) string {
	if m := regexp.MustCompile(`(?i)code\s+([A-Z0-9-]+)`).FindStringSubmatch(msg); len(m) == 2 {
		return m[1]
	}
	return ""
}
