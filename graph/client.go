// Package graph implements the data-access collaborator for Microsoft Graph:
// credential and client management per account alias, and an OData executor
// the query builder dispatches to.
package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity/cache"
	msgraphsdk "github.com/microsoftgraph/msgraph-sdk-go"
	"github.com/viant/afs"
	oaauth "github.com/viant/office/auth"
)

// Manager provides Microsoft Graph credentials and client instances per
// account alias. Auth records are persisted under an AFS base URL so silent
// re-login survives process restarts.
type Manager struct {
	clientID    string
	secretsBase string
	fs          afs.Service
	auth        *oaauth.Service
	// mu guards pending, clients and creds.
	mu sync.RWMutex
	// pending holds device-code prompts keyed by account alias.
	pending map[string]*pendingLogin
	// clients caches GraphServiceClient instances per alias+tenant+scopes.
	clients map[string]*msgraphsdk.GraphServiceClient
	// creds caches device code credentials per alias, kept in memory until process restarts.
	creds map[string]*azidentity.DeviceCodeCredential
}

// pendingLogin carries the device prompt message from the login goroutine to
// concurrent DevicePrompt readers.
type pendingLogin struct {
	mu      sync.Mutex
	message string
}

func (p *pendingLogin) set(message string) {
	p.mu.Lock()
	p.message = message
	p.mu.Unlock()
}

func (p *pendingLogin) get() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.message
}

func NewManager(clientID, secretsBase string) *Manager {
	return &Manager{
		clientID:    clientID,
		secretsBase: strings.TrimRight(expandPath(secretsBase), "/"),
		fs:          afs.New(),
		auth:        oaauth.New(),
		pending:     map[string]*pendingLogin{},
		clients:     map[string]*msgraphsdk.GraphServiceClient{},
		creds:       map[string]*azidentity.DeviceCodeCredential{},
	}
}

func (m *Manager) authRecordURL(ns, alias string) string {
	return m.secretsBase + "/" + fmt.Sprintf("%s_%s_auth_record.json", safePart(ns), safePart(alias))
}

func safePart(s string) string {
	s = strings.TrimSpace(os.ExpandEnv(s))
	// Replace characters unsafe for filenames or caches
	repl := strings.NewReplacer("/", "_", "\\", "_", ":", "_", "|", "_", " ", "_", "@", "_")
	return repl.Replace(s)
}

func expandPath(p string) string {
	if p == "" {
		return p
	}
	p = os.ExpandEnv(p)
	if strings.HasPrefix(p, "~") {
		if home, err := os.UserHomeDir(); err == nil {
			if p == "~" {
				p = home
			} else if strings.HasPrefix(p, "~/") {
				p = home + "/" + p[2:]
			}
		}
	}
	return p
}

func (m *Manager) namespace(ctx context.Context) string {
	ns, _ := m.auth.Namespace(ctx)
	if ns == "" {
		ns = "default"
	}
	return ns
}

func (m *Manager) loadAuthRecord(ctx context.Context, ns, alias string) (azidentity.AuthenticationRecord, bool) {
	var rec azidentity.AuthenticationRecord
	if m.secretsBase == "" {
		return rec, false
	}
	reader, err := m.fs.OpenURL(ctx, m.authRecordURL(ns, alias))
	if err != nil {
		return rec, false
	}
	defer reader.Close()
	data, err := io.ReadAll(reader)
	if err != nil || len(data) == 0 {
		return rec, false
	}
	_ = json.Unmarshal(data, &rec)
	return rec, true
}

func (m *Manager) saveAuthRecord(ctx context.Context, ns, alias string, rec azidentity.AuthenticationRecord) {
	if m.secretsBase == "" {
		return
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return
	}
	URL := m.authRecordURL(ns, alias)
	if err := m.fs.Upload(ctx, URL, 0o600, bytes.NewReader(data)); err == nil {
		if officeDebug() {
			log.Printf("[office] saved auth record; ns=%s alias=%s url=%s", ns, alias, URL)
		}
	}
}

// NeedsInteractive checks quickly (non-interactive) whether a device flow is required.
func (m *Manager) NeedsInteractive(ctx context.Context, alias, tenantID string, scopes []string) bool {
	if m.secretsBase == "" {
		return true
	}
	ns := m.namespace(ctx)
	rec, haveRec := m.loadAuthRecord(ctx, ns, alias)
	aCache, err := cache.New(&cache.Options{Name: "office-" + safePart(ns) + "-" + safePart(alias)})
	if err != nil {
		return true
	}
	opts := &azidentity.DeviceCodeCredentialOptions{
		TenantID:   tenantID,
		ClientID:   m.clientID,
		Cache:      aCache,
		UserPrompt: func(context.Context, azidentity.DeviceCodeMessage) error { return nil },
	}
	if haveRec {
		opts.AuthenticationRecord = rec
	}
	cred, err := azidentity.NewDeviceCodeCredential(opts)
	if err != nil {
		return true
	}
	ctx2, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	_, err = cred.GetToken(ctx2, policy.TokenRequestOptions{Scopes: scopes})
	return err != nil
}

// Client returns a ready-to-use GraphServiceClient with given scopes.
func (m *Manager) Client(ctx context.Context, alias, tenantID string, scopes []string, prompt func(string)) (*msgraphsdk.GraphServiceClient, error) {
	ns := m.namespace(ctx)
	key := m.clientKey(ns, alias, tenantID, scopes)
	m.mu.RLock()
	if cli, ok := m.clients[key]; ok {
		m.mu.RUnlock()
		return cli, nil
	}
	m.mu.RUnlock()

	cred, err := m.Credential(ctx, alias, tenantID, scopes, prompt)
	if err != nil {
		return nil, err
	}
	client, err := msgraphsdk.NewGraphServiceClientWithCredentials(cred, scopes)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	// Double-check in case another goroutine created it meanwhile.
	if existing, ok := m.clients[key]; ok {
		m.mu.Unlock()
		return existing, nil
	}
	m.clients[key] = client
	m.mu.Unlock()
	return client, nil
}

// Credential returns a cached DeviceCodeCredential for alias, acquiring and caching if needed.
func (m *Manager) Credential(ctx context.Context, alias, tenantID string, scopes []string, prompt func(string)) (*azidentity.DeviceCodeCredential, error) {
	ns := m.namespace(ctx)
	key := ns + "|" + alias
	m.mu.RLock()
	if c := m.creds[key]; c != nil {
		m.mu.RUnlock()
		return c, nil
	}
	m.mu.RUnlock()
	cred, _, err := m.acquireCredential(ctx, alias, tenantID, scopes, prompt)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	if existing := m.creds[key]; existing != nil {
		m.mu.Unlock()
		return existing, nil
	}
	m.creds[key] = cred
	m.mu.Unlock()
	return cred, nil
}

// Acquire performs authentication only (useful to trigger device-code flow explicitly).
func (m *Manager) Acquire(ctx context.Context, alias, tenantID string, scopes []string, prompt func(string)) error {
	_, _, err := m.acquireCredential(ctx, alias, tenantID, scopes, prompt)
	return err
}

// HasAuthRecord reports whether an auth record exists for alias.
func (m *Manager) HasAuthRecord(ctx context.Context, alias string) bool {
	if m.secretsBase == "" {
		return false
	}
	ok, _ := m.fs.Exists(ctx, m.authRecordURL(m.namespace(ctx), alias))
	return ok
}

// StartDeviceLogin launches the device code authentication in background.
// It stores the prompt message to be retrievable via DevicePrompt.
func (m *Manager) StartDeviceLogin(ctx context.Context, alias, tenantID string, scopes []string, onComplete func()) {
	m.mu.Lock()
	if _, ok := m.pending[alias]; ok {
		m.mu.Unlock()
		return
	}
	holder := &pendingLogin{}
	m.pending[alias] = holder
	m.mu.Unlock()
	go func() {
		prompt := func(msg string) { holder.set(msg) }
		if _, _, err := m.acquireCredential(ctx, alias, tenantID, scopes, prompt); err == nil {
			if onComplete != nil {
				onComplete()
			}
		}
		m.mu.Lock()
		delete(m.pending, alias)
		m.mu.Unlock()
	}()
}

// DevicePrompt returns the last device-code prompt message for alias.
func (m *Manager) DevicePrompt(alias string) string {
	m.mu.RLock()
	p, ok := m.pending[alias]
	m.mu.RUnlock()
	if ok {
		return p.get()
	}
	return ""
}

// acquireCredential performs the device code flow. If an auth record exists it
// is used for silent login first.
func (m *Manager) acquireCredential(ctx context.Context, alias, tenantID string, scopes []string, prompt func(string)) (*azidentity.DeviceCodeCredential, azidentity.AuthenticationRecord, error) {
	if m.secretsBase == "" {
		return nil, azidentity.AuthenticationRecord{}, errors.New("secretsBase is required")
	}
	ns := m.namespace(ctx)
	rec, haveRec := m.loadAuthRecord(ctx, ns, alias)

	// Persist tokens via azidentity/cache (Keychain on macOS).
	aCache, err := cache.New(&cache.Options{Name: "office-" + safePart(ns) + "-" + safePart(alias)})
	if err != nil {
		return nil, azidentity.AuthenticationRecord{}, err
	}
	// Always provide a prompt callback (to avoid SDK printing to stdout and
	// to surface the device code message when interaction is needed).
	var userPrompt = func(_ context.Context, m azidentity.DeviceCodeMessage) error {
		if prompt != nil {
			prompt(m.Message)
		}
		return nil
	}
	opts := &azidentity.DeviceCodeCredentialOptions{
		TenantID:   tenantID,
		ClientID:   m.clientID,
		Cache:      aCache,
		UserPrompt: userPrompt,
	}
	if haveRec {
		opts.AuthenticationRecord = rec
	}
	cred, err := azidentity.NewDeviceCodeCredential(opts)
	if err != nil {
		return nil, azidentity.AuthenticationRecord{}, err
	}

	if haveRec {
		// Quick silent token preflight. When it fails fall back to the
		// interactive flow and persist a fresh record.
		tctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
		_, preErr := cred.GetToken(tctx, policy.TokenRequestOptions{Scopes: scopes})
		cancel()
		if preErr == nil {
			return cred, rec, nil
		}
	}
	rec, err = cred.Authenticate(ctx, &policy.TokenRequestOptions{Scopes: scopes})
	if err != nil {
		return nil, azidentity.AuthenticationRecord{}, err
	}
	m.saveAuthRecord(ctx, ns, alias, rec)
	return cred, rec, nil
}

func officeDebug() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("OFFICE_DEBUG")))
	return v != "" && v != "0" && v != "false"
}

// DefaultScopes returns the delegated scope set covering mail, contacts and
// calendar, shared-mailbox variants included. Callers needing a narrower or
// wider grant pass their own set.
func DefaultScopes() []string {
	return []string{
		"https://graph.microsoft.com/User.Read",
		"https://graph.microsoft.com/Mail.ReadWrite",
		"https://graph.microsoft.com/Mail.Send",
		"https://graph.microsoft.com/Mail.ReadWrite.Shared",
		"https://graph.microsoft.com/Mail.Send.Shared",
		"https://graph.microsoft.com/Contacts.ReadWrite",
		"https://graph.microsoft.com/Contacts.ReadWrite.Shared",
		"https://graph.microsoft.com/Calendars.ReadWrite",
		"https://graph.microsoft.com/Calendars.ReadWrite.Shared",
	}
}

// clientKey builds a stable cache key from namespace, alias, tenantID, and normalized scopes.
func (m *Manager) clientKey(ns, alias, tenantID string, scopes []string) string {
	// normalize scopes: lowercase and sort
	if len(scopes) > 0 {
		norm := make([]string, 0, len(scopes))
		for _, s := range scopes {
			if s == "" {
				continue
			}
			norm = append(norm, strings.ToLower(s))
		}
		sort.Strings(norm)
		scopes = norm
	}
	if ns == "" {
		ns = "default"
	}
	return ns + "|" + alias + "|" + tenantID + "|" + strings.Join(scopes, ",")
}
