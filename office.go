// Package office bootstraps the mail, contacts and calendar services of one or
// more Microsoft accounts from a connection configuration.
package office

import (
	"context"
	"fmt"
	"sync"

	"github.com/viant/office/calendar"
	"github.com/viant/office/config"
	"github.com/viant/office/graph"
	"github.com/viant/office/outlook"
	"github.com/viant/office/people"
)

// Office is the root entry point. It resolves connections from configuration,
// keeps one graph manager per registered application and hands out services
// bound to a connection's executor.
type Office struct {
	config *config.Config
	scopes []string
	prompt func(string)

	mu        sync.Mutex
	managers  map[string]*graph.Manager
	executors map[string]*graph.Executor
}

// Option customizes a new Office instance.
type Option func(*Office)

// WithScopes overrides the default delegated scope set.
func WithScopes(scopes []string) Option {
	return func(o *Office) { o.scopes = scopes }
}

// WithPrompt sets the callback surfacing device-code login messages.
func WithPrompt(prompt func(string)) Option {
	return func(o *Office) { o.prompt = prompt }
}

// New returns an Office over the supplied configuration.
func New(cfg *config.Config, options ...Option) *Office {
	ret := &Office{
		config:    cfg,
		scopes:    graph.DefaultScopes(),
		managers:  map[string]*graph.Manager{},
		executors: map[string]*graph.Executor{},
	}
	for _, option := range options {
		option(ret)
	}
	return ret
}

// Load reads the configuration from an AFS URL and returns an Office over it.
func Load(ctx context.Context, URL string, options ...Option) (*Office, error) {
	cfg, err := config.Load(ctx, URL)
	if err != nil {
		return nil, err
	}
	return New(cfg, options...), nil
}

// Config returns the underlying configuration.
func (o *Office) Config() *config.Config { return o.config }

// Executor returns the executor for a named connection; an empty name selects
// the default connection. Executors are cached per connection name.
func (o *Office) Executor(ctx context.Context, name string) (*graph.Executor, error) {
	connection, err := o.config.Connection(name)
	if err != nil {
		return nil, err
	}
	if err := connection.Resolve(ctx); err != nil {
		return nil, err
	}
	if connection.ClientID == "" {
		return nil, fmt.Errorf("connection %q has no clientID", o.connectionName(name))
	}
	key := o.connectionName(name)
	o.mu.Lock()
	defer o.mu.Unlock()
	if executor, ok := o.executors[key]; ok {
		return executor, nil
	}
	manager, ok := o.managers[connection.ClientID]
	if !ok {
		manager = graph.NewManager(connection.ClientID, o.config.SecretsBase)
		o.managers[connection.ClientID] = manager
	}
	account := graph.Account{Alias: key, TenantID: connection.TenantID}
	executor := graph.NewExecutor(manager, account, o.scopes, o.prompt)
	o.executors[key] = executor
	return executor, nil
}

func (o *Office) connectionName(name string) string {
	if name == "" {
		return o.config.DefaultConnection
	}
	return name
}

// Login triggers the device-code flow for a connection when no cached
// credential can produce a token silently.
func (o *Office) Login(ctx context.Context, name string) error {
	executor, err := o.Executor(ctx, name)
	if err != nil {
		return err
	}
	_, err = executor.Authorize(ctx)
	return err
}

// Outlook returns the mail service for a named connection.
func (o *Office) Outlook(ctx context.Context, name string) (*outlook.Service, error) {
	executor, err := o.Executor(ctx, name)
	if err != nil {
		return nil, err
	}
	return outlook.NewService(executor, o.config.SecretsBase), nil
}

// People returns the contacts service for a named connection.
func (o *Office) People(ctx context.Context, name string) (*people.Service, error) {
	executor, err := o.Executor(ctx, name)
	if err != nil {
		return nil, err
	}
	return people.NewService(executor), nil
}

// Calendar returns the calendar service for a named connection.
func (o *Office) Calendar(ctx context.Context, name string) (*calendar.Service, error) {
	executor, err := o.Executor(ctx, name)
	if err != nil {
		return nil, err
	}
	return calendar.NewService(executor), nil
}
