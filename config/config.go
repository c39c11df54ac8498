// Package config holds office connection settings as an explicit value with a
// load/save boundary owned by the caller. Nothing in this package is global.
package config

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/viant/afs"
	"github.com/viant/scy"
	"github.com/viant/scy/cred"
)

// Connection describes one registered Azure AD application and its default
// mailbox. Secret material is not stored inline: AzureRef points to a scy
// encoded resource ("<URL>|<kmsKey>") holding the cred.Azure record.
type Connection struct {
	ClientID     string `json:"clientID,omitempty"`
	TenantID     string `json:"tenantID,omitempty"`
	DefaultEmail string `json:"defaultEmail,omitempty"`
	// AzureRef optionally points to an Azure OAuth2 client stored as a scy resource,
	// e.g. "~/.secret/azure.yaml|blowfish://default" or "gcp://secretmanager/.../azure-cred".
	AzureRef scy.EncodedResource `json:"azureRef,omitempty"`
}

// Resolve fills ClientID/TenantID from the referenced scy resource when set.
func (c *Connection) Resolve(ctx context.Context) error {
	if c.AzureRef == "" {
		return nil
	}
	resource := c.AzureRef.Decode(ctx, cred.Azure{})
	secret, err := scy.New().Load(ctx, resource)
	if err != nil {
		return fmt.Errorf("load azure credential: %w", err)
	}
	azure, ok := secret.Target.(*cred.Azure)
	if !ok {
		return fmt.Errorf("azure credential resource has unexpected type %T", secret.Target)
	}
	if c.ClientID == "" {
		c.ClientID = azure.ClientID
	}
	if c.TenantID == "" {
		c.TenantID = azure.TenantID
	}
	return nil
}

// Config is the set of registered connections and the default one.
type Config struct {
	DefaultConnection string                `json:"defaultConnection,omitempty"`
	Connections       map[string]Connection `json:"connections,omitempty"`
	// SecretsBase is an AFS URL root for persisting auth records and signatures,
	// e.g. "file://~/.office" or "mem://localhost/office".
	SecretsBase string `json:"secretsBase,omitempty"`
}

// New returns an empty configuration.
func New() *Config {
	return &Config{Connections: map[string]Connection{}}
}

// Load reads a configuration from an AFS URL (file://, mem://, s3://, gs://...).
func Load(ctx context.Context, URL string) (*Config, error) {
	reader, err := afs.New().OpenURL(ctx, URL)
	if err != nil {
		return nil, fmt.Errorf("open config %v: %w", URL, err)
	}
	defer reader.Close()
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}
	ret := New()
	if err := json.Unmarshal(data, ret); err != nil {
		return nil, fmt.Errorf("decode config %v: %w", URL, err)
	}
	if ret.Connections == nil {
		ret.Connections = map[string]Connection{}
	}
	return ret, nil
}

// Save writes the configuration to an AFS URL.
func (c *Config) Save(ctx context.Context, URL string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	if err := afs.New().Upload(ctx, URL, 0o600, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("save config %v: %w", URL, err)
	}
	return nil
}

// AddConnection registers a connection under name, optionally as the default.
func (c *Config) AddConnection(name string, connection Connection, makeDefault bool) {
	if c.Connections == nil {
		c.Connections = map[string]Connection{}
	}
	c.Connections[name] = connection
	if makeDefault || c.DefaultConnection == "" {
		c.DefaultConnection = name
	}
}

// SetDefaultConnection marks an existing connection as the default.
func (c *Config) SetDefaultConnection(name string) error {
	if _, ok := c.Connections[name]; !ok {
		return fmt.Errorf("connection %q is not registered (have: %v)", name, strings.Join(c.connectionNames(), ", "))
	}
	c.DefaultConnection = name
	return nil
}

// Connection returns the named connection; an empty name selects the default.
func (c *Config) Connection(name string) (Connection, error) {
	if name == "" {
		name = c.DefaultConnection
	}
	if name == "" {
		return Connection{}, fmt.Errorf("no default connection configured")
	}
	connection, ok := c.Connections[name]
	if !ok {
		return Connection{}, fmt.Errorf("connection %q is not registered (have: %v)", name, strings.Join(c.connectionNames(), ", "))
	}
	return connection, nil
}

func (c *Config) connectionNames() []string {
	names := make([]string, 0, len(c.Connections))
	for name := range c.Connections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
