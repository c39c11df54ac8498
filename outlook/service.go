// Package outlook exposes mailbox folders and messages of one signed-in
// account through the declarative query builder, plus a fluent sender.
package outlook

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/viant/afs"
	"github.com/viant/office/graph"
	"github.com/viant/office/query"
)

// Service wraps the mail surface of one account. The Graph executor is the
// injected data-access collaborator; the service never talks to the wire
// directly.
type Service struct {
	executor     *graph.Executor
	fs           afs.Service
	signatureURL string
}

// NewService returns a mail service bound to an executor. secretsBase, when
// set, is the AFS URL root where the user's signature is persisted across
// sessions.
func NewService(executor *graph.Executor, secretsBase string) *Service {
	ret := &Service{executor: executor, fs: afs.New()}
	if secretsBase != "" {
		ret.signatureURL = strings.TrimRight(secretsBase, "/") + "/signature.html"
	}
	return ret
}

// Root returns the whole-mailbox folder; its message query spans all folders.
func (s *Service) Root() *Folder { return &Folder{service: s} }

// Well-known folders.
func (s *Service) Inbox() *Folder   { return s.wellKnown("inbox") }
func (s *Service) Outbox() *Folder  { return s.wellKnown("outbox") }
func (s *Service) Sent() *Folder    { return s.wellKnown("sentitems") }
func (s *Service) Drafts() *Folder  { return s.wellKnown("drafts") }
func (s *Service) Junk() *Folder    { return s.wellKnown("junkemail") }
func (s *Service) Deleted() *Folder { return s.wellKnown("deleteditems") }

func (s *Service) wellKnown(name string) *Folder {
	return &Folder{service: s, path: graph.EntityMailFolders + "/" + name}
}

// FolderByID returns a folder handle without a remote lookup.
func (s *Service) FolderByID(id string) *Folder {
	return &Folder{service: s, path: graph.EntityMailFolders + "/" + id}
}

// Folder finds a custom folder by display name.
func (s *Service) Folder(ctx context.Context, displayName string) (*Folder, error) {
	result, err := s.Root().Folders().
		Filter("displayName", query.Equals, displayName).
		Top(1).
		Execute(ctx)
	if err != nil {
		return nil, err
	}
	if !result.Next() {
		if err := result.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("folder %q not found", displayName)
	}
	record := result.Record()
	id := record.String("id")
	if id == "" {
		return nil, fmt.Errorf("folder %q has no id", displayName)
	}
	return &Folder{service: s, path: graph.EntityMailFolders + "/" + id, record: record}, nil
}

// Signature returns the persisted signature HTML, empty when none was set.
func (s *Service) Signature(ctx context.Context) (string, error) {
	if s.signatureURL == "" {
		return "", nil
	}
	if ok, _ := s.fs.Exists(ctx, s.signatureURL); !ok {
		return "", nil
	}
	reader, err := s.fs.OpenURL(ctx, s.signatureURL)
	if err != nil {
		return "", fmt.Errorf("open signature: %w", err)
	}
	defer reader.Close()
	data, err := io.ReadAll(reader)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// SetSignature persists the signature HTML across sessions.
func (s *Service) SetSignature(ctx context.Context, signature string) error {
	if s.signatureURL == "" {
		return fmt.Errorf("no secretsBase configured for signature persistence")
	}
	return s.fs.Upload(ctx, s.signatureURL, 0o600, bytes.NewReader([]byte(signature)))
}

// Folder is one mailbox folder; the zero path means the whole mailbox.
type Folder struct {
	service *Service
	path    string
	record  query.Record
}

// Messages returns a query over the folder's messages.
func (f *Folder) Messages() *query.Query {
	entity := graph.EntityMessages
	if f.path != "" {
		entity = f.path + "/" + graph.EntityMessages
	}
	return query.New(f.service.executor, entity)
}

// Folders returns a query over child folders (top-level folders at the root).
func (f *Folder) Folders() *query.Query {
	entity := graph.EntityMailFolders
	if f.path != "" {
		entity = f.path + "/childFolders"
	}
	return query.New(f.service.executor, entity)
}

// Record returns the raw folder record when the folder came from a lookup.
func (f *Folder) Record() query.Record { return f.record }

// Message starts a fluent message scoped to this folder's service.
func (f *Folder) Message() *FluentMessage { return f.service.Message() }
