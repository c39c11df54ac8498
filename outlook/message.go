package outlook

import (
	"context"
	"net/http"
	"time"

	"github.com/viant/office/graph"
	"github.com/viant/office/query"
)

// Message is a typed view over a message record; absent fields stay zero.
type Message struct {
	ID             string
	Subject        string
	From           string
	BodyPreview    string
	Received       time.Time
	IsRead         bool
	HasAttachments bool
}

// MessageFrom builds the typed view from a raw record.
func MessageFrom(record query.Record) Message {
	message := Message{
		ID:             record.String("id"),
		Subject:        record.String("subject"),
		BodyPreview:    record.String("bodyPreview"),
		IsRead:         record.Bool("isRead"),
		HasAttachments: record.Bool("hasAttachments"),
	}
	if v := record.String("receivedDateTime"); v != "" {
		if ts, err := time.Parse(time.RFC3339, v); err == nil {
			message.Received = ts
		}
	}
	message.From = recipientAddress(record["from"])
	return message
}

// recipientAddress digs the address out of a Graph recipient object.
func recipientAddress(value interface{}) string {
	recipient, ok := value.(map[string]interface{})
	if !ok {
		return ""
	}
	email, ok := recipient["emailAddress"].(map[string]interface{})
	if !ok {
		return ""
	}
	address, _ := email["address"].(string)
	return address
}

// MarkRead flips the read flag of one message.
func (s *Service) MarkRead(ctx context.Context, id string, read bool) error {
	return s.executor.Call(ctx, http.MethodPatch, graph.EntityMessages+"/"+id, map[string]interface{}{"isRead": read}, nil)
}

// Move relocates a message into the destination folder.
func (s *Service) Move(ctx context.Context, id string, destination *Folder) error {
	return s.executor.Call(ctx, http.MethodPost, graph.EntityMessages+"/"+id+"/move",
		map[string]interface{}{"destinationId": folderID(destination)}, nil)
}

// Copy duplicates a message into the destination folder.
func (s *Service) Copy(ctx context.Context, id string, destination *Folder) error {
	return s.executor.Call(ctx, http.MethodPost, graph.EntityMessages+"/"+id+"/copy",
		map[string]interface{}{"destinationId": folderID(destination)}, nil)
}

// Delete removes a message.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.executor.Call(ctx, http.MethodDelete, graph.EntityMessages+"/"+id, nil, nil)
}

func folderID(folder *Folder) string {
	if folder == nil {
		return ""
	}
	if id := folder.record.String("id"); id != "" {
		return id
	}
	// well-known folders are addressable by their path suffix
	if i := len(graph.EntityMailFolders) + 1; len(folder.path) > i {
		return folder.path[i:]
	}
	return folder.path
}

// Each applies an action to every message matched by a query, in yield order.
// The first action or page failure stops the walk; already-processed messages
// are not revisited. It returns the number of messages processed.
func (s *Service) Each(ctx context.Context, q *query.Query, action func(context.Context, Message) error) (int, error) {
	result, err := q.Execute(ctx)
	if err != nil {
		return 0, err
	}
	processed := 0
	for result.Next() {
		if err := action(ctx, MessageFrom(result.Record())); err != nil {
			return processed, err
		}
		processed++
	}
	return processed, result.Err()
}

// Bulk counterparts of the single-message operations.

func (s *Service) MarkAllRead(ctx context.Context, q *query.Query) (int, error) {
	return s.Each(ctx, q, func(ctx context.Context, m Message) error {
		return s.MarkRead(ctx, m.ID, true)
	})
}

func (s *Service) MoveAll(ctx context.Context, q *query.Query, destination *Folder) (int, error) {
	return s.Each(ctx, q, func(ctx context.Context, m Message) error {
		return s.Move(ctx, m.ID, destination)
	})
}

func (s *Service) DeleteAll(ctx context.Context, q *query.Query) (int, error) {
	return s.Each(ctx, q, func(ctx context.Context, m Message) error {
		return s.Delete(ctx, m.ID)
	})
}
