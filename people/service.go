// Package people exposes the contacts of one signed-in account through the
// declarative query builder.
package people

import (
	"context"
	"fmt"
	"net/http"

	"github.com/viant/office/graph"
	"github.com/viant/office/query"
)

// Service wraps the contacts surface of one account.
type Service struct {
	executor *graph.Executor
}

func NewService(executor *graph.Executor) *Service {
	return &Service{executor: executor}
}

// Contacts returns a query over the default contact folder.
func (s *Service) Contacts() *query.Query {
	return query.New(s.executor, graph.EntityContacts)
}

// Folders returns a query over contact folders.
func (s *Service) Folders() *query.Query {
	return query.New(s.executor, graph.EntityContactFolders)
}

// FolderContacts returns a query over contacts of one contact folder.
func (s *Service) FolderContacts(folderID string) *query.Query {
	return query.New(s.executor, graph.EntityContactFolders+"/"+folderID+"/"+graph.EntityContacts)
}

// ByName finds a single contact by display name.
func (s *Service) ByName(ctx context.Context, displayName string) (*Contact, error) {
	result, err := s.Contacts().
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
		return nil, fmt.Errorf("contact %q not found", displayName)
	}
	contact := ContactFrom(result.Record())
	return &contact, nil
}

// Create adds a contact to the default folder and returns the stored copy.
func (s *Service) Create(ctx context.Context, contact *Contact) (*Contact, error) {
	payload := map[string]interface{}{
		"givenName":   contact.GivenName,
		"surname":     contact.Surname,
		"displayName": contact.DisplayName,
	}
	if contact.CompanyName != "" {
		payload["companyName"] = contact.CompanyName
	}
	if len(contact.Emails) > 0 {
		var addresses []map[string]string
		for _, email := range contact.Emails {
			addresses = append(addresses, map[string]string{"address": email, "name": contact.DisplayName})
		}
		payload["emailAddresses"] = addresses
	}
	var record query.Record
	if err := s.executor.Call(ctx, http.MethodPost, graph.EntityContacts, payload, &record); err != nil {
		return nil, err
	}
	created := ContactFrom(record)
	return &created, nil
}

// Delete removes a contact.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.executor.Call(ctx, http.MethodDelete, graph.EntityContacts+"/"+id, nil, nil)
}
