package people

import (
	"github.com/viant/office/query"
)

// Contact is a typed view over a contact record.
type Contact struct {
	ID          string
	GivenName   string
	Surname     string
	DisplayName string
	CompanyName string
	JobTitle    string
	Emails      []string
}

// ContactFrom builds the typed view from a raw record.
func ContactFrom(record query.Record) Contact {
	contact := Contact{
		ID:          record.String("id"),
		GivenName:   record.String("givenName"),
		Surname:     record.String("surname"),
		DisplayName: record.String("displayName"),
		CompanyName: record.String("companyName"),
		JobTitle:    record.String("jobTitle"),
	}
	if addresses, ok := record["emailAddresses"].([]interface{}); ok {
		for _, item := range addresses {
			if email, ok := item.(map[string]interface{}); ok {
				if address, _ := email["address"].(string); address != "" {
					contact.Emails = append(contact.Emails, address)
				}
			}
		}
	}
	return contact
}

// MainEmail returns the first email address, empty when none.
func (c Contact) MainEmail() string {
	if len(c.Emails) == 0 {
		return ""
	}
	return c.Emails[0]
}
