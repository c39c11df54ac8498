package calendar

import (
	"github.com/viant/office/query"
)

// Event is a typed view over an event record.
type Event struct {
	ID        string
	Subject   string
	StartISO  string
	EndISO    string
	Location  string
	Organizer string
}

// EventFrom builds the typed view from a raw record.
func EventFrom(record query.Record) Event {
	event := Event{
		ID:      record.String("id"),
		Subject: record.String("subject"),
	}
	event.StartISO = nestedString(record, "start", "dateTime")
	event.EndISO = nestedString(record, "end", "dateTime")
	event.Location = nestedString(record, "location", "displayName")
	if organizer, ok := record["organizer"].(map[string]interface{}); ok {
		if email, ok := organizer["emailAddress"].(map[string]interface{}); ok {
			event.Organizer, _ = email["address"].(string)
		}
	}
	return event
}

func nestedString(record query.Record, key, sub string) string {
	if nested, ok := record[key].(map[string]interface{}); ok {
		value, _ := nested[sub].(string)
		return value
	}
	return ""
}
