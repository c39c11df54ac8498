package graph

// Account identifies a signed-in Microsoft account.
type Account struct {
	// Alias names a stored account (e.g. "work", "personal").
	Alias    string `json:"alias" description:"account name"`
	TenantID string `json:"-" internal:"true"`
}

// Well-known entity paths relative to /me, used to scope compiled queries.
const (
	EntityMessages       = "messages"
	EntityContacts       = "contacts"
	EntityEvents         = "events"
	EntityMailFolders    = "mailFolders"
	EntityContactFolders = "contactFolders"
)
