package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	flags "github.com/jessevdk/go-flags"
	"github.com/viant/office"
	"github.com/viant/office/config"
	"github.com/viant/office/graph"
	"github.com/viant/office/query"
	"github.com/viant/scy"
	_ "github.com/viant/scy/kms/blowfish"
)

// GlobalOptions apply to every command.
type GlobalOptions struct {
	ConfigURL string `long:"config" description:"AFS URL of the configuration" default:"file://~/.office/config.json"`
}

var global GlobalOptions

// QueryOptions shape a declarative query from the command line.
type QueryOptions struct {
	Connection string   `short:"c" long:"connection" description:"connection name (default connection when empty)"`
	Where      []string `short:"w" long:"where" description:"criterion as field:op:value (repeatable)"`
	Order      []string `long:"order" description:"sort as field or field:desc (repeatable)"`
	Select     string   `long:"select" description:"comma separated projection fields"`
	Top        int      `long:"top" description:"page size hint"`
	Count      bool     `long:"count" description:"print the match count instead of records"`
}

type AddConnectionCmd struct {
	Name     string `short:"n" long:"name" required:"true" description:"connection name"`
	ClientID string `long:"client-id" description:"Azure AD application (client) ID"`
	TenantID string `long:"tenant-id" description:"Tenant ID or 'organizations'"`
	AzureRef string `long:"azure-ref" description:"scy EncodedResource holding the Azure credential"`
	Email    string `long:"email" description:"default mailbox address"`
	Default  bool   `long:"default" description:"make this the default connection"`
}

type LoginCmd struct {
	Connection string `short:"c" long:"connection" description:"connection name"`
}

type MessagesCmd struct {
	QueryOptions
	Folder string `long:"folder" description:"mail folder id or well-known name"`
}

type ContactsCmd struct {
	QueryOptions
}

type EventsCmd struct {
	QueryOptions
}

type SendCmd struct {
	Connection  string   `short:"c" long:"connection" description:"connection name"`
	To          []string `long:"to" required:"true" description:"recipient (repeatable)"`
	Cc          []string `long:"cc" description:"cc recipient (repeatable)"`
	Subject     string   `short:"s" long:"subject" description:"message subject"`
	Body        string   `short:"b" long:"body" description:"message body"`
	HTML        bool     `long:"html" description:"body is HTML"`
	Attachments []string `long:"attach" description:"attachment URL or path (repeatable)"`
	Sign        bool     `long:"sign" description:"append the stored signature"`
}

func main() {
	parser := flags.NewParser(&global, flags.Default)
	_, _ = parser.AddCommand("add-connection", "register a connection", "register an Azure AD application as a named connection", &AddConnectionCmd{})
	_, _ = parser.AddCommand("login", "sign in", "trigger the device-code login for a connection", &LoginCmd{})
	_, _ = parser.AddCommand("messages", "query mail", "query mail messages with declarative criteria", &MessagesCmd{})
	_, _ = parser.AddCommand("contacts", "query contacts", "query contacts with declarative criteria", &ContactsCmd{})
	_, _ = parser.AddCommand("events", "query events", "query calendar events with declarative criteria", &EventsCmd{})
	_, _ = parser.AddCommand("send", "send mail", "compose and send a mail message", &SendCmd{})
	if _, err := parser.Parse(); err != nil {
		os.Exit(2)
	}
}

func loadOffice(ctx context.Context) *office.Office {
	ret, err := office.Load(ctx, global.ConfigURL, office.WithPrompt(func(message string) {
		fmt.Fprintln(os.Stderr, message)
	}))
	if err != nil {
		log.Fatalf("load config %v: %v", global.ConfigURL, err)
	}
	return ret
}

func (c *AddConnectionCmd) Execute([]string) error {
	ctx := context.Background()
	cfg, err := config.Load(ctx, global.ConfigURL)
	if err != nil {
		cfg = config.New()
	}
	if cfg.SecretsBase == "" {
		cfg.SecretsBase = "file://~/.office"
	}
	cfg.AddConnection(c.Name, config.Connection{
		ClientID:     c.ClientID,
		TenantID:     c.TenantID,
		DefaultEmail: c.Email,
		AzureRef:     scy.EncodedResource(c.AzureRef),
	}, c.Default)
	if err := cfg.Save(ctx, global.ConfigURL); err != nil {
		return err
	}
	fmt.Printf("connection %q registered\n", c.Name)
	return nil
}

func (c *LoginCmd) Execute([]string) error {
	ctx := context.Background()
	if err := loadOffice(ctx).Login(ctx, c.Connection); err != nil {
		return err
	}
	fmt.Println("signed in")
	return nil
}

func (c *MessagesCmd) Execute([]string) error {
	entity := graph.EntityMessages
	if c.Folder != "" {
		entity = graph.EntityMailFolders + "/" + c.Folder + "/" + graph.EntityMessages
	}
	return runQuery(&c.QueryOptions, entity)
}

func (c *ContactsCmd) Execute([]string) error {
	return runQuery(&c.QueryOptions, graph.EntityContacts)
}

func (c *EventsCmd) Execute([]string) error {
	return runQuery(&c.QueryOptions, graph.EntityEvents)
}

func (c *SendCmd) Execute([]string) error {
	ctx := context.Background()
	svc := loadOffice(ctx)
	mail, err := svc.Outlook(ctx, c.Connection)
	if err != nil {
		return err
	}
	message := mail.Message().
		To(c.To...).
		Cc(c.Cc...).
		Subject(c.Subject).
		Attach(c.Attachments...).
		Sign(c.Sign)
	if c.HTML {
		message.BodyHTML(c.Body)
	} else {
		message.Body(c.Body)
	}
	if err := message.Send(ctx); err != nil {
		return err
	}
	fmt.Println("sent")
	return nil
}

func runQuery(options *QueryOptions, entity string) error {
	ctx := context.Background()
	svc := loadOffice(ctx)
	executor, err := svc.Executor(ctx, options.Connection)
	if err != nil {
		return err
	}
	q, err := buildQuery(executor, entity, options)
	if err != nil {
		return err
	}
	if options.Count {
		count, err := q.Count(ctx)
		if err != nil {
			return err
		}
		fmt.Println(count)
		return nil
	}
	encoder := json.NewEncoder(os.Stdout)
	for record, err := range q.Records(ctx) {
		if err != nil {
			return err
		}
		if err := encoder.Encode(record); err != nil {
			return err
		}
	}
	return nil
}

func buildQuery(executor *graph.Executor, entity string, options *QueryOptions) (*query.Query, error) {
	q := query.New(executor, entity)
	for _, where := range options.Where {
		field, op, value, err := parseWhere(where)
		if err != nil {
			return nil, err
		}
		q = q.Filter(field, op, value)
	}
	for _, order := range options.Order {
		field, direction := parseOrder(order)
		q = q.OrderBy(field, direction)
	}
	if options.Select != "" {
		q = q.Select(strings.Split(options.Select, ",")...)
	}
	if options.Top > 0 {
		q = q.Top(options.Top)
	}
	if err := q.Err(); err != nil {
		return nil, err
	}
	return q, nil
}

// parseWhere splits a field:op:value expression; the value keeps any further colons.
func parseWhere(expression string) (string, query.Operator, interface{}, error) {
	parts := strings.SplitN(expression, ":", 3)
	if len(parts) != 3 {
		return "", "", nil, fmt.Errorf("invalid criterion %q, expected field:op:value", expression)
	}
	op, ok := query.ParseOperator(parts[1])
	if !ok {
		return "", "", nil, fmt.Errorf("unknown operator %q in %q", parts[1], expression)
	}
	return parts[0], op, parseValue(parts[2]), nil
}

// parseValue types a textual comparand: bool, int, float, RFC3339 time, else string.
func parseValue(text string) interface{} {
	switch text {
	case "true":
		return true
	case "false":
		return false
	case "null":
		return nil
	}
	if v, err := strconv.Atoi(text); err == nil {
		return v
	}
	if v, err := strconv.ParseFloat(text, 64); err == nil {
		return v
	}
	if v, err := time.Parse(time.RFC3339, text); err == nil {
		return v
	}
	return text
}

func parseOrder(expression string) (string, query.Direction) {
	if field, found := strings.CutSuffix(expression, ":desc"); found {
		return field, query.Descending
	}
	return strings.TrimSuffix(expression, ":asc"), query.Ascending
}
