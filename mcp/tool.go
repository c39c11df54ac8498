package mcp

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/viant/jsonrpc"
	"github.com/viant/mcp-protocol/schema"
	protoserver "github.com/viant/mcp-protocol/server"

	"github.com/viant/office/calendar"
	"github.com/viant/office/graph"
	"github.com/viant/office/outlook"
	"github.com/viant/office/query"
)

//go:embed tools/officeQueryMessages.md
var officeQueryMessagesDesc string

//go:embed tools/officeQueryContacts.md
var officeQueryContactsDesc string

//go:embed tools/officeQueryEvents.md
var officeQueryEventsDesc string

//go:embed tools/officeSendMail.md
var officeSendMailDesc string

//go:embed tools/officeCreateEvent.md
var officeCreateEventDesc string

// CriterionInput is one declarative predicate of a tool query.
type CriterionInput struct {
	Field string      `json:"field" description:"entity field, e.g. subject or receivedDateTime"`
	Op    string      `json:"op" description:"eq, ne, lt, gt, contains or startswith"`
	Value interface{} `json:"value" description:"comparand; strings are quoted automatically"`
}

// OrderInput is one sort field; earlier entries take precedence.
type OrderInput struct {
	Field      string `json:"field"`
	Descending bool   `json:"descending,omitempty"`
}

// QueryInput is the shared shape of the query tools.
type QueryInput struct {
	Account  graph.Account    `json:"account"`
	Folder   string           `json:"folder,omitempty" description:"mail folder id or well-known name; messages only"`
	Criteria []CriterionInput `json:"criteria,omitempty"`
	OrderBy  []OrderInput     `json:"orderBy,omitempty"`
	Select   []string         `json:"select,omitempty"`
	Top      int              `json:"top,omitempty" description:"page size hint"`
	Count    bool             `json:"count,omitempty" description:"return the match count instead of records"`
}

// QueryOutput carries matched records, or just their count.
type QueryOutput struct {
	Records []query.Record `json:"records,omitempty"`
	Count   int            `json:"count"`
}

// SendMailInput describes an outgoing message.
type SendMailInput struct {
	Account     graph.Account `json:"account"`
	From        string        `json:"from,omitempty"`
	To          []string      `json:"to"`
	Cc          []string      `json:"cc,omitempty"`
	Bcc         []string      `json:"bcc,omitempty"`
	Subject     string        `json:"subject"`
	Body        string        `json:"body"`
	HTML        bool          `json:"html,omitempty"`
	Importance  string        `json:"importance,omitempty"`
	Attachments []string      `json:"attachments,omitempty" description:"AFS URLs or local paths"`
	Sign        bool          `json:"sign,omitempty" description:"append the stored signature"`
}

// CreateEventInput describes a new calendar event.
type CreateEventInput struct {
	Account   graph.Account `json:"account"`
	Subject   string        `json:"subject"`
	StartISO  string        `json:"start"`
	EndISO    string        `json:"end"`
	TimeZone  string        `json:"timeZone,omitempty"`
	Location  string        `json:"location,omitempty"`
	Attendees []string      `json:"attendees,omitempty"`
	BodyText  string        `json:"bodyText,omitempty"`
}

func registerTools(base *protoserver.DefaultHandler, h *Handler) error {
	svc := h.service
	ops := h.ops

	// Non-blocking OOB launch pointing at the server-side device login page.
	startOOB := func(ctx context.Context, alias, tenant string) {
		if ops == nil || !ops.Implements(schema.MethodElicitationCreate) {
			return
		}
		ns, _ := svc.Auth().Namespace(ctx)
		pending := &PendingAuth{UUID: newUUID(), Alias: alias, TenantID: tenant, Namespace: ns}
		svc.Pending().Put(pending)
		svc.Manager().StartDeviceLogin(context.Background(), alias, tenant, graph.DefaultScopes(), func() {
			svc.Pending().Complete(pending.UUID)
		})
		base := strings.TrimRight(svc.BaseURL(), "/")
		url := fmt.Sprintf("%s/office/auth/device/%s", base, pending.UUID)
		go func() {
			ctx2, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			_, _ = ops.Elicit(ctx2, &jsonrpc.TypedRequest[*schema.ElicitRequest]{Request: &schema.ElicitRequest{
				Params: schema.ElicitRequestParams{ElicitationId: newUUID(), Message: "Sign in to Microsoft 365", Mode: string(schema.ElicitRequestParamsModeUrl), Url: url},
			}})
		}()
	}

	ensureLogin := func(ctx context.Context, account *graph.Account) {
		if account.TenantID == "" {
			account.TenantID = svc.TenantID()
		}
		if svc.Manager().NeedsInteractive(ctx, account.Alias, account.TenantID, graph.DefaultScopes()) {
			startOOB(ctx, account.Alias, account.TenantID)
		}
	}

	registerQuery := func(name, description string, entity func(*QueryInput) string) error {
		return protoserver.RegisterTool[*QueryInput, *QueryOutput](base.Registry, name, description, func(ctx context.Context, in *QueryInput) (*schema.CallToolResult, *jsonrpc.Error) {
			if in.Account.Alias == "" {
				return buildErrorResult("account.alias is required")
			}
			ensureLogin(ctx, &in.Account)
			executor := svc.Executor(ctx, in.Account)
			q, err := buildQuery(executor, entity(in), in)
			if err != nil {
				return buildErrorResult(err.Error())
			}
			out, err := runQuery(ctx, q, in)
			if err != nil {
				return buildErrorResult(err.Error())
			}
			return buildSuccessResult(svc, out)
		})
	}

	if err := registerQuery("officeQueryMessages", officeQueryMessagesDesc, func(in *QueryInput) string {
		if in.Folder != "" {
			return graph.EntityMailFolders + "/" + in.Folder + "/" + graph.EntityMessages
		}
		return graph.EntityMessages
	}); err != nil {
		return err
	}
	if err := registerQuery("officeQueryContacts", officeQueryContactsDesc, func(*QueryInput) string {
		return graph.EntityContacts
	}); err != nil {
		return err
	}
	if err := registerQuery("officeQueryEvents", officeQueryEventsDesc, func(*QueryInput) string {
		return graph.EntityEvents
	}); err != nil {
		return err
	}

	if err := protoserver.RegisterTool[*SendMailInput, *struct{}](base.Registry, "officeSendMail", officeSendMailDesc, func(ctx context.Context, in *SendMailInput) (*schema.CallToolResult, *jsonrpc.Error) {
		if in.Account.Alias == "" {
			return buildErrorResult("account.alias is required")
		}
		ensureLogin(ctx, &in.Account)
		executor := svc.Executor(ctx, in.Account)
		mail := outlook.NewService(executor, svc.SecretsBase())
		message := mail.Message().
			To(in.To...).
			Cc(in.Cc...).
			Bcc(in.Bcc...).
			Subject(in.Subject).
			Attach(in.Attachments...).
			Sign(in.Sign)
		if in.From != "" {
			message.From(in.From)
		}
		if in.HTML {
			message.BodyHTML(in.Body)
		} else {
			message.Body(in.Body)
		}
		if in.Importance != "" {
			message.Importance(in.Importance)
		}
		if err := message.Send(ctx); err != nil {
			return buildErrorResult(err.Error())
		}
		return buildSuccessResult(svc, map[string]any{"status": "sent"})
	}); err != nil {
		return err
	}

	if err := protoserver.RegisterTool[*CreateEventInput, *calendar.Event](base.Registry, "officeCreateEvent", officeCreateEventDesc, func(ctx context.Context, in *CreateEventInput) (*schema.CallToolResult, *jsonrpc.Error) {
		if in.Account.Alias == "" {
			return buildErrorResult("account.alias is required")
		}
		ensureLogin(ctx, &in.Account)
		executor := svc.Executor(ctx, in.Account)
		created, err := calendar.NewService(executor).Create(ctx, &calendar.CreateEventInput{
			Subject:   in.Subject,
			StartISO:  in.StartISO,
			EndISO:    in.EndISO,
			TimeZone:  in.TimeZone,
			Location:  in.Location,
			Attendees: in.Attendees,
			BodyText:  in.BodyText,
		})
		if err != nil {
			return buildErrorResult(err.Error())
		}
		return buildSuccessResult(svc, created)
	}); err != nil {
		return err
	}

	return nil
}

// buildQuery compiles the declarative tool input into a query.
func buildQuery(executor *graph.Executor, entity string, in *QueryInput) (*query.Query, error) {
	q := query.New(executor, entity)
	for _, criterion := range in.Criteria {
		op, ok := query.ParseOperator(criterion.Op)
		if !ok {
			return nil, fmt.Errorf("unknown operator %q for field %q", criterion.Op, criterion.Field)
		}
		q = q.Filter(criterion.Field, op, normalizeValue(criterion.Value))
	}
	for _, order := range in.OrderBy {
		direction := query.Ascending
		if order.Descending {
			direction = query.Descending
		}
		q = q.OrderBy(order.Field, direction)
	}
	if len(in.Select) > 0 {
		q = q.Select(in.Select...)
	}
	if in.Top > 0 {
		q = q.Top(in.Top)
	}
	if err := q.Err(); err != nil {
		return nil, err
	}
	return q, nil
}

func runQuery(ctx context.Context, q *query.Query, in *QueryInput) (*QueryOutput, error) {
	if in.Count {
		count, err := q.Count(ctx)
		if err != nil {
			return nil, err
		}
		return &QueryOutput{Count: count}, nil
	}
	result, err := q.Execute(ctx)
	if err != nil {
		return nil, err
	}
	records, err := result.All()
	if err != nil {
		return nil, err
	}
	return &QueryOutput{Records: records, Count: len(records)}, nil
}

// normalizeValue maps JSON timestamps to time.Time so they render unquoted.
func normalizeValue(value interface{}) interface{} {
	if text, ok := value.(string); ok {
		if ts, err := time.Parse(time.RFC3339, text); err == nil {
			return ts
		}
	}
	return value
}

// Helpers
func buildErrorResult(message string) (*schema.CallToolResult, *jsonrpc.Error) {
	return nil, jsonrpc.NewError(jsonrpc.InvalidParams, message, nil)
}

func buildSuccessResult(service *Service, payload any) (*schema.CallToolResult, *jsonrpc.Error) {
	if service.UseTextField() {
		b, _ := json.Marshal(payload)
		return &schema.CallToolResult{Content: []schema.CallToolResultContentElem{{Type: "text", Text: string(b)}}}, nil
	}
	return &schema.CallToolResult{StructuredContent: map[string]any{"result": payload}}, nil
}

func newUUID() string { return uuid.New().String() }
