package outlook

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
)

// FluentMessage is a single-shot send builder. Unlike the query builder it
// mutates in place and returns itself: a draft is never shared between
// chains, so aliasing is not a concern here.
type FluentMessage struct {
	service     *Service
	from        string
	to          []string
	cc          []string
	bcc         []string
	subject     string
	body        string
	html        bool
	importance  string
	sign        bool
	attachments []string
	err         error
}

// Message starts an empty fluent message.
func (s *Service) Message() *FluentMessage { return &FluentMessage{service: s} }

// From overrides the sender address (shared-mailbox scenarios).
func (m *FluentMessage) From(address string) *FluentMessage {
	m.from = address
	return m
}

func (m *FluentMessage) To(addresses ...string) *FluentMessage {
	m.to = append(m.to, addresses...)
	return m
}

func (m *FluentMessage) Cc(addresses ...string) *FluentMessage {
	m.cc = append(m.cc, addresses...)
	return m
}

func (m *FluentMessage) Bcc(addresses ...string) *FluentMessage {
	m.bcc = append(m.bcc, addresses...)
	return m
}

func (m *FluentMessage) Subject(subject string) *FluentMessage {
	m.subject = subject
	return m
}

// Body sets a plain-text body; newlines and tabs are converted when the
// message is later upgraded to HTML by Sign or BodyHTML.
func (m *FluentMessage) Body(body string) *FluentMessage {
	m.body, m.html = body, false
	return m
}

// BodyHTML sets an HTML body.
func (m *FluentMessage) BodyHTML(body string) *FluentMessage {
	m.body, m.html = body, true
	return m
}

// Importance is one of Low, Normal, High.
func (m *FluentMessage) Importance(importance string) *FluentMessage {
	m.importance = importance
	return m
}

// Attach adds file attachments by AFS URL or local path.
func (m *FluentMessage) Attach(locations ...string) *FluentMessage {
	m.attachments = append(m.attachments, locations...)
	return m
}

// Sign appends the persisted signature to the body on send.
func (m *FluentMessage) Sign(sign bool) *FluentMessage {
	m.sign = sign
	return m
}

func textToHTML(text string) string {
	return strings.ReplaceAll(strings.ReplaceAll(text, "\n", "<br>"), "\t", strings.Repeat("&nbsp;", 4))
}

// Send dispatches the message through Graph sendMail, saving to sent items.
func (m *FluentMessage) Send(ctx context.Context) error {
	if m.err != nil {
		return m.err
	}
	if len(m.to)+len(m.cc)+len(m.bcc) == 0 {
		return fmt.Errorf("message has no recipients")
	}
	payload, err := m.payload(ctx)
	if err != nil {
		return err
	}
	return m.service.executor.Call(ctx, http.MethodPost, "sendMail", payload, nil)
}

func (m *FluentMessage) payload(ctx context.Context) (map[string]interface{}, error) {
	contentType, content := "Text", m.body
	if m.html {
		contentType = "HTML"
	}
	if m.sign {
		signature, err := m.service.Signature(ctx)
		if err != nil {
			return nil, err
		}
		if signature != "" {
			if !m.html {
				contentType, content = "HTML", textToHTML(content)
			}
			content += "<br><br>" + signature
		}
	}
	message := map[string]interface{}{
		"subject": m.subject,
		"body":    map[string]string{"contentType": contentType, "content": content},
	}
	if len(m.to) > 0 {
		message["toRecipients"] = recipients(m.to)
	}
	if len(m.cc) > 0 {
		message["ccRecipients"] = recipients(m.cc)
	}
	if len(m.bcc) > 0 {
		message["bccRecipients"] = recipients(m.bcc)
	}
	if m.from != "" {
		message["from"] = recipient(m.from)
	}
	if m.importance != "" {
		message["importance"] = m.importance
	}
	if len(m.attachments) > 0 {
		attachments, err := m.loadAttachments(ctx)
		if err != nil {
			return nil, err
		}
		message["attachments"] = attachments
	}
	return map[string]interface{}{"message": message, "saveToSentItems": true}, nil
}

func (m *FluentMessage) loadAttachments(ctx context.Context) ([]map[string]interface{}, error) {
	var attachments []map[string]interface{}
	for _, location := range m.attachments {
		reader, err := m.service.fs.OpenURL(ctx, location)
		if err != nil {
			return nil, fmt.Errorf("open attachment %v: %w", location, err)
		}
		data, err := io.ReadAll(reader)
		_ = reader.Close()
		if err != nil {
			return nil, fmt.Errorf("read attachment %v: %w", location, err)
		}
		attachments = append(attachments, map[string]interface{}{
			"@odata.type":  "#microsoft.graph.fileAttachment",
			"name":         path.Base(location),
			"contentBytes": base64.StdEncoding.EncodeToString(data),
		})
	}
	return attachments, nil
}

func recipient(address string) map[string]interface{} {
	return map[string]interface{}{"emailAddress": map[string]string{"address": address}}
}

func recipients(addresses []string) []map[string]interface{} {
	var ret []map[string]interface{}
	for _, address := range addresses {
		if address == "" {
			continue
		}
		ret = append(ret, recipient(address))
	}
	return ret
}
