package notify

import (
	"bytes"
	"fmt"
	"text/template"
)

type messageTemplate struct {
	subject *template.Template
	body    *template.Template
}

var templates = map[TemplateID]messageTemplate{
	TemplateRequestReceived: parse(TemplateRequestReceived,
		`New mentorship request from {{.apprentice_name}}`,
		`Hello {{.grandpa_name}},

{{.apprentice_name}} would like to learn {{.skill}}{{if .subject}} ({{.subject}}){{end}}.

"{{.message}}"

They are available:
{{.apprentice_availability}}

Accept or decline the request from your dashboard.`),

	TemplateRequestSubmitted: parse(TemplateRequestSubmitted,
		`Your request to {{.grandpa_name}} was sent`,
		`Hello {{.apprentice_name}},

Your request to learn {{.skill}} from {{.grandpa_name}} was sent. We will let you know when they respond.`),

	TemplateRequestAccepted: parse(TemplateRequestAccepted,
		`{{.grandpa_name}} accepted your request`,
		`Hello {{.apprentice_name}},

{{.grandpa_name}} accepted your request to learn {{.skill}}.

"{{.grandpa_response}}"
{{if .grandpa_availability}}
Available times:
{{.grandpa_availability}}
{{end}}{{if .proposed_time}}
Proposed time: {{.proposed_time}}
{{end}}
Confirm the session from your dashboard.`),

	TemplateRequestConfirmed: parse(TemplateRequestConfirmed,
		`{{.apprentice_name}} confirmed the session`,
		`Hello {{.grandpa_name}},

{{.apprentice_name}} confirmed your session for {{.skill}}.
{{if .confirmation_message}}
"{{.confirmation_message}}"
{{end}}
When: {{.session_time}}
Where: {{.address}}`),

	TemplateSessionScheduled: parse(TemplateSessionScheduled,
		`Your session with {{.grandpa_name}} is scheduled`,
		`Hello {{.apprentice_name}},

Your session with {{.grandpa_name}} for {{.skill}} is scheduled.

When: {{.session_time}}`),

	TemplateRequestDeclined: parse(TemplateRequestDeclined,
		`Mentorship request declined`,
		`Hello {{.recipient_name}},

{{.declined_by_name}} declined the request for {{.skill}}.{{if .reason}}

Reason: {{.reason}}{{end}}`),

	TemplateSessionCompleted: parse(TemplateSessionCompleted,
		`How was your session with {{.grandpa_name}}?`,
		`Hello {{.apprentice_name}},

Your session with {{.grandpa_name}} for {{.skill}} is marked as completed. Thank you for learning with us.`),

	TemplateSessionReminder: parse(TemplateSessionReminder,
		`Reminder: session tomorrow`,
		`Hello {{.recipient_name}},

This is a reminder of your {{.skill}} session with {{.counterpart_name}}.

When: {{.session_time}}{{if .address}}
Where: {{.address}}{{end}}`),
}

func parse(id TemplateID, subject, body string) messageTemplate {
	return messageTemplate{
		subject: template.Must(template.New(string(id) + "_subject").Option("missingkey=zero").Parse(subject)),
		body:    template.Must(template.New(string(id) + "_body").Option("missingkey=zero").Parse(body)),
	}
}

// Render строит тему и текст сообщения по шаблону
func Render(msg Message) (subject, body string, err error) {
	tmpl, ok := templates[msg.Template]
	if !ok {
		return "", "", fmt.Errorf("unknown template %q", msg.Template)
	}

	vars := msg.Vars
	if vars == nil {
		vars = map[string]string{}
	}

	var buf bytes.Buffer
	if err := tmpl.subject.Execute(&buf, vars); err != nil {
		return "", "", fmt.Errorf("render %s subject: %w", msg.Template, err)
	}
	subject = buf.String()

	buf.Reset()
	if err := tmpl.body.Execute(&buf, vars); err != nil {
		return "", "", fmt.Errorf("render %s body: %w", msg.Template, err)
	}

	return subject, buf.String(), nil
}
