package mailer

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	texttemplate "text/template"

	"kol-campaign-api-server/internal/models"
)

// TemplateData is what the invitation and reminder templates can reference.
type TemplateData struct {
	HcpName        string
	CampaignName   string
	SurveyURL      string
	Honorarium     string
	Currency       string
	FromName       string
	SupportEmail   string
	ReminderNumber int
}

type template struct {
	subject *texttemplate.Template
	text    *texttemplate.Template
	html    *htmltemplate.Template
}

var templates = map[models.EmailKind]template{
	models.EmailInvitation: {
		subject: texttemplate.Must(texttemplate.New("subject").Parse(`Invitation: {{.CampaignName}}`)),
		text: texttemplate.Must(texttemplate.New("text").Parse(`Dear {{.HcpName}},

You are invited to take part in "{{.CampaignName}}".
{{if .Honorarium}}Participants who complete the survey receive an honorarium of {{.Honorarium}} {{.Currency}}.
{{end}}
Start the survey: {{.SurveyURL}}

{{.FromName}}{{if .SupportEmail}}
Questions? {{.SupportEmail}}{{end}}
`)),
		html: htmltemplate.Must(htmltemplate.New("html").Parse(`<p>Dear {{.HcpName}},</p>
<p>You are invited to take part in <strong>{{.CampaignName}}</strong>.</p>
{{if .Honorarium}}<p>Participants who complete the survey receive an honorarium of {{.Honorarium}} {{.Currency}}.</p>{{end}}
<p><a href="{{.SurveyURL}}">Start the survey</a></p>
<p>{{.FromName}}</p>
{{if .SupportEmail}}<p style="color:#666">Questions? <a href="mailto:{{.SupportEmail}}">{{.SupportEmail}}</a></p>{{end}}
`)),
	},
	models.EmailReminder: {
		subject: texttemplate.Must(texttemplate.New("subject").Parse(`Reminder: {{.CampaignName}}`)),
		text: texttemplate.Must(texttemplate.New("text").Parse(`Dear {{.HcpName}},

This is a friendly reminder that your survey for "{{.CampaignName}}" is still open.

Continue here: {{.SurveyURL}}

{{.FromName}}
`)),
		html: htmltemplate.Must(htmltemplate.New("html").Parse(`<p>Dear {{.HcpName}},</p>
<p>This is a friendly reminder that your survey for <strong>{{.CampaignName}}</strong> is still open.</p>
<p><a href="{{.SurveyURL}}">Continue the survey</a></p>
<p>{{.FromName}}</p>
`)),
	},
}

// Render returns subject, plain-text and HTML bodies for kind.
func Render(kind models.EmailKind, data TemplateData) (subject, text, html string, err error) {
	t, ok := templates[kind]
	if !ok {
		return "", "", "", fmt.Errorf("no template for email kind %q", kind)
	}
	var buf bytes.Buffer
	if err = t.subject.Execute(&buf, data); err != nil {
		return
	}
	subject = buf.String()

	buf.Reset()
	if err = t.text.Execute(&buf, data); err != nil {
		return
	}
	text = buf.String()

	buf.Reset()
	if err = t.html.Execute(&buf, data); err != nil {
		return
	}
	html = buf.String()
	return subject, text, html, nil
}
