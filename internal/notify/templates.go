package notify

import (
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"
)

// Template names understood by the dispatcher.
const (
	TemplateAssessorAssigned    = "assessor_assigned"
	TemplateAssessmentSubmitted = "assessment_submitted"
	TemplateAssessmentApproved  = "assessment_approved"
	TemplateAssessmentRejected  = "assessment_rejected"
	TemplatePortalAccess        = "portal_access"
)

type messageTemplate struct {
	subject *texttemplate.Template
	text    *texttemplate.Template
	html    *htmltemplate.Template
	// sms is set for templates that also go out by SMS when a phone is known.
	sms *texttemplate.Template
}

type templateSource struct {
	subject string
	text    string
	sms     string
}

var sources = map[string]templateSource{
	TemplateAssessorAssigned: {
		subject: "New IPO readiness assessment: {{.companyName}}",
		text: "Hello {{.name}},\n\nYou have been assigned lead {{.leadId}} ({{.companyName}}). " +
			"Open the assessment to start eligibility screening.",
	},
	TemplateAssessmentSubmitted: {
		subject: "Assessment submitted for {{.companyName}}",
		text: "Hello {{.name}},\n\nThe assessment for lead {{.leadId}} ({{.companyName}}) was submitted " +
			"with a score of {{.percentage}}% ({{.rating}}). It is waiting for review.",
	},
	TemplateAssessmentApproved: {
		subject: "Assessment approved for {{.companyName}}",
		text: "Hello {{.name}},\n\nThe assessment for lead {{.leadId}} ({{.companyName}}) was approved." +
			"{{if .remark}}\n\nReviewer remark: {{.remark}}{{end}}",
		sms: "IPO readiness assessment for {{.companyName}} approved.",
	},
	TemplateAssessmentRejected: {
		subject: "Assessment returned for {{.companyName}}",
		text: "Hello {{.name}},\n\nThe assessment for lead {{.leadId}} ({{.companyName}}) was rejected.\n\n" +
			"Reviewer remark: {{.remark}}",
		sms: "IPO readiness assessment for {{.companyName}} rejected: {{.remark}}",
	},
	TemplatePortalAccess: {
		subject: "Your access code",
		text: "Your one-time access code is {{.code}}. It expires in {{.expiresInMinutes}} minutes.\n\n" +
			"{{if .portalUrl}}Sign in at {{.portalUrl}}{{end}}",
		sms: "Your IPO readiness portal code is {{.code}}",
	},
}

const htmlLayout = `<!DOCTYPE html><html><body style="font-family:sans-serif">{{range .}}<p>{{.}}</p>{{end}}</body></html>`

func compileTemplates() (map[string]*messageTemplate, error) {
	out := make(map[string]*messageTemplate, len(sources))
	for name, src := range sources {
		mt := &messageTemplate{}
		var err error
		if mt.subject, err = texttemplate.New(name + ".subject").Option("missingkey=zero").Parse(src.subject); err != nil {
			return nil, err
		}
		if mt.text, err = texttemplate.New(name + ".text").Option("missingkey=zero").Parse(src.text); err != nil {
			return nil, err
		}
		if mt.html, err = htmltemplate.New(name + ".html").Parse(htmlLayout); err != nil {
			return nil, err
		}
		if src.sms != "" {
			if mt.sms, err = texttemplate.New(name + ".sms").Option("missingkey=zero").Parse(src.sms); err != nil {
				return nil, err
			}
		}
		out[name] = mt
	}
	return out, nil
}

type rendered struct {
	subject string
	text    string
	html    string
	sms     string
}

func (mt *messageTemplate) render(data map[string]interface{}) (*rendered, error) {
	var r rendered
	var b strings.Builder

	if err := mt.subject.Execute(&b, data); err != nil {
		return nil, err
	}
	r.subject = b.String()

	b.Reset()
	if err := mt.text.Execute(&b, data); err != nil {
		return nil, err
	}
	r.text = b.String()

	// The HTML body is the text body split into paragraphs; html/template
	// escapes each one.
	b.Reset()
	if err := mt.html.Execute(&b, strings.Split(r.text, "\n\n")); err != nil {
		return nil, err
	}
	r.html = b.String()

	if mt.sms != nil {
		b.Reset()
		if err := mt.sms.Execute(&b, data); err != nil {
			return nil, err
		}
		r.sms = b.String()
	}
	return &r, nil
}
