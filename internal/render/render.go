// Package render produces acknowledgement subjects and HTML bodies from a
// template and an explicit set of bound fields.
package render

import (
	"bytes"
	_ "embed"
	"html/template"
	"os"
	"strings"
	texttemplate "text/template"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"

	"github.com/ginjaninja78/donation-ledger/internal/model"
)

//go:embed templates/acknowledgement.html
var defaultBody string

// DefaultSubject is used when no subject template is configured.
const DefaultSubject = "Thank you for your gift to {{.OrgName}}"

// AckData is every value a template may reference.
type AckData struct {
	DonationDate  string
	LastName      string
	FirstName     string
	Salutation    string
	PaymentType   string
	PaymentSource string
	Amount        string
	EmailAddress  string
	StreetAddress string
	City          string
	State         string
	ZipCode       string
	TaxYear       int
	OrgName       string

	// AnnualSummary is set for P4 records, whose amount is a year's total.
	AnnualSummary bool
}

// FormatAmount renders d as US dollars with thousands grouping, e.g. "$1,250.00".
func FormatAmount(d decimal.Decimal) string {
	s := d.StringFixed(2)
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	whole, frac, _ := strings.Cut(s, ".")

	var b strings.Builder
	for i, c := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	return sign + "$" + b.String() + "." + frac
}

// NewAckData binds a record. Amount is the acknowledgement amount for the
// record's payment type.
func NewAckData(r model.Record, orgName string) AckData {
	return AckData{
		DonationDate:  r.DonationDate.Format("January 2, 2006"),
		LastName:      r.LastName,
		FirstName:     r.FirstName,
		Salutation:    r.Salutation,
		PaymentType:   r.PaymentType.Description(),
		PaymentSource: string(r.PaymentSource),
		Amount:        FormatAmount(r.AcknowledgementAmount()),
		EmailAddress:  r.EmailAddress,
		StreetAddress: r.StreetAddress,
		City:          r.City,
		State:         r.State,
		ZipCode:       r.ZipCode,
		TaxYear:       r.DonationDate.Year(),
		OrgName:       orgName,
		AnnualSummary: r.PaymentType == model.PaymentAnnualRollup,
	}
}

// Renderer holds parsed subject and body templates. It is safe for concurrent use.
type Renderer struct {
	subject *texttemplate.Template
	body    *template.Template
}

// New parses the body template at templatePath, or the built-in one when the
// path is empty, and the subject template text.
func New(templatePath, subject string) (*Renderer, error) {
	bodyText := defaultBody
	if templatePath != "" {
		data, err := os.ReadFile(templatePath)
		if err != nil {
			return nil, eris.Wrapf(err, "render: read template %s", templatePath)
		}
		bodyText = string(data)
	}
	return Parse(bodyText, subject)
}

// Parse builds a renderer from template text.
func Parse(bodyText, subject string) (*Renderer, error) {
	if strings.TrimSpace(subject) == "" {
		subject = DefaultSubject
	}

	body, err := template.New("body").Option("missingkey=error").Parse(bodyText)
	if err != nil {
		return nil, eris.Wrap(err, "render: parse body template")
	}
	subj, err := texttemplate.New("subject").Option("missingkey=error").Parse(subject)
	if err != nil {
		return nil, eris.Wrap(err, "render: parse subject template")
	}
	return &Renderer{subject: subj, body: body}, nil
}

// Subject renders the email subject line.
func (r *Renderer) Subject(data AckData) (string, error) {
	var buf bytes.Buffer
	if err := r.subject.Execute(&buf, data); err != nil {
		return "", eris.Wrap(err, "render: subject")
	}
	return strings.TrimSpace(buf.String()), nil
}

// Body renders the HTML fragment used as an email body.
func (r *Renderer) Body(data AckData) (string, error) {
	var buf bytes.Buffer
	if err := r.body.Execute(&buf, data); err != nil {
		return "", eris.Wrap(err, "render: body")
	}
	return buf.String(), nil
}

var documentTemplate = template.Must(template.New("document").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>body { font-family: Georgia, serif; max-width: 40em; margin: 3em auto; } .address { margin-bottom: 3em; }</style>
</head>
<body>
{{.Body}}
</body>
</html>
`))

// Document renders the body wrapped in a standalone HTML document, for
// acknowledgements that are printed and mailed.
func (r *Renderer) Document(data AckData) ([]byte, error) {
	body, err := r.Body(data)
	if err != nil {
		return nil, err
	}
	title, err := r.Subject(data)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	err = documentTemplate.Execute(&buf, struct {
		Title string
		Body  template.HTML
	}{Title: title, Body: template.HTML(body)}) //nolint:gosec
	if err != nil {
		return nil, eris.Wrap(err, "render: document")
	}
	return buf.Bytes(), nil
}
