package poller

import (
	"bytes"
	"context"
	"fmt"
	"text/template"

	"medreminder/dbtypes"
	"medreminder/schedule"

	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// Reminder is one due dose to tell a user about.
type Reminder struct {
	DoseID       string
	MedicineName string
	Dosage       string

	// DoseTime is the 24-hour clock time; each recipient sees it in their own
	// language.
	DoseTime string

	Status schedule.DoseStatus
}

// SelectReminders picks the doses worth a reminder: those due now or
// overdue.  Order follows SortDoses.
func SelectReminders(doses []schedule.ExpandedDose) []Reminder {
	var out []Reminder
	for _, d := range schedule.SortDoses(doses) {
		if d.DoseStatus != schedule.StatusPending && d.DoseStatus != schedule.StatusOverdue {
			continue
		}
		out = append(out, Reminder{
			DoseID:       d.DoseID,
			MedicineName: d.Medicine.Name,
			Dosage:       d.Medicine.Dosage,
			DoseTime:     d.DoseTime,
			Status:       d.DoseStatus,
		})
	}
	return out
}

type emailLine struct {
	Name   string
	Dosage string
	Time   string
	Status string
}

type emailParams struct {
	Greeting  string
	Intro     string
	Lines     []emailLine
	ManageURL string
}

const emailPlain = `{{.Greeting}}

{{.Intro}}
{{range .Lines -}}
* {{.Time}} {{.Name}}{{if .Dosage}} ({{.Dosage}}){{end}}: {{.Status}}
{{end}}
{{.ManageURL}}
`

var emailPlainTemplate = template.Must(template.New("email").Parse(emailPlain))

type emailText struct {
	subject        string
	selfIntro      string
	guardianIntro  string
	greetingFormat string
}

var emailTexts = map[schedule.Language]emailText{
	schedule.LanguageKorean: {
		subject:        "복약 알림",
		selfIntro:      "지금 복용할 약이 있습니다:",
		guardianIntro:  "%s 님이 아직 복용하지 않은 약이 있습니다:",
		greetingFormat: "%s 님, 안녕하세요.",
	},
	schedule.LanguageEnglish: {
		subject:        "Medication reminder",
		selfIntro:      "The following doses are due:",
		guardianIntro:  "%s has not yet taken the following doses:",
		greetingFormat: "Hello %s,",
	},
}

func displayName(u *dbtypes.User) string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.Email
}

// renderEmail builds the subject and plain-text body of a reminder to
// recipient about patient's doses.
func (p *Poller) renderEmail(recipient, patient *dbtypes.User, reminders []Reminder) (string, string, error) {
	lang := schedule.ParseLanguage(recipient.Language)
	texts := emailTexts[lang]

	params := &emailParams{
		Greeting:  fmt.Sprintf(texts.greetingFormat, displayName(recipient)),
		Intro:     texts.selfIntro,
		ManageURL: p.baseURL + "/",
	}
	if recipient.ID != patient.ID {
		params.Intro = fmt.Sprintf(texts.guardianIntro, displayName(patient))
		params.ManageURL = p.baseURL + "/?user=" + patient.ID
	}
	for _, r := range reminders {
		params.Lines = append(params.Lines, emailLine{
			Name:   r.MedicineName,
			Dosage: r.Dosage,
			Time:   schedule.FormatTimeTo12Hour(r.DoseTime, lang),
			Status: schedule.StatusLabel(r.Status, lang),
		})
	}

	body := &bytes.Buffer{}
	if err := emailPlainTemplate.Execute(body, params); err != nil {
		return "", "", fmt.Errorf("while templating plain-text email content: %w", err)
	}
	return texts.subject, body.String(), nil
}

func (p *Poller) sendEmail(ctx context.Context, recipient, patient *dbtypes.User, reminders []Reminder) error {
	subject, body, err := p.renderEmail(recipient, patient, reminders)
	if err != nil {
		return err
	}

	message := mail.NewV3Mail()
	message.From = mail.NewEmail("MedReminder Bot", "bot@medreminder.dev")
	message.Subject = subject

	personalization := mail.NewPersonalization()
	personalization.To = append(personalization.To, mail.NewEmail(displayName(recipient), recipient.Email))
	message.Personalizations = append(message.Personalizations, personalization)

	message.Content = append(message.Content, mail.NewContent("text/plain", body))

	resp, err := p.sg.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("while sending mail through SendGrid: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("non-2XX response while sending mail through Sendgrid: %d %s", resp.StatusCode, resp.Body)
	}

	return nil
}
