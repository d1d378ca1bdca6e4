package uitemplates

import (
	"bytes"
	"fmt"
	"html/template"
)

// NavParams holds the navigation links of a page about one care recipient.
type NavParams struct {
	// Email is the logged-in user's email.
	Email string

	TodayLink     string
	WeekLink      string
	MedicinesLink string
}

func newPage(text string) *template.Template {
	return template.Must(template.Must(template.Must(template.New("base").Parse(baseText)).Parse(navText)).Parse(text))
}

func newPublicPage(text string) *template.Template {
	return template.Must(template.Must(template.New("base").Parse(baseText)).Parse(text))
}

func execute(t *template.Template, params interface{}) ([]byte, error) {
	b := bytes.Buffer{}
	if err := t.Execute(&b, params); err != nil {
		return nil, fmt.Errorf("while executing template: %w", err)
	}
	return b.Bytes(), nil
}
