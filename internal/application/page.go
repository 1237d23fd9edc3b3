package application

import (
	"regexp"

	"consent-console/internal/domain"
	"consent-console/internal/ports"
)

// Page is the render-ready form of a ViewState.
type Page struct {
	Title        string        `json:"title"`
	Description  string        `json:"description"`
	Loading      bool          `json:"loading"`
	Error        *LoadError    `json:"error,omitempty"`
	Generation   uint64        `json:"generation"`
	Rows         []Row         `json:"rows"`
	Confirmation *Confirmation `json:"confirmation,omitempty"`
}

type LoadError struct {
	Message    string `json:"message"`
	RetryLabel string `json:"retry_label"`
}

type Row struct {
	ClientID     string   `json:"client_id"`
	Label        string   `json:"label"`
	LaunchURL    string   `json:"launch_url,omitempty"`
	Expanded     bool     `json:"expanded"`
	DetailsLabel string   `json:"details_label"`
	Details      *Details `json:"details,omitempty"`
}

type Details struct {
	ClientLabel      string          `json:"client_label"`
	ClientID         string          `json:"client_id"`
	DescriptionLabel string          `json:"description_label,omitempty"`
	Description      string          `json:"description,omitempty"`
	URLLabel         string          `json:"url_label,omitempty"`
	URL              string          `json:"url,omitempty"`
	Consent          *ConsentDetails `json:"consent,omitempty"`
	Removal          *RemovalControl `json:"removal,omitempty"`
}

type ConsentDetails struct {
	ScopesLabel         string         `json:"scopes_label"`
	Scopes              []GrantedScope `json:"scopes"`
	TermsOfServiceLabel string         `json:"terms_of_service_label,omitempty"`
	TermsOfService      string         `json:"terms_of_service,omitempty"`
	PrivacyPolicyLabel  string         `json:"privacy_policy_label,omitempty"`
	PrivacyPolicy       string         `json:"privacy_policy,omitempty"`
	LogoLabel           string         `json:"logo_label,omitempty"`
	LogoURI             string         `json:"logo_uri,omitempty"`
	GrantedOnLabel      string         `json:"granted_on_label,omitempty"`
	GrantedOn           string         `json:"granted_on,omitempty"`
}

type GrantedScope struct {
	ID      string `json:"id"`
	Label   string `json:"label"`
	Granted bool   `json:"granted"`
}

type RemovalControl struct {
	ButtonLabel string `json:"button_label"`
	Info        string `json:"info"`
}

type Confirmation struct {
	ClientID      string `json:"client_id"`
	Title         string `json:"title"`
	Message       string `json:"message"`
	ContinueLabel string `json:"continue_label"`
	CancelLabel   string `json:"cancel_label"`
}

var bundleKey = regexp.MustCompile(`^\$\{(.+)\}$`)

// Label resolves text of the form ${key} through the translator and returns
// any other text unchanged.
func Label(t ports.Translator, text string) string {
	if m := bundleKey.FindStringSubmatch(text); m != nil {
		return t.T(m[1], nil)
	}
	return text
}

func scopeLabel(t ports.Translator, s domain.Scope) string {
	if bundleKey.MatchString(s.Name) {
		return Label(t, s.Name)
	}
	return t.T(s.Name, nil)
}

func Render(s ViewState, l ports.Localizer) Page {
	p := Page{
		Title:       l.T("application", nil),
		Description: l.T("applicationsIntroMessage", nil),
		Loading:     !s.Loaded,
		Generation:  s.Generation,
		Rows:        []Row{},
	}
	if s.LoadErr != nil {
		p.Error = &LoadError{
			Message:    l.T("loadApplicationsError", map[string]string{"error": errorMessage(s.LoadErr)}),
			RetryLabel: l.T("retry", nil),
		}
	}
	for _, app := range s.Applications {
		p.Rows = append(p.Rows, renderRow(app, l))
	}
	if s.PendingRemoval != "" {
		p.Confirmation = &Confirmation{
			ClientID:      s.PendingRemoval,
			Title:         l.T("removeAccess", nil),
			Message:       l.T("removeModalMessage", map[string]string{"name": s.PendingRemoval}),
			ContinueLabel: l.T("confirm", nil),
			CancelLabel:   l.T("cancel", nil),
		}
	}
	return p
}

func renderRow(app domain.Application, l ports.Localizer) Row {
	row := Row{
		ClientID:     app.ClientID,
		Label:        Label(l, app.DisplayName()),
		LaunchURL:    app.EffectiveURL,
		Expanded:     app.Open,
		DetailsLabel: l.T("applicationDetails", map[string]string{"clientId": app.ClientID}),
	}
	if !app.Open {
		return row
	}

	d := &Details{ClientLabel: l.T("client", nil), ClientID: app.ClientID}
	if app.Description != "" {
		d.DescriptionLabel = l.T("description", nil)
		d.Description = app.Description
	}
	if app.EffectiveURL != "" {
		d.URLLabel = "URL"
		d.URL = app.EffectiveURL
	}
	if c := app.Consent; c != nil {
		cd := &ConsentDetails{
			ScopesLabel: l.T("hasAccessTo", nil),
			Scopes:      make([]GrantedScope, 0, len(c.GrantedScopes)),
		}
		if !c.CreatedDate.IsZero() {
			cd.GrantedOnLabel = l.T("accessGrantedOn", nil)
			cd.GrantedOn = l.FormatDate(c.CreatedDate.Time)
		}
		for _, s := range c.GrantedScopes {
			cd.Scopes = append(cd.Scopes, GrantedScope{ID: s.ID, Label: scopeLabel(l, s), Granted: true})
		}
		if app.TosURI != "" {
			cd.TermsOfServiceLabel = l.T("termsOfService", nil)
			cd.TermsOfService = app.TosURI
		}
		if app.PolicyURI != "" {
			cd.PrivacyPolicyLabel = l.T("privacyPolicy", nil)
			cd.PrivacyPolicy = app.PolicyURI
		}
		if app.LogoURI != "" {
			cd.LogoLabel = l.T("logo", nil)
			cd.LogoURI = app.LogoURI
		}
		d.Consent = cd
	}
	if app.Revocable() {
		d.Removal = &RemovalControl{
			ButtonLabel: l.T("removeAccess", nil),
			Info:        l.T("infoMessage", nil),
		}
	}
	row.Details = d
	return row
}
