package domain

import (
	"time"

	"golang.org/x/oauth2"
)

// Client is an application as reported by the account API. It is never
// mutated by the console once received.
type Client struct {
	ClientID            string   `json:"clientId"`
	ClientName          string   `json:"clientName,omitempty"`
	Description         string   `json:"description,omitempty"`
	RootURL             string   `json:"rootUrl,omitempty"`
	BaseURL             string   `json:"baseUrl,omitempty"`
	EffectiveURL        string   `json:"effectiveUrl,omitempty"`
	TosURI              string   `json:"tosUri,omitempty"`
	PolicyURI           string   `json:"policyUri,omitempty"`
	LogoURI             string   `json:"logoUri,omitempty"`
	UserConsentRequired bool     `json:"userConsentRequired,omitempty"`
	InUse               bool     `json:"inUse,omitempty"`
	OfflineAccess       bool     `json:"offlineAccess,omitempty"`
	Consent             *Consent `json:"consent,omitempty"`
}

// DisplayName is the client name, or the client id when no name is set.
func (c Client) DisplayName() string {
	if c.ClientName != "" {
		return c.ClientName
	}
	return c.ClientID
}

// Revocable reports whether the user holds anything that removing access
// would revoke.
func (c Client) Revocable() bool {
	return c.Consent != nil || c.OfflineAccess
}

type Consent struct {
	CreatedDate     Timestamp `json:"createdDate"`
	LastUpdatedDate Timestamp `json:"lastUpdatedDate,omitempty"`
	GrantedScopes   []Scope   `json:"grantedScopes"`
}

type Scope struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	DisplayText string `json:"displayText,omitempty"`
}

// Application is a client together with its view-local expansion flag.
type Application struct {
	Client
	Open bool `json:"open"`
}

// Environment carries everything an account API call needs to act on behalf
// of the signed-in user.
type Environment struct {
	ServerBaseURL string
	Realm         string
	Locale        string
	Token         oauth2.TokenSource
}

type AlertVariant string

const (
	AlertSuccess AlertVariant = "success"
	AlertDanger  AlertVariant = "danger"
)

type Alert struct {
	ID        string       `json:"id"`
	UserID    string       `json:"user_id,omitempty"`
	Variant   AlertVariant `json:"variant"`
	Key       string       `json:"key,omitempty"`
	Message   string       `json:"message"`
	Detail    string       `json:"detail,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
}
