// Package domain holds oauth connect and token DTOs
package domain

import "time"

// ConnectInput starts the authorization code flow for a tenant
type ConnectInput struct {
	Tenant string `json:"tenant" validate:"omitempty,tenant" example:"acme"`
}

// ConnectResult carries the CRM consent URL the user must visit
type ConnectResult struct {
	AuthorizationURL string `json:"authorizationUrl"`
}

// CallbackResult reports the credential stored by the callback
type CallbackResult struct {
	Tenant      string `json:"tenant"`
	InstanceURL string `json:"instanceUrl"`
}

// TokenInput stores a credential directly, bypassing the consent flow
type TokenInput struct {
	Tenant       string `json:"tenant" validate:"required,tenant" example:"acme"`
	AccessToken  string `json:"accessToken" validate:"required"`
	RefreshToken string `json:"refreshToken,omitempty"`
	InstanceURL  string `json:"instanceUrl" validate:"required,url" example:"https://acme.my.salesforce.com"`
}

// TokenView is a stored credential with secrets masked
type TokenView struct {
	Tenant       string     `json:"tenant"`
	AccessToken  string     `json:"accessToken"`
	RefreshToken string     `json:"refreshToken,omitempty"`
	InstanceURL  string     `json:"instanceUrl"`
	ExpiresAt    *time.Time `json:"expiresAt,omitempty"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}
