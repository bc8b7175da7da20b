package models

import (
	"strings"

	"github.com/Joshlanuevo/ferry-api/pkg/money"
)

// User types with special wallet or policy handling
const (
	UserTypeAdmin      = "ADMIN"
	UserTypeSuperAdmin = "SUPERADMIN"
	UserTypeSubAgent   = "SUBAGENT"
)

// User is a platform account as stored in the users collection
type User struct {
	ID          string `json:"id"`
	UserID      string `json:"userId"` // parent account of a sub-agent
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Email       string `json:"email,omitempty"`
	Type        string `json:"type"`
	AgencyID    string `json:"agency_id,omitempty"`
	AccessLevel string `json:"access_level,omitempty"`
	Currency    string `json:"currency,omitempty"`
	Status      string `json:"status,omitempty"`
}

// FullName returns "first last"
func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// WalletCurrency returns the user's currency or the platform default
func (u *User) WalletCurrency() string {
	return money.CurrencyOrDefault(u.Currency)
}

// Agency is a reseller company; its master agent owns a shared wallet
type Agency struct {
	ID            string `json:"id"`
	CompanyName   string `json:"companyName,omitempty"`
	MasterAgentID string `json:"masteragentId"`
	Currency      string `json:"currency,omitempty"`
}

// AccessLevel is a named permission policy
type AccessLevel struct {
	ID             string `json:"id"`
	Name           string `json:"name,omitempty"`
	IsSharedWallet bool   `json:"isSharedWallet"`
}

// Principal is the authenticated caller of a request
type Principal struct {
	UserID      string
	Type        string
	AgencyID    string
	AccessLevel string
	Currency    string
	Name        string
	SessionID   string
}

// SessionKey identifies the session-scoped cache of the principal
func (p Principal) SessionKey() string {
	if p.SessionID != "" {
		return p.SessionID
	}
	return p.UserID
}

// AsUser builds a user record from token claims
func (p Principal) AsUser() *User {
	first, last := p.Name, ""
	if i := strings.LastIndex(p.Name, " "); i > 0 {
		first, last = p.Name[:i], p.Name[i+1:]
	}
	return &User{
		ID:          p.UserID,
		FirstName:   first,
		LastName:    last,
		Type:        p.Type,
		AgencyID:    p.AgencyID,
		AccessLevel: p.AccessLevel,
		Currency:    p.Currency,
	}
}
