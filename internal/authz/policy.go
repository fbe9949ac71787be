// Package authz decides which principals may run administrative operations.
package authz

import "github.com/appdedupe/appdedupe/internal/models"

// Policy is the administrative authorization predicate.
type Policy interface {
	IsAdmin(email string) bool
}

// AllowList grants admin to a fixed set of email addresses, matched
// trimmed and case-insensitively.
type AllowList struct {
	emails map[string]struct{}
}

func NewAllowList(emails []string) *AllowList {
	set := make(map[string]struct{}, len(emails))
	for _, e := range emails {
		if n := models.NormalizeEmail(e); n != "" {
			set[n] = struct{}{}
		}
	}
	return &AllowList{emails: set}
}

func (a *AllowList) IsAdmin(email string) bool {
	if a == nil {
		return false
	}
	_, ok := a.emails[models.NormalizeEmail(email)]
	return ok
}
