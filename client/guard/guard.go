// Package guard decides what a role-restricted page shows for a session.
package guard

import (
	"github.com/smartcampus/campus/client/session"
)

const (
	LoginPath = "/login"
	HomePath  = "/"
)

type Outcome int

const (
	// Placeholder while the session is loading. Never redirect then.
	Placeholder Outcome = iota
	RedirectLogin
	RedirectHome
	Render
)

func (o Outcome) String() string {
	switch o {
	case Placeholder:
		return "placeholder"
	case RedirectLogin:
		return "redirect:" + LoginPath
	case RedirectHome:
		return "redirect:" + HomePath
	case Render:
		return "render"
	}
	return "unknown"
}

// Location is where to redirect, empty when there is no redirect.
func (o Outcome) Location() string {
	switch o {
	case RedirectLogin:
		return LoginPath
	case RedirectHome:
		return HomePath
	}
	return ""
}

// Decide is pure: it only reads snap. An empty allowedRoles lets every authenticated user in.
func Decide(snap session.Snapshot, allowedRoles ...string) Outcome {
	switch snap.State {
	case session.Loading:
		return Placeholder
	case session.Authenticated:
		if len(allowedRoles) == 0 || snap.User.HasRole(allowedRoles...) {
			return Render
		}
		return RedirectHome
	default:
		return RedirectLogin
	}
}
