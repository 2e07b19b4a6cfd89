// Package gate decides what a protected view shows for a given session state.
package gate

import (
	"hostpanel/internal/models"
	"hostpanel/internal/session"
)

type Outcome int

const (
	Loading Outcome = iota
	Redirect
	Render
)

func (o Outcome) String() string {
	switch o {
	case Loading:
		return "loading"
	case Redirect:
		return "redirect"
	case Render:
		return "render"
	default:
		return "unknown"
	}
}

type Decision struct {
	Outcome    Outcome
	RedirectTo string
	User       *models.Profile
}

func Decide(state session.State, loginPath string) Decision {
	switch {
	case state.IsLoading:
		return Decision{Outcome: Loading}
	case state.User == nil:
		return Decision{Outcome: Redirect, RedirectTo: loginPath}
	default:
		return Decision{Outcome: Render, User: state.User}
	}
}

type Source interface {
	State() session.State
}

type View interface {
	Loading()
	Redirect(path string)
	Protected(profile models.Profile)
}

type Gate struct {
	source    Source
	loginPath string
}

func New(source Source, loginPath string) *Gate {
	return &Gate{source: source, loginPath: loginPath}
}

// Render reads the current state once and dispatches to exactly one View method.
func (g *Gate) Render(view View) Outcome {
	decision := Decide(g.source.State(), g.loginPath)
	switch decision.Outcome {
	case Loading:
		view.Loading()
	case Redirect:
		view.Redirect(decision.RedirectTo)
	case Render:
		view.Protected(*decision.User)
	}
	return decision.Outcome
}
