package gate_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"hostpanel/internal/gate"
	"hostpanel/internal/models"
	"hostpanel/internal/session"
)

type staticSource session.State

func (s staticSource) State() session.State {
	return session.State(s)
}

type recordingView struct {
	calls []string
	user  models.Profile
}

func (v *recordingView) Loading() {
	v.calls = append(v.calls, "loading")
}

func (v *recordingView) Redirect(path string) {
	v.calls = append(v.calls, "redirect:"+path)
}

func (v *recordingView) Protected(profile models.Profile) {
	v.calls = append(v.calls, "protected")
	v.user = profile
}

func TestDecide(t *testing.T) {
	admin := &models.Profile{ID: "2f1", Username: "admin", Role: models.AdminRoleSuperAdmin}

	testCases := []struct {
		name   string
		state  session.State
		expect gate.Decision
	}{
		{
			name:   "initial state is loading",
			state:  session.State{IsLoading: true},
			expect: gate.Decision{Outcome: gate.Loading},
		},
		{
			name:   "loading wins over a cached user",
			state:  session.State{IsLoading: true, User: admin},
			expect: gate.Decision{Outcome: gate.Loading},
		},
		{
			name:   "no user redirects",
			state:  session.State{Err: "invalid username or password"},
			expect: gate.Decision{Outcome: gate.Redirect, RedirectTo: "/login"},
		},
		{
			name:   "token without user redirects",
			state:  session.State{Token: "jwt"},
			expect: gate.Decision{Outcome: gate.Redirect, RedirectTo: "/login"},
		},
		{
			name:   "user renders",
			state:  session.State{User: admin, Token: "jwt"},
			expect: gate.Decision{Outcome: gate.Render, User: admin},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expect, gate.Decide(tc.state, "/login"))
		})
	}
}

func TestGateRender(t *testing.T) {
	admin := models.Profile{ID: "2f1", Username: "admin", Role: models.AdminRoleAdmin}

	testCases := []struct {
		name    string
		state   session.State
		outcome gate.Outcome
		calls   []string
	}{
		{name: "loading", state: session.State{IsLoading: true}, outcome: gate.Loading, calls: []string{"loading"}},
		{name: "redirect", state: session.State{}, outcome: gate.Redirect, calls: []string{"redirect:/login"}},
		{name: "protected", state: session.State{User: &admin}, outcome: gate.Render, calls: []string{"protected"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			view := &recordingView{}
			outcome := gate.New(staticSource(tc.state), "/login").Render(view)

			assert.Equal(t, tc.outcome, outcome)
			assert.Equal(t, tc.calls, view.calls)
			if tc.outcome == gate.Render {
				assert.Equal(t, admin, view.user)
			}
			assert.NotEqual(t, "unknown", outcome.String())
		})
	}
}
