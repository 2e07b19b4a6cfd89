// Package session keeps the client-side view of who is logged in. The controller owns
// the in-memory state, mirrors the token and a profile snapshot into a durable
// clientstore.Store and converges with other handles on that store through change
// notifications.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"hostpanel/internal/client"
	"hostpanel/internal/clientstore"
	"hostpanel/internal/models"
)

const (
	TokenKey   = "hostpanel.token"
	ProfileKey = "hostpanel.profile"
)

// ErrSuperseded is returned by Login when a Logout or another session change started
// while the login request was in flight. The login result is discarded.
var ErrSuperseded = errors.New("session: superseded by a newer session change")

//go:generate mockgen -source=$GOFILE -destination=mocks_test.go -package=session_test

type API interface {
	Login(ctx context.Context, identifier, password string) (client.LoginResult, error)
	Profile(ctx context.Context, token string) (models.Profile, error)
}

type Navigator interface {
	Navigate(path string)
}

type NavigatorFunc func(path string)

func (f NavigatorFunc) Navigate(path string) {
	f(path)
}

type Routes struct {
	Login     string
	Protected string
}

type State struct {
	User      *models.Profile
	Token     string
	IsLoading bool
	Err       string
}

func (s State) Authenticated() bool {
	return !s.IsLoading && s.User != nil
}

type Controller struct {
	api    API
	store  clientstore.Store
	nav    Navigator
	routes Routes
	log    zerolog.Logger

	// persistMu orders durable writes against epoch changes.
	persistMu sync.Mutex
	notifyMu  sync.Mutex

	mu        sync.Mutex
	state     State
	epoch     uint64
	listeners map[uint64]func(State)
	nextID    uint64
}

func NewController(api API, store clientstore.Store, nav Navigator, routes Routes, log zerolog.Logger) *Controller {
	if nav == nil {
		nav = NavigatorFunc(func(string) {})
	}
	return &Controller{
		api:       api,
		store:     store,
		nav:       nav,
		routes:    routes,
		log:       log,
		state:     State{IsLoading: true},
		listeners: make(map[uint64]func(State)),
	}
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot()
}

// Subscribe registers fn to be called with the new state after every change. Calls are
// serialized in change order. fn may read State but must not call Login, Logout,
// Bootstrap or Refresh synchronously. The returned function removes the listener.
func (c *Controller) Subscribe(fn func(State)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	id := c.nextID
	c.listeners[id] = fn
	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

// Bootstrap rebuilds the state from the durable store. A cached profile is adopted
// immediately and then revalidated against the API.
func (c *Controller) Bootstrap(ctx context.Context) error {
	epoch := c.begin()

	token, ok, err := c.store.Get(ctx, TokenKey)
	if err != nil {
		c.set(epoch, State{})
		return fmt.Errorf("read token: %w", err)
	}
	if !ok || token == "" {
		c.set(epoch, State{})
		return nil
	}

	cached := c.cachedProfile(ctx)
	c.set(epoch, State{User: cached, Token: token, IsLoading: cached == nil})

	c.revalidate(ctx, epoch, token, cached)
	return nil
}

// Refresh revalidates the current token. It does nothing while logged out.
func (c *Controller) Refresh(ctx context.Context) error {
	c.mu.Lock()
	epoch, current := c.epoch, c.snapshot()
	c.mu.Unlock()

	if current.Token == "" {
		return nil
	}
	c.revalidate(ctx, epoch, current.Token, current.User)
	return nil
}

func (c *Controller) Login(ctx context.Context, identifier, password string) error {
	epoch := c.begin()

	if token, ok, err := c.store.Get(ctx, TokenKey); err == nil && ok && token != "" {
		if cached := c.cachedProfile(ctx); cached != nil {
			if c.set(epoch, State{User: cached, Token: token}) {
				c.nav.Navigate(c.routes.Protected)
			}
			return nil
		}
	}

	c.update(epoch, func(s *State) { s.Err = "" })

	result, err := c.api.Login(ctx, identifier, password)
	if err != nil {
		c.set(epoch, State{Err: errorMessage(err)})
		return err
	}

	snapshot, err := json.Marshal(result.Profile)
	if err != nil {
		return fmt.Errorf("encode profile: %w", err)
	}
	current, err := c.persist(ctx, epoch, map[string]*string{
		TokenKey:   clientstore.Value(result.Token),
		ProfileKey: clientstore.Value(string(snapshot)),
	})
	if err != nil {
		c.set(epoch, State{Err: errorMessage(err)})
		return fmt.Errorf("persist session: %w", err)
	}
	if !current {
		c.log.Debug().Str("admin_id", result.Profile.ID).Msg("discard login resolved after session change")
		return ErrSuperseded
	}

	profile := result.Profile
	if c.set(epoch, State{User: &profile, Token: result.Token}) {
		c.nav.Navigate(c.routes.Protected)
	}
	return nil
}

func (c *Controller) Logout(ctx context.Context) error {
	c.persistMu.Lock()
	epoch := c.begin()
	err := c.store.Update(ctx, map[string]*string{TokenKey: nil, ProfileKey: nil})
	c.persistMu.Unlock()

	c.set(epoch, State{})
	c.nav.Navigate(c.routes.Login)

	if err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

// Watch re-runs Bootstrap whenever another handle changes the persisted token. It
// returns once the subscription is established; the watcher stops when ctx is done.
func (c *Controller) Watch(ctx context.Context) error {
	changes, err := c.store.Subscribe(ctx, TokenKey)
	if err != nil {
		return fmt.Errorf("watch session: %w", err)
	}

	go func() {
		for change := range changes {
			c.log.Debug().Str("key", change.Key).Bool("deleted", change.Deleted).Msg("session changed elsewhere")
			if err := c.Bootstrap(ctx); err != nil && ctx.Err() == nil {
				c.log.Warn().Err(err).Msg("resync session")
			}
		}
	}()
	return nil
}

func (c *Controller) revalidate(ctx context.Context, epoch uint64, token string, cached *models.Profile) {
	profile, err := c.api.Profile(ctx, token)
	switch {
	case err == nil:
		fresh := State{User: &profile, Token: token}
		snapshot, err := json.Marshal(profile)
		if err != nil {
			c.log.Warn().Err(err).Msg("encode profile")
			c.set(epoch, fresh)
			return
		}
		applied, err := c.persistIf(ctx, epoch, token, map[string]*string{ProfileKey: clientstore.Value(string(snapshot))})
		if err != nil {
			c.log.Warn().Err(err).Msg("cache profile")
			c.set(epoch, fresh)
			return
		}
		if !applied {
			c.adoptStored(ctx, epoch)
			return
		}
		c.set(epoch, fresh)

	case client.IsUnauthorized(err) || client.IsNotFound(err):
		c.log.Info().Err(err).Msg("session rejected by server")
		applied, err := c.persistIf(ctx, epoch, token, map[string]*string{TokenKey: nil, ProfileKey: nil})
		if err != nil {
			c.log.Warn().Err(err).Msg("clear rejected session")
		}
		if err == nil && !applied {
			c.adoptStored(ctx, epoch)
			return
		}
		c.set(epoch, State{})

	default:
		c.log.Warn().Err(err).Bool("cached", cached != nil).Msg("profile refresh failed")
		c.set(epoch, State{User: cached, Token: token})
	}
}

// adoptStored takes over whatever session the store holds now, without a network call.
// It is used when the persisted token changed while a profile request was in flight.
func (c *Controller) adoptStored(ctx context.Context, epoch uint64) {
	token, ok, err := c.store.Get(ctx, TokenKey)
	if err != nil {
		c.log.Warn().Err(err).Msg("read token")
	}
	if err != nil || !ok || token == "" {
		c.set(epoch, State{})
		return
	}
	c.log.Debug().Msg("token replaced during profile refresh")
	c.set(epoch, State{User: c.cachedProfile(ctx), Token: token})
}

func (c *Controller) cachedProfile(ctx context.Context) *models.Profile {
	raw, ok, err := c.store.Get(ctx, ProfileKey)
	if err != nil {
		c.log.Warn().Err(err).Msg("read cached profile")
		return nil
	}
	if !ok {
		return nil
	}

	var profile models.Profile
	if err := json.Unmarshal([]byte(raw), &profile); err != nil || profile.ID == "" {
		c.log.Warn().Err(err).Msg("ignore unreadable cached profile")
		return nil
	}
	return &profile
}

// persist writes values only while epoch is still current and reports whether it did.
func (c *Controller) persist(ctx context.Context, epoch uint64, values map[string]*string) (bool, error) {
	c.persistMu.Lock()
	defer c.persistMu.Unlock()

	c.mu.Lock()
	current := c.epoch == epoch
	c.mu.Unlock()
	if !current {
		return false, nil
	}
	return true, c.store.Update(ctx, values)
}

// persistIf is persist guarded by the stored token still being token.
func (c *Controller) persistIf(ctx context.Context, epoch uint64, token string, values map[string]*string) (bool, error) {
	c.persistMu.Lock()
	defer c.persistMu.Unlock()

	c.mu.Lock()
	current := c.epoch == epoch
	c.mu.Unlock()
	if !current {
		return false, nil
	}
	return c.store.UpdateIf(ctx, TokenKey, token, values)
}

func (c *Controller) begin() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.epoch++
	return c.epoch
}

func (c *Controller) set(epoch uint64, next State) bool {
	return c.update(epoch, func(s *State) { *s = next })
}

func (c *Controller) update(epoch uint64, mutate func(*State)) bool {
	c.mu.Lock()
	if c.epoch != epoch {
		c.mu.Unlock()
		return false
	}
	mutate(&c.state)
	snapshot := c.snapshot()
	listeners := make([]func(State), 0, len(c.listeners))
	for _, fn := range c.listeners {
		listeners = append(listeners, fn)
	}
	// taken before releasing mu so that listeners see changes in the order they happened
	c.notifyMu.Lock()
	c.mu.Unlock()
	defer c.notifyMu.Unlock()

	for _, fn := range listeners {
		fn(snapshot)
	}
	return true
}

func (c *Controller) snapshot() State {
	out := c.state
	if out.User != nil {
		user := *out.User
		out.User = &user
	}
	return out
}

func errorMessage(err error) string {
	var statusErr *client.StatusError
	if errors.As(err, &statusErr) && statusErr.Message != "" {
		return statusErr.Message
	}
	return err.Error()
}
