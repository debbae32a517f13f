package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"lostfound/internal/model"
)

// Supabase talks to a GoTrue-compatible REST auth service (/auth/v1/*).
type Supabase struct {
	broadcaster

	client *resty.Client
	store  *Store
	log    zerolog.Logger
	now    func() time.Time

	margin        time.Duration // refresh this long before expiry
	maxAttempts   int
	retryInterval time.Duration
	failureDelay  time.Duration // wait after a refresh gives up transiently

	commitMu sync.Mutex // serializes commit so events follow session order

	mu      sync.Mutex
	session *model.Session
	epoch   uint64 // bumped when a different session, or none, takes over
	loaded  bool
	wake    chan struct{}
}

// Option configures a Supabase provider in NewSupabase.
type Option func(*Supabase)

// WithHTTPTimeout bounds every request to the auth service.
func WithHTTPTimeout(d time.Duration) Option {
	return func(s *Supabase) { s.client.SetTimeout(d) }
}

// WithRefreshMargin sets how long before expiry Run refreshes the token.
func WithRefreshMargin(d time.Duration) Option {
	return func(s *Supabase) { s.margin = d }
}

// WithMaxAttempts caps refresh attempts per expiry, including the first.
func WithMaxAttempts(n int) Option {
	return func(s *Supabase) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

// WithRetryInterval sets the initial backoff between refresh attempts.
func WithRetryInterval(d time.Duration) Option {
	return func(s *Supabase) { s.retryInterval = d }
}

func NewSupabase(baseURL, anonKey string, store *Store, log zerolog.Logger, opts ...Option) *Supabase {
	c := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetHeader("apikey", anonKey).
		SetHeader("Content-Type", "application/json").
		SetTimeout(15 * time.Second)
	c.OnBeforeRequest(func(_ *resty.Client, r *resty.Request) error {
		r.SetHeader("X-Request-Id", uuid.NewString())
		return nil
	})

	s := &Supabase{
		client:        c,
		store:         store,
		log:           log.With().Str("component", "auth").Logger(),
		now:           time.Now,
		margin:        time.Minute,
		maxAttempts:   5,
		retryInterval: 500 * time.Millisecond,
		failureDelay:  30 * time.Second,
		epoch:         1,
		wake:          make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// — wire types ———————————————————————————————————————————————————————————————

type tokenResponse struct {
	AccessToken  string        `json:"access_token"`
	TokenType    string        `json:"token_type"`
	ExpiresIn    int64         `json:"expires_in"`
	ExpiresAt    int64         `json:"expires_at"`
	RefreshToken string        `json:"refresh_token"`
	User         *userResponse `json:"user"`
}

type userResponse struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	UserMetadata struct {
		DisplayName string `json:"display_name"`
	} `json:"user_metadata"`
}

// errorBody covers both GoTrue error shapes (OAuth-style and msg-style).
type errorBody struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	ErrorCode        string `json:"error_code"`
	Msg              string `json:"msg"`
	Message          string `json:"message"`
}

type passwordGrant struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshGrant struct {
	RefreshToken string `json:"refresh_token"`
}

type signUpRequest struct {
	Email    string         `json:"email"`
	Password string         `json:"password"`
	Data     map[string]any `json:"data,omitempty"`
}

type updateUserRequest struct {
	Data map[string]any `json:"data"`
}

func (u *userResponse) toModel() model.User {
	out := model.User{ID: u.ID}
	if u.Email != "" {
		email := u.Email
		out.Email = &email
	}
	if u.UserMetadata.DisplayName != "" {
		name := u.UserMetadata.DisplayName
		out.DisplayName = &name
	}
	return out
}

func (s *Supabase) toSession(t *tokenResponse) *model.Session {
	sess := &model.Session{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		TokenType:    t.TokenType,
	}
	switch {
	case t.ExpiresAt > 0:
		sess.ExpiresAt = time.Unix(t.ExpiresAt, 0)
	case t.ExpiresIn > 0:
		sess.ExpiresAt = s.now().Add(time.Duration(t.ExpiresIn) * time.Second)
	}
	if t.User != nil {
		sess.User = t.User.toModel()
	}
	return sess
}

func apiError(resp *resty.Response) error {
	e := &APIError{Status: resp.StatusCode()}
	if body, ok := resp.Error().(*errorBody); ok && body != nil {
		e.Code = firstNonEmpty(body.ErrorCode, body.Error)
		e.Message = firstNonEmpty(body.ErrorDescription, body.Msg, body.Message)
	}
	if e.Message == "" {
		e.Message = http.StatusText(e.Status)
	}
	return e
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// — Provider ——————————————————————————————————————————————————————————————————

// Session returns the persisted session, refreshing it first if it has
// expired. An expired session whose refresh token is rejected is discarded.
func (s *Supabase) Session(ctx context.Context) (*model.Session, error) {
	sess, epoch, err := s.snapshot()
	if err != nil {
		return nil, err
	}
	if sess == nil || !sess.Expired(s.now()) {
		return sess, nil
	}
	refreshed, err := s.refresh(ctx, sess.RefreshToken)
	if err != nil {
		if isPermanent(err) {
			s.log.Info().Err(err).Msg("stored session rejected, discarding")
			s.commit(epoch, "", replaceWith(nil))
			return s.current()
		}
		return nil, fmt.Errorf("refresh session: %w", err)
	}
	s.commit(epoch, "", replaceWith(refreshed))
	return s.current()
}

func (s *Supabase) User(ctx context.Context) (*model.User, error) {
	sess, err := s.current()
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, ErrNoSession
	}
	resp, err := s.client.R().
		SetContext(ctx).
		SetAuthToken(sess.AccessToken).
		SetResult(&userResponse{}).
		SetError(&errorBody{}).
		Get("/auth/v1/user")
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if resp.IsError() {
		return nil, apiError(resp)
	}
	u := resp.Result().(*userResponse).toModel()
	return &u, nil
}

func (s *Supabase) SignIn(ctx context.Context, email, password string) error {
	resp, err := s.client.R().
		SetContext(ctx).
		SetQueryParam("grant_type", "password").
		SetBody(passwordGrant{Email: strings.TrimSpace(email), Password: password}).
		SetResult(&tokenResponse{}).
		SetError(&errorBody{}).
		Post("/auth/v1/token")
	if err != nil {
		return fmt.Errorf("sign in: %w", err)
	}
	if resp.IsError() {
		err := apiError(resp)
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusBadRequest && apiErr.Code == "invalid_grant" {
			return ErrInvalidCredentials
		}
		return err
	}
	s.commit(newEpoch, model.SignedIn, replaceWith(s.toSession(resp.Result().(*tokenResponse))))
	return nil
}

// SignUp creates the account with display_name in user metadata. When the
// service requires email confirmation no session is issued and
// ErrConfirmEmail is returned.
func (s *Supabase) SignUp(ctx context.Context, email, password, displayName string) error {
	req := signUpRequest{Email: strings.TrimSpace(email), Password: password}
	if name := strings.TrimSpace(displayName); name != "" {
		req.Data = map[string]any{"display_name": name}
	}
	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&tokenResponse{}).
		SetError(&errorBody{}).
		Post("/auth/v1/signup")
	if err != nil {
		return fmt.Errorf("sign up: %w", err)
	}
	if resp.IsError() {
		err := apiError(resp)
		var apiErr *APIError
		if errors.As(err, &apiErr) && (apiErr.Code == "user_already_exists" ||
			strings.Contains(strings.ToLower(apiErr.Message), "already registered")) {
			return ErrEmailTaken
		}
		return err
	}
	tok := resp.Result().(*tokenResponse)
	if tok.AccessToken == "" {
		return ErrConfirmEmail
	}
	s.commit(newEpoch, model.SignedIn, replaceWith(s.toSession(tok)))
	return nil
}

// SignOut revokes the session server-side (best effort) and always clears
// it locally.
func (s *Supabase) SignOut(ctx context.Context) error {
	sess, _ := s.current()
	if sess != nil {
		resp, err := s.client.R().
			SetContext(ctx).
			SetAuthToken(sess.AccessToken).
			SetError(&errorBody{}).
			Post("/auth/v1/logout")
		switch {
		case err != nil:
			s.log.Warn().Err(err).Msg("logout request failed")
		case resp.IsError():
			s.log.Warn().Err(apiError(resp)).Msg("logout rejected")
		}
	}
	s.commit(newEpoch, model.SignedOut, replaceWith(nil))
	return nil
}

func (s *Supabase) UpdateDisplayName(ctx context.Context, name string) error {
	sess, epoch, err := s.snapshot()
	if err != nil {
		return err
	}
	if sess == nil {
		return ErrNoSession
	}
	resp, err := s.client.R().
		SetContext(ctx).
		SetAuthToken(sess.AccessToken).
		SetBody(updateUserRequest{Data: map[string]any{"display_name": strings.TrimSpace(name)}}).
		SetResult(&userResponse{}).
		SetError(&errorBody{}).
		Put("/auth/v1/user")
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if resp.IsError() {
		return apiError(resp)
	}

	user := resp.Result().(*userResponse).toModel()
	if !s.commit(epoch, model.UserUpdated, func(cur *model.Session) (*model.Session, bool) {
		if cur == nil {
			return nil, false
		}
		cur.User = user
		return cur, true
	}) {
		return ErrNoSession
	}
	return nil
}

// — refresh ———————————————————————————————————————————————————————————————————

// floor holds back the next refresh of one session epoch.
type floor struct {
	at    time.Time
	epoch uint64
}

// Run keeps the session alive until ctx is cancelled. It refreshes the
// access token margin before expiry and signs out when the service rejects
// the refresh token. A refresh that finishes after the session was replaced
// or signed out is dropped.
func (s *Supabase) Run(ctx context.Context) error {
	var hold floor
	for {
		fired, err := s.wait(ctx, hold)
		if err != nil {
			return err
		}
		if !fired {
			continue
		}

		sess, epoch, err := s.snapshot()
		if err != nil || sess == nil {
			continue
		}
		refreshed, err := s.refreshWithRetry(ctx, sess.RefreshToken)
		switch {
		case err == nil:
			if !s.commit(epoch, model.TokenRefreshed, replaceWith(refreshed)) {
				s.log.Debug().Msg("session replaced during refresh, dropping result")
				continue
			}
			hold = floor{at: s.refreshFloor(refreshed), epoch: epoch}
		case ctx.Err() != nil:
			return ctx.Err()
		case isPermanent(err):
			if s.commit(epoch, model.SignedOut, replaceWith(nil)) {
				s.log.Warn().Err(err).Msg("refresh token rejected, signing out")
			}
		default:
			s.log.Error().Err(err).Dur("retry_in", s.failureDelay).Msg("token refresh failed")
			hold = floor{at: s.now().Add(s.failureDelay), epoch: epoch}
		}
	}
}

// refreshFloor is the earliest the session issued as sess may be refreshed
// again: halfway through its lifetime and no sooner than retryInterval.
// Without it a margin longer than the token lifetime refreshes continuously.
func (s *Supabase) refreshFloor(sess *model.Session) time.Time {
	now := s.now()
	wait := sess.ExpiresAt.Sub(now) / 2
	if wait < s.retryInterval {
		wait = s.retryInterval
	}
	return now.Add(wait)
}

// wait blocks until the next refresh is due (true) or the session changed
// underneath it (false).
func (s *Supabase) wait(ctx context.Context, hold floor) (bool, error) {
	var timer <-chan time.Time
	if d, ok := s.untilRefresh(hold); ok {
		t := time.NewTimer(d)
		defer t.Stop()
		timer = t.C
	}
	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case <-s.wake:
		return false, nil
	case <-timer:
		return true, nil
	}
}

// untilRefresh returns how long Run should sleep before the next refresh,
// or false if there is nothing to refresh. hold only applies to the epoch
// that set it.
func (s *Supabase) untilRefresh(hold floor) (time.Duration, bool) {
	sess, epoch, err := s.snapshot()
	if err != nil || sess == nil || sess.ExpiresAt.IsZero() {
		return 0, false
	}
	due := sess.ExpiresAt.Add(-s.margin)
	if hold.epoch == epoch && hold.at.After(due) {
		due = hold.at
	}
	d := due.Sub(s.now())
	if d < 0 {
		d = 0
	}
	return d, true
}

func (s *Supabase) refreshWithRetry(ctx context.Context, refreshToken string) (*model.Session, error) {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = s.retryInterval
	exp.Multiplier = 2
	exp.Reset()

	var sess *model.Session
	op := func() error {
		var err error
		sess, err = s.refresh(ctx, refreshToken)
		if isPermanent(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		s.log.Warn().Err(err).Dur("wait", wait).Msg("token refresh retry")
	}
	b := backoff.WithContext(backoff.WithMaxRetries(exp, uint64(s.maxAttempts-1)), ctx)
	if err := backoff.RetryNotify(op, b, notify); err != nil {
		return nil, err
	}
	return sess, nil
}

func (s *Supabase) refresh(ctx context.Context, refreshToken string) (*model.Session, error) {
	resp, err := s.client.R().
		SetContext(ctx).
		SetQueryParam("grant_type", "refresh_token").
		SetBody(refreshGrant{RefreshToken: refreshToken}).
		SetResult(&tokenResponse{}).
		SetError(&errorBody{}).
		Post("/auth/v1/token")
	if err != nil {
		return nil, fmt.Errorf("refresh: %w", err)
	}
	if resp.IsError() {
		return nil, apiError(resp)
	}
	return s.toSession(resp.Result().(*tokenResponse)), nil
}

// isPermanent reports whether err is a client error the service will keep
// returning, as opposed to a network failure or 5xx.
func isPermanent(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Status >= 400 && apiErr.Status < 500 && apiErr.Status != http.StatusTooManyRequests
}

// — state —————————————————————————————————————————————————————————————————————

func (s *Supabase) current() (*model.Session, error) {
	sess, _, err := s.snapshot()
	return sess, err
}

// snapshot returns a copy of the session and the epoch it belongs to,
// loading the persisted session on first use.
func (s *Supabase) snapshot() (*model.Session, uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		sess, err := s.store.Load()
		if err != nil {
			return nil, 0, err
		}
		s.session = sess
		s.loaded = true
	}
	return copySession(s.session), s.epoch, nil
}

// newEpoch makes a commit unconditional and starts a new epoch.
const newEpoch uint64 = 0

func replaceWith(sess *model.Session) func(*model.Session) (*model.Session, bool) {
	return func(*model.Session) (*model.Session, bool) { return sess, true }
}

// commit moves the session to what next returns for the current one,
// persists it and emits kind if set. Unless epoch is newEpoch the commit
// only lands while that epoch is still current. Clearing the session or
// committing with newEpoch starts a new epoch, so results computed for the
// old session are dropped.
func (s *Supabase) commit(epoch uint64, kind model.AuthEventKind, next func(cur *model.Session) (*model.Session, bool)) bool {
	s.commitMu.Lock()
	defer s.commitMu.Unlock()

	s.mu.Lock()
	if epoch != newEpoch && (!s.loaded || epoch != s.epoch) {
		s.mu.Unlock()
		return false
	}
	sess, ok := next(copySession(s.session))
	if !ok {
		s.mu.Unlock()
		return false
	}
	if epoch == newEpoch || sess == nil {
		s.epoch++
	}
	s.session = copySession(sess)
	s.loaded = true
	s.mu.Unlock()

	if err := s.store.Save(sess); err != nil {
		s.log.Error().Err(err).Msg("persist session")
	}
	if kind != "" {
		s.emit(model.AuthEvent{Kind: kind, Session: copySession(sess)})
	}
	select {
	case s.wake <- struct{}{}:
	default:
	}
	return true
}
