package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/identitytoolkit/v3"

	"github.com/ytakahashi/todo-sync/internal/models"
)

// authError maps Identity Toolkit error codes onto the gateway sentinels.
func authError(err error) error {
	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	code := apiErr.Message
	if i := strings.IndexAny(code, " :"); i > 0 {
		code = code[:i]
	}
	switch code {
	case "INVALID_PASSWORD", "EMAIL_NOT_FOUND", "INVALID_LOGIN_CREDENTIALS", "INVALID_EMAIL", "USER_DISABLED", "MISSING_PASSWORD":
		return fmt.Errorf("%w: %s", ErrInvalidCredentials, code)
	case "EMAIL_EXISTS":
		return ErrEmailExists
	case "WEAK_PASSWORD":
		return ErrWeakPassword
	case "INVALID_ID_TOKEN", "TOKEN_EXPIRED", "USER_NOT_FOUND", "CREDENTIAL_TOO_OLD_LOGIN_AGAIN":
		return fmt.Errorf("%w: %s", ErrNoSession, code)
	}
	if apiErr.Code >= 500 {
		return fmt.Errorf("%w: %s", ErrUnavailable, apiErr.Message)
	}
	return fmt.Errorf("identity toolkit: %w", err)
}

// GetSession validates the persisted session against the Identity Toolkit.
// A session the backend no longer accepts is dropped and reported as expired.
func (fb *Firebase) GetSession(ctx context.Context) (*models.Session, error) {
	session, err := fb.sessions.Load()
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, nil
	}
	if session.Expired(fb.now()) {
		return nil, fb.expire()
	}

	resp, err := fb.auth.Relyingparty.GetAccountInfo(&identitytoolkit.IdentitytoolkitRelyingpartyGetAccountInfoRequest{
		IdToken: session.AccessToken,
	}).Context(ctx).Do()
	if err != nil {
		err = authError(err)
		if errors.Is(err, ErrNoSession) {
			return nil, fb.expire()
		}
		return nil, err
	}
	if len(resp.Users) == 0 {
		return nil, fb.expire()
	}

	info := resp.Users[0]
	session.User = models.User{ID: info.LocalId, Email: info.Email, AvatarURL: info.PhotoUrl}
	if err := fb.sessions.Save(*session); err != nil {
		return nil, err
	}
	return session, nil
}

func (fb *Firebase) expire() error {
	if err := fb.sessions.Clear(); err != nil {
		return err
	}
	fb.feed.Send(models.SessionChange{Event: models.EventSessionExpired})
	return nil
}

func (fb *Firebase) SignInWithPassword(ctx context.Context, email, password string) (*models.Session, error) {
	resp, err := fb.auth.Relyingparty.VerifyPassword(&identitytoolkit.IdentitytoolkitRelyingpartyVerifyPasswordRequest{
		Email:             email,
		Password:          password,
		ReturnSecureToken: true,
	}).Context(ctx).Do()
	if err != nil {
		return nil, authError(err)
	}

	session := models.Session{
		User:         models.User{ID: resp.LocalId, Email: resp.Email, AvatarURL: resp.PhotoUrl},
		AccessToken:  resp.IdToken,
		RefreshToken: resp.RefreshToken,
	}
	if resp.ExpiresIn > 0 {
		session.ExpiresAt = fb.now().Add(time.Duration(resp.ExpiresIn) * time.Second)
	}
	if err := fb.sessions.Save(session); err != nil {
		return nil, err
	}

	fb.feed.Send(models.SessionChange{Event: models.EventSignedIn, Session: &session})
	return &session, nil
}

// SignUp creates the account and asks the backend to send the verification
// email. The new account is not signed in.
func (fb *Firebase) SignUp(ctx context.Context, email, password string) (*models.User, error) {
	resp, err := fb.auth.Relyingparty.SignupNewUser(&identitytoolkit.IdentitytoolkitRelyingpartySignupNewUserRequest{
		Email:    email,
		Password: password,
	}).Context(ctx).Do()
	if err != nil {
		return nil, authError(err)
	}

	if resp.IdToken != "" {
		_, err := fb.auth.Relyingparty.GetOobConfirmationCode(&identitytoolkit.Relyingparty{
			RequestType: "VERIFY_EMAIL",
			IdToken:     resp.IdToken,
		}).Context(ctx).Do()
		if err != nil {
			return nil, authError(err)
		}
	}

	return &models.User{ID: resp.LocalId, Email: resp.Email}, nil
}

// SignOut drops the persisted session; ID tokens are stateless on the backend.
func (fb *Firebase) SignOut(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := fb.sessions.Clear(); err != nil {
		return err
	}
	fb.feed.Send(models.SessionChange{Event: models.EventSignedOut})
	return nil
}

func (fb *Firebase) OnSessionChange(fn func(models.SessionChange)) *Subscription {
	return fb.feed.Subscribe(fn)
}
