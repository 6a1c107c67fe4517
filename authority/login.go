package authority

import (
	"context"
	"fmt"
	"net/http"
)

// Profile is the identity the authority reports for a user.
type Profile struct {
	ID         string
	Email      string
	Role       string
	CustomerID string
	Name       string
}

type wireProfile struct {
	ID          string `json:"id"`
	UserID      string `json:"userId"`
	Email       string `json:"email"`
	Role        string `json:"role"`
	CustomerID  string `json:"customerId"`
	CustomerID2 string `json:"customer_id"`
	Name        string `json:"name"`
}

func (w *wireProfile) profile() Profile {
	if w == nil {
		return Profile{}
	}
	p := Profile{
		ID:         w.ID,
		Email:      w.Email,
		Role:       w.Role,
		CustomerID: w.CustomerID,
		Name:       w.Name,
	}
	if p.ID == "" {
		p.ID = w.UserID
	}
	if p.CustomerID == "" {
		p.CustomerID = w.CustomerID2
	}
	return p
}

// LoginOutcome is the result of a successful login call: [Authenticated] or
// [ChallengeIssued].
type LoginOutcome interface {
	loginOutcome()
}

// Authenticated carries the access credential of a completed login.
type Authenticated struct {
	AccessToken string
}

// ChallengeIssued means the account requires a second factor. TempToken authorizes
// only VerifySecondFactor.
type ChallengeIssued struct {
	TempToken string
	User      Profile
}

func (Authenticated) loginOutcome()   {}
func (ChallengeIssued) loginOutcome() {}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	AccessToken          string       `json:"accessToken"`
	Token                string       `json:"token"`
	RequiresSecondFactor bool         `json:"requiresSecondFactor"`
	RequiresTwoFactor    bool         `json:"requiresTwoFactor"`
	Requires2FA          bool         `json:"requires2FA"`
	TempToken            string       `json:"tempToken"`
	User                 *wireProfile `json:"user"`
}

// Login submits an email/password pair.
func (c *Client) Login(ctx context.Context, email, password string) (LoginOutcome, error) {
	var resp loginResponse
	err := c.do(ctx, call{
		method:   http.MethodPost,
		path:     c.paths.Login,
		in:       loginRequest{Email: email, Password: password},
		out:      &resp,
		classify: classifyLogin,
	})
	if err != nil {
		return nil, err
	}
	return resp.outcome()
}

func (r loginResponse) outcome() (LoginOutcome, error) {
	if r.RequiresSecondFactor || r.RequiresTwoFactor || r.Requires2FA {
		if r.TempToken == "" {
			return nil, fmt.Errorf("%w: challenge without temp token", ErrServer)
		}
		return ChallengeIssued{TempToken: r.TempToken, User: r.User.profile()}, nil
	}
	token := r.AccessToken
	if token == "" {
		token = r.Token
	}
	if token == "" {
		return nil, fmt.Errorf("%w: login response has neither credential nor challenge", ErrServer)
	}
	return Authenticated{AccessToken: token}, nil
}

func classifyLogin(status int, _ errorBody) error {
	switch status {
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden:
		return ErrInvalidCredentials
	}
	return nil
}

// Me returns the profile bound to bearer.
func (c *Client) Me(ctx context.Context, bearer string) (Profile, error) {
	var resp wireProfile
	err := c.do(ctx, call{
		method:   http.MethodGet,
		path:     c.paths.Me,
		bearer:   bearer,
		out:      &resp,
		classify: classifyBearer,
	})
	if err != nil {
		return Profile{}, err
	}
	return resp.profile(), nil
}

func classifyBearer(status int, _ errorBody) error {
	if status == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	return nil
}
