package authority

import (
	"context"
	"fmt"
	"net/http"
)

// VerifyRequest completes a second-factor challenge.
type VerifyRequest struct {
	Code         string `json:"code"`
	TempToken    string `json:"tempToken"`
	IsBackupCode bool   `json:"isBackupCode"`
}

type tokenResponse struct {
	AccessToken string `json:"accessToken"`
	Token       string `json:"token"`
}

// VerifySecondFactor exchanges a temp token and code for an access credential.
func (c *Client) VerifySecondFactor(ctx context.Context, req VerifyRequest) (string, error) {
	var resp tokenResponse
	err := c.do(ctx, call{
		method:   http.MethodPost,
		path:     c.paths.VerifySecondFactor,
		in:       req,
		out:      &resp,
		classify: classifyVerify,
	})
	if err != nil {
		return "", err
	}
	token := resp.AccessToken
	if token == "" {
		token = resp.Token
	}
	if token == "" {
		return "", fmt.Errorf("%w: verify response without credential", ErrServer)
	}
	return token, nil
}

func classifyVerify(status int, body errorBody) error {
	if _, ok := challengeExpiredCodes[normalizeCode(body.code())]; ok {
		return ErrChallengeExpired
	}
	switch status {
	case http.StatusGone:
		return ErrChallengeExpired
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusUnprocessableEntity:
		return ErrSecondFactorRejected
	}
	return nil
}

// Setup is enrollment material for a new TOTP secret.
type Setup struct {
	Secret    string
	QRPayload string
}

type setupResponse struct {
	Secret     string `json:"secret"`
	QRPayload  string `json:"qrPayload"`
	QRCode     string `json:"qrCode"`
	OTPAuthURL string `json:"otpauthUrl"`
}

// StartSetup requests enrollment material for the authenticated account.
func (c *Client) StartSetup(ctx context.Context, bearer string) (Setup, error) {
	var resp setupResponse
	err := c.do(ctx, call{
		method:   http.MethodPost,
		path:     c.paths.Setup,
		bearer:   bearer,
		out:      &resp,
		classify: classifyBearer,
	})
	if err != nil {
		return Setup{}, err
	}
	qr := resp.QRPayload
	for _, alt := range []string{resp.QRCode, resp.OTPAuthURL} {
		if qr == "" {
			qr = alt
		}
	}
	if resp.Secret == "" && qr == "" {
		return Setup{}, fmt.Errorf("%w: setup response without secret", ErrServer)
	}
	return Setup{Secret: resp.Secret, QRPayload: qr}, nil
}

type verifySetupRequest struct {
	Code string `json:"code"`
}

type verifySetupResponse struct {
	BackupCodes []string `json:"backupCodes"`
}

// VerifySetup activates the enrolled secret and returns the backup-code batch.
func (c *Client) VerifySetup(ctx context.Context, bearer, code string) ([]string, error) {
	var resp verifySetupResponse
	err := c.do(ctx, call{
		method:   http.MethodPost,
		path:     c.paths.VerifySetup,
		bearer:   bearer,
		in:       verifySetupRequest{Code: code},
		out:      &resp,
		classify: classifyVerifySetup,
	})
	if err != nil {
		return nil, err
	}
	return resp.BackupCodes, nil
}

func classifyVerifySetup(status int, _ errorBody) error {
	switch status {
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return ErrSecondFactorRejected
	}
	return nil
}

// Disable turns the second factor off for the authenticated account.
func (c *Client) Disable(ctx context.Context, bearer string) error {
	return c.do(ctx, call{
		method:   http.MethodPost,
		path:     c.paths.Disable,
		bearer:   bearer,
		classify: classifyBearer,
	})
}
