package authoritytest

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

func (a *Authority) login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request")
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	acct := a.accounts[strings.ToLower(req.Email)]
	if acct == nil || acct.Password != req.Password {
		writeError(w, http.StatusUnauthorized, "invalid_credentials")
		return
	}
	if !acct.SecondFactor {
		writeJSON(w, http.StatusOK, map[string]string{"accessToken": a.mintLocked(acct)})
		return
	}

	temp := uuid.NewString()
	a.challenges[temp] = &challenge{email: strings.ToLower(acct.Email), issuedAt: a.now()}
	user := map[string]string{"id": acct.ID, "email": acct.Email, "role": acct.Role}
	if acct.CustomerID != "" {
		user["customerId"] = acct.CustomerID
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"requiresSecondFactor": true,
		"tempToken":            temp,
		"user":                 user,
	})
}

func (a *Authority) verify(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code         string `json:"code"`
		TempToken    string `json:"tempToken"`
		IsBackupCode bool   `json:"isBackupCode"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request")
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	ch := a.challenges[req.TempToken]
	if ch == nil {
		writeError(w, http.StatusUnauthorized, "invalid_temp_token")
		return
	}
	if ch.expired {
		delete(a.challenges, req.TempToken)
		if a.expireCode != "" {
			writeError(w, http.StatusBadRequest, a.expireCode)
			return
		}
		writeError(w, http.StatusGone, "challenge_expired")
		return
	}
	acct := a.accounts[ch.email]
	if acct == nil {
		writeError(w, http.StatusUnauthorized, "invalid_temp_token")
		return
	}

	if req.IsBackupCode {
		if !acct.consumeBackup(req.Code) {
			writeError(w, http.StatusUnauthorized, "invalid_code")
			return
		}
	} else if acct.TOTPCode == "" || req.Code != acct.TOTPCode {
		writeError(w, http.StatusUnauthorized, "invalid_code")
		return
	}

	delete(a.challenges, req.TempToken)
	writeJSON(w, http.StatusOK, map[string]string{"accessToken": a.mintLocked(acct)})
}

func (acct *account) consumeBackup(code string) bool {
	if acct.usedBackup[code] {
		return false
	}
	for _, c := range acct.BackupCodes {
		if c == code {
			acct.usedBackup[code] = true
			return true
		}
	}
	return false
}

func (a *Authority) me(w http.ResponseWriter, r *http.Request) {
	a.mu.Lock()
	defer a.mu.Unlock()

	acct := a.bearerAccountLocked(r)
	if acct == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if a.failMe {
		writeError(w, http.StatusServiceUnavailable, "unavailable")
		return
	}
	profile := map[string]string{"id": acct.ID, "email": acct.Email, "role": acct.Role}
	if acct.CustomerID != "" {
		profile["customerId"] = acct.CustomerID
	}
	if acct.Name != "" {
		profile["name"] = acct.Name
	}
	writeJSON(w, http.StatusOK, profile)
}

func (a *Authority) setup(w http.ResponseWriter, r *http.Request) {
	a.mu.Lock()
	defer a.mu.Unlock()

	acct := a.bearerAccountLocked(r)
	if acct == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	acct.pendingSecret = strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:16]
	writeJSON(w, http.StatusOK, map[string]string{
		"secret":    acct.pendingSecret,
		"qrPayload": "otpauth://totp/goAuthClient:" + acct.Email + "?secret=" + acct.pendingSecret,
	})
}

func (a *Authority) verifySetup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request")
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	acct := a.bearerAccountLocked(r)
	if acct == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if acct.pendingSecret == "" || acct.TOTPCode == "" || req.Code != acct.TOTPCode {
		writeError(w, http.StatusBadRequest, "invalid_code")
		return
	}

	codes := make([]string, 8)
	for i := range codes {
		codes[i] = strings.ToUpper(uuid.NewString()[:8])
	}
	acct.pendingSecret = ""
	acct.SecondFactor = true
	acct.BackupCodes = codes
	acct.usedBackup = make(map[string]bool)
	writeJSON(w, http.StatusOK, map[string]any{"backupCodes": codes})
}

func (a *Authority) disable(w http.ResponseWriter, r *http.Request) {
	a.mu.Lock()
	defer a.mu.Unlock()

	acct := a.bearerAccountLocked(r)
	if acct == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	acct.SecondFactor = false
	acct.BackupCodes = nil
	writeJSON(w, http.StatusOK, map[string]any{})
}
