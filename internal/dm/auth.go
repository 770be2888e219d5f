package dm

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/swuota-server/swuota-server/internal/models"
	"github.com/swuota-server/swuota-server/pkg/crypto"
	"github.com/swuota-server/swuota-server/pkg/syncml"
)

// captureNonce scans inbound SyncHdr Status commands for a MAC challenge
// and adopts its NextNonce as the session's active nonce. The nonce rotates
// on every exchange that supplies one and survives exchanges that do not.
func (s *Session) captureNonce(body *syncml.Node) {
	for _, status := range body.All(syncml.CmdStatus) {
		if status.TextAt("Cmd") != syncml.ElemSyncHdr {
			continue
		}
		chal := status.First("Chal")
		if chal == nil || chal.TextAt("Meta", "Type") != syncml.AuthTypeMAC {
			continue
		}
		encoded := chal.TextAt("Meta", "NextNonce")
		if encoded == "" {
			continue
		}
		nonce, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			log.Warn().
				Str("device", s.deviceID).
				Err(err).
				Msg("Ignoring undecodable next nonce")
			continue
		}
		s.nonce = nonce
	}
}

// processAuth updates the session's authentication stage from the inbound
// header and writes the header Status. The caller has already established
// that the asserted login resolved to a credential record.
func (s *Session) processAuth(ctx context.Context, hdr *syncml.Node, resp *ResponseBuilder) {
	if s.authenticated {
		resp.AuthStatus(syncml.StatusAuthAccepted, "", "")
		return
	}

	if s.checkBasicCred(hdr.First("Cred")) {
		s.authenticated = true
		log.Info().
			Str("device", s.deviceID).
			Str("login", s.user.Login).
			Msg("Device authenticated")
		s.record(ctx, models.EventTypeAuthSuccess, models.EventLevelInfo, "device authenticated", nil)
		resp.AuthStatus(syncml.StatusAuthAccepted, "", "")
		return
	}

	log.Info().
		Str("device", s.deviceID).
		Str("login", s.login).
		Msg("Requiring device authentication")
	s.record(ctx, models.EventTypeAuthFailure, models.EventLevelWarning, "basic authentication required", nil)
	resp.AuthStatus(syncml.StatusAuthRequired, syncml.AuthTypeBasic, "")
}

// checkBasicCred validates a Basic credential block against the resolved
// record. Missing block, unsupported type, login mismatch and password
// mismatch all degrade to the challenge path, never to a fatal error.
func (s *Session) checkBasicCred(cred *syncml.Node) bool {
	if cred == nil {
		return false
	}

	if typ := cred.TextAt("Meta", "Type"); typ != syncml.AuthTypeBasic {
		log.Warn().
			Str("device", s.deviceID).
			Str("type", typ).
			Msg("Unsupported credential type")
		return false
	}

	decoded, err := base64.StdEncoding.DecodeString(cred.TextAt("Data"))
	if err != nil {
		log.Warn().
			Str("device", s.deviceID).
			Err(err).
			Msg("Undecodable credential data")
		return false
	}

	login, password, ok := strings.Cut(string(decoded), ":")
	if !ok {
		log.Warn().
			Str("device", s.deviceID).
			Msg("Malformed basic credential")
		return false
	}

	if login != s.user.Login {
		log.Warn().
			Str("device", s.deviceID).
			Str("login", login).
			Str("expected", s.user.Login).
			Msg("Credential login mismatch")
		return false
	}

	if password != s.user.Password {
		log.Warn().
			Str("device", s.deviceID).
			Str("login", login).
			Msg("Invalid password")
		return false
	}

	return true
}

// ResponseMAC returns the x-syncml-hmac header value for an encoded
// response body, or "" when no nonce is active. Independent of the SyncML
// level auth stage: once a nonce has been observed every response is
// integrity-tagged.
func (s *Session) ResponseMAC(bodyDigest []byte) string {
	if len(s.nonce) == 0 || s.user == nil {
		return ""
	}
	mac := crypto.MessageMAC(s.user.ServerLogin, s.user.ServerPassword, s.nonce, bodyDigest)
	return fmt.Sprintf("algorithm=MD5, username=%q, mac=%s", s.user.ServerLogin, mac)
}
