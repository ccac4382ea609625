package wire

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Token is the ASCII prefix identifying a message. Tokens ending with a colon carry a body.
type Token string

// Handshake tokens.
const (
	TokenSync     Token = "SYNC"
	TokenAck      Token = "ACK"
	TokenFail     Token = "FAIL:"
	TokenCallback Token = "CALLBACK:"
	TokenAccept   Token = "ACCEPT"
	TokenInstance Token = "INSTANCE:"
	TokenLinks    Token = "LINKS:"
	TokenOK       Token = "OK"
	TokenStart    Token = "START"
)

// Steady-state tokens.
const (
	TokenData  Token = "DATA:"
	TokenError Token = "ERROR:"
	TokenDone  Token = "DONE:"
)

// ErrUnknownToken is returned when the payload does not start with a known token.
var ErrUnknownToken = errors.New("unknown token")

var tokens = []Token{
	TokenSync, TokenAck, TokenFail, TokenCallback, TokenAccept, TokenInstance,
	TokenLinks, TokenOK, TokenStart, TokenData, TokenError, TokenDone,
}

// HasBody reports whether the token carries a body.
func (t Token) HasBody() bool {
	return strings.HasSuffix(string(t), ":")
}

// Encode builds the payload consisting of the token followed by the body.
func (t Token) Encode(body []byte) []byte {
	b := make([]byte, 0, len(t)+len(body))
	b = append(b, t...)
	return append(b, body...)
}

// ParseToken splits the payload into token and body.
func ParseToken(payload []byte) (Token, []byte, error) {
	for _, t := range tokens {
		if t.HasBody() {
			if bytes.HasPrefix(payload, []byte(t)) {
				return t, payload[len(t):], nil
			}
			continue
		}
		if string(payload) == string(t) {
			return t, nil, nil
		}
	}
	return "", nil, errors.Wrapf(ErrUnknownToken, "payload %q", preview(payload))
}

// EncodeCallback builds the callback payload carrying the session id.
func EncodeCallback(session SessionID) []byte {
	return TokenCallback.Encode(strconv.AppendUint(nil, uint64(session), 10))
}

// DecodeCallback parses the session id from the callback body.
func DecodeCallback(body []byte) (SessionID, error) {
	id, err := strconv.ParseUint(string(body), 10, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid session id %q", preview(body))
	}
	return SessionID(id), nil
}

func preview(b []byte) string {
	const limit = 32
	if len(b) > limit {
		return string(b[:limit]) + "..."
	}
	return string(b)
}
