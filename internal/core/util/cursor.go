package util

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"

	"github.com/jefferypippitt/essential-todo/internal/core/domain"
	"github.com/jefferypippitt/essential-todo/internal/core/model/response"
)

var (
	ErrInvalidCursorFormat    = errors.New("invalid cursor format")
	ErrInvalidCursorSignature = errors.New("invalid cursor signature")
)

// CursorCodec signs keyset cursors so clients cannot forge positions.
type CursorCodec struct {
	secret []byte
}

func NewCursorCodec(secret string) *CursorCodec {
	return &CursorCodec{secret: []byte(secret)}
}

func (c *CursorCodec) hmacSignature(encoded string) string {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte(encoded))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

func (c *CursorCodec) verifySignature(encoded string, signature string) bool {
	expectedSignature := c.hmacSignature(encoded)
	return hmac.Equal([]byte(signature), []byte(expectedSignature))
}

func (c *CursorCodec) Encode(position domain.Position) string {
	data := response.CursorData{Order: position.Order, ID: position.ID}
	jsonData, _ := json.Marshal(data)
	encoded := base64.RawURLEncoding.EncodeToString(jsonData)
	signature := c.hmacSignature(encoded)

	return encoded + "." + signature
}

func (c *CursorCodec) Decode(token string) (domain.Position, error) {
	parts := strings.Split(token, ".")

	if len(parts) != 2 {
		return domain.Position{}, ErrInvalidCursorFormat
	}

	if !c.verifySignature(parts[0], parts[1]) {
		return domain.Position{}, ErrInvalidCursorSignature
	}

	decoded, err := base64.RawURLEncoding.DecodeString(parts[0])

	if err != nil {
		return domain.Position{}, err
	}

	var cursor response.CursorData

	if err := json.Unmarshal(decoded, &cursor); err != nil {
		return domain.Position{}, err
	}

	return domain.Position{Order: cursor.Order, ID: cursor.ID}, nil
}
