// Package flash carries one-shot user notifications from a request handler to
// the next page the browser renders.
package flash

import (
	"encoding/base64"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	cookieName = "messages"
	maxPending = 20
)

type Level string

const (
	Info  Level = "info"
	Error Level = "error"
)

type Message struct {
	Level Level  `json:"level"`
	Text  string `json:"text"`
}

// Messages is collected per request and attached to the response by the caller.
type Messages []Message

func (m *Messages) Add(level Level, text string) {
	*m = append(*m, Message{Level: level, Text: text})
}

func (m *Messages) Info(text string) { m.Add(Info, text) }
func (m *Messages) Error(text string) { m.Add(Error, text) }

// Attach appends msgs to any messages still pending in the request cookie.
func Attach(c *gin.Context, msgs Messages) {
	if len(msgs) == 0 {
		return
	}
	pending := append(read(c.Request), msgs...)
	if len(pending) > maxPending {
		pending = pending[len(pending)-maxPending:]
	}
	write(c, pending)
}

// Pop returns pending messages and clears the cookie.
func Pop(c *gin.Context) {
	msgs := read(c.Request)
	if msgs == nil {
		msgs = Messages{}
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(cookieName, "", -1, "/", "", false, true)
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

func read(r *http.Request) Messages {
	cookie, err := r.Cookie(cookieName)
	if err != nil || cookie.Value == "" {
		return nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(cookie.Value)
	if err != nil {
		return nil
	}
	var msgs Messages
	if err := json.Unmarshal(raw, &msgs); err != nil {
		return nil
	}
	return msgs
}

func write(c *gin.Context, msgs Messages) {
	raw, err := json.Marshal(msgs)
	if err != nil {
		return
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(cookieName, base64.RawURLEncoding.EncodeToString(raw), 0, "/", "", false, true)
}
