package forms

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/hex"
	"strconv"
	"time"

	"github.com/emilythestrangee/wikicomments/backend/internal/targets"
)

// MaxFormAge is how long generated security data stays valid.
const MaxFormAge = 2 * time.Hour

// SecurityData is the set of hidden fields a client must echo back when posting.
type SecurityData struct {
	ContentType  string `json:"content_type"`
	ObjectPK     string `json:"object_pk"`
	Timestamp    string `json:"timestamp"`
	SecurityHash string `json:"security_hash"`
}

// Signer generates and checks security hashes with a shared secret.
type Signer struct {
	secret []byte
}

func NewSigner(secret string) *Signer {
	return &Signer{secret: []byte(secret)}
}

func (s *Signer) SecurityData(target targets.Target, now time.Time) SecurityData {
	ts := strconv.FormatInt(now.Unix(), 10)
	return SecurityData{
		ContentType:  target.ContentType(),
		ObjectPK:     target.PK(),
		Timestamp:    ts,
		SecurityHash: s.hash(target.ContentType(), target.PK(), ts),
	}
}

func (s *Signer) hash(ctype, pk, ts string) string {
	mac := hmac.New(sha1.New, s.secret)
	mac.Write([]byte(ctype))
	mac.Write([]byte{0})
	mac.Write([]byte(pk))
	mac.Write([]byte{0})
	mac.Write([]byte(ts))
	return hex.EncodeToString(mac.Sum(nil))
}

func (s *Signer) valid(ctype, pk, ts, got string) bool {
	want := s.hash(ctype, pk, ts)
	return hmac.Equal([]byte(want), []byte(got))
}
