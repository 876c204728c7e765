package security

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"regexp"
	"strings"
)

// unsafeChars is the fixed set stripped from inbound text. This is not
// context-aware escaping; renderers must still escape for their own
// output context.
var unsafeChars = []string{"<", ">", "\"", "'", "&", "\x00"}

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// NewMessageID returns a URL-safe random identifier with 16 bytes of
// entropy. Uniqueness is best-effort: collisions are possible but
// negligibly likely, and no check is made against existing IDs.
func NewMessageID() string {
	buf := make([]byte, 16)
	// crypto/rand.Read is documented to never fail.
	rand.Read(buf)
	return base64.RawURLEncoding.EncodeToString(buf)
}

// Sanitize strips the unsafe character set from text and trims
// surrounding whitespace.
func Sanitize(text string) string {
	for _, c := range unsafeChars {
		text = strings.ReplaceAll(text, c, "")
	}
	return strings.TrimSpace(text)
}

// HashSenderID returns a short stable hash of a sender identifier,
// suitable for logging without exposing the raw address or user ID.
func HashSenderID(senderID, salt string) string {
	sum := sha256.Sum256([]byte(senderID + salt))
	return hex.EncodeToString(sum[:])[:16]
}

// VerifySignature checks an HMAC-SHA256 webhook signature in constant time.
func VerifySignature(payload []byte, signature, secret string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// ValidEmail reports whether addr looks like an email address.
func ValidEmail(addr string) bool {
	return emailPattern.MatchString(addr)
}
