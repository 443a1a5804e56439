// Package mail decodes raw submitted message text into a subject, a sender
// and a best-effort plain-text body. Cash registers emit mail in legacy
// encodings with loosely assembled MIME, so every step here degrades to a
// placeholder instead of failing.
package mail

import (
	"encoding/base64"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	netmail "net/mail"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"
)

// Placeholder values substituted when a piece of the message is absent or
// cannot be decoded. The wording matches what register operators expect to
// see in the chat.
const (
	PlaceholderSubject  = "Без теми"
	PlaceholderSender   = "Невідомий відправник"
	PlaceholderBody     = "Не вдалося витягти вміст листа"
	PlaceholderEmpty    = "Порожній вміст листа"
	PlaceholderUnparsed = "Необроблені дані листа"
)

// rawFallbackLimit bounds the body used when the message cannot be parsed
// as mail at all.
const rawFallbackLimit = 3000

// Decoded is the result of decoding one submitted message. Every field is
// always populated.
type Decoded struct {
	Subject string
	Sender  string
	Body    string
}

// Decode parses raw message text (the accumulated DATA lines) into a
// Decoded. envelopeFrom is the MAIL FROM address, used as the sender
// fallback when the From header is absent. Decode never fails: malformed
// input yields the truncated raw text with placeholder headers.
func Decode(raw string, envelopeFrom string) Decoded {
	msg, err := netmail.ReadMessage(strings.NewReader(raw))
	if err != nil {
		slog.Warn("failed to parse message, using raw fallback", "error", err)
		sender := envelopeFrom
		if sender == "" {
			sender = PlaceholderSender
		}
		return Decoded{
			Subject: PlaceholderUnparsed,
			Sender:  sender,
			Body:    truncate(raw, rawFallbackLimit),
		}
	}

	subject := decodeHeader(msg.Header.Get("Subject"))
	if subject == "" {
		subject = PlaceholderSubject
	}

	sender := decodeHeader(msg.Header.Get("From"))
	if sender == "" {
		sender = envelopeFrom
	}
	if sender == "" {
		sender = PlaceholderSender
	}

	return Decoded{
		Subject: subject,
		Sender:  sender,
		Body:    extractBody(msg),
	}
}

// decodeHeader decodes a possibly encoded-word header value. A fragment
// that fails to decode is kept in its raw form rather than aborting the
// whole header.
func decodeHeader(value string) string {
	if value == "" {
		return ""
	}

	dec := mime.WordDecoder{
		CharsetReader: func(charset string, input io.Reader) (io.Reader, error) {
			enc, err := htmlindex.Get(charset)
			if err != nil {
				return nil, err
			}
			return transform.NewReader(input, enc.NewDecoder()), nil
		},
	}

	decoded, err := dec.DecodeHeader(value)
	if err != nil {
		slog.Debug("failed to decode header, keeping raw value",
			"value", value,
			"error", err,
		)
		return value
	}
	return decoded
}

// extractBody finds the first text part of the message and decodes it.
// Any failure along the way produces a placeholder instead of an error.
func extractBody(msg *netmail.Message) string {
	contentType := msg.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "text/plain"
	}

	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		slog.Warn("failed to parse content type, treating as plain text",
			"content_type", contentType,
			"error", err,
		)
		mediaType, params = "text/plain", nil
	}

	var (
		payload []byte
		charset string
		found   bool
	)

	if strings.HasPrefix(mediaType, "multipart/") {
		boundary := params["boundary"]
		if boundary == "" {
			slog.Warn("multipart message missing boundary")
			return PlaceholderBody
		}
		payload, charset, found = findTextPart(msg.Body, boundary)
	} else {
		body, readErr := io.ReadAll(msg.Body)
		if readErr != nil {
			slog.Warn("failed to read message body", "error", readErr)
			return PlaceholderBody
		}
		payload = decodeTransferEncoding(body, msg.Header.Get("Content-Transfer-Encoding"))
		charset = params["charset"]
		found = true
	}

	if !found {
		return PlaceholderBody
	}

	text := decodeCharset(payload, charset)
	if strings.TrimSpace(text) == "" {
		return PlaceholderEmpty
	}
	return text
}

// findTextPart walks a multipart body and returns the content and declared
// charset of the first text/plain or text/html part, descending into
// nested multiparts.
func findTextPart(body io.Reader, boundary string) (payload []byte, charset string, found bool) {
	reader := multipart.NewReader(body, boundary)

	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			return nil, "", false
		}
		if err != nil {
			slog.Warn("failed to read next part", "error", err)
			return nil, "", false
		}

		partType := part.Header.Get("Content-Type")
		if partType == "" {
			partType = "text/plain"
		}

		mediaType, params, err := mime.ParseMediaType(partType)
		if err != nil {
			slog.Debug("failed to parse part content type, skipping",
				"content_type", partType,
				"error", err,
			)
			continue
		}

		if strings.HasPrefix(mediaType, "multipart/") {
			nested := params["boundary"]
			if nested == "" {
				continue
			}
			if payload, charset, found = findTextPart(part, nested); found {
				return payload, charset, true
			}
			continue
		}

		if mediaType != "text/plain" && mediaType != "text/html" {
			continue
		}

		raw, err := io.ReadAll(part)
		if err != nil {
			slog.Warn("failed to read part content", "error", err)
			continue
		}

		return decodeTransferEncoding(raw, part.Header.Get("Content-Transfer-Encoding")), params["charset"], true
	}
}

// decodeTransferEncoding undoes base64 or quoted-printable transfer
// encoding. Unknown or broken encodings return the raw bytes.
func decodeTransferEncoding(raw []byte, encoding string) []byte {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "base64":
		cleaned := strings.NewReplacer("\r", "", "\n", "").Replace(string(raw))
		decoded, err := base64.StdEncoding.DecodeString(cleaned)
		if err != nil {
			decoded, err = base64.RawStdEncoding.DecodeString(cleaned)
			if err != nil {
				slog.Debug("failed to decode base64 content, keeping raw", "error", err)
				return raw
			}
		}
		return decoded
	case "quoted-printable":
		decoded, err := io.ReadAll(quotedprintable.NewReader(strings.NewReader(string(raw))))
		if err != nil {
			// The reader yields everything it understood before erroring.
			if len(decoded) > 0 {
				return decoded
			}
			return raw
		}
		return decoded
	default:
		return raw
	}
}

// decodeCharset decodes payload bytes, trying the declared charset first
// and then the legacy fallbacks registers are known to mislabel.
func decodeCharset(payload []byte, declared string) string {
	for _, name := range []string{declared, "windows-1251", "utf-8", "cp1251"} {
		if name == "" {
			continue
		}
		enc, err := htmlindex.Get(name)
		if err != nil {
			continue
		}
		decoded, _, err := transform.Bytes(enc.NewDecoder(), payload)
		if err != nil {
			continue
		}
		return string(decoded)
	}
	return string(payload)
}

// truncate cuts s to at most limit bytes without tearing a UTF-8 sequence.
func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
