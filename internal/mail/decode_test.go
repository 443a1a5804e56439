package mail

import (
	"strings"
	"testing"
)

func TestDecode_PlainText(t *testing.T) {
	t.Parallel()

	raw := "From: kasa@shop.example\n" +
		"Subject: Daily report\n" +
		"\n" +
		"Sales: 100\n"

	d := Decode(raw, "envelope@shop.example")

	if d.Subject != "Daily report" {
		t.Errorf("Subject: got %q, want %q", d.Subject, "Daily report")
	}
	if d.Sender != "kasa@shop.example" {
		t.Errorf("Sender: got %q, want %q", d.Sender, "kasa@shop.example")
	}
	if !strings.Contains(d.Body, "Sales: 100") {
		t.Errorf("Body: got %q, want it to contain %q", d.Body, "Sales: 100")
	}
}

func TestDecode_MissingHeadersFallBackToPlaceholders(t *testing.T) {
	t.Parallel()

	d := Decode("X-Anything: 1\n\nhello\n", "")

	if d.Subject != PlaceholderSubject {
		t.Errorf("Subject: got %q, want %q", d.Subject, PlaceholderSubject)
	}
	if d.Sender != PlaceholderSender {
		t.Errorf("Sender: got %q, want %q", d.Sender, PlaceholderSender)
	}
}

func TestDecode_EnvelopeSenderFallback(t *testing.T) {
	t.Parallel()

	d := Decode("Subject: x\n\nbody\n", "register7@shop.example")

	if d.Sender != "register7@shop.example" {
		t.Errorf("Sender: got %q, want envelope address", d.Sender)
	}
}

func TestDecode_EncodedWordSubject(t *testing.T) {
	t.Parallel()

	// "Звіт" base64-encoded as UTF-8
	raw := "Subject: =?UTF-8?B?0JfQstGW0YI=?=\n\nbody\n"

	d := Decode(raw, "")
	if d.Subject != "Звіт" {
		t.Errorf("Subject: got %q, want %q", d.Subject, "Звіт")
	}
}

func TestDecode_BrokenEncodedWordKeepsRawValue(t *testing.T) {
	t.Parallel()

	raw := "Subject: =?nonsense-charset?B?////?=\n\nbody\n"

	d := Decode(raw, "")
	if d.Subject == "" {
		t.Error("Subject: got empty, want raw header preserved")
	}
}

func TestDecode_Windows1251Body(t *testing.T) {
	t.Parallel()

	// "Привет" in windows-1251 bytes
	raw := "Subject: r\n" +
		"Content-Type: text/plain; charset=windows-1251\n" +
		"\n" +
		"\xcf\xf0\xe8\xe2\xe5\xf2\n"

	d := Decode(raw, "")
	if !strings.Contains(d.Body, "Привет") {
		t.Errorf("Body: got %q, want it to contain %q", d.Body, "Привет")
	}
}

func TestDecode_UndeclaredLegacyCharsetFallsBack(t *testing.T) {
	t.Parallel()

	// Same windows-1251 bytes with no declared charset: the fallback
	// chain must still produce readable text rather than failing.
	raw := "Subject: r\n\n\xcf\xf0\xe8\xe2\xe5\xf2\n"

	d := Decode(raw, "")
	if d.Body == PlaceholderBody {
		t.Errorf("Body: got placeholder, want decoded fallback text")
	}
}

func TestDecode_MultipartPicksFirstTextPart(t *testing.T) {
	t.Parallel()

	raw := "Subject: m\n" +
		"Content-Type: multipart/mixed; boundary=XYZ\n" +
		"\n" +
		"--XYZ\n" +
		"Content-Type: application/octet-stream\n" +
		"\n" +
		"binary stuff\n" +
		"--XYZ\n" +
		"Content-Type: text/html; charset=utf-8\n" +
		"\n" +
		"<b>report</b> here\n" +
		"--XYZ--\n"

	d := Decode(raw, "")
	if !strings.Contains(d.Body, "report") {
		t.Errorf("Body: got %q, want the html part content", d.Body)
	}
}

func TestDecode_MultipartBase64Part(t *testing.T) {
	t.Parallel()

	// "Sales: 55" base64-encoded
	raw := "Subject: m\n" +
		"Content-Type: multipart/alternative; boundary=AB\n" +
		"\n" +
		"--AB\n" +
		"Content-Type: text/plain; charset=utf-8\n" +
		"Content-Transfer-Encoding: base64\n" +
		"\n" +
		"U2FsZXM6IDU1\n" +
		"--AB--\n"

	d := Decode(raw, "")
	if !strings.Contains(d.Body, "Sales: 55") {
		t.Errorf("Body: got %q, want decoded base64 content", d.Body)
	}
}

func TestDecode_MultipartNoTextPart(t *testing.T) {
	t.Parallel()

	raw := "Subject: m\n" +
		"Content-Type: multipart/mixed; boundary=QQ\n" +
		"\n" +
		"--QQ\n" +
		"Content-Type: application/pdf\n" +
		"\n" +
		"%PDF\n" +
		"--QQ--\n"

	d := Decode(raw, "")
	if d.Body != PlaceholderBody {
		t.Errorf("Body: got %q, want %q", d.Body, PlaceholderBody)
	}
}

func TestDecode_EmptyBody(t *testing.T) {
	t.Parallel()

	d := Decode("Subject: e\n\n", "")
	if d.Body != PlaceholderEmpty {
		t.Errorf("Body: got %q, want %q", d.Body, PlaceholderEmpty)
	}
}

func TestDecode_NonMailBlobNeverFails(t *testing.T) {
	t.Parallel()

	blob := "this is not a mail message\x00\x01\x02 at all, just bytes\n\nmore bytes"

	d := Decode(blob, "reg@shop.example")

	if d.Subject != PlaceholderUnparsed {
		t.Errorf("Subject: got %q, want %q", d.Subject, PlaceholderUnparsed)
	}
	if d.Sender != "reg@shop.example" {
		t.Errorf("Sender: got %q, want envelope address", d.Sender)
	}
	if !strings.Contains(d.Body, "not a mail message") {
		t.Errorf("Body: got %q, want raw fallback text", d.Body)
	}
}

func TestDecode_RawFallbackTruncated(t *testing.T) {
	t.Parallel()

	blob := "no header separator here " + strings.Repeat("я", 4000)

	d := Decode(blob, "")
	if len(d.Body) > rawFallbackLimit {
		t.Errorf("Body length: got %d, want <= %d", len(d.Body), rawFallbackLimit)
	}
	if !strings.HasPrefix(d.Body, "no header separator here") {
		t.Errorf("Body should start with raw text, got %q", d.Body[:30])
	}
	// The cut must not tear a UTF-8 sequence.
	if strings.ContainsRune(d.Body, '�') {
		t.Error("Body contains a replacement rune, truncation tore a sequence")
	}
}

func TestTruncate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		in    string
		limit int
		want  string
	}{
		{"shorter than limit", "abc", 10, "abc"},
		{"exact limit", "abc", 3, "abc"},
		{"ascii cut", "abcdef", 4, "abcd"},
		{"cyrillic cut mid-rune", "яяя", 5, "яя"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := truncate(tt.in, tt.limit); got != tt.want {
				t.Errorf("truncate(%q, %d): got %q, want %q", tt.in, tt.limit, got, tt.want)
			}
		})
	}
}
