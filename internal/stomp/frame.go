// Package stomp encodes and decodes STOMP 1.2 frames carried over a
// WebSocket text message.
package stomp

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	CmdConnect     = "CONNECT"
	CmdConnected   = "CONNECTED"
	CmdSubscribe   = "SUBSCRIBE"
	CmdUnsubscribe = "UNSUBSCRIBE"
	CmdSend        = "SEND"
	CmdMessage     = "MESSAGE"
	CmdReceipt     = "RECEIPT"
	CmdError       = "ERROR"
	CmdDisconnect  = "DISCONNECT"
)

var (
	ErrEmptyFrame     = errors.New("empty_frame")
	ErrMissingNull    = errors.New("missing_null_terminator")
	ErrMalformedFrame = errors.New("malformed_frame")
)

type Header struct {
	Key   string
	Value string
}

// Frame keeps headers in wire order; the first occurrence of a key wins on Get.
type Frame struct {
	Command string
	Headers []Header
	Body    []byte
}

func New(command string, kv ...string) Frame {
	f := Frame{Command: command}
	for i := 0; i+1 < len(kv); i += 2 {
		f.Headers = append(f.Headers, Header{Key: kv[i], Value: kv[i+1]})
	}
	return f
}

func (f Frame) Get(key string) string {
	for _, h := range f.Headers {
		if h.Key == key {
			return h.Value
		}
	}
	return ""
}

func (f *Frame) Set(key, value string) {
	for i := range f.Headers {
		if f.Headers[i].Key == key {
			f.Headers[i].Value = value
			return
		}
	}
	f.Headers = append(f.Headers, Header{Key: key, Value: value})
}

// Encode renders the frame. CONNECT frames are written without header
// escaping, as 1.2 requires.
func Encode(f Frame) []byte {
	var buf bytes.Buffer
	buf.WriteString(f.Command)
	buf.WriteByte('\n')
	escape := f.Command != CmdConnect && f.Command != CmdConnected
	hasLength := false
	for _, h := range f.Headers {
		if h.Key == "content-length" {
			hasLength = true
		}
		if escape {
			buf.WriteString(escapeHeader(h.Key))
			buf.WriteByte(':')
			buf.WriteString(escapeHeader(h.Value))
		} else {
			buf.WriteString(h.Key)
			buf.WriteByte(':')
			buf.WriteString(h.Value)
		}
		buf.WriteByte('\n')
	}
	if len(f.Body) > 0 && !hasLength {
		buf.WriteString("content-length:")
		buf.WriteString(strconv.Itoa(len(f.Body)))
		buf.WriteByte('\n')
	}
	buf.WriteByte('\n')
	buf.Write(f.Body)
	buf.WriteByte(0)
	return buf.Bytes()
}

// Decode parses one frame. A payload made only of EOLs is a heart-beat and
// returns ErrEmptyFrame.
func Decode(data []byte) (Frame, error) {
	data = bytes.TrimLeft(data, "\r\n")
	if len(data) == 0 {
		return Frame{}, ErrEmptyFrame
	}
	headEnd := bytes.Index(data, []byte("\n\n"))
	sepLen := 2
	if crlf := bytes.Index(data, []byte("\r\n\r\n")); crlf >= 0 && (headEnd < 0 || crlf < headEnd) {
		headEnd, sepLen = crlf, 4
	}
	if headEnd < 0 {
		return Frame{}, ErrMalformedFrame
	}
	lines := strings.Split(strings.ReplaceAll(string(data[:headEnd]), "\r\n", "\n"), "\n")
	f := Frame{Command: strings.TrimSpace(lines[0])}
	if f.Command == "" {
		return Frame{}, ErrMalformedFrame
	}
	unescape := f.Command != CmdConnect && f.Command != CmdConnected
	for _, line := range lines[1:] {
		if line == "" {
			continue
		}
		k, v, ok := strings.Cut(line, ":")
		if !ok {
			return Frame{}, fmt.Errorf("%w: header %q", ErrMalformedFrame, line)
		}
		if unescape {
			k, v = unescapeHeader(k), unescapeHeader(v)
		}
		f.Headers = append(f.Headers, Header{Key: k, Value: v})
	}

	rest := data[headEnd+sepLen:]
	if cl := f.Get("content-length"); cl != "" {
		n, err := strconv.Atoi(cl)
		if err != nil || n < 0 || n > len(rest) {
			return Frame{}, fmt.Errorf("%w: content-length %q", ErrMalformedFrame, cl)
		}
		f.Body = append([]byte(nil), rest[:n]...)
		return f, nil
	}
	nul := bytes.IndexByte(rest, 0)
	if nul < 0 {
		return Frame{}, ErrMissingNull
	}
	if nul > 0 {
		f.Body = append([]byte(nil), rest[:nul]...)
	}
	return f, nil
}

var (
	headerEscaper   = strings.NewReplacer(`\`, `\\`, "\r", `\r`, "\n", `\n`, ":", `\c`)
	headerUnescaper = strings.NewReplacer(`\\`, `\`, `\r`, "\r", `\n`, "\n", `\c`, ":")
)

func escapeHeader(s string) string   { return headerEscaper.Replace(s) }
func unescapeHeader(s string) string { return headerUnescaper.Replace(s) }
