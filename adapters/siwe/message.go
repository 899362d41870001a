package siwe

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

const (
	headerSuffix = " wants you to sign in with your Ethereum account:"

	fieldURI        = "URI: "
	fieldVersion    = "Version: "
	fieldChainID    = "Chain ID: "
	fieldNonce      = "Nonce: "
	fieldIssuedAt   = "Issued At: "
	fieldExpiration = "Expiration Time: "
	fieldNotBefore  = "Not Before: "
	fieldRequestID  = "Request ID: "
	fieldResources  = "Resources:"
)

// Message is an EIP-4361 sign-in message
type Message struct {
	Domain         string
	Address        common.Address
	Statement      string
	URI            string
	Version        string
	ChainID        int64
	Nonce          string
	IssuedAt       time.Time
	ExpirationTime *time.Time
	NotBefore      *time.Time
	RequestID      string
	Resources      []string
}

// ParseMessage parses the text form of an EIP-4361 message
func ParseMessage(text string) (*Message, error) {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	if len(lines) < 2 {
		return nil, fmt.Errorf("%w: message too short", ErrMalformedPayload)
	}

	if !strings.HasSuffix(lines[0], headerSuffix) {
		return nil, fmt.Errorf("%w: missing header", ErrMalformedPayload)
	}
	msg := &Message{Domain: strings.TrimSuffix(lines[0], headerSuffix)}
	if msg.Domain == "" {
		return nil, fmt.Errorf("%w: empty domain", ErrMalformedPayload)
	}

	if !common.IsHexAddress(lines[1]) {
		return nil, fmt.Errorf("%w: bad address", ErrMalformedPayload)
	}
	msg.Address = common.HexToAddress(lines[1])

	i := 2
	for i < len(lines) && lines[i] == "" {
		i++
	}
	if i < len(lines) && !strings.HasPrefix(lines[i], fieldURI) {
		msg.Statement = lines[i]
		i++
		for i < len(lines) && lines[i] == "" {
			i++
		}
	}

	for ; i < len(lines); i++ {
		line := lines[i]
		var err error
		switch {
		case line == "":
		case strings.HasPrefix(line, fieldURI):
			msg.URI = strings.TrimPrefix(line, fieldURI)
		case strings.HasPrefix(line, fieldVersion):
			msg.Version = strings.TrimPrefix(line, fieldVersion)
		case strings.HasPrefix(line, fieldChainID):
			msg.ChainID, err = strconv.ParseInt(strings.TrimPrefix(line, fieldChainID), 10, 64)
		case strings.HasPrefix(line, fieldNonce):
			msg.Nonce = strings.TrimPrefix(line, fieldNonce)
		case strings.HasPrefix(line, fieldIssuedAt):
			msg.IssuedAt, err = parseTime(strings.TrimPrefix(line, fieldIssuedAt))
		case strings.HasPrefix(line, fieldExpiration):
			msg.ExpirationTime, err = parseTimePtr(strings.TrimPrefix(line, fieldExpiration))
		case strings.HasPrefix(line, fieldNotBefore):
			msg.NotBefore, err = parseTimePtr(strings.TrimPrefix(line, fieldNotBefore))
		case strings.HasPrefix(line, fieldRequestID):
			msg.RequestID = strings.TrimPrefix(line, fieldRequestID)
		case line == fieldResources:
			for i+1 < len(lines) && strings.HasPrefix(lines[i+1], "- ") {
				i++
				msg.Resources = append(msg.Resources, strings.TrimPrefix(lines[i], "- "))
			}
		default:
			return nil, fmt.Errorf("%w: unexpected line %q", ErrMalformedPayload, line)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
		}
	}

	if msg.URI == "" || msg.Version == "" || msg.Nonce == "" || msg.IssuedAt.IsZero() {
		return nil, fmt.Errorf("%w: missing required field", ErrMalformedPayload)
	}
	if msg.Version != "1" {
		return nil, fmt.Errorf("%w: unsupported version %s", ErrMalformedPayload, msg.Version)
	}

	return msg, nil
}

// String renders the message exactly as a wallet signs it
func (m *Message) String() string {
	var b strings.Builder
	b.WriteString(m.Domain + headerSuffix + "\n")
	b.WriteString(m.Address.Hex() + "\n\n")
	if m.Statement != "" {
		b.WriteString(m.Statement + "\n\n")
	}
	b.WriteString(fieldURI + m.URI + "\n")
	b.WriteString(fieldVersion + m.Version + "\n")
	b.WriteString(fieldChainID + strconv.FormatInt(m.ChainID, 10) + "\n")
	b.WriteString(fieldNonce + m.Nonce + "\n")
	b.WriteString(fieldIssuedAt + formatTime(m.IssuedAt))
	if m.ExpirationTime != nil {
		b.WriteString("\n" + fieldExpiration + formatTime(*m.ExpirationTime))
	}
	if m.NotBefore != nil {
		b.WriteString("\n" + fieldNotBefore + formatTime(*m.NotBefore))
	}
	if m.RequestID != "" {
		b.WriteString("\n" + fieldRequestID + m.RequestID)
	}
	if len(m.Resources) > 0 {
		b.WriteString("\n" + fieldResources)
		for _, r := range m.Resources {
			b.WriteString("\n- " + r)
		}
	}
	return b.String()
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

func parseTimePtr(s string) (*time.Time, error) {
	t, err := parseTime(s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z07:00")
}
