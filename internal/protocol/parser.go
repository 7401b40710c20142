package protocol

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

// Legacy lines may carry a trailing "|text" section used by the hub's
// display. It is accepted and ignored.
const textSuffix = `(?:\|.*)?$`

// textMatcher owns the wire pattern of a single message type. matches is a
// cheap substring test; parse runs the full regular expression.
type textMatcher struct {
	msgType MessageType
	matches func(line, body string) bool
	re      *regexp.Regexp
	build   func(m []string) (Message, error)
}

// Order matters only where prefilters overlap; the more specific forms are
// listed first and on/off is last.
var textMatchers = []textMatcher{
	{
		msgType: MessageTypeHeatInfo,
		matches: func(line, _ string) bool { return strings.HasPrefix(line, "*!") },
		re:      regexp.MustCompile(`^\*!(\{.*\})$`),
	},
	{
		msgType: MessageTypeError,
		matches: func(line, _ string) bool { return strings.Contains(line, ",ERR,") },
		re:      regexp.MustCompile(`^(\d{3}),ERR,(\d+)(?:,"(.*)")?$`),
		build: func(m []string) (Message, error) {
			code, err := strconv.Atoi(m[2])
			if err != nil {
				return nil, err
			}
			return ErrorMessage{ID: MessageID(m[1]), Code: code, Text: m[3]}, nil
		},
	},
	{
		msgType: MessageTypeVersion,
		matches: func(line, _ string) bool { return strings.Contains(line, "?V=") },
		re:      regexp.MustCompile(`^(\d{3}),\?V="(.*)"$`),
		build: func(m []string) (Message, error) {
			return VersionMessage{ID: MessageID(m[1]), Version: m[2]}, nil
		},
	},
	{
		msgType: MessageTypeOK,
		matches: func(_, body string) bool { return strings.HasSuffix(body, ",OK") },
		re:      regexp.MustCompile(`^(\d{3}),OK` + textSuffix),
		build: func(m []string) (Message, error) {
			return OKMessage{ID: MessageID(m[1])}, nil
		},
	},
	{
		msgType: MessageTypeRegistration,
		matches: func(_, body string) bool { return strings.HasSuffix(body, "!"+FunctionRegistration) },
		re:      regexp.MustCompile(`^(\d{3}),!F\*p` + textSuffix),
		build: func(m []string) (Message, error) {
			return RegistrationCommand{ID: MessageID(m[1])}, nil
		},
	},
	{
		msgType: MessageTypeHeatInfoRequest,
		matches: func(_, body string) bool { return strings.Contains(body, "Dh"+FunctionHeatInfoRequest) },
		re:      regexp.MustCompile(`^(\d{3}),!R(\d+)DhF\*r` + textSuffix),
		build: func(m []string) (Message, error) {
			room, err := strconv.Atoi(m[2])
			if err != nil {
				return nil, err
			}
			return HeatInfoRequest{ID: MessageID(m[1]), Room: room}, nil
		},
	},
	{
		msgType: MessageTypeTargetTemperature,
		matches: func(_, body string) bool { return strings.Contains(body, FunctionTargetTemp) },
		re:      regexp.MustCompile(`^(\d{3}),!R(\d+)F\*tP(\d+(?:\.\d+)?)` + textSuffix),
		build: func(m []string) (Message, error) {
			room, err := strconv.Atoi(m[2])
			if err != nil {
				return nil, err
			}
			temp, err := strconv.ParseFloat(m[3], 64)
			if err != nil {
				return nil, err
			}
			return TargetTemperatureCommand{ID: MessageID(m[1]), Room: room, Celsius: temp}, nil
		},
	},
	{
		msgType: MessageTypeDim,
		matches: func(_, body string) bool { return strings.Contains(body, FunctionDim) },
		re:      regexp.MustCompile(`^(\d{3}),!R(\d+)D(\d+)FdP(\d+)` + textSuffix),
		build: func(m []string) (Message, error) {
			n, err := atois(m[2], m[3], m[4])
			if err != nil {
				return nil, err
			}
			return DimCommand{ID: MessageID(m[1]), Room: n[0], Device: n[1], Level: n[2]}, nil
		},
	},
	{
		msgType: MessageTypeMood,
		matches: func(_, body string) bool { return strings.Contains(body, FunctionMood) },
		re:      regexp.MustCompile(`^(\d{3}),!R(\d+)FmP(\d+)` + textSuffix),
		build: func(m []string) (Message, error) {
			n, err := atois(m[2], m[3])
			if err != nil {
				return nil, err
			}
			return MoodCommand{ID: MessageID(m[1]), Room: n[0], Mood: n[1]}, nil
		},
	},
	{
		msgType: MessageTypeAllOff,
		matches: func(_, body string) bool { return strings.HasSuffix(body, FunctionAllOff) },
		re:      regexp.MustCompile(`^(\d{3}),!R(\d+)Fa` + textSuffix),
		build: func(m []string) (Message, error) {
			room, err := strconv.Atoi(m[2])
			if err != nil {
				return nil, err
			}
			return AllOffCommand{ID: MessageID(m[1]), Room: room}, nil
		},
	},
	{
		msgType: MessageTypeRelay,
		matches: func(_, body string) bool {
			return strings.HasSuffix(body, "F(") || strings.HasSuffix(body, "F)") || strings.HasSuffix(body, "F^")
		},
		re: regexp.MustCompile(`^(\d{3}),!R(\d+)D(\d+)F([()^])` + textSuffix),
		build: func(m []string) (Message, error) {
			n, err := atois(m[2], m[3])
			if err != nil {
				return nil, err
			}
			return RelayCommand{ID: MessageID(m[1]), Room: n[0], Device: n[1], Direction: RelayDirection(m[4][0])}, nil
		},
	},
	{
		msgType: MessageTypeOnOff,
		matches: func(_, body string) bool {
			return strings.HasSuffix(body, FunctionOn) || strings.HasSuffix(body, FunctionOff)
		},
		re: regexp.MustCompile(`^(\d{3}),!R(\d+)D(\d+)F([01])` + textSuffix),
		build: func(m []string) (Message, error) {
			n, err := atois(m[2], m[3])
			if err != nil {
				return nil, err
			}
			return OnOffCommand{ID: MessageID(m[1]), Room: n[0], Device: n[1], On: m[4] == "1"}, nil
		},
	},
}

// TextCodec encodes and decodes the legacy line protocol spoken by the
// LightwaveRF Link over UDP.
type TextCodec struct{}

var _ Codec = TextCodec{}

// Classify returns the message type a line appears to carry without fully
// parsing it. Unrecognised input yields MessageTypeUnhandled.
func (TextCodec) Classify(raw []byte) MessageType {
	if m := classifyText(normalizeLine(raw)); m != nil {
		return m.msgType
	}
	return MessageTypeUnhandled
}

// Decode parses one line received from the hub. Malformed input always
// results in a *DecodeError.
func (TextCodec) Decode(raw []byte) (Message, error) {
	line := normalizeLine(raw)
	if line == "" {
		return nil, decodeErr(raw, "empty message")
	}

	m := classifyText(line)
	if m == nil {
		return nil, decodeErr(raw, "unrecognised message")
	}

	groups := m.re.FindStringSubmatch(line)
	if groups == nil {
		return nil, decodeErr(raw, "malformed %s message", m.msgType)
	}
	if m.msgType == MessageTypeHeatInfo {
		return decodeHeatInfo(raw, groups[1])
	}

	msg, err := m.build(groups)
	if err != nil {
		return nil, decodeErr(raw, "malformed %s message: %v", m.msgType, err)
	}
	return msg, nil
}

func classifyText(line string) *textMatcher {
	if line == "" {
		return nil
	}
	body := line
	if i := strings.IndexByte(line, '|'); i >= 0 {
		body = line[:i]
	}
	for i := range textMatchers {
		if textMatchers[i].matches(line, body) {
			return &textMatchers[i]
		}
	}
	return nil
}

func decodeHeatInfo(raw []byte, body string) (Message, error) {
	var msg HeatInfoMessage
	if err := json.Unmarshal([]byte(body), &msg); err != nil {
		return nil, decodeErr(raw, "malformed heat info: %v", err)
	}
	if msg.Serial == "" {
		return nil, decodeErr(raw, "heat info without serial")
	}
	return msg, nil
}

// normalizeLine strips whitespace and the NUL padding some firmware
// versions append to UDP datagrams.
func normalizeLine(raw []byte) string {
	return string(bytes.TrimSpace(bytes.TrimRight(raw, "\x00")))
}

func atois(values ...string) ([]int, error) {
	out := make([]int, len(values))
	for i, v := range values {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, err
		}
		out[i] = n
	}
	return out, nil
}
