package dto

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"
)

var (
	errNotAnID  = errors.New("value is not an id")
	errNotAList = errors.New("value is not an id list")
)

var jsonNull = []byte("null")

// parseID accepts a JSON number or a string holding an integer. Fractional
// numbers are truncated.
func parseID(raw json.RawMessage) (int64, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return 0, errNotAnID
	}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, errNotAnID
		}
		id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
		if err != nil {
			return 0, errNotAnID
		}
		return id, nil
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		var n json.Number
		if err := json.Unmarshal(raw, &n); err != nil {
			return 0, errNotAnID
		}
		if id, err := n.Int64(); err == nil {
			return id, nil
		}
		f, err := n.Float64()
		if err != nil || math.IsInf(f, 0) || math.Abs(f) > math.MaxInt64 {
			return 0, errNotAnID
		}
		return int64(f), nil
	}
	return 0, errNotAnID
}

// isBlankMarker reports whether raw is null, "" or "null".
func isBlankMarker(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	if bytes.Equal(raw, jsonNull) {
		return true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return false
	}
	s = strings.TrimSpace(s)
	return s == "" || s == "null"
}

// OptionalID is a nullable reference such as parent_id. Blank markers (null,
// "" and "null") clear the reference.
type OptionalID struct {
	Set     bool
	Null    bool
	ID      int64
	Invalid bool
}

// UnmarshalJSON implements json.Unmarshaler. It never fails; bad input sets Invalid.
func (o *OptionalID) UnmarshalJSON(b []byte) error {
	*o = OptionalID{Set: true}
	if isBlankMarker(b) {
		o.Null = true
		return nil
	}
	id, err := parseID(b)
	if err != nil {
		o.Invalid = true
		return nil
	}
	o.ID = id
	return nil
}

// Ptr returns the id or nil when cleared or absent.
func (o OptionalID) Ptr() *int64 {
	if !o.Set || o.Null || o.Invalid {
		return nil
	}
	id := o.ID
	return &id
}

// IDList is a list of user ids that also accepts a single scalar.
type IDList struct {
	Set    bool
	Null   bool
	Blank  bool
	Values []int64
	Err    error
}

// UnmarshalJSON implements json.Unmarshaler. It never fails; bad input sets Err.
func (l *IDList) UnmarshalJSON(b []byte) error {
	*l = IDList{Set: true}
	trimmed := bytes.TrimSpace(b)
	if bytes.Equal(trimmed, jsonNull) {
		l.Null = true
		return nil
	}

	var items []json.RawMessage
	switch {
	case len(trimmed) > 0 && trimmed[0] == '[':
		if err := json.Unmarshal(trimmed, &items); err != nil {
			l.Err = errNotAList
			return nil
		}
	case len(trimmed) > 0 && (trimmed[0] == '"' || trimmed[0] == '-' || (trimmed[0] >= '0' && trimmed[0] <= '9')):
		l.Blank = isBlankMarker(trimmed)
		items = []json.RawMessage{trimmed}
	default:
		l.Err = errNotAList
		return nil
	}

	for _, item := range items {
		id, err := parseID(item)
		if err != nil {
			l.Err = errNotAnID
			l.Values = nil
			return nil
		}
		l.Values = append(l.Values, id)
	}
	return nil
}

// IsListShapeError reports whether err came from a non list value.
func IsListShapeError(err error) bool {
	return errors.Is(err, errNotAList)
}

// AssigneeRef is the assigned_to_id of a new task: a user id, empty for self,
// or the all researchers sentinel.
type AssigneeRef struct {
	ID             int64
	Self           bool
	AllResearchers bool
	Invalid        bool
}

// IsSelf reports whether the task goes to its creator. An absent key decodes to
// the zero value, which also means self.
func (a AssigneeRef) IsSelf() bool {
	return a.Self || (a.ID == 0 && !a.AllResearchers && !a.Invalid)
}

// AllResearchersSentinel fans a task out to every active researcher.
const AllResearchersSentinel = "all_researchers"

// UnmarshalJSON implements json.Unmarshaler. It never fails; bad input sets Invalid.
func (a *AssigneeRef) UnmarshalJSON(b []byte) error {
	*a = AssigneeRef{}
	trimmed := bytes.TrimSpace(b)
	if bytes.Equal(trimmed, jsonNull) {
		a.Self = true
		return nil
	}
	var s string
	if err := json.Unmarshal(trimmed, &s); err == nil {
		switch s {
		case AllResearchersSentinel:
			a.AllResearchers = true
			return nil
		case "":
			a.Self = true
			return nil
		}
	}
	id, err := parseID(trimmed)
	if err != nil {
		a.Invalid = true
		return nil
	}
	if id == 0 && trimmed[0] != '"' {
		a.Self = true
		return nil
	}
	a.ID = id
	return nil
}

// ChatTarget is "group" or a peer user id given as number or string.
type ChatTarget struct {
	Group   bool
	PeerID  int64
	Invalid bool
}

// ParseChatTarget parses the query string form of a target.
func ParseChatTarget(raw string) ChatTarget {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.EqualFold(raw, "group") {
		return ChatTarget{Group: true}
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return ChatTarget{Invalid: true}
	}
	return ChatTarget{PeerID: id}
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *ChatTarget) UnmarshalJSON(b []byte) error {
	trimmed := bytes.TrimSpace(b)
	if bytes.Equal(trimmed, jsonNull) {
		*t = ChatTarget{Group: true}
		return nil
	}
	var s string
	if err := json.Unmarshal(trimmed, &s); err == nil {
		*t = ParseChatTarget(s)
		return nil
	}
	id, err := parseID(trimmed)
	if err != nil {
		*t = ChatTarget{Invalid: true}
		return nil
	}
	*t = ChatTarget{PeerID: id}
	return nil
}

// Flag is a boolean that also accepts 1/0 and "true"/"1"/"yes" strings.
type Flag bool

// UnmarshalJSON implements json.Unmarshaler.
func (f *Flag) UnmarshalJSON(b []byte) error {
	trimmed := bytes.TrimSpace(b)
	var v interface{}
	if err := json.Unmarshal(trimmed, &v); err != nil {
		return err
	}
	switch val := v.(type) {
	case bool:
		*f = Flag(val)
	case float64:
		*f = val != 0
	case string:
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "1", "true", "yes", "on":
			*f = true
		default:
			*f = false
		}
	default:
		*f = false
	}
	return nil
}
