package userpool

import (
	"fmt"
	"time"
)

// UsernameAttribute names a user attribute that may stand in for the username at lookup
type UsernameAttribute string

const (
	AttributeEmail       UsernameAttribute = "email"
	AttributePhoneNumber UsernameAttribute = "phone_number"
)

// AttributeSub is the attribute the pool keeps equal to the username
const AttributeSub = "sub"

// supportedUsernameAttributes is the closed set accepted in Options
var supportedUsernameAttributes = map[UsernameAttribute]struct{}{
	AttributeEmail:       {},
	AttributePhoneNumber: {},
}

// Options is the pool configuration persisted under "Options"
type Options struct {
	// UsernameAttributes are tried in order when no user has the identifier as username
	UsernameAttributes []UsernameAttribute `json:"UsernameAttributes"`
}

// Validate rejects unknown and repeated attribute names
func (o Options) Validate() error {
	seen := make(map[UsernameAttribute]struct{}, len(o.UsernameAttributes))
	for _, attr := range o.UsernameAttributes {
		if _, ok := supportedUsernameAttributes[attr]; !ok {
			return fmt.Errorf("%w: unsupported username attribute %q (supported: %s, %s)",
				ErrInvalidOptions, attr, AttributeEmail, AttributePhoneNumber)
		}
		if _, dup := seen[attr]; dup {
			return fmt.Errorf("%w: username attribute %q listed twice", ErrInvalidOptions, attr)
		}
		seen[attr] = struct{}{}
	}
	return nil
}

// HasUsernameAttributes reports whether any alias attribute is configured
func (o Options) HasUsernameAttributes() bool {
	return len(o.UsernameAttributes) > 0
}

// ParseUsernameAttributes converts configuration strings into validated attributes
func ParseUsernameAttributes(names []string) ([]UsernameAttribute, error) {
	attrs := make([]UsernameAttribute, 0, len(names))
	for _, name := range names {
		attrs = append(attrs, UsernameAttribute(name))
	}
	if err := (Options{UsernameAttributes: attrs}).Validate(); err != nil {
		return nil, err
	}
	return attrs, nil
}

// Attribute is one name/value pair of a user
type Attribute struct {
	Name  string `json:"Name"`
	Value string `json:"Value"`
}

// UserStatus is stored as given; the pool never interprets it
type UserStatus string

const (
	UserStatusUnconfirmed         UserStatus = "UNCONFIRMED"
	UserStatusConfirmed           UserStatus = "CONFIRMED"
	UserStatusArchived            UserStatus = "ARCHIVED"
	UserStatusCompromised         UserStatus = "COMPROMISED"
	UserStatusUnknown             UserStatus = "UNKNOWN"
	UserStatusResetRequired       UserStatus = "RESET_REQUIRED"
	UserStatusForceChangePassword UserStatus = "FORCE_CHANGE_PASSWORD"
)

// User is the record persisted under Users.<Username>
type User struct {
	Username             string      `json:"Username"`
	Password             string      `json:"Password"`
	UserStatus           UserStatus  `json:"UserStatus"`
	ConfirmationCode     string      `json:"ConfirmationCode,omitempty"`
	Attributes           []Attribute `json:"Attributes"`
	UserCreateDate       int64       `json:"UserCreateDate"`
	UserLastModifiedDate int64       `json:"UserLastModifiedDate"`
	Enabled              bool        `json:"Enabled"`
}

// NewUser builds an enabled, unconfirmed user created at now
func NewUser(username, password string, attributes []Attribute, now time.Time) User {
	ts := EpochMillis(now)
	return User{
		Username:             username,
		Password:             password,
		UserStatus:           UserStatusUnconfirmed,
		Attributes:           attributes,
		UserCreateDate:       ts,
		UserLastModifiedDate: ts,
		Enabled:              true,
	}
}

// Attribute returns the value of the first attribute called name
func (u User) Attribute(name string) (string, bool) {
	for _, attr := range u.Attributes {
		if attr.Name == name {
			return attr.Value, true
		}
	}
	return "", false
}

// EpochMillis is the timestamp unit of UserCreateDate and UserLastModifiedDate
func EpochMillis(t time.Time) int64 {
	return t.UnixMilli()
}

// withSub returns a copy of attrs holding exactly one sub equal to username
// An existing sub keeps its position; otherwise sub is prepended
func withSub(attrs []Attribute, username string) []Attribute {
	out := make([]Attribute, 0, len(attrs)+1)
	found := false
	for _, attr := range attrs {
		if attr.Name != AttributeSub {
			out = append(out, attr)
			continue
		}
		if found {
			continue
		}
		found = true
		out = append(out, Attribute{Name: AttributeSub, Value: username})
	}
	if !found {
		out = append([]Attribute{{Name: AttributeSub, Value: username}}, out...)
	}
	return out
}
