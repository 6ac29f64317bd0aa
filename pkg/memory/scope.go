package memory

import (
	"fmt"
	"strings"
)

// separator joins the three segments of a scope key
const separator = "::"

// wildcardToken marks a segment that matches any value at its level
const wildcardToken = "_"

// Segment is one position of a scope key: either a specific id or the
// wildcard. Constructed only through Specific and Wildcard, so a
// serialized key can always be parsed back unambiguously.
type Segment struct {
	id       string
	wildcard bool
}

// Wildcard returns the segment that matches any value at its level
func Wildcard() Segment {
	return Segment{wildcard: true}
}

// Specific returns a segment for the given id. Ids that would collide
// with the key syntax are rejected: empty, the wildcard token itself,
// or anything containing the separator.
func Specific(id string) (Segment, error) {
	if id == "" {
		return Segment{}, fmt.Errorf("scope segment must not be empty")
	}
	if id == wildcardToken {
		return Segment{}, fmt.Errorf("scope segment %q collides with the wildcard token", id)
	}
	if strings.Contains(id, separator) {
		return Segment{}, fmt.Errorf("scope segment %q must not contain %q", id, separator)
	}
	return Segment{id: id}, nil
}

// IsWildcard reports whether the segment matches any value
func (s Segment) IsWildcard() bool {
	return s.wildcard
}

// ID returns the specific id; empty for the wildcard
func (s Segment) ID() string {
	return s.id
}

// String renders the segment in key form
func (s Segment) String() string {
	if s.wildcard {
		return wildcardToken
	}
	return s.id
}

// Key is a three-part memory scope: agency, client, user. The agency
// segment is always specific; client and user may be wildcards. The
// three shapes in use:
//
//	agency::_::_            agency-wide
//	agency::client::_       client-level
//	agency::client::user    user-level (client may be wildcard)
type Key struct {
	Agency Segment
	Client Segment
	User   Segment
}

// AgencyScope builds the agency-wide key agency::_::_
func AgencyScope(agencyID string) (Key, error) {
	agency, err := Specific(agencyID)
	if err != nil {
		return Key{}, fmt.Errorf("invalid agency id: %w", err)
	}
	return Key{Agency: agency, Client: Wildcard(), User: Wildcard()}, nil
}

// ClientScope builds the client-level key agency::client::_
func ClientScope(agencyID, clientID string) (Key, error) {
	agency, err := Specific(agencyID)
	if err != nil {
		return Key{}, fmt.Errorf("invalid agency id: %w", err)
	}
	client, err := Specific(clientID)
	if err != nil {
		return Key{}, fmt.Errorf("invalid client id: %w", err)
	}
	return Key{Agency: agency, Client: client, User: Wildcard()}, nil
}

// UserScope builds the user-level key agency::client::user. An empty
// clientID leaves the client segment as the wildcard, yielding
// agency::_::user.
func UserScope(agencyID, userID, clientID string) (Key, error) {
	agency, err := Specific(agencyID)
	if err != nil {
		return Key{}, fmt.Errorf("invalid agency id: %w", err)
	}
	user, err := Specific(userID)
	if err != nil {
		return Key{}, fmt.Errorf("invalid user id: %w", err)
	}

	client := Wildcard()
	if clientID != "" {
		client, err = Specific(clientID)
		if err != nil {
			return Key{}, fmt.Errorf("invalid client id: %w", err)
		}
	}
	return Key{Agency: agency, Client: client, User: user}, nil
}

// String serializes the key as agency::client::user
func (k Key) String() string {
	return k.Agency.String() + separator + k.Client.String() + separator + k.User.String()
}

// ParseKey parses a serialized scope key. The agency segment must be
// specific.
func ParseKey(s string) (Key, error) {
	parts := strings.Split(s, separator)
	if len(parts) != 3 {
		return Key{}, fmt.Errorf("scope key %q must have exactly three segments", s)
	}

	agency, err := Specific(parts[0])
	if err != nil {
		return Key{}, fmt.Errorf("invalid agency segment in %q: %w", s, err)
	}

	client, err := parseSegment(parts[1])
	if err != nil {
		return Key{}, fmt.Errorf("invalid client segment in %q: %w", s, err)
	}
	user, err := parseSegment(parts[2])
	if err != nil {
		return Key{}, fmt.Errorf("invalid user segment in %q: %w", s, err)
	}

	return Key{Agency: agency, Client: client, User: user}, nil
}

func parseSegment(s string) (Segment, error) {
	if s == wildcardToken {
		return Wildcard(), nil
	}
	return Specific(s)
}
