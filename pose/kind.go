package pose

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Kind is one of the static poses the game asks the player to perform
type Kind int

const (
	HandsUp Kind = iota
	TPose
	Squat
)

// Kinds lists every pose in cycle order
var Kinds = [3]Kind{HandsUp, TPose, Squat}

var kindNames = [...]string{
	HandsUp: "hands_up",
	TPose:   "t_pose",
	Squat:   "squat",
}

// Valid reports whether k is one of the recognised poses
func (k Kind) Valid() bool {
	return k >= HandsUp && k <= Squat
}

func (k Kind) String() string {
	if !k.Valid() {
		return fmt.Sprintf("Kind(%d)", int(k))
	}

	return kindNames[k]
}

// ParseKind returns the Kind for its name, eg: "t_pose"
func ParseKind(name string) (Kind, error) {

	name = strings.ToLower(strings.TrimSpace(name))

	for _, k := range Kinds {
		if kindNames[k] == name {
			return k, nil
		}
	}

	return 0, fmt.Errorf("unknown pose %q", name)
}

// MarshalText implements encoding.TextMarshaler
func (k Kind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("cannot marshal invalid pose %d", int(k))
	}

	return []byte(kindNames[k]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (k *Kind) UnmarshalText(text []byte) error {

	parsed, err := ParseKind(string(text))

	if err != nil {
		return err
	}

	*k = parsed
	return nil
}

// Set is a set of poses
type Set uint8

// SetOf returns a Set holding the given poses
func SetOf(kinds ...Kind) Set {
	var s Set

	for _, k := range kinds {
		s = s.Add(k)
	}

	return s
}

// Add returns a copy of the set with k included
func (s Set) Add(k Kind) Set {
	if !k.Valid() {
		return s
	}

	return s | 1<<uint(k)
}

// Has reports whether k is in the set
func (s Set) Has(k Kind) bool {
	return k.Valid() && s&(1<<uint(k)) != 0
}

// Kinds returns the members of the set in cycle order
func (s Set) Kinds() []Kind {
	kinds := make([]Kind, 0, len(Kinds))

	for _, k := range Kinds {
		if s.Has(k) {
			kinds = append(kinds, k)
		}
	}

	return kinds
}

func (s Set) String() string {
	names := make([]string, 0, len(Kinds))

	for _, k := range s.Kinds() {
		names = append(names, k.String())
	}

	return "{" + strings.Join(names, ",") + "}"
}

// MarshalJSON encodes the set as a list of pose names
func (s Set) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Kinds())
}

// UnmarshalJSON decodes a list of pose names
func (s *Set) UnmarshalJSON(data []byte) error {

	var kinds []Kind

	if err := json.Unmarshal(data, &kinds); err != nil {
		return err
	}

	*s = SetOf(kinds...)
	return nil
}
