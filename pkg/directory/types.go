package directory

import (
	"bytes"
	"encoding/json"
)

// Ref is a related object. The API nests it as an object on reads,
// but a bare id is accepted as well.
type Ref struct {
	ID   int    `json:"id"`
	Name string `json:"name,omitempty"`
}

func (r *Ref) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] != '{' && !bytes.Equal(b, []byte("null")) {
		return json.Unmarshal(b, &r.ID)
	}
	type plain Ref
	return json.Unmarshal(b, (*plain)(r))
}

type Nameserver struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type View struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

type Zone struct {
	ID         int    `json:"id"`
	Name       string `json:"name"`
	Status     string `json:"status,omitempty"`
	DefaultTTL int    `json:"default_ttl,omitempty"`
	View       *Ref   `json:"view,omitempty"`
}

type Record struct {
	ID       int    `json:"id"`
	Zone     *Ref   `json:"zone,omitempty"`
	View     *Ref   `json:"view,omitempty"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	Value    string `json:"value"`
	TTL      *int   `json:"ttl,omitempty"`
	Priority *int   `json:"priority,omitempty"`
	Weight   *int   `json:"weight,omitempty"`
	Port     *int   `json:"port,omitempty"`
	Target   string `json:"target,omitempty"`
}

type listResponse[T any] struct {
	Count   int `json:"count"`
	Results []T `json:"results"`
}
