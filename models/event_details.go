package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var ErrDetailsKindMismatch = errors.New("details do not match event kind")

// EventDetails carries the kind-specific part of an event. Exactly one
// variant is set and it always matches Kind.
type EventDetails struct {
	Kind      EventKind
	Wedding   *WeddingDetails
	Birthday  *BirthdayDetails
	Corporate *CorporateDetails
}

type WeddingDetails struct {
	BrideName     string `json:"brideName,omitempty"`
	GroomName     string `json:"groomName,omitempty"`
	Venue         string `json:"venue,omitempty"`
	CeremonyTime  string `json:"ceremonyTime,omitempty"`
	ReceptionTime string `json:"receptionTime,omitempty"`
	DressCode     string `json:"dressCode,omitempty"`
	Story         string `json:"story,omitempty"`
}

type BirthdayDetails struct {
	CelebrantName string `json:"celebrantName,omitempty"`
	Age           int    `json:"age,omitempty"`
	Venue         string `json:"venue,omitempty"`
	StartTime     string `json:"startTime,omitempty"`
	Theme         string `json:"theme,omitempty"`
}

type CorporateDetails struct {
	Company   string   `json:"company,omitempty"`
	Host      string   `json:"host,omitempty"`
	Venue     string   `json:"venue,omitempty"`
	Agenda    []string `json:"agenda,omitempty"`
	DressCode string   `json:"dressCode,omitempty"`
}

func (d EventDetails) IsZero() bool {
	return d.Wedding == nil && d.Birthday == nil && d.Corporate == nil
}

// Validate checks that the populated variant matches Kind.
func (d EventDetails) Validate() error {
	set := 0
	if d.Wedding != nil {
		set++
		if d.Kind != KindWedding {
			return ErrDetailsKindMismatch
		}
	}
	if d.Birthday != nil {
		set++
		if d.Kind != KindBirthday {
			return ErrDetailsKindMismatch
		}
	}
	if d.Corporate != nil {
		set++
		if d.Kind != KindCorporate {
			return ErrDetailsKindMismatch
		}
	}
	if set > 1 {
		return ErrDetailsKindMismatch
	}
	return nil
}

// variantKind names the kind of the single populated variant, or "" when
// none or several are set.
func (d EventDetails) variantKind() EventKind {
	var kind EventKind
	for k, set := range map[EventKind]bool{
		KindWedding:   d.Wedding != nil,
		KindBirthday:  d.Birthday != nil,
		KindCorporate: d.Corporate != nil,
	} {
		if !set {
			continue
		}
		if kind != "" {
			return ""
		}
		kind = k
	}
	return kind
}

type detailsWire struct {
	Kind      EventKind         `json:"kind,omitempty"`
	Wedding   *WeddingDetails   `json:"wedding,omitempty"`
	Birthday  *BirthdayDetails  `json:"birthday,omitempty"`
	Corporate *CorporateDetails `json:"corporate,omitempty"`
}

func (d EventDetails) MarshalJSON() ([]byte, error) {
	return json.Marshal(detailsWire{
		Kind:      d.Kind,
		Wedding:   d.Wedding,
		Birthday:  d.Birthday,
		Corporate: d.Corporate,
	})
}

func (d *EventDetails) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*d = EventDetails{}
		return nil
	}
	var w detailsWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	out := EventDetails{Kind: w.Kind, Wedding: w.Wedding, Birthday: w.Birthday, Corporate: w.Corporate}
	if out.Kind == "" {
		out.Kind = out.variantKind()
	}
	if err := out.Validate(); err != nil {
		return err
	}
	*d = out
	return nil
}

// LegacyFields is what NormalizeExtraFields recovers from an untyped
// extension map.
type LegacyFields struct {
	Details           EventDetails
	PasswordProtected *bool
	Password          *string
}

// NormalizeExtraFields converts the old open-ended extraFields bag into the
// typed variant. The kind-specific block may sit under "<kind>Details",
// "details", "<kind>" or directly at the top level; the first hit wins.
func NormalizeExtraFields(kind EventKind, extra map[string]any) (LegacyFields, error) {
	var out LegacyFields
	if extra == nil {
		return out, nil
	}

	if v, ok := extra["passwordProtected"].(bool); ok {
		out.PasswordProtected = &v
	}
	if v, ok := extra["password"].(string); ok {
		out.Password = &v
	}

	if !kind.Valid() {
		return out, nil
	}

	var block map[string]any
	for _, key := range []string{string(kind) + "Details", "details", string(kind)} {
		if m, ok := extra[key].(map[string]any); ok {
			block = m
			break
		}
	}
	if block == nil {
		block = make(map[string]any, len(extra))
		for k, v := range extra {
			if k == "passwordProtected" || k == "password" {
				continue
			}
			block[k] = v
		}
	}
	if len(block) == 0 {
		return out, nil
	}

	raw, err := json.Marshal(block)
	if err != nil {
		return out, fmt.Errorf("encode extra fields: %w", err)
	}

	out.Details.Kind = kind
	switch kind {
	case KindWedding:
		var w WeddingDetails
		if err := json.Unmarshal(raw, &w); err != nil {
			return out, fmt.Errorf("wedding details: %w", err)
		}
		if w != (WeddingDetails{}) {
			out.Details.Wedding = &w
		}
	case KindBirthday:
		var b BirthdayDetails
		if err := json.Unmarshal(raw, &b); err != nil {
			return out, fmt.Errorf("birthday details: %w", err)
		}
		if b != (BirthdayDetails{}) {
			out.Details.Birthday = &b
		}
	case KindCorporate:
		var c CorporateDetails
		if err := json.Unmarshal(raw, &c); err != nil {
			return out, fmt.Errorf("corporate details: %w", err)
		}
		if c.Company != "" || c.Host != "" || c.Venue != "" || len(c.Agenda) > 0 || c.DressCode != "" {
			out.Details.Corporate = &c
		}
	}
	return out, nil
}

// ParseKind accepts the kind tag case-insensitively.
func ParseKind(s string) (EventKind, bool) {
	k := EventKind(strings.ToLower(strings.TrimSpace(s)))
	return k, k.Valid()
}
