package domain

import (
	"encoding/json"
	"strings"
)

// BanStatus is the fire-ban legality state for an area or forest.
type BanStatus string

const (
	BanBanned    BanStatus = "BANNED"
	BanNotBanned BanStatus = "NOT_BANNED"
	BanUnknown   BanStatus = "UNKNOWN"
)

func (s BanStatus) rank() int {
	switch s {
	case BanBanned:
		return 2
	case BanNotBanned:
		return 1
	default:
		return 0
	}
}

// ParseBanStatus maps the fire-ban source's free text onto a BanStatus.
func ParseBanStatus(raw string) BanStatus {
	s := NormalizeName(raw)
	switch {
	case s == "":
		return BanUnknown
	case strings.HasPrefix(s, "no ") || strings.Contains(s, "not banned") ||
		strings.Contains(s, "fires permitted") || strings.Contains(s, "no fire ban"):
		return BanNotBanned
	case strings.Contains(s, "ban"):
		return BanBanned
	default:
		return BanUnknown
	}
}

// FireBanArea is one area from the fire-ban source, the system of record for
// forest identity.
type FireBanArea struct {
	AreaName    string   `json:"areaName" yaml:"areaName"`
	AreaURL     string   `json:"areaUrl,omitempty" yaml:"areaUrl"`
	Status      string   `json:"status" yaml:"status"`
	ForestNames []string `json:"forestNames" yaml:"forestNames"`
}

// FacilityEntry is one forest from the facilities directory.
type FacilityEntry struct {
	ForestName string          `json:"forestName" yaml:"forestName"`
	ForestURL  string          `json:"forestUrl,omitempty" yaml:"forestUrl"`
	Facilities map[string]bool `json:"facilities" yaml:"facilities"`
}

// FacilityValue is a tri-state facility flag. Unknown means the forest could
// not be matched to the directory and is distinct from false.
type FacilityValue int8

const (
	FacilityUnknown FacilityValue = iota
	FacilityAbsent
	FacilityPresent
)

func (v FacilityValue) MarshalJSON() ([]byte, error) {
	switch v {
	case FacilityPresent:
		return []byte("true"), nil
	case FacilityAbsent:
		return []byte("false"), nil
	default:
		return []byte("null"), nil
	}
}

func (v *FacilityValue) UnmarshalJSON(b []byte) error {
	var p *bool
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	switch {
	case p == nil:
		*v = FacilityUnknown
	case *p:
		*v = FacilityPresent
	default:
		*v = FacilityAbsent
	}
	return nil
}

func (v FacilityValue) String() string {
	switch v {
	case FacilityPresent:
		return "yes"
	case FacilityAbsent:
		return "no"
	default:
		return "unknown"
	}
}
