package pinning

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// StudentProfileType is the type label written into pinned profiles.
const StudentProfileType = "Student ID"

// StudentProfile is the JSON document pinned for STUDENT_ID credentials.
type StudentProfile struct {
	Name           string    `json:"name"`
	StudentAddress string    `json:"studentAddress"`
	Type           string    `json:"type"`
	Issued         time.Time `json:"issued"`
}

// NewStudentProfile builds the profile for a new student ID.
func NewStudentProfile(name, studentAddress string, issued time.Time) StudentProfile {
	return StudentProfile{
		Name:           name,
		StudentAddress: studentAddress,
		Type:           StudentProfileType,
		Issued:         issued.UTC(),
	}
}

// ParseStudentProfile decodes a profile fetched from the gateway. The
// document must be a JSON object; every field is optional. Numbers and
// booleans are coerced to strings and an unparseable issue time becomes
// the zero time.
func ParseStudentProfile(b []byte) (*StudentProfile, error) {
	var raw map[string]any
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, fmt.Errorf("%w: profile is not a JSON object: %v", ErrInvalidResponse, err)
	}

	p := &StudentProfile{
		Name:           coerceString(raw["name"]),
		StudentAddress: coerceString(raw["studentAddress"]),
		Type:           coerceString(raw["type"]),
	}
	if p.Type == "" {
		p.Type = StudentProfileType
	}
	if issued := coerceString(raw["issued"]); issued != "" {
		if t, err := time.Parse(time.RFC3339Nano, issued); err == nil {
			p.Issued = t
		}
	}
	return p, nil
}

func coerceString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		return ""
	}
}
