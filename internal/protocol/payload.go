package protocol

import (
	"encoding/json"

	"github.com/information-sharing-networks/authcore/internal/apperrors"
)

// UnknownUserID is the user id of a payload that did not carry idMbr.
const UnknownUserID int64 = -1

// LoginResult is the decoded response of any auth operation.
// Status true comes with Data and no Error; status false comes with Error.
type LoginResult struct {
	Status bool
	Data   *LoginPayload
	Error  *apperrors.AuthError
}

// LoginPayload is the data object returned by login, check-login and check-version.
//
// Only the identity fields are interpreted here. Info, Limits and Structure belong to other parts of
// the application and are kept exactly as received.
type LoginPayload struct {
	Agencies      []AgencyRef     `json:"agences"`
	ServerVersion int64           `json:"version"`
	UserID        int64           `json:"idMbr"`
	DeviceAddress string          `json:"adrMac"`
	Mail          string          `json:"mail"`
	HasContract   bool            `json:"hasContrat"`
	Info          json.RawMessage `json:"info,omitempty"`
	Limits        json.RawMessage `json:"limits,omitempty"`
	PlanActions   string          `json:"planActions"`
	Structure     json.RawMessage `json:"structure,omitempty"`
}

func (p *LoginPayload) UnmarshalJSON(b []byte) error {
	type plain LoginPayload
	v := plain{UserID: UnknownUserID}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*p = LoginPayload(v)
	return nil
}

// HasUserID reports whether the server sent a user id.
func (p *LoginPayload) HasUserID() bool {
	return p.UserID != UnknownUserID
}

// DecodeInfo unmarshals the info object into v.
func (p *LoginPayload) DecodeInfo(v any) error {
	if len(p.Info) == 0 {
		return nil
	}
	return json.Unmarshal(p.Info, v)
}

// AgencyRef is one entry of the agency list, kept as received.
type AgencyRef struct {
	raw json.RawMessage
}

func (a AgencyRef) MarshalJSON() ([]byte, error) {
	if len(a.raw) == 0 {
		return []byte("null"), nil
	}
	return a.raw, nil
}

func (a *AgencyRef) UnmarshalJSON(b []byte) error {
	a.raw = append(a.raw[:0], b...)
	return nil
}

// Decode unmarshals the agency into v.
func (a AgencyRef) Decode(v any) error {
	return json.Unmarshal(a.raw, v)
}
