package models

// RosterEntry is one member of an external league roster. Number is nil
// or non-positive when the league has not assigned the member a car yet.
type RosterEntry struct {
	ExternalMemberID int64  `json:"cust_id"`
	DisplayName      string `json:"display_name"`
	Number           *int   `json:"car_number,omitempty"`
}

func (e RosterEntry) AssignedNumber() (int, bool) {
	if e.Number == nil || *e.Number <= 0 {
		return 0, false
	}
	return *e.Number, true
}
