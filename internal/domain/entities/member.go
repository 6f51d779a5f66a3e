package entities

import (
	"fmt"
	"time"
)

// Member is a registered reviewer as stored in the relational database.
type Member struct {
	MemberNo  int64     `json:"member_no" db:"member_no"`
	MemberID  string    `json:"member_id" db:"member_id"`
	Name      string    `json:"name" db:"name"`
	Email     string    `json:"email,omitempty" db:"email"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// MemberSummary is the reviewer identity attached to a review in search responses.
type MemberSummary struct {
	MemberNo int64  `json:"member_no"`
	MemberID string `json:"member_id,omitempty"`
	Name     string `json:"name"`
	// Synthesized is true when no member record existed and the name was derived from MemberNo.
	Synthesized bool `json:"-"`
}

// Summary projects the member for display.
func (m *Member) Summary() *MemberSummary {
	name := m.Name
	if name == "" {
		name = FallbackMemberName(m.MemberNo)
	}
	return &MemberSummary{MemberNo: m.MemberNo, MemberID: m.MemberID, Name: name}
}

// FallbackMemberName is the display name used when a reviewer has no member record.
func FallbackMemberName(memberNo int64) string {
	return fmt.Sprintf("회원%d", memberNo)
}

// SynthesizedMember returns the summary for a reviewer without a member record.
func SynthesizedMember(memberNo int64) *MemberSummary {
	return &MemberSummary{
		MemberNo:    memberNo,
		Name:        FallbackMemberName(memberNo),
		Synthesized: true,
	}
}
