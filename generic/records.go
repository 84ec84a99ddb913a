package generic

import "time"

// =============================================================================
// LESSON - Read-only record from the scheduling/reporting subsystem
// =============================================================================

// Lesson is one completed lesson. Price is what the customer was charged;
// the coach reward is computed separately from the master's unit price.
type Lesson struct {
	ID         LessonID
	CoachID    CoachID
	LessonDate time.Time
	Price      Money

	// Master is nil when the lesson references a deleted or unlinked master.
	Master  *LessonMaster
	Student *Student
}

// LessonMaster is the catalogue entry a lesson was booked against.
type LessonMaster struct {
	ID        LessonMasterID
	Title     string
	UnitPrice Money
	IsTrial   bool
}

// Student is the subset of student data the reward rules look at.
type Student struct {
	ID                StudentID
	FullName          string
	IsTwoPersonLesson bool
	Membership        *Membership
}

// Membership carries per-master reward price configuration, in the order
// it was configured.
type Membership struct {
	ID            MembershipID
	Name          string
	LessonRewards []MembershipLessonReward
}

// MembershipLessonReward configures the reward base price for one master.
// A nil RewardPrice is a configured-but-empty override: the master's unit
// price applies.
type MembershipLessonReward struct {
	LessonMasterID LessonMasterID
	RewardPrice    *Money
}

// RewardPriceFor returns the configured override for master, if any.
// The first matching entry wins. ok is false when no entry is configured
// for master or the configured entry is empty.
func (m *Membership) RewardPriceFor(master LessonMasterID) (price Money, ok bool) {
	if m == nil {
		return 0, false
	}
	for _, lr := range m.LessonRewards {
		if lr.LessonMasterID != master {
			continue
		}
		if lr.RewardPrice == nil {
			return 0, false
		}
		return *lr.RewardPrice, true
	}
	return 0, false
}

// =============================================================================
// COACH - Metadata maintained by the admin workflow
// =============================================================================

// Coach is the metadata needed to roll up and settle a coach's rewards.
type Coach struct {
	ID        CoachID
	FullName  string
	Email     string
	CreatedAt time.Time

	// Tax configuration.
	InvoiceRegistered  bool
	WithholdingEnabled bool

	// OverrideRate, when set and non-zero, replaces the classified tier rate.
	// Stored as a decimal string ("0.65").
	OverrideRate string
}

// =============================================================================
// PAYOUT TRANSACTION - Externally owned ledger entry
// =============================================================================

type PayoutStatus string

const (
	PayoutPaid    PayoutStatus = "paid"
	PayoutPending PayoutStatus = "pending"
)

// Valid reports whether s is a known status.
func (s PayoutStatus) Valid() bool {
	return s == PayoutPaid || s == PayoutPending
}

// Toggled flips paid and pending.
func (s PayoutStatus) Toggled() PayoutStatus {
	if s == PayoutPaid {
		return PayoutPending
	}
	return PayoutPaid
}

// PayoutTransaction is one manually recorded transfer to a coach.
type PayoutTransaction struct {
	ID             PayoutID
	CoachID        CoachID
	TargetMonth    MonthKey
	Amount         Money
	Status         PayoutStatus
	PaidAt         *time.Time
	Note           string
	IdempotencyKey string

	// Audit fields
	CreatedBy string
	CreatedAt time.Time
	UpdatedAt time.Time
}
