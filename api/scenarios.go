/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the database with realistic
	data for testing and demos. Each scenario creates lesson masters,
	memberships, students, coaches, lessons and payouts that demonstrate
	specific reward and reconciliation rules.

AVAILABLE SCENARIOS:

	new-coach:      Coach created two months ago, first-months rate tier
	veteran-coach:  Long history, paid up to two months ago
	mixed-lessons:  Trials, membership overrides, two-person students and
	                a lesson whose master was deleted
	partially-paid: Three coaches last month: fully paid, partial, unpaid

HOW SCENARIOS WORK:
 1. Reset database (clear all data) and the history cache
 2. Create the lesson catalogue
 3. Create coaches and students
 4. Add lessons relative to the handler clock
 5. Optionally record payouts through the ledger

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "partially-paid"}

ADDING NEW SCENARIOS:
 1. Add to 'scenarios' slice with ID, name, description
 2. Create loader function: loadXxxScenario(ctx)
 3. Add case to ApplyScenario

NOTE:

	Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: Handler and its Seeder
  - store/sqlite/sqlite.go: Seeder implementation
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/warp/payout-engine/generic"
	"github.com/warp/payout-engine/payouts"
)

// Seeder is the write surface scenarios need. sqlite.Store implements it.
type Seeder interface {
	generic.CoachStore
	SaveLessonMaster(ctx context.Context, m generic.LessonMaster) error
	DeleteLessonMaster(ctx context.Context, id generic.LessonMasterID) error
	SaveMembership(ctx context.Context, m generic.Membership) error
	SaveStudent(ctx context.Context, st generic.Student) error
	SaveLessons(ctx context.Context, lessons ...generic.Lesson) error
	Reset(ctx context.Context) error
}

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "new-coach",
		Name:        "New Coach",
		Description: "Coach created two months ago, rewarded at the new-coach rate",
	},
	{
		ID:          "veteran-coach",
		Name:        "Veteran Coach",
		Description: "Three years of lessons, paid in full up to two months ago",
	},
	{
		ID:          "mixed-lessons",
		Name:        "Mixed Lessons",
		Description: "Trials, membership reward overrides, two-person lessons and a deleted master",
	},
	{
		ID:          "partially-paid",
		Name:        "Partially Paid",
		Description: "Last month: one coach paid, one partially paid, one unpaid",
	},
}

func findScenario(id string) (ScenarioDTO, bool) {
	for _, s := range scenarios {
		if s.ID == id {
			return s, true
		}
	}
	return ScenarioDTO{}, false
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	current := h.currentScenario
	h.mu.RUnlock()

	if current == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	s, _ := findScenario(current)
	writeJSON(w, http.StatusOK, s)
}

// LoadScenario loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if _, ok := findScenario(req.ScenarioID); !ok {
		writeError(w, http.StatusBadRequest, "Unknown scenario", fmt.Errorf("scenario %q", req.ScenarioID))
		return
	}

	if err := h.ApplyScenario(r.Context(), req.ScenarioID); err != nil {
		h.writeDomainError(w, r, "Failed to load scenario", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

// ResetDatabase clears all data.
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.reset(r.Context()); err != nil {
		h.writeDomainError(w, r, "Failed to reset database", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// ApplyScenario resets the store and loads scenario id.
func (h *Handler) ApplyScenario(ctx context.Context, id string) error {
	if _, ok := findScenario(id); !ok {
		return fmt.Errorf("unknown scenario %q", id)
	}
	if err := h.reset(ctx); err != nil {
		return err
	}

	var err error
	switch id {
	case "new-coach":
		err = h.loadNewCoachScenario(ctx)
	case "veteran-coach":
		err = h.loadVeteranCoachScenario(ctx)
	case "mixed-lessons":
		err = h.loadMixedLessonsScenario(ctx)
	case "partially-paid":
		err = h.loadPartiallyPaidScenario(ctx)
	}
	// Loaders compute slips while seeding; drop anything cached mid-way.
	h.clearCache()
	if err != nil {
		return fmt.Errorf("load scenario %s: %w", id, err)
	}

	h.mu.Lock()
	h.currentScenario = id
	h.mu.Unlock()

	h.Logger.InfoContext(ctx, "scenario loaded", slog.String("scenario", id))
	return nil
}

func (h *Handler) reset(ctx context.Context) error {
	if h.Seeder == nil {
		return generic.ErrStoreRequired
	}
	if err := h.Seeder.Reset(ctx); err != nil {
		return err
	}
	h.clearCache()

	h.mu.Lock()
	h.currentScenario = ""
	h.mu.Unlock()
	return nil
}

// clearCache empties in-process caches. Shared caches expire by TTL.
func (h *Handler) clearCache() {
	if c, ok := h.Cache.(interface{ Clear() }); ok {
		c.Clear()
	}
}

// =============================================================================
// SHARED FIXTURES
// =============================================================================

const (
	masterRegular generic.LessonMasterID = "master-regular"
	masterLong    generic.LessonMasterID = "master-long"
	masterTrial   generic.LessonMasterID = "master-trial"
)

func (h *Handler) seedCatalogue(ctx context.Context) error {
	masters := []generic.LessonMaster{
		{ID: masterRegular, Title: "Personal Training 50min", UnitPrice: 8000},
		{ID: masterLong, Title: "Personal Training 80min", UnitPrice: 12000},
		{ID: masterTrial, Title: "Trial Session", UnitPrice: 3000, IsTrial: true},
	}
	for _, m := range masters {
		if err := h.Seeder.SaveLessonMaster(ctx, m); err != nil {
			return err
		}
	}
	return nil
}

// monthStart returns the first instant of the month offset months from now.
func (h *Handler) monthStart(offset int) time.Time {
	now := h.Clock.Now().In(h.loc())
	return generic.AddMonths(generic.StartOfMonth(now), offset)
}

// lessonsIn builds n lessons for coach spread over the month starting at
// start. Lessons never land after now.
func (h *Handler) lessonsIn(coach generic.CoachID, start time.Time, n int, master generic.LessonMasterID, student *generic.Student, prefix string) []generic.Lesson {
	now := h.Clock.Now()
	days := generic.DaysInMonth(start)
	out := make([]generic.Lesson, 0, n)
	for i := range n {
		at := start.AddDate(0, 0, (i*days)/max(n, 1)).Add(10 * time.Hour)
		if at.After(now) {
			break
		}
		l := generic.Lesson{
			ID:         generic.LessonID(fmt.Sprintf("%s-%s-%03d", prefix, generic.MonthKeyOf(start), i)),
			CoachID:    coach,
			LessonDate: at,
			Price:      8000,
			Master:     &generic.LessonMaster{ID: master},
			Student:    student,
		}
		out = append(out, l)
	}
	return out
}

func (h *Handler) payInFull(ctx context.Context, coach generic.CoachID, month generic.MonthKey, note string) error {
	slip, err := h.Service.Slip(ctx, coach, month, h.Clock.Now())
	if err != nil {
		return err
	}
	_, err = h.Ledger.Create(ctx, payouts.PayoutInput{
		CoachID:        string(coach),
		TargetMonth:    string(month),
		Amount:         int64(slip.Settlement.FinalAmount),
		Status:         string(generic.PayoutPaid),
		Note:           note,
		IdempotencyKey: fmt.Sprintf("scenario-%s-%s", coach, month),
		CreatedBy:      "scenario",
	})
	return err
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func (h *Handler) loadNewCoachScenario(ctx context.Context) error {
	if err := h.seedCatalogue(ctx); err != nil {
		return err
	}

	created := h.monthStart(-2).AddDate(0, 0, 3)
	coach := generic.Coach{
		ID:                 "coach-001",
		FullName:           "Aiko Tanaka",
		Email:              "aiko@example.com",
		CreatedAt:          created,
		InvoiceRegistered:  true,
		WithholdingEnabled: true,
	}
	if err := h.Seeder.SaveCoach(ctx, coach); err != nil {
		return err
	}

	var lessons []generic.Lesson
	for offset, n := range map[int]int{-2: 6, -1: 14, 0: 8} {
		lessons = append(lessons, h.lessonsIn(coach.ID, h.monthStart(offset), n, masterRegular, nil, "new")...)
	}
	return h.Seeder.SaveLessons(ctx, lessons...)
}

func (h *Handler) loadVeteranCoachScenario(ctx context.Context) error {
	if err := h.seedCatalogue(ctx); err != nil {
		return err
	}

	coach := generic.Coach{
		ID:                 "coach-002",
		FullName:           "Kenji Sato",
		Email:              "kenji@example.com",
		CreatedAt:          h.monthStart(-36),
		InvoiceRegistered:  true,
		WithholdingEnabled: true,
	}
	if err := h.Seeder.SaveCoach(ctx, coach); err != nil {
		return err
	}

	// Busy months followed by a quieter stretch.
	var lessons []generic.Lesson
	for offset := -13; offset <= 0; offset++ {
		n := 42
		if offset > -5 {
			n = 28
		}
		master := masterRegular
		if offset%3 == 0 {
			master = masterLong
		}
		lessons = append(lessons, h.lessonsIn(coach.ID, h.monthStart(offset), n, master, nil, "vet")...)
	}
	if err := h.Seeder.SaveLessons(ctx, lessons...); err != nil {
		return err
	}

	for offset := -13; offset <= -2; offset++ {
		month := generic.MonthKeyOf(h.monthStart(offset))
		if err := h.payInFull(ctx, coach.ID, month, "monthly transfer"); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) loadMixedLessonsScenario(ctx context.Context) error {
	if err := h.seedCatalogue(ctx); err != nil {
		return err
	}
	retired := generic.LessonMaster{ID: "master-retired", Title: "Group Stretch (retired)", UnitPrice: 5000}
	if err := h.Seeder.SaveLessonMaster(ctx, retired); err != nil {
		return err
	}

	premiumPrice := generic.Money(10000)
	premium := generic.Membership{
		ID:   "membership-premium",
		Name: "Premium",
		LessonRewards: []generic.MembershipLessonReward{
			{LessonMasterID: masterRegular, RewardPrice: &premiumPrice},
			{LessonMasterID: masterLong},
		},
	}
	if err := h.Seeder.SaveMembership(ctx, premium); err != nil {
		return err
	}

	students := []generic.Student{
		{ID: "student-001", FullName: "Yuki Mori", Membership: &premium},
		{ID: "student-002", FullName: "Hana & Ren Ito", IsTwoPersonLesson: true},
		{ID: "student-003", FullName: "Sora Kato"},
	}
	for _, st := range students {
		if err := h.Seeder.SaveStudent(ctx, st); err != nil {
			return err
		}
	}

	coach := generic.Coach{
		ID:                 "coach-003",
		FullName:           "Mika Yamada",
		Email:              "mika@example.com",
		CreatedAt:          h.monthStart(-18),
		InvoiceRegistered:  false,
		WithholdingEnabled: true,
	}
	if err := h.Seeder.SaveCoach(ctx, coach); err != nil {
		return err
	}

	start := h.monthStart(-1)
	var lessons []generic.Lesson
	lessons = append(lessons, h.lessonsIn(coach.ID, start, 10, masterRegular, &students[0], "premium")...)
	lessons = append(lessons, h.lessonsIn(coach.ID, start, 6, masterLong, &students[0], "premium-long")...)
	lessons = append(lessons, h.lessonsIn(coach.ID, start, 8, masterRegular, &students[1], "pair")...)
	lessons = append(lessons, h.lessonsIn(coach.ID, start, 4, masterTrial, &students[2], "trial")...)
	lessons = append(lessons, h.lessonsIn(coach.ID, start, 2, masterTrial, &students[1], "pair-trial")...)
	lessons = append(lessons, h.lessonsIn(coach.ID, start, 3, retired.ID, &students[2], "retired")...)
	if err := h.Seeder.SaveLessons(ctx, lessons...); err != nil {
		return err
	}

	// The retired lessons keep their dangling master reference.
	return h.Seeder.DeleteLessonMaster(ctx, retired.ID)
}

func (h *Handler) loadPartiallyPaidScenario(ctx context.Context) error {
	if err := h.seedCatalogue(ctx); err != nil {
		return err
	}

	coaches := []generic.Coach{
		{ID: "coach-101", FullName: "Daichi Abe", Email: "daichi@example.com", InvoiceRegistered: true, WithholdingEnabled: true},
		{ID: "coach-102", FullName: "Emi Fujita", Email: "emi@example.com", InvoiceRegistered: true, WithholdingEnabled: false},
		{ID: "coach-103", FullName: "Goro Hayashi", Email: "goro@example.com", InvoiceRegistered: false, WithholdingEnabled: true, OverrideRate: "0.7"},
	}
	var lessons []generic.Lesson
	for i := range coaches {
		coaches[i].CreatedAt = h.monthStart(-24)
		if err := h.Seeder.SaveCoach(ctx, coaches[i]); err != nil {
			return err
		}
		for offset := -3; offset <= -1; offset++ {
			lessons = append(lessons, h.lessonsIn(coaches[i].ID, h.monthStart(offset), 20+5*i, masterRegular, nil, string(coaches[i].ID))...)
		}
	}
	if err := h.Seeder.SaveLessons(ctx, lessons...); err != nil {
		return err
	}

	month := generic.MonthKeyOf(h.monthStart(-1))

	// coach-101: paid in full.
	if err := h.payInFull(ctx, coaches[0].ID, month, "monthly transfer"); err != nil {
		return err
	}

	// coach-102: half paid, a pending transfer queued for the rest.
	slip, err := h.Service.Slip(ctx, coaches[1].ID, month, h.Clock.Now())
	if err != nil {
		return err
	}
	half := int64(slip.Settlement.FinalAmount) / 2
	for i, in := range []payouts.PayoutInput{
		{Amount: half, Status: string(generic.PayoutPaid), Note: "first installment"},
		{Amount: 10000, Status: string(generic.PayoutPending), Note: "second installment"},
	} {
		in.CoachID = string(coaches[1].ID)
		in.TargetMonth = string(month)
		in.IdempotencyKey = fmt.Sprintf("scenario-%s-%s-%d", coaches[1].ID, month, i)
		in.CreatedBy = "scenario"
		if _, err := h.Ledger.Create(ctx, in); err != nil {
			return err
		}
	}

	// coach-103: nothing recorded.
	return nil
}
