package store

import (
	"testing"

	"github.com/dukerupert/questboard/internal/database"
	"github.com/dukerupert/questboard/internal/model"
	"github.com/dukerupert/questboard/internal/schedule"
)

func newTestStores(t *testing.T) (*TodoStore, *UserStore) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("enable foreign keys: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewTodoStore(db), NewUserStore(db)
}

func testDate(t *testing.T, s string) schedule.Date {
	t.Helper()
	d, err := schedule.ParseDate(s)
	if err != nil {
		t.Fatalf("parse date %q: %v", s, err)
	}
	return d
}

func TestTodoCreateDerivesCountdown(t *testing.T) {
	ts, us := newTestStores(t)
	user, _ := us.Create("Milo", "#FF8800")

	todo, err := ts.Create(CreateTodoParams{
		UserID:           &user.ID,
		Title:            "Practice piano",
		EstimatedMinutes: 20,
		SpecificDate:     "2026-01-05",
	})
	if err != nil {
		t.Fatalf("create todo: %v", err)
	}
	if todo.RemainingSeconds != 1200 {
		t.Errorf("remaining_seconds = %d, want 1200", todo.RemainingSeconds)
	}
	if todo.Completed {
		t.Error("new todo should not be completed")
	}
	if len(todo.RecurrenceDays) != 0 {
		t.Errorf("recurrence_days = %v, want empty", todo.RecurrenceDays)
	}
}

func TestListForDateOneOff(t *testing.T) {
	ts, us := newTestStores(t)
	user, _ := us.Create("Milo", "#FF8800")

	_, err := ts.Create(CreateTodoParams{
		UserID:           &user.ID,
		Title:            "Return library books",
		EstimatedMinutes: 15,
		SpecificDate:     "2026-01-05",
	})
	if err != nil {
		t.Fatalf("create todo: %v", err)
	}

	todos, err := ts.ListForDate(user.ID, testDate(t, "2026-01-05"))
	if err != nil {
		t.Fatalf("list for date: %v", err)
	}
	if len(todos) != 1 {
		t.Fatalf("got %d todos on its date, want 1", len(todos))
	}

	todos, err = ts.ListForDate(user.ID, testDate(t, "2026-01-06"))
	if err != nil {
		t.Fatalf("list for other date: %v", err)
	}
	if len(todos) != 0 {
		t.Errorf("got %d todos on another date, want 0", len(todos))
	}
}

func TestListForDateWeekly(t *testing.T) {
	ts, us := newTestStores(t)
	user, _ := us.Create("Milo", "#FF8800")

	// Monday, Wednesday, Friday.
	_, err := ts.Create(CreateTodoParams{
		UserID:           &user.ID,
		Title:            "Feed the fish",
		EstimatedMinutes: 5,
		RecurrenceType:   model.RecurrenceWeekly,
		RecurrenceDays:   []int{1, 3, 5},
	})
	if err != nil {
		t.Fatalf("create todo: %v", err)
	}

	cases := []struct {
		date string
		want int
	}{
		{"2026-01-04", 0}, // Sunday
		{"2026-01-05", 1}, // Monday
		{"2026-01-06", 0}, // Tuesday
		{"2026-01-07", 1}, // Wednesday
		{"2026-01-09", 1}, // Friday
		{"2026-01-10", 0}, // Saturday
	}
	for _, tc := range cases {
		todos, err := ts.ListForDate(user.ID, testDate(t, tc.date))
		if err != nil {
			t.Fatalf("list for %s: %v", tc.date, err)
		}
		if len(todos) != tc.want {
			t.Errorf("%s: got %d todos, want %d", tc.date, len(todos), tc.want)
		}
	}
}

func TestExceptionHidesSingleOccurrence(t *testing.T) {
	ts, us := newTestStores(t)
	user, _ := us.Create("Milo", "#FF8800")

	todo, _ := ts.Create(CreateTodoParams{
		UserID:           &user.ID,
		Title:            "Make bed",
		EstimatedMinutes: 5,
		RecurrenceType:   model.RecurrenceDaily,
	})

	if err := ts.InsertException(todo.ID, testDate(t, "2026-01-05")); err != nil {
		t.Fatalf("insert exception: %v", err)
	}
	// Repeating the same exception should not error.
	if err := ts.InsertException(todo.ID, testDate(t, "2026-01-05")); err != nil {
		t.Fatalf("repeat exception: %v", err)
	}

	todos, err := ts.ListForDate(user.ID, testDate(t, "2026-01-05"))
	if err != nil {
		t.Fatalf("list excepted date: %v", err)
	}
	if len(todos) != 0 {
		t.Errorf("got %d todos on excepted date, want 0", len(todos))
	}

	todos, err = ts.ListForDate(user.ID, testDate(t, "2026-01-06"))
	if err != nil {
		t.Fatalf("list next date: %v", err)
	}
	if len(todos) != 1 {
		t.Errorf("got %d todos the day after, want 1", len(todos))
	}
}

func TestRecurringCompletionOverlay(t *testing.T) {
	ts, us := newTestStores(t)
	user, _ := us.Create("Milo", "#FF8800")

	todo, _ := ts.Create(CreateTodoParams{
		UserID:           &user.ID,
		Title:            "Walk the dog",
		EstimatedMinutes: 15,
		RecurrenceType:   model.RecurrenceDaily,
	})

	actual := 840
	if err := ts.UpsertCompletion(todo.ID, testDate(t, "2026-01-05"), 17, false, false, &actual); err != nil {
		t.Fatalf("upsert completion: %v", err)
	}

	todos, err := ts.ListForDate(user.ID, testDate(t, "2026-01-05"))
	if err != nil {
		t.Fatalf("list completed date: %v", err)
	}
	if len(todos) != 1 {
		t.Fatalf("got %d todos, want 1", len(todos))
	}
	got := todos[0]
	if !got.Completed {
		t.Error("todo should read completed on the overlay date")
	}
	if got.PointsEarned != 17 {
		t.Errorf("points_earned = %d, want 17", got.PointsEarned)
	}
	if got.ActualTimeSecs == nil || *got.ActualTimeSecs != 840 {
		t.Errorf("actual_time_seconds = %v, want 840", got.ActualTimeSecs)
	}

	// The base row stays untouched: the next day reads fresh.
	todos, err = ts.ListForDate(user.ID, testDate(t, "2026-01-06"))
	if err != nil {
		t.Fatalf("list next date: %v", err)
	}
	if len(todos) != 1 {
		t.Fatalf("got %d todos on next date, want 1", len(todos))
	}
	if todos[0].Completed {
		t.Error("todo should read incomplete the day after completion")
	}
	if todos[0].RemainingSeconds != 900 {
		t.Errorf("next-day remaining_seconds = %d, want 900", todos[0].RemainingSeconds)
	}
}

func TestRecurringFreshDayResetsTimer(t *testing.T) {
	ts, us := newTestStores(t)
	user, _ := us.Create("Milo", "#FF8800")

	todo, _ := ts.Create(CreateTodoParams{
		UserID:           &user.ID,
		Title:            "Read",
		EstimatedMinutes: 30,
		RecurrenceType:   model.RecurrenceDaily,
	})

	// Mid-timer state from Jan 5: half the countdown left, pause burned.
	remaining := 900
	pause := true
	activity := "2026-01-05"
	if _, err := ts.UpdateFields(todo.ID, TodoPatch{
		RemainingSeconds: &remaining,
		PauseUsed:        &pause,
		LastActivityDate: &activity,
	}); err != nil {
		t.Fatalf("update fields: %v", err)
	}

	todos, _ := ts.ListForDate(user.ID, testDate(t, "2026-01-05"))
	if todos[0].RemainingSeconds != 900 || !todos[0].PauseUsed {
		t.Errorf("same day = %d remaining / pause %v, want 900 / true",
			todos[0].RemainingSeconds, todos[0].PauseUsed)
	}

	todos, _ = ts.ListForDate(user.ID, testDate(t, "2026-01-06"))
	if todos[0].RemainingSeconds != 1800 {
		t.Errorf("fresh day remaining_seconds = %d, want 1800", todos[0].RemainingSeconds)
	}
	if todos[0].PauseUsed {
		t.Error("fresh day should clear pause_used")
	}
}

func TestListForDateIncompleteFirst(t *testing.T) {
	ts, us := newTestStores(t)
	user, _ := us.Create("Milo", "#FF8800")

	// Newest first by default, so the completed todo would lead the list
	// if completion did not push it to the back.
	_, _ = ts.Create(CreateTodoParams{
		UserID: &user.ID, Title: "Pending", EstimatedMinutes: 5, SpecificDate: "2026-01-05",
	})
	done, _ := ts.Create(CreateTodoParams{
		UserID: &user.ID, Title: "Done", EstimatedMinutes: 5, SpecificDate: "2026-01-05",
	})

	completed := true
	if _, err := ts.UpdateFields(done.ID, TodoPatch{Completed: &completed}); err != nil {
		t.Fatalf("mark completed: %v", err)
	}

	todos, err := ts.ListForDate(user.ID, testDate(t, "2026-01-05"))
	if err != nil {
		t.Fatalf("list for date: %v", err)
	}
	if len(todos) != 2 {
		t.Fatalf("got %d todos, want 2", len(todos))
	}
	if todos[0].Title != "Pending" || todos[1].Title != "Done" {
		t.Errorf("order = [%s, %s], want incomplete first", todos[0].Title, todos[1].Title)
	}
}

func TestUpdateFieldsPartial(t *testing.T) {
	ts, us := newTestStores(t)
	user, _ := us.Create("Milo", "#FF8800")

	todo, _ := ts.Create(CreateTodoParams{
		UserID: &user.ID, Title: "Homework", Description: "math pages", EstimatedMinutes: 25,
		SpecificDate: "2026-01-05",
	})

	title := "Homework (science)"
	got, err := ts.UpdateFields(todo.ID, TodoPatch{Title: &title})
	if err != nil {
		t.Fatalf("update fields: %v", err)
	}
	if got.Title != "Homework (science)" {
		t.Errorf("title = %q, want %q", got.Title, "Homework (science)")
	}
	if got.Description != "math pages" {
		t.Errorf("description changed to %q, want untouched", got.Description)
	}
	if got.EstimatedMinutes != 25 {
		t.Errorf("estimated_minutes changed to %d, want 25", got.EstimatedMinutes)
	}
}

func TestOpenListAndClaim(t *testing.T) {
	ts, us := newTestStores(t)
	alice, _ := us.Create("Alice", "#FF8800")
	ben, _ := us.Create("Ben", "#0088FF")

	todo, err := ts.Create(CreateTodoParams{
		Title: "Water the plants", EstimatedMinutes: 10, SpecificDate: "2026-01-05", IsOpenList: true,
	})
	if err != nil {
		t.Fatalf("create open todo: %v", err)
	}
	if todo.UserID != nil {
		t.Error("open todo should start unowned")
	}

	open, err := ts.ListOpenList()
	if err != nil {
		t.Fatalf("list open list: %v", err)
	}
	if len(open) != 1 {
		t.Fatalf("open list has %d todos, want 1", len(open))
	}

	ok, err := ts.Claim(todo.ID, alice.ID)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if !ok {
		t.Fatal("first claim should succeed")
	}

	// Second claimant loses the race.
	ok, err = ts.Claim(todo.ID, ben.ID)
	if err != nil {
		t.Fatalf("second claim: %v", err)
	}
	if ok {
		t.Error("second claim should fail")
	}

	got, _ := ts.GetByID(todo.ID)
	if got.ClaimedByUserID == nil || *got.ClaimedByUserID != alice.ID {
		t.Errorf("claimed_by = %v, want %d", got.ClaimedByUserID, alice.ID)
	}
	if got.UserID == nil || *got.UserID != alice.ID {
		t.Errorf("user_id = %v, want %d", got.UserID, alice.ID)
	}

	// Claimed todos leave the open list.
	open, _ = ts.ListOpenList()
	if len(open) != 0 {
		t.Errorf("open list has %d todos after claim, want 0", len(open))
	}

	// Claimed open-list todos show up on the claimant's day.
	todos, _ := ts.ListForDate(alice.ID, testDate(t, "2026-01-05"))
	if len(todos) != 1 {
		t.Errorf("claimant sees %d todos, want 1", len(todos))
	}
}

func TestClaimNonOpenTodo(t *testing.T) {
	ts, us := newTestStores(t)
	user, _ := us.Create("Milo", "#FF8800")

	todo, _ := ts.Create(CreateTodoParams{
		UserID: &user.ID, Title: "Private task", EstimatedMinutes: 5, SpecificDate: "2026-01-05",
	})

	ok, err := ts.Claim(todo.ID, user.ID)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if ok {
		t.Error("claiming a non-open todo should fail")
	}
}

func TestUpsertCompletionOverwrites(t *testing.T) {
	ts, us := newTestStores(t)
	user, _ := us.Create("Milo", "#FF8800")

	todo, _ := ts.Create(CreateTodoParams{
		UserID: &user.ID, Title: "Tidy room", EstimatedMinutes: 10, RecurrenceType: model.RecurrenceDaily,
	})
	date := testDate(t, "2026-01-05")

	if err := ts.UpsertCompletion(todo.ID, date, 10, false, false, nil); err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	if err := ts.UpsertCompletion(todo.ID, date, 12, true, false, nil); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	c, err := ts.GetCompletion(todo.ID, date)
	if err != nil {
		t.Fatalf("get completion: %v", err)
	}
	if c == nil {
		t.Fatal("completion missing")
	}
	if c.PointsEarned != 12 || !c.PauseUsed {
		t.Errorf("completion = %d points / pause %v, want 12 / true", c.PointsEarned, c.PauseUsed)
	}
}

func TestDailyCompletionRollup(t *testing.T) {
	ts, us := newTestStores(t)
	user, _ := us.Create("Milo", "#FF8800")
	date := testDate(t, "2026-01-05")

	if got, err := ts.GetDailyCompletion(user.ID, date); err != nil || got != nil {
		t.Fatalf("get before upsert = %v, %v; want nil, nil", got, err)
	}

	if err := ts.UpsertDailyCompletion(user.ID, date, true); err != nil {
		t.Fatalf("upsert daily completion: %v", err)
	}
	got, err := ts.GetDailyCompletion(user.ID, date)
	if err != nil {
		t.Fatalf("get daily completion: %v", err)
	}
	if got == nil || !got.AllCompletedOnTime {
		t.Fatalf("daily completion = %+v, want all_completed_on_time true", got)
	}

	// A late completion on the same day downgrades the verdict.
	if err := ts.UpsertDailyCompletion(user.ID, date, false); err != nil {
		t.Fatalf("downgrade daily completion: %v", err)
	}
	got, _ = ts.GetDailyCompletion(user.ID, date)
	if got.AllCompletedOnTime {
		t.Error("verdict should be overwritten to false")
	}
}

func TestListPerfectDates(t *testing.T) {
	ts, us := newTestStores(t)
	user, _ := us.Create("Milo", "#FF8800")

	for _, d := range []struct {
		date    string
		perfect bool
	}{
		{"2026-01-03", true},
		{"2026-01-04", false},
		{"2026-01-05", true},
		{"2026-01-06", true},
	} {
		if err := ts.UpsertDailyCompletion(user.ID, testDate(t, d.date), d.perfect); err != nil {
			t.Fatalf("upsert %s: %v", d.date, err)
		}
	}

	dates, err := ts.ListPerfectDates(user.ID)
	if err != nil {
		t.Fatalf("list perfect dates: %v", err)
	}
	want := []string{"2026-01-06", "2026-01-05", "2026-01-03"}
	if len(dates) != len(want) {
		t.Fatalf("got %d dates, want %d", len(dates), len(want))
	}
	for i, w := range want {
		if dates[i].String() != w {
			t.Errorf("dates[%d] = %s, want %s", i, dates[i], w)
		}
	}
}

func TestDeleteTodoCascadesCompletions(t *testing.T) {
	ts, us := newTestStores(t)
	user, _ := us.Create("Milo", "#FF8800")

	todo, _ := ts.Create(CreateTodoParams{
		UserID: &user.ID, Title: "Sweep", EstimatedMinutes: 10, RecurrenceType: model.RecurrenceDaily,
	})
	date := testDate(t, "2026-01-05")
	if err := ts.UpsertCompletion(todo.ID, date, 10, false, false, nil); err != nil {
		t.Fatalf("upsert completion: %v", err)
	}

	if err := ts.Delete(todo.ID); err != nil {
		t.Fatalf("delete todo: %v", err)
	}

	got, err := ts.GetByID(todo.ID)
	if err != nil {
		t.Fatalf("get deleted todo: %v", err)
	}
	if got != nil {
		t.Error("expected nil for deleted todo")
	}
	c, err := ts.GetCompletion(todo.ID, date)
	if err != nil {
		t.Fatalf("get orphaned completion: %v", err)
	}
	if c != nil {
		t.Error("completion should cascade with its todo")
	}
}
