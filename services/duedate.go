package services

import "time"

// DueDates are the computed stage deadlines for one item.
type DueDates struct {
	ReviewerDue time.Time `json:"reviewer_due"`
	QcrDue      time.Time `json:"qcr_due"`
}

// defaultCalendar has no holidays; see Calendar.
var defaultCalendar = NewCalendar()

// ComputeDueDates derives the stage deadlines from the contractual due
// date: QC review is due one business day before the contractor due
// date, and the initial review two business days before that. A reviewer
// due date that would land before the item was even received is clamped
// to the received date.
//
// priority is part of the signature because every caller has it on hand
// and an SLA tier may want it someday; today every priority gets the
// same offsets. Keep it that way unless the contract language changes.
func ComputeDueDates(dateReceived, contractorDue time.Time, priority string) DueDates {
	return ComputeDueDatesOn(defaultCalendar, dateReceived, contractorDue, priority)
}

// ComputeDueDatesOn is ComputeDueDates against an explicit calendar.
func ComputeDueDatesOn(cal *Calendar, dateReceived, contractorDue time.Time, _ string) DueDates {
	qcrDue := cal.SubtractBusinessDays(contractorDue, 1)
	reviewerDue := cal.SubtractBusinessDays(qcrDue, 2)
	if beforeDate(reviewerDue, dateReceived) {
		reviewerDue = dateReceived
	}
	// Degenerate turnaround (contractor due on or before receipt) must
	// still satisfy qcrDue >= reviewerDue.
	if beforeDate(qcrDue, reviewerDue) {
		qcrDue = reviewerDue
	}
	return DueDates{ReviewerDue: reviewerDue, QcrDue: qcrDue}
}
