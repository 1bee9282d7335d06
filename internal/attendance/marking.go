package attendance

import (
	"context"
	"fmt"
	"sort"

	"github.com/pkg/errors"
)

// SheetRow is one enrolled student on a marking sheet.
type SheetRow struct {
	Student Student `json:"student"`
	Status  Status  `json:"status"`
	Remarks string  `json:"remarks"`
	Marked  bool    `json:"marked"` // a stored record backs this row
}

// MarkingSheet lists every enrolled student of a session with the current or default status.
type MarkingSheet struct {
	Session Session    `json:"session"`
	Rows    []SheetRow `json:"rows"`
}

// MarkEntry is the submitted status of one student.
type MarkEntry struct {
	Status  Status `json:"status" form:"status" binding:"required,attstatus"`
	Remarks string `json:"remarks" form:"remarks"`
}

// OpenMarkingSheet builds the marking sheet of a session created by the lecturer p.
// Students without a stored record default to absent; the default is not persisted.
func (s *Service) OpenMarkingSheet(ctx context.Context, p Principal, sessionID string) (MarkingSheet, error) {
	sess, err := s.ownedSession(ctx, p, sessionID)
	if err != nil {
		return MarkingSheet{}, err
	}
	students, err := s.store.ListEnrolledStudents(ctx, sess.CourseID)
	if err != nil {
		return MarkingSheet{}, err
	}
	records, err := s.store.ListRecords(ctx, RecordFilter{SessionID: sess.ID})
	if err != nil {
		return MarkingSheet{}, err
	}
	byStudent := make(map[string]Record, len(records))
	for _, r := range records {
		byStudent[r.StudentID] = r
	}

	sheet := MarkingSheet{Session: sess, Rows: make([]SheetRow, 0, len(students))}
	for _, st := range students {
		row := SheetRow{Student: st, Status: StatusAbsent}
		if r, ok := byStudent[st.UserID]; ok {
			row.Status = r.Status
			row.Remarks = r.Remarks
			row.Marked = true
		}
		sheet.Rows = append(sheet.Rows, row)
	}
	return sheet, nil
}

// SubmitMarkingSheet upserts one record per enrolled student of the session in a single transaction.
// entries is keyed by student user id and must cover every currently enrolled student.
func (s *Service) SubmitMarkingSheet(ctx context.Context, p Principal, sessionID string, entries map[string]MarkEntry) (int, error) {
	sess, err := s.ownedSession(ctx, p, sessionID)
	if err != nil {
		return 0, err
	}
	students, err := s.store.ListEnrolledStudents(ctx, sess.CourseID)
	if err != nil {
		return 0, err
	}

	var fe fieldErrors
	enrolled := make(map[string]bool, len(students))
	records := make([]Record, 0, len(students))
	for _, st := range students {
		enrolled[st.UserID] = true
		entry, ok := entries[st.UserID]
		switch {
		case !ok:
			fe.add(statusField(st.UserID), "this field is required")
			continue
		case !entry.Status.Valid():
			fe.add(statusField(st.UserID), fmt.Sprintf("select a valid choice, %q is not one of the available choices", entry.Status))
			continue
		}
		records = append(records, Record{
			SessionID: sess.ID,
			StudentID: st.UserID,
			Status:    entry.Status,
			Remarks:   cleanString(entry.Remarks),
		})
	}
	for _, id := range sortedKeys(entries) {
		if !enrolled[id] {
			fe.add(statusField(id), "student is not enrolled in this course")
		}
	}
	if err := fe.err("invalid attendance sheet"); err != nil {
		return 0, err
	}
	if len(records) == 0 {
		return 0, nil
	}
	if err := s.store.UpsertRecords(ctx, sess.ID, records, s.now()); err != nil {
		return 0, errors.Wrapf(err, "mark session %s", sess.ID)
	}
	return len(records), nil
}

func statusField(studentID string) string { return "status_" + studentID }

func sortedKeys(entries map[string]MarkEntry) []string {
	ids := make([]string, 0, len(entries))
	for id := range entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
