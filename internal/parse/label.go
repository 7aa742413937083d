package parse

import (
	"fmt"
	"regexp"
	"strings"

	"calendar-sync-backend/internal/model"
)

var spaceRe = regexp.MustCompile(`[\s_-]+`)

var entryTypes = map[string]model.EntryType{
	"lecture":   model.EntryTypeLecture,
	"vorlesung": model.EntryTypeLecture,
	"vo":        model.EntryTypeLecture,
	"exercise":  model.EntryTypeExercise,
	"übung":     model.EntryTypeExercise,
	"uebung":    model.EntryTypeExercise,
	"ue":        model.EntryTypeExercise,
	"tutorial":  model.EntryTypeExercise,
	"exam":      model.EntryTypeExam,
	"prüfung":   model.EntryTypeExam,
	"pruefung":  model.EntryTypeExam,
	"klausur":   model.EntryTypeExam,
	"barred":    model.EntryTypeBarred,
	"gesperrt":  model.EntryTypeBarred,
	"sperre":    model.EntryTypeBarred,
	"other":     model.EntryTypeOther,
	"sonstiges": model.EntryTypeOther,
}

var statuses = map[string]model.EventStatus{
	"fix":        model.StatusConfirmed,
	"confirmed":  model.StatusConfirmed,
	"geplant":    model.StatusPlanned,
	"planned":    model.StatusPlanned,
	"vorlaeufig": model.StatusTentative,
	"vorläufig":  model.StatusTentative,
	"tentative":  model.StatusTentative,
	"abgesagt":   model.StatusCancelled,
	"cancelled":  model.StatusCancelled,
	"canceled":   model.StatusCancelled,
}

func normalize(raw string) string {
	return spaceRe.ReplaceAllString(strings.ToLower(strings.TrimSpace(raw)), " ")
}

// EntryType maps an upstream entry type label onto the closed EntryType set.
// Unknown labels yield EntryTypeOther together with an error describing the label.
func EntryType(raw string) (model.EntryType, error) {
	if t, ok := entryTypes[normalize(raw)]; ok {
		return t, nil
	}
	return model.EntryTypeOther, fmt.Errorf("unknown entry type %q", raw)
}

// Status maps an upstream status label onto the closed EventStatus set.
// Unknown labels yield StatusTentative, which is never promoted.
func Status(raw string) (model.EventStatus, error) {
	if s, ok := statuses[normalize(raw)]; ok {
		return s, nil
	}
	return model.StatusTentative, fmt.Errorf("unknown event status %q", raw)
}
