package schedule

// Language selects between the two label sets and word orders the
// application ships with.
type Language string

const (
	LanguageKorean  Language = "ko"
	LanguageEnglish Language = "en"
)

const (
	koreanAM = "오전"
	koreanPM = "오후"
)

// ParseLanguage maps a stored language tag to a Language.  Unknown tags fall
// back to Korean.
func ParseLanguage(tag string) Language {
	return Language(tag).normalize()
}

func (l Language) normalize() Language {
	if l == LanguageEnglish {
		return LanguageEnglish
	}
	return LanguageKorean
}

type labelSet struct {
	asNeeded string
	overdue  string
	periods  map[Period]string
	statuses map[DoseStatus]string
	weekdays [7]string
}

var labels = map[Language]labelSet{
	LanguageKorean: {
		asNeeded: "필요시",
		overdue:  "복용 시간 지남",
		periods: map[Period]string{
			PeriodMorning:   "아침",
			PeriodAfternoon: "점심",
			PeriodEvening:   "저녁",
			PeriodNight:     "밤",
		},
		statuses: map[DoseStatus]string{
			StatusUpcoming: "예정",
			StatusPending:  "복용 시간",
			StatusOverdue:  "지남",
			StatusTaken:    "복용 완료",
			StatusSkipped:  "건너뜀",
			StatusAsNeeded: "필요시",
		},
		weekdays: [7]string{"월", "화", "수", "목", "금", "토", "일"},
	},
	LanguageEnglish: {
		asNeeded: "As needed",
		overdue:  "Overdue",
		periods: map[Period]string{
			PeriodMorning:   "Morning",
			PeriodAfternoon: "Afternoon",
			PeriodEvening:   "Evening",
			PeriodNight:     "Night",
		},
		statuses: map[DoseStatus]string{
			StatusUpcoming: "Upcoming",
			StatusPending:  "Due now",
			StatusOverdue:  "Overdue",
			StatusTaken:    "Taken",
			StatusSkipped:  "Skipped",
			StatusAsNeeded: "As needed",
		},
		weekdays: [7]string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"},
	},
}

// AsNeededLabel is the localized label shown in place of a clock time for
// as-needed medicines.
func AsNeededLabel(lang Language) string {
	return labels[lang.normalize()].asNeeded
}

// OverdueLabel is the localized heading of the overdue dose group.
func OverdueLabel(lang Language) string {
	return labels[lang.normalize()].overdue
}

// StatusLabel localizes a dose status for display.
func StatusLabel(s DoseStatus, lang Language) string {
	if l, ok := labels[lang.normalize()].statuses[s]; ok {
		return l
	}
	return string(s)
}

// Label localizes a period of day for display.
func (p Period) Label(lang Language) string {
	if l, ok := labels[lang.normalize()].periods[p]; ok {
		return l
	}
	return string(p)
}
