package planner

import (
	"sort"
	"time"
)

// ComputeStreaks counts, per habit, the consecutive logged days ending today.
// A habit not yet logged today keeps its streak if yesterday was logged.
func ComputeStreaks(habits []Habit, logs []HabitLog, today string) []HabitStreak {
	days := make(map[string]map[string]struct{}, len(habits))
	for _, l := range logs {
		set, ok := days[l.HabitID]
		if !ok {
			set = make(map[string]struct{})
			days[l.HabitID] = set
		}
		set[l.Date] = struct{}{}
	}

	todayT, err := time.Parse(DateLayout, today)
	out := make([]HabitStreak, 0, len(habits))
	for _, h := range habits {
		set := days[h.ID]
		streak := HabitStreak{HabitID: h.ID, LastDoneDate: lastDate(set)}
		if err == nil && len(set) > 0 {
			cursor := todayT
			if _, ok := set[today]; !ok {
				cursor = cursor.AddDate(0, 0, -1)
			}
			for {
				if _, ok := set[cursor.Format(DateLayout)]; !ok {
					break
				}
				streak.CurrentStreak++
				cursor = cursor.AddDate(0, 0, -1)
			}
		}
		out = append(out, streak)
	}
	return out
}

func lastDate(set map[string]struct{}) string {
	if len(set) == 0 {
		return ""
	}
	dates := make([]string, 0, len(set))
	for d := range set {
		dates = append(dates, d)
	}
	sort.Strings(dates)
	return dates[len(dates)-1]
}
