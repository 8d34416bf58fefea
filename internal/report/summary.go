// Package report builds the dashboard views over a set of machines.
package report

import (
	"sort"
	"time"

	"greenhouse-backend/internal/model"
	"greenhouse-backend/internal/schedule"
)

// DueMachine is a machine in the due-for-repair list with its live schedule.
type DueMachine struct {
	Machine model.Machine   `json:"machine"`
	Status  schedule.Status `json:"schedule"`
}

// Dashboard bundles every view the dashboard renders.
type Dashboard struct {
	GeneratedAt time.Time              `json:"generatedAt"`
	ByLocation  map[model.Location]int `json:"byLocation"`
	ByStatus    map[schedule.Band]int  `json:"byStatus"`
	Due         []DueMachine           `json:"dueForRepair"`
	Invalid     []string               `json:"invalidMachineIds,omitempty"`
}

// SummarizeByLocation counts machines per location.
func SummarizeByLocation(machines []model.Machine) map[model.Location]int {
	counts := make(map[model.Location]int)
	for _, m := range machines {
		counts[m.Location]++
	}
	return counts
}

// SummarizeByStatus counts machines per band, evaluated live at now. Machines
// whose anchors cannot be evaluated are left out of the counts.
func SummarizeByStatus(machines []model.Machine, now time.Time) map[schedule.Band]int {
	counts := make(map[schedule.Band]int)
	for i := range machines {
		st, err := schedule.Live(&machines[i], now)
		if err != nil {
			continue
		}
		counts[st.Band]++
	}
	return counts
}

// DueForRepair returns the machines whose live remaining days are at most
// schedule.DueSoonDays, most urgent first and then by name.
func DueForRepair(machines []model.Machine, now time.Time) []DueMachine {
	due := make([]DueMachine, 0)
	for i := range machines {
		st, err := schedule.Live(&machines[i], now)
		if err != nil || !schedule.IsDueSoon(st.RemainingDays) {
			continue
		}
		due = append(due, DueMachine{Machine: machines[i], Status: st})
	}
	sort.SliceStable(due, func(i, j int) bool {
		if due[i].Status.RemainingDays != due[j].Status.RemainingDays {
			return due[i].Status.RemainingDays < due[j].Status.RemainingDays
		}
		return due[i].Machine.Name < due[j].Machine.Name
	})
	return due
}

// Build computes the full dashboard at now.
func Build(machines []model.Machine, now time.Time) Dashboard {
	var invalid []string
	for i := range machines {
		if _, err := schedule.Live(&machines[i], now); err != nil {
			invalid = append(invalid, machines[i].ID)
		}
	}
	return Dashboard{
		GeneratedAt: now,
		ByLocation:  SummarizeByLocation(machines),
		ByStatus:    SummarizeByStatus(machines, now),
		Due:         DueForRepair(machines, now),
		Invalid:     invalid,
	}
}
