// Package validate checks the structural and cross-collection integrity of
// clients, workers and tasks and produces an ordered report.
package validate

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"alloc-validator/internal/common"
	"alloc-validator/internal/diagnostic"
	"alloc-validator/internal/entity"
)

const (
	// MsgMissingID is reported for every entity whose ID is empty.
	MsgMissingID = "Required ID is missing."
	// FieldSkillCoverage is the field of global coverage errors.
	FieldSkillCoverage = "Skill Coverage"

	minPriority = 1
	maxPriority = 5
	// busyRequestThreshold is the number of requests above which a
	// priority-1 client is reported as an anomaly.
	busyRequestThreshold = 5
)

var phaseRange = regexp.MustCompile(`^\d+-\d+$`)

// DuplicateMessage returns the message for a repeated domain id.
func DuplicateMessage(id string) string {
	return fmt.Sprintf("Duplicate ID found: %s.", id)
}

// index holds the lookups shared by every check.
type index struct {
	taskIDs        map[string]struct{}
	workerSkills   map[string]struct{}
	requiredSkills common.OrderedSet
}

func buildIndex(set entity.Collections) *index {
	idx := &index{
		taskIDs:      make(map[string]struct{}, len(set.Tasks)),
		workerSkills: make(map[string]struct{}),
	}

	for _, t := range set.Tasks {
		if t.TaskID != "" {
			idx.taskIDs[t.TaskID] = struct{}{}
		}

		for _, s := range t.RequiredSkills {
			idx.requiredSkills.Add(s)
		}
	}

	for _, w := range set.Workers {
		for _, s := range w.Skills {
			idx.workerSkills[s] = struct{}{}
		}
	}

	return idx
}

func (idx *index) hasTask(id string) bool {
	_, ok := idx.taskIDs[id]
	return ok
}

func (idx *index) hasSkill(s string) bool {
	_, ok := idx.workerSkills[s]
	return ok
}

// pass is one independent check. It appends only to its own slot.
type pass func(set entity.Collections, idx *index, out *slot)

type slot struct {
	errors      []diagnostic.ValidationError
	suggestions []string
}

func (s *slot) add(kind entity.Kind, id, field, msg string) {
	s.errors = append(s.errors, diagnostic.ValidationError{EntityType: kind, ID: id, Field: field, Message: msg})
}

func (s *slot) addWithSuggestion(kind entity.Kind, id, field, msg, suggestion string) {
	s.errors = append(s.errors, diagnostic.ValidationError{
		EntityType: kind, ID: id, Field: field, Message: msg, Suggestion: suggestion,
	})
}

// passes run in this order in the report.
var passes = []pass{
	checkIdentity,
	checkClients,
	checkWorkers,
	checkTasks,
	checkCoverage,
	checkAdvisories,
}

// Validate checks set and returns every finding. The same input always
// yields the same report in the same order. Empty collections yield an
// empty report.
func Validate(set entity.Collections) diagnostic.Report {
	idx := buildIndex(set)
	slots := make([]slot, len(passes))

	var g errgroup.Group

	for i, p := range passes {
		g.Go(func() error {
			p(set, idx, &slots[i])
			return nil
		})
	}

	_ = g.Wait()

	var report diagnostic.Report

	for _, s := range slots {
		report.Errors = append(report.Errors, s.errors...)
		report.Suggestions = append(report.Suggestions, s.suggestions...)
	}

	return report
}

func checkIdentity(set entity.Collections, _ *index, out *slot) {
	for _, k := range entity.Kinds {
		var seen common.OrderedSet

		for _, e := range set.Of(k) {
			id := strings.TrimSpace(e.DomainID())
			if id == "" {
				out.add(k, "", k.IDField(), MsgMissingID)
				continue
			}

			if !seen.Add(id) {
				out.add(k, id, k.IDField(), DuplicateMessage(id))
			}
		}
	}
}

func checkClients(set entity.Collections, idx *index, out *slot) {
	for _, c := range set.Clients {
		if p := c.PriorityLevel; p != nil && !common.IsInRange(minPriority, *p, maxPriority) {
			out.add(entity.KindClients, c.ClientID, entity.FieldPriorityLevel,
				fmt.Sprintf("PriorityLevel must be between %d and %d, got %d.", minPriority, maxPriority, *p))
		}

		if a := strings.TrimSpace(c.AttributesJSON); a != "" && !json.Valid([]byte(a)) {
			out.add(entity.KindClients, c.ClientID, entity.FieldAttributesJSON, "AttributesJSON is not valid JSON.")
		}

		for _, id := range c.RequestedTaskIDs {
			if !idx.hasTask(id) {
				out.add(entity.KindClients, c.ClientID, entity.FieldRequestedTaskIDs,
					fmt.Sprintf("Unknown TaskID: %s.", id))
			}
		}
	}
}

func checkWorkers(set entity.Collections, _ *index, out *slot) {
	for _, w := range set.Workers {
		if m := w.MaxLoadPerPhase; m != nil && *m < 0 {
			out.add(entity.KindWorkers, w.WorkerID, entity.FieldMaxLoadPerPhase,
				fmt.Sprintf("MaxLoadPerPhase cannot be negative, got %d.", *m))
		}

		if m := w.MaxConcurrent; m != nil && *m < 1 {
			out.add(entity.KindWorkers, w.WorkerID, entity.FieldMaxConcurrent,
				fmt.Sprintf("MaxConcurrent must be at least 1, got %d.", *m))
		}

		if !allNumeric(w.AvailableSlots) {
			out.addWithSuggestion(entity.KindWorkers, w.WorkerID, entity.FieldAvailableSlots,
				"AvailableSlots must contain only numbers.", SlotSuggestion(w.AvailableSlots))
		}
	}
}

func checkTasks(set entity.Collections, idx *index, out *slot) {
	for _, t := range set.Tasks {
		if d := t.Duration; d != nil && *d < 1 {
			out.add(entity.KindTasks, t.TaskID, entity.FieldDuration,
				fmt.Sprintf("Duration must be at least 1, got %d.", *d))
		}

		for _, s := range t.RequiredSkills {
			if !idx.hasSkill(s) {
				out.add(entity.KindTasks, t.TaskID, entity.FieldRequiredSkills,
					fmt.Sprintf("No worker has required skill: %s.", s))
			}
		}

		if bad := common.Filter(t.PreferredPhases, func(p string) bool { return !IsPhase(p) }); len(bad) > 0 {
			out.add(entity.KindTasks, t.TaskID, entity.FieldPreferredPhases,
				fmt.Sprintf("Invalid PreferredPhases format: %s.", strings.Join(bad, ", ")))
		}
	}
}

func checkCoverage(_ entity.Collections, idx *index, out *slot) {
	for _, s := range idx.requiredSkills.Items() {
		if !idx.hasSkill(s) {
			out.add(entity.KindTasks, diagnostic.GlobalID, FieldSkillCoverage,
				fmt.Sprintf("Required skill %s is not covered by any worker.", s))
		}
	}
}

func checkAdvisories(set entity.Collections, idx *index, out *slot) {
	for _, c := range set.Clients {
		if p := c.PriorityLevel; p != nil && *p == 1 && len(c.RequestedTaskIDs) > busyRequestThreshold {
			out.suggestions = append(out.suggestions, fmt.Sprintf(
				"Client %s has PriorityLevel 1 but requests %d tasks; check whether the priority is intended.",
				c.ClientID, len(c.RequestedTaskIDs)))
		}
	}

	for _, t := range set.Tasks {
		for _, id := range t.CoRunTaskIDs {
			if !idx.hasTask(id) {
				out.suggestions = append(out.suggestions, fmt.Sprintf(
					"Task %s co-runs with unknown TaskID %s.", t.TaskID, id))
			}
		}
	}
}

// IsSlot reports whether s parses as a finite number.
func IsSlot(s string) bool {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return false
	}

	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// IsPhase reports whether s is an integer or a "start-end" range.
func IsPhase(s string) bool {
	s = strings.TrimSpace(s)
	if _, err := strconv.Atoi(s); err == nil {
		return true
	}

	return phaseRange.MatchString(s)
}

func allNumeric(items []string) bool {
	for _, s := range items {
		if !IsSlot(s) {
			return false
		}
	}

	return true
}

// SlotSuggestion strips every non-ASCII-digit from each slot, drops the ones
// left empty and joins the rest with ", ".
func SlotSuggestion(slots []string) string {
	cleaned := make([]string, 0, len(slots))

	for _, s := range slots {
		digits := strings.Map(func(r rune) rune {
			if r >= '0' && r <= '9' {
				return r
			}

			return -1
		}, s)

		if digits != "" {
			cleaned = append(cleaned, digits)
		}
	}

	return strings.Join(cleaned, ", ")
}
