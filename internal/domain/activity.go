package domain

import "strings"

// ActivityType identifies the kind of learning activity a batch belongs to.
// Types other than the named ones are accepted and passed through unchanged.
type ActivityType string

const (
	ActivityCompetencyFramework ActivityType = "Competency Framework"
	ActivityCompetencyLevel     ActivityType = "Competency Level"
	ActivityCourse              ActivityType = "Course"
)

func (t ActivityType) String() string { return string(t) }

// ObjectType is the event object type for a batch of this activity type.
func (t ActivityType) ObjectType() string {
	switch strings.ToUpper(strings.TrimSpace(string(t))) {
	case "CF":
		return ActivityCompetencyFramework.String()
	case "CL":
		return ActivityCompetencyLevel.String()
	case "CB":
		return ActivityCourse.String()
	case "":
		return "Content"
	}
	return strings.TrimSpace(string(t))
}

// ActivityTypeSet is an immutable, case-insensitive set of activity types.
type ActivityTypeSet struct {
	names map[string]struct{}
}

func NewActivityTypeSet(names ...string) ActivityTypeSet {
	set := ActivityTypeSet{names: make(map[string]struct{}, len(names))}
	for _, name := range names {
		key := normalizeActivityType(name)
		if key == "" {
			continue
		}
		set.names[key] = struct{}{}
	}
	return set
}

// ParseActivityTypeSet splits a comma separated list.
func ParseActivityTypeSet(raw string) ActivityTypeSet {
	return NewActivityTypeSet(strings.Split(raw, ",")...)
}

func (s ActivityTypeSet) Contains(activityType string) bool {
	_, ok := s.names[normalizeActivityType(activityType)]
	return ok
}

func (s ActivityTypeSet) Len() int { return len(s.names) }

func normalizeActivityType(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
