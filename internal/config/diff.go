package config

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked: the log level and
// the objective plan, which applies to sessions opened after the change.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	PlanChanged      bool // true if objectives or graph.on_failure changed
	ObjectiveChanges []ObjectiveDiff
	PolicyChanged    bool
}

// ObjectiveDiff describes what changed for a single objective between two
// configs.
type ObjectiveDiff struct {
	Name            string
	KindChanged     bool
	CriticalChanged bool
	Moved           bool
	Added           bool
	Removed         bool
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	if policyName(old) != policyName(new) {
		d.PolicyChanged = true
		d.PlanChanged = true
	}

	oldIdx := make(map[string]int, len(old.Objectives))
	for i, o := range old.Objectives {
		oldIdx[o.Name] = i
	}
	newIdx := make(map[string]int, len(new.Objectives))
	for i, o := range new.Objectives {
		newIdx[o.Name] = i
	}

	// Walk the old plan in order so the result is deterministic.
	for i, o := range old.Objectives {
		j, exists := newIdx[o.Name]
		if !exists {
			d.ObjectiveChanges = append(d.ObjectiveChanges, ObjectiveDiff{Name: o.Name, Removed: true})
			continue
		}
		n := new.Objectives[j]
		od := ObjectiveDiff{
			Name:            o.Name,
			KindChanged:     o.Kind != n.Kind,
			CriticalChanged: o.Critical != n.Critical,
			Moved:           i != j,
		}
		if od.KindChanged || od.CriticalChanged || od.Moved {
			d.ObjectiveChanges = append(d.ObjectiveChanges, od)
		}
	}
	for _, n := range new.Objectives {
		if _, exists := oldIdx[n.Name]; !exists {
			d.ObjectiveChanges = append(d.ObjectiveChanges, ObjectiveDiff{Name: n.Name, Added: true})
		}
	}
	if len(d.ObjectiveChanges) > 0 {
		d.PlanChanged = true
	}

	return d
}

func policyName(c *Config) string {
	p, err := c.Plan()
	if err != nil {
		return c.Graph.OnFailure
	}
	return p.OnFailure.String()
}
