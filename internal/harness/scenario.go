package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/querydeck/internal/model"
	"github.com/roach88/querydeck/internal/search"
)

// Scenario is one conformance test.
type Scenario struct {
	// Name identifies the scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what the scenario validates.
	Description string `yaml:"description"`

	// SignalPrefix prefixes generated signal IDs. Default "sig".
	SignalPrefix string `yaml:"signal_prefix,omitempty"`

	// Setup is the data the store is seeded with.
	Setup Setup `yaml:"setup"`

	// Steps run in order. A failing step does not stop the run.
	Steps []Step `yaml:"steps"`

	// Assertions are evaluated after the last step.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Setup lists teams and members to seed.
type Setup struct {
	Teams   []string     `yaml:"teams,omitempty"`
	Members []MemberSeed `yaml:"members,omitempty"`
}

// Entities builds unsaved teams and members from the setup. Members
// naming an undeclared team are left without one.
func (s Setup) Entities() ([]*model.Team, []*model.Member) {
	byName := make(map[string]*model.Team, len(s.Teams))
	teams := make([]*model.Team, 0, len(s.Teams))
	for _, name := range s.Teams {
		t := model.NewTeam(name)
		byName[name] = t
		teams = append(teams, t)
	}

	members := make([]*model.Member, 0, len(s.Members))
	for _, seed := range s.Members {
		m := &model.Member{UserName: seed.UserName, Age: seed.Age}
		if t, ok := byName[seed.Team]; ok {
			m.SetTeam(t)
		}
		members = append(members, m)
	}
	return teams, members
}

// MemberSeed is one seeded member. A missing user_name is stored as null;
// such members can not be referenced by find steps.
type MemberSeed struct {
	UserName *string `yaml:"user_name"`
	Age      int     `yaml:"age"`
	Team     string  `yaml:"team,omitempty"`
}

// OrderKey is one sort key of a search step. Field is a member field name,
// or "team.name".
type OrderKey struct {
	Field string `yaml:"field"`
	Desc  bool   `yaml:"desc,omitempty"`

	// Nulls is "first" or "last"; empty keeps the default.
	Nulls string `yaml:"nulls,omitempty"`
}

// Page is the window of a search step.
type Page struct {
	Offset int `yaml:"offset"`
	Limit  int `yaml:"limit"`
}

// Step is one operation. Which fields apply depends on Op.
type Step struct {
	Op string `yaml:"op"`

	// Condition filters search and search_page.
	Condition search.Condition `yaml:"condition,omitempty"`
	Order     []OrderKey       `yaml:"order,omitempty"`
	Page      *Page            `yaml:"page,omitempty"`

	// Member is the user name of a seeded member (find, find_fresh,
	// direct_update).
	Member string `yaml:"member,omitempty"`

	// Where filters update and delete. A team_name input makes the
	// mutation invalid.
	Where search.Condition `yaml:"where,omitempty"`

	// Set assigns literal values by member field name (update,
	// direct_update). A null value assigns NULL.
	Set map[string]any `yaml:"set,omitempty"`

	// Increment adds to numeric member fields (update).
	Increment map[string]int `yaml:"increment,omitempty"`

	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect is the expected outcome of a step. Only the fields given are
// checked.
type Expect struct {
	// Error is the expected error code. When set, the step must fail.
	Error string `yaml:"error,omitempty"`

	// Rows are the expected user names, in order.
	Rows []string `yaml:"rows,omitempty"`

	// Count is the expected number of rows.
	Count *int `yaml:"count,omitempty"`

	Total    *int64 `yaml:"total,omitempty"`
	Affected *int64 `yaml:"affected,omitempty"`

	// Age is the age of the member returned by find or find_fresh.
	Age *int `yaml:"age,omitempty"`

	Stats    *model.AgeStats     `yaml:"stats,omitempty"`
	Averages []model.TeamAverage `yaml:"averages,omitempty"`
}

// Operations.
const (
	OpSearch       = "search"
	OpSearchPage   = "search_page"
	OpFind         = "find"
	OpFindFresh    = "find_fresh"
	OpUpdate       = "update"
	OpDelete       = "delete"
	OpDirectUpdate = "direct_update"
	OpStats        = "stats"
	OpTeamAverages = "team_averages"
)

// Assertion is evaluated after the last step.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Where filters members (final_members).
	Where search.Condition `yaml:"where,omitempty"`

	// Rows are the expected user names ordered by id (final_members).
	Rows []string `yaml:"rows,omitempty"`

	// Entity filters the journal (journal).
	Entity string `yaml:"entity,omitempty"`

	// Count is the expected number of members, journal entries, or
	// cached instances.
	Count *int `yaml:"count,omitempty"`

	// Kinds are the expected mutation kinds in journal order (journal).
	Kinds []string `yaml:"kinds,omitempty"`
}

// Assertion types.
const (
	AssertFinalMembers = "final_members"
	AssertJournal      = "journal"
	AssertCacheSize    = "cache_size"
)

// LoadScenario reads and parses a scenario YAML file.
// Unknown fields are rejected, so a typo fails loudly instead of being
// silently ignored.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks required fields and cross references.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	teams := make(map[string]bool, len(s.Setup.Teams))
	for i, name := range s.Setup.Teams {
		if teams[name] {
			return fmt.Errorf("setup.teams[%d]: duplicate team %q", i, name)
		}
		teams[name] = true
	}
	members := make(map[string]bool, len(s.Setup.Members))
	for i, m := range s.Setup.Members {
		if m.Team != "" && !teams[m.Team] {
			return fmt.Errorf("setup.members[%d]: unknown team %q", i, m.Team)
		}
		if m.UserName != nil {
			members[*m.UserName] = true
		}
	}

	for i, step := range s.Steps {
		if err := validateStep(step, members); err != nil {
			return fmt.Errorf("steps[%d]: %w", i, err)
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(a); err != nil {
			return fmt.Errorf("assertions[%d]: %w", i, err)
		}
	}
	return nil
}

func validateStep(step Step, members map[string]bool) error {
	switch step.Op {
	case OpSearch, OpSearchPage, OpStats, OpTeamAverages, OpDelete:
	case OpFind, OpFindFresh:
		if !members[step.Member] {
			return fmt.Errorf("%s: member %q is not seeded", step.Op, step.Member)
		}
	case OpUpdate:
		if len(step.Set) == 0 && len(step.Increment) == 0 {
			return fmt.Errorf("update: set or increment is required")
		}
	case OpDirectUpdate:
		if !members[step.Member] {
			return fmt.Errorf("direct_update: member %q is not seeded", step.Member)
		}
		if len(step.Set) == 0 {
			return fmt.Errorf("direct_update: set is required")
		}
	case "":
		return fmt.Errorf("op is required")
	default:
		return fmt.Errorf("unknown op %q", step.Op)
	}
	if step.Op == OpSearchPage && step.Page == nil {
		return fmt.Errorf("search_page: page is required")
	}
	for _, k := range step.Order {
		if k.Nulls != "" && k.Nulls != "first" && k.Nulls != "last" {
			return fmt.Errorf("order %s: nulls must be first or last, got %q", k.Field, k.Nulls)
		}
	}
	return nil
}

func validateAssertion(a Assertion) error {
	switch a.Type {
	case AssertFinalMembers:
		if a.Rows == nil && a.Count == nil {
			return fmt.Errorf("final_members: rows or count is required")
		}
	case AssertJournal:
		if a.Count == nil && a.Kinds == nil {
			return fmt.Errorf("journal: count or kinds is required")
		}
	case AssertCacheSize:
		if a.Count == nil {
			return fmt.Errorf("cache_size: count is required")
		}
	case "":
		return fmt.Errorf("type is required")
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}
