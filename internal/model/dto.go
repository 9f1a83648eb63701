package model

// MemberDto is the name and age of a member.
type MemberDto struct {
	UserName string
	Age      int
}

// NewMemberDto is the two-argument constructor used by constructor
// projections.
func NewMemberDto(userName string, age int) MemberDto {
	return MemberDto{UserName: userName, Age: age}
}

// UserDto exposes a member under different field names. Field projections
// must alias userName as "name" to fill Name.
type UserDto struct {
	Name string
	Age  int
}

// MemberTeamDto is one row of a member search.
type MemberTeamDto struct {
	MemberID int64  `json:"member_id" yaml:"member_id"`
	UserName string `json:"user_name" yaml:"user_name"`
	Age      int    `json:"age" yaml:"age"`
	TeamID   *int64 `json:"team_id" yaml:"team_id"`
	TeamName string `json:"team_name" yaml:"team_name"`
}

// AgeStats aggregates member ages.
type AgeStats struct {
	Count int64   `json:"count" yaml:"count"`
	Sum   int64   `json:"sum" yaml:"sum"`
	Avg   float64 `json:"avg" yaml:"avg"`
	Max   int64   `json:"max" yaml:"max"`
	Min   int64   `json:"min" yaml:"min"`
}

// TeamAverage is the average member age of one team.
type TeamAverage struct {
	TeamName string  `json:"team_name" yaml:"team_name"`
	AvgAge   float64 `json:"avg_age" yaml:"avg_age"`
}
