// File: internal/plancache/plan.go
package plancache

// DomainNotFound is the sentinel gesture count recorded when the target link
// was not located within the page-search bound. A plan carrying it is still a
// valid, calculated result; callers should switch strategy rather than retry
// the computation.
const DomainNotFound = -1

// Plan is the persisted outcome of one geometry measurement run: how many
// gestures reach the "expand results" affordance and how many reach the target
// link, plus the raw measurements they were derived from.
type Plan struct {
	MoreScrollCount int     `json:"more_scroll_count"`
	MoreElementY    float64 `json:"more_element_y"`

	// DomainScrollCount is DomainNotFound when the target was not located.
	DomainScrollCount int     `json:"domain_scroll_count"`
	DomainElementY    float64 `json:"domain_element_y"`
	// DomainPage is the 1-based result page the target was found on.
	DomainPage int `json:"domain_page"`

	ViewportHeight  float64 `json:"viewport_height"`
	GestureDistance float64 `json:"gesture_distance"`

	// Calculated distinguishes a completed computation (including a valid
	// "not found") from one that failed partway. Uncalculated plans must
	// never be fed to the actuator.
	Calculated bool `json:"calculated"`
}

// DomainFound reports whether the plan locates the target link.
func (p Plan) DomainFound() bool {
	return p.Calculated && p.DomainScrollCount >= 0
}
