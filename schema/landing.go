package schema

// Landing is the outcome of the app-entry flow.
type Landing struct {
	Authenticated bool             `json:"authenticated"`
	Target        NavigationTarget `json:"target,omitempty"`
	Path          string           `json:"path"`
	Rule          string           `json:"rule,omitempty"`
	Session       *AuthSession     `json:"-"`
}
