package types

// Collection groups planning domains in the public catalog.
type Collection struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	DomainSet   []int  `json:"domain_set"`
}

// Domain is a planning domain listed in the catalog.
type Domain struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Problem is a problem instance of a catalog domain.
type Problem struct {
	ID         int    `json:"id"`
	Name       string `json:"name"`
	DomainURL  string `json:"domain_url"`
	ProblemURL string `json:"problem_url"`
}

// Label returns the display label used for ordering.
func (c Collection) Label() string { return c.Name }

// Label returns the display label used for ordering.
func (d Domain) Label() string { return d.Name }

// Label returns the display label used for ordering.
func (p Problem) Label() string { return p.Name }
