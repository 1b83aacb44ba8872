package scenario

// Exchange is the captured request under test.
type Exchange struct {
	URL             string            `yaml:"url"`
	Method          string            `yaml:"method,omitempty"`
	RequestHeaders  map[string]string `yaml:"request_headers,omitempty"`
	ResponseHeaders map[string]string `yaml:"response_headers,omitempty"`
}

// Expect is what a case asserts. Risk is HIGH, MEDIUM, LOW or "skipped".
// Violations and Warnings, when present, must match the finding categories
// exactly and in order.
type Expect struct {
	Risk       string   `yaml:"risk"`
	Violations []string `yaml:"violations,omitempty"`
	Warnings   []string `yaml:"warnings,omitempty"`
}

// Case is one test case within a scenario.
type Case struct {
	Exchange Exchange `yaml:"exchange"`
	Domain   string   `yaml:"domain"`
	Expect   Expect   `yaml:"expect"`
}

// Scenario is a named collection of detection test cases.
type Scenario struct {
	Name  string `yaml:"name"`
	Cases []Case `yaml:"cases"`
}

// CaseResult is the outcome of evaluating one test case.
type CaseResult struct {
	Index    int    `json:"index"`
	Passed   bool   `json:"passed"`
	Domain   string `json:"domain"`
	URL      string `json:"url"`
	Expected string `json:"expected"`
	Actual   string `json:"actual"`
	Reason   string `json:"reason,omitempty"`
}

// RunResult is the outcome of running all cases in one scenario file.
type RunResult struct {
	File   string       `json:"file"`
	Name   string       `json:"name"`
	Total  int          `json:"total"`
	Passed int          `json:"passed"`
	Failed int          `json:"failed"`
	Cases  []CaseResult `json:"cases"`
}
