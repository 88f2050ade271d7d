package domain

import (
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"
)

// CreditProfile is the flat credit record supplied by the insights service.
// Numeric fields arrive as strings and are kept verbatim.
type CreditProfile struct {
	CreditScore       string            `json:"credit_score"`
	FOIR              string            `json:"foir"`
	CreditUtilization string            `json:"credit_utilization"`
	TotalLoanAmount   string            `json:"total_loan_amt,omitempty"`
	TotalHomeLoan     string            `json:"total_hl_amt,omitempty"`
	TotalPersonalLoan string            `json:"total_pl_amt,omitempty"`
	RunningLoans      string            `json:"running_loan,omitempty"`
	AllLoans          string            `json:"all_loan,omitempty"`
	EmploymentStatus  string            `json:"employment_status,omitempty"`
	LoanList          []json.RawMessage `json:"loanList,omitempty"`
}

// UnmarshalJSON accepts both employment_status and the upstream
// employement_status spelling, and tolerates numeric JSON values.
func (p *CreditProfile) UnmarshalJSON(data []byte) error {
	var raw struct {
		CreditScore       flexString        `json:"credit_score"`
		FOIR              flexString        `json:"foir"`
		CreditUtilization flexString        `json:"credit_utilization"`
		TotalLoanAmount   flexString        `json:"total_loan_amt"`
		TotalHomeLoan     flexString        `json:"total_hl_amt"`
		TotalPersonalLoan flexString        `json:"total_pl_amt"`
		RunningLoans      flexString        `json:"running_loan"`
		AllLoans          flexString        `json:"all_loan"`
		EmploymentStatus  string            `json:"employment_status"`
		EmploymentLegacy  string            `json:"employement_status"`
		LoanList          []json.RawMessage `json:"loanList"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*p = CreditProfile{
		CreditScore:       string(raw.CreditScore),
		FOIR:              string(raw.FOIR),
		CreditUtilization: string(raw.CreditUtilization),
		TotalLoanAmount:   string(raw.TotalLoanAmount),
		TotalHomeLoan:     string(raw.TotalHomeLoan),
		TotalPersonalLoan: string(raw.TotalPersonalLoan),
		RunningLoans:      string(raw.RunningLoans),
		AllLoans:          string(raw.AllLoans),
		EmploymentStatus:  raw.EmploymentStatus,
		LoanList:          raw.LoanList,
	}
	if p.EmploymentStatus == "" {
		p.EmploymentStatus = raw.EmploymentLegacy
	}
	return nil
}

// flexString decodes either a JSON string or a JSON number into a string.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		*f = ""
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*f = flexString(v)
		return nil
	}
	*f = flexString(s)
	return nil
}

// Metric is an integer parsed from a profile field. Valid is false when
// the field was empty or not numeric.
type Metric struct {
	Value int
	Valid bool
}

// Metrics are the three fields persona classification depends on.
type Metrics struct {
	Score       Metric
	FOIR        Metric
	Utilization Metric
}

// Metrics parses the classifier inputs.
func (p CreditProfile) Metrics() Metrics {
	return Metrics{
		Score:       ParseMetric(p.CreditScore),
		FOIR:        ParseMetric(p.FOIR),
		Utilization: ParseMetric(p.CreditUtilization),
	}
}

// ParseMetric reads the leading integer of s, the way a lenient integer
// parse does: "735", "60.5" and "85%" yield 735, 60 and 85.
func ParseMetric(s string) Metric {
	s = strings.TrimSpace(s)
	end := 0
	if end < len(s) && (s[end] == '-' || s[end] == '+') {
		end++
	}
	digits := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digits {
		return Metric{}
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		var numErr *strconv.NumError
		if !errors.As(err, &numErr) || numErr.Err != strconv.ErrRange {
			return Metric{}
		}
		// Overlong digit runs saturate rather than invalidate.
		n = math.MaxInt
		if s[0] == '-' {
			n = math.MinInt
		}
	}
	return Metric{Value: n, Valid: true}
}

// ForPrompt returns a copy with the loan list capped at limit entries.
func (p CreditProfile) ForPrompt(limit int) CreditProfile {
	out := p
	if len(out.LoanList) > limit {
		out.LoanList = out.LoanList[:limit]
	}
	return out
}

// FallbackCreditProfile is served whenever the insights service fails.
func FallbackCreditProfile() CreditProfile {
	return CreditProfile{
		CreditScore:       "735",
		TotalLoanAmount:   "13936790",
		TotalHomeLoan:     "7772878",
		TotalPersonalLoan: "5462400",
		AllLoans:          "66",
		RunningLoans:      "21",
		CreditUtilization: "85",
		FOIR:              "60",
		EmploymentStatus:  "Employed",
	}
}
