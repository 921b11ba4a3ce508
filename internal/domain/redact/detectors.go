package redact

import "regexp"

// Detector finds sensitive substrings of one kind within a text field.
type Detector struct {
	Name  string
	regex *regexp.Regexp
	// validate runs after a regex match to reject false positives the
	// pattern alone can't rule out (e.g. Luhn checksum for card numbers).
	validate func(match string) bool
}

var (
	apiKeyPatterns = []string{
		`sk-[A-Za-z0-9]{20,}`,
		`sk-ant-[A-Za-z0-9-]{20,}`,
		`sk-proj-[A-Za-z0-9_-]{20,}`,
		`AIza[A-Za-z0-9_-]{35}`,
		`ghp_[A-Za-z0-9]{36}`,
		`xox[baprs]-[A-Za-z0-9-]{10,}`,
	}
	emailPattern    = `[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`
	creditCardRegex = `\b(?:\d[ -]?){13,19}\b`
	ssnRegex        = `\b\d{3}-\d{2}-\d{4}\b`
	phoneRegex      = `\b(?:\+?1[ .-]?)?\(?\d{3}\)?[ .-]?\d{3}[ .-]?\d{4}\b`
)

// BuildDetectors compiles the detector set a Config enables, plus any
// custom regexes, skipping patterns that fail to compile — a bad custom
// pattern is dropped, never fatal to the rest of the set.
func BuildDetectors(cfg Config) []Detector {
	var detectors []Detector

	if cfg.APIKeys {
		for _, p := range apiKeyPatterns {
			if re, err := regexp.Compile(p); err == nil {
				detectors = append(detectors, Detector{Name: "api_key", regex: re})
			}
		}
	}
	if cfg.Emails {
		if re, err := regexp.Compile(emailPattern); err == nil {
			detectors = append(detectors, Detector{Name: "email", regex: re})
		}
	}
	if cfg.CreditCards {
		if re, err := regexp.Compile(creditCardRegex); err == nil {
			detectors = append(detectors, Detector{Name: "credit_card", regex: re, validate: luhnValid})
		}
	}
	if cfg.SSNs {
		if re, err := regexp.Compile(ssnRegex); err == nil {
			detectors = append(detectors, Detector{Name: "ssn", regex: re})
		}
	}
	if cfg.PhoneNumbers {
		if re, err := regexp.Compile(phoneRegex); err == nil {
			detectors = append(detectors, Detector{Name: "phone", regex: re})
		}
	}
	for _, cp := range cfg.CustomPatterns {
		if re, err := regexp.Compile(cp.Pattern); err == nil {
			detectors = append(detectors, Detector{Name: cp.Name, regex: re})
		}
	}
	return detectors
}

// FindAll returns every (start, end) span in text that this detector
// matches and, when it has one, passes validation.
func (d Detector) FindAll(text string) [][2]int {
	idxs := d.regex.FindAllStringIndex(text, -1)
	if idxs == nil {
		return nil
	}
	var out [][2]int
	for _, span := range idxs {
		if d.validate != nil && !d.validate(text[span[0]:span[1]]) {
			continue
		}
		out = append(out, [2]int{span[0], span[1]})
	}
	return out
}

// luhnValid runs the Luhn checksum over a candidate credit-card match,
// ignoring spaces/dashes, to cut false positives on arbitrary 13-19 digit
// runs (order numbers, phone numbers, etc).
func luhnValid(s string) bool {
	digits := make([]int, 0, len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			digits = append(digits, int(r-'0'))
		}
	}
	if len(digits) < 13 || len(digits) > 19 {
		return false
	}
	sum := 0
	alt := false
	for i := len(digits) - 1; i >= 0; i-- {
		d := digits[i]
		if alt {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		alt = !alt
	}
	return sum%10 == 0
}
