package rules

import "deltascan/internal/model"

// spec declares one detection rule before compilation.
type spec struct {
	code        string
	severity    model.Severity
	description string
	regex       string
	tags        []string
}

// builtinCatalogue is the ordered built-in rule set. Order is load-bearing:
// classification returns the first matching rule, so specific patterns come
// before broad heuristics and contextual quasi-identifiers come last.
var builtinCatalogue = []spec{
	// Direct identifiers
	{
		code:        "PII_001",
		severity:    model.SeverityCritical,
		description: "Email address",
		regex:       `(?i)\b[A-Z0-9._%+-]+@[A-Z0-9.-]+\.[A-Z]{2,}\b`,
		tags:        []string{"pii", "direct-identifier"},
	},
	{
		code:        "PII_002",
		severity:    model.SeverityCritical,
		description: "US Social Security number",
		regex:       `\b(?!000|666|9\d{2})\d{3}-(?!00)\d{2}-(?!0000)\d{4}\b`,
		tags:        []string{"pii", "national-id", "us"},
	},
	{
		code:        "PII_003",
		severity:    model.SeverityError,
		description: "UK National Insurance number",
		regex:       `(?i)\b[ABCEGHJ-PRSTW-Z][ABCEGHJ-NPRSTW-Z]\s?\d{2}\s?\d{2}\s?\d{2}\s?[A-D]\b`,
		tags:        []string{"pii", "national-id", "uk"},
	},
	{
		code:        "PII_004",
		severity:    model.SeverityError,
		description: "US Individual Taxpayer Identification Number",
		regex:       `\b9\d{2}-(?:7\d|8[0-8])-\d{4}\b`,
		tags:        []string{"pii", "national-id", "us"},
	},
	{
		code:        "PII_005",
		severity:    model.SeverityWarning,
		description: "Phone number",
		regex:       `\b\+?\d{1,3}[-. (]?\d{3}[-. )]?\d{3}[-. ]?\d{4}\b`,
		tags:        []string{"pii", "contact"},
	},

	// Financial
	{
		code:        "FIN_001",
		severity:    model.SeverityCritical,
		description: "Payment card number",
		regex:       `\b(?:4\d{3}|5[1-5]\d{2}|3[47]\d{2}|6(?:011|5\d{2}))[- ]?\d{4}[- ]?\d{4}[- ]?\d{1,4}\b`,
		tags:        []string{"financial", "pci"},
	},
	{
		code:        "FIN_002",
		severity:    model.SeverityCritical,
		description: "IBAN account number",
		regex:       `\b[A-Z]{2}\d{2}[A-Z0-9]{11,30}\b`,
		tags:        []string{"financial"},
	},
	{
		code:        "FIN_003",
		severity:    model.SeverityError,
		description: "ABA routing number",
		regex:       `\b(?:0[1-9]|1[0-2]|2[1-9]|3[0-2])\d{7}\b`,
		tags:        []string{"financial", "us"},
	},
	{
		code:        "FIN_004",
		severity:    model.SeverityWarning,
		description: "SWIFT/BIC code",
		regex:       `\b[A-Z]{6}[A-Z0-9]{2}(?:[A-Z0-9]{3})?\b`,
		tags:        []string{"financial"},
	},

	// Credentials and secrets. Specific provider formats first, broad
	// heuristics last so they never shadow an exact match.
	{
		code:        "SEC_001",
		severity:    model.SeverityCritical,
		description: "AWS access key ID",
		regex:       `\b(?:AKIA|ASIA|ABIA|ACCA)[0-9A-Z]{16}\b`,
		tags:        []string{"credentials", "aws"},
	},
	{
		code:        "SEC_003",
		severity:    model.SeverityCritical,
		description: "Private key material",
		regex:       `-----BEGIN (?:RSA |EC |DSA |OPENSSH |PGP )?PRIVATE KEY`,
		tags:        []string{"credentials"},
	},
	{
		code:        "SEC_005",
		severity:    model.SeverityCritical,
		description: "GitHub personal access token",
		regex:       `\bgh[pousr]_[A-Za-z0-9]{36,255}\b`,
		tags:        []string{"credentials", "github"},
	},
	{
		code:        "SEC_006",
		severity:    model.SeverityCritical,
		description: "Slack token",
		regex:       `\bxox[baprs]-[A-Za-z0-9-]{10,}\b`,
		tags:        []string{"credentials", "slack"},
	},
	{
		code:        "SEC_009",
		severity:    model.SeverityCritical,
		description: "Google API key",
		regex:       `\bAIza[0-9A-Za-z_\-]{35}\b`,
		tags:        []string{"credentials", "gcp"},
	},
	{
		code:        "SEC_007",
		severity:    model.SeverityError,
		description: "JSON Web Token",
		regex:       `\beyJ[A-Za-z0-9_\-]{8,}\.[A-Za-z0-9_\-]+\.[A-Za-z0-9_\-]*`,
		tags:        []string{"credentials"},
	},
	{
		code:        "SEC_008",
		severity:    model.SeverityCritical,
		description: "Connection string with embedded password",
		regex:       `(?i)(?:Server|Data Source|Host)\s*=[^;]+;.*(?:Password|Pwd)\s*=\s*[^;]+`,
		tags:        []string{"credentials"},
	},
	{
		code:        "SEC_004",
		severity:    model.SeverityCritical,
		description: "Generic secret assignment",
		regex:       `(?i)\b(?:password|passwd|pwd|secret|api[_\-]?key|token)\b\s*[=:]\s*\S{6,}`,
		tags:        []string{"credentials", "heuristic"},
	},
	{
		code:        "SEC_002",
		severity:    model.SeverityCritical,
		description: "AWS secret access key (40-character token heuristic)",
		regex:       `\b[A-Za-z0-9/+=]{40}\b`,
		tags:        []string{"credentials", "aws", "heuristic"},
	},

	// Health records
	{
		code:        "HLT_001",
		severity:    model.SeverityError,
		description: "US National Provider Identifier",
		regex:       `\bNPI[:#]?\s*\d{10}\b`,
		tags:        []string{"health", "us"},
	},
	{
		code:        "HLT_002",
		severity:    model.SeverityError,
		description: "UK NHS number",
		regex:       `\bNHS[:#]?\s*\d{3}[- ]?\d{3}[- ]?\d{4}\b`,
		tags:        []string{"health", "uk"},
	},
	{
		code:        "HLT_003",
		severity:    model.SeverityWarning,
		description: "Medical record number",
		regex:       `(?i)\bMRN[:#]?\s*\d{6,10}\b`,
		tags:        []string{"health"},
	},
	{
		code:        "HLT_004",
		severity:    model.SeverityWarning,
		description: "ICD-10 diagnosis code",
		regex:       `\b[A-TV-Z]\d{2}\.\d{1,4}\b`,
		tags:        []string{"health"},
	},

	// Network and device identifiers
	{
		code:        "NET_001",
		severity:    model.SeverityWarning,
		description: "IPv4 address",
		regex:       `\b(?:(?:25[0-5]|2[0-4]\d|1\d{2}|[1-9]?\d)\.){3}(?:25[0-5]|2[0-4]\d|1\d{2}|[1-9]?\d)\b`,
		tags:        []string{"network"},
	},
	{
		code:        "NET_002",
		severity:    model.SeverityWarning,
		description: "IPv6 address",
		regex:       `(?i)\b(?:[0-9a-f]{1,4}:){7}[0-9a-f]{1,4}\b`,
		tags:        []string{"network"},
	},
	{
		code:        "NET_003",
		severity:    model.SeverityInfo,
		description: "MAC address",
		regex:       `(?i)\b(?:[0-9a-f]{2}[:\-]){5}[0-9a-f]{2}\b`,
		tags:        []string{"network", "device"},
	},
	{
		code:        "NET_004",
		severity:    model.SeverityWarning,
		description: "IMEI device identifier",
		regex:       `\b\d{2}[- ]?\d{6}[- ]?\d{6}[- ]?\d\b`,
		tags:        []string{"device"},
	},

	// Quasi-identifiers. Contextual risk only, scored low and kept at the
	// end of the catalogue so broad shapes never win over direct matches.
	{
		code:        "QID_001",
		severity:    model.SeverityInfo,
		description: "Date of birth (ISO or slash format)",
		regex:       `\b(?:19|20)\d{2}[-/](?:0[1-9]|1[0-2])[-/](?:0[1-9]|[12]\d|3[01])\b`,
		tags:        []string{"quasi-identifier"},
	},
	{
		code:        "QID_002",
		severity:    model.SeverityInfo,
		description: "UK postcode",
		regex:       `(?i)\b[A-Z]{1,2}\d[A-Z0-9]?\s\d[A-Z]{2}\b`,
		tags:        []string{"quasi-identifier", "uk"},
	},
	{
		code:        "QID_003",
		severity:    model.SeverityInfo,
		description: "US ZIP+4 code",
		regex:       `\b\d{5}-\d{4}\b`,
		tags:        []string{"quasi-identifier", "us"},
	},
	{
		code:        "QID_004",
		severity:    model.SeverityInfo,
		description: "Honorific with name fragment",
		regex:       `\b(?:Mr|Mrs|Ms|Dr|Prof)\.\s+[A-Z][a-z]+`,
		tags:        []string{"quasi-identifier"},
	},
}
