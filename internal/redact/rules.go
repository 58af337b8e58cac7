package redact

// DefaultRules returns the built-in detection rules.
//
// The table is priority-ordered: context-anchored rules precede generic ones
// so that, for example, "works at Acme" claims Acme as an organization before
// any location rule can. The categories mirror a standard NER tag set (PER,
// ORG, LOC) plus direct identifiers (EMAIL, PHONE).
//
// Pattern-based detection is a deterministic approximation of an NER model;
// deployments that need model-grade recall use the remote provider instead.
func DefaultRules() []Rule {
	return []Rule{
		{
			ID:       "email-address",
			Category: "EMAIL",
			Pattern:  `([A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,})`,
		},
		{
			ID:       "phone-number",
			Category: "PHONE",
			Pattern:  `(\+?[0-9][0-9\s().-]{7,}[0-9])`,
		},
		{
			ID:       "person-with-title",
			Category: "PER",
			Pattern:  `(?:Mr|Mrs|Ms|Dr|Prof)\.?\s+([A-Z][a-z]+(?:\s+[A-Z][a-z]+)?)`,
		},
		{
			ID:       "org-with-suffix",
			Category: "ORG",
			Pattern:  `\b([A-Z][A-Za-z0-9&-]+(?:\s+[A-Z][A-Za-z0-9&-]+)*\s+(?:Inc|Corp|Corporation|LLC|Ltd|GmbH|Co)\.?)`,
		},
		{
			ID:       "org-employment-context",
			Category: "ORG",
			Pattern:  `(?:works at|work at|worked at|works for|employed by|employed at|joined|hired by)\s+([A-Z][A-Za-z0-9&'-]*(?:\s+[A-Z][A-Za-z0-9&'-]*)*)`,
		},
		{
			ID:       "person-subject",
			Category: "PER",
			Pattern:  `\b([A-Z][a-z]+(?:\s+[A-Z][a-z]+)?)\s+(?:works|worked|said|says|met|lives|lived|visited|wrote|joined|told|asked|moved)\b`,
		},
		{
			ID:       "location-context",
			Category: "LOC",
			Pattern:  `\b(?:in|from|near)\s+([A-Z][a-z]+(?:\s+[A-Z][a-z]+)?)`,
		},
	}
}
