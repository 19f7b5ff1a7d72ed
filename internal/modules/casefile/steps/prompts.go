package steps

import (
	"encoding/json"
	"fmt"
	"strings"
)

const extractionSystemPrompt = `You are a legal case analyst extracting facts from case documents for a personal injury practice.
Return ONLY JSON. Never invent facts that are not in the text; use null for anything the text does not state.`

func promptClassify(text string) (system string, user string) {
	system = extractionSystemPrompt
	user = "Classify this case document.\n\n" +
		"Document text (may be truncated):\n" + truncate(text, 6000) + "\n\n" +
		`Return a JSON object: {"category": one of "medical_records"|"medical_bills"|"wage_documentation"|"insurance_correspondence"|"legal_correspondence"|"other", "subcategory": string, "confidence": number 0-1, "documentDate": "YYYY-MM-DD" or null, "providerName": string or null}`
	return system, user
}

func medicalRecordsPrompt(text string) string {
	return "Extract structured medical-record data from this document text.\n\n" +
		"Text:\n" + text + "\n\n" +
		`Return a JSON object: {"patient": {"name": string|null, "dateOfBirth": string|null}, "visits": [{"date": "YYYY-MM-DD", "provider": string, "visitType": string, "chiefComplaint": string, "findings": string, "plan": string}], "imagingSummary": [{"date": string, "type": string, "bodyPart": string, "findings": string}], "preExistingConditions": [string], "futureTreatmentRecommendations": [string]}`
}

func medicalBillsPrompt(text string) string {
	return "Extract billing data from this medical bill text.\n\n" +
		"Text:\n" + text + "\n\n" +
		`Return a JSON object: {"provider": string|null, "charges": [{"date": "YYYY-MM-DD", "description": string, "cptCode": string|null, "amountBilled": number, "insurancePaid": number, "patientResponsibility": number}], "summary": {"totalBilled": number, "totalPaid": number, "totalDue": number}}`
}

func wageDocumentationPrompt(text string) string {
	return "Extract wage-loss data from this employment document text.\n\n" +
		"Text:\n" + text + "\n\n" +
		`Return a JSON object: {"employer": string|null, "occupation": string|null, "payRate": string|null, "missedWorkPeriods": [{"start": "YYYY-MM-DD", "end": "YYYY-MM-DD", "reason": string}], "totalWageLoss": number}`
}

func correspondencePrompt(text string) string {
	return "Summarize the facts relevant to a personal injury claim in this correspondence.\n\n" +
		"Text:\n" + text + "\n\n" +
		`Return a JSON object: {"from": string|null, "to": string|null, "date": string|null, "subject": string|null, "keyPoints": [string], "deadlines": [string]}`
}

func promptExtractEvents(text string) (system string, user string) {
	system = extractionSystemPrompt
	user = "Extract every distinct clinical or billing encounter from this text. One document can describe many encounters.\n\n" +
		"Text:\n" + text + "\n\n" +
		`Return a JSON array; each element: {"date_of_service": "YYYY-MM-DD", "provider_name": string|null, "facility_name": string|null, "provider_type": string|null, "chief_complaint": string|null, "subjective_findings": string|null, "objective_findings": string|null, "assessment": string|null, "plan": string|null, "prognosis": string|null, "permanency_notes": string|null, "diagnoses": [{"diagnosis_name": string, "icd_code": string|null, "body_part": string|null}], "treatments_procedures": [string], "medications": [{"medication_name": string, "dosage": string|null}], "imaging": [{"type": string, "body_part": string|null, "findings": string|null}], "vital_signs": {"pain_score": number 0-10 or null, "notes": string|null}, "total_charge": number, "insurance_paid": number, "patient_responsibility": number, "key_quotes": [string], "red_flags": [string], "causation_statements": [string]}. Skip encounters with no date of service.`
	return system, user
}

func promptEnrichGaps(clientName string, incidentDate string, gaps []TreatmentGap) (system string, user string) {
	system = `You are a legal assistant preparing a personal injury demand package.
For each treatment gap, suggest a plausible, favorably-framed explanation and rate its impact on the claim.
Return ONLY JSON.`
	raw, _ := json.Marshal(gaps)
	user = "Client: " + clientName + "\n" +
		"Incident date: " + incidentDate + "\n" +
		"Treatment gaps:\n" + string(raw) + "\n\n" +
		`Return a JSON array aligned with the input order; each element: {"explanation": string, "impact": "low"|"medium"|"high"}`
	return system, user
}

func promptNarrative(seed chronologySeed) (system string, user string) {
	system = `You are a legal assistant writing the medical chronology narrative for a personal injury demand package.
Write in plain prose, chronological order, citing dates and providers. Do not invent treatment that is not listed.`
	user = "Write the full treatment narrative.\n\n" + seed.describe()
	return system, user
}

func promptExecutiveSummary(seed chronologySeed) (system string, user string) {
	system = `You are a legal assistant summarizing a medical chronology for an attorney.
Write one tight paragraph an attorney can read in thirty seconds.`
	user = "Write the executive summary.\n\n" + seed.describe()
	return system, user
}

// chronologySeed carries the computed statistics the narrative prompts are
// seeded with, so prose generation never recomputes facts.
type chronologySeed struct {
	ClientName    string
	IncidentDate  string
	DurationDays  int
	TotalVisits   int
	TotalCost     float64
	FirstVisit    string
	LastVisit     string
	TopDiagnoses  []DiagnosisSummary
	TopProviders  []ProviderSummary
	TreatmentGaps []TreatmentGap
}

func (s chronologySeed) describe() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Client: %s\n", s.ClientName)
	if s.IncidentDate != "" {
		fmt.Fprintf(&b, "Incident date: %s\n", s.IncidentDate)
	}
	fmt.Fprintf(&b, "Treatment span: %s through %s (%d days, %d visits)\n", s.FirstVisit, s.LastVisit, s.DurationDays, s.TotalVisits)
	fmt.Fprintf(&b, "Total medical cost: %.2f\n", s.TotalCost)
	if len(s.TopDiagnoses) > 0 {
		b.WriteString("Diagnoses (by mention count):\n")
		for _, d := range s.TopDiagnoses {
			fmt.Fprintf(&b, "- %s (%d mentions, %s to %s)\n", d.Name, d.MentionCount, d.FirstSeen, d.LastSeen)
		}
	}
	if len(s.TopProviders) > 0 {
		b.WriteString("Providers (by visit count):\n")
		for _, p := range s.TopProviders {
			fmt.Fprintf(&b, "- %s (%d visits, %.2f billed)\n", p.Name, p.VisitCount, p.TotalCharges)
		}
	}
	if len(s.TreatmentGaps) > 0 {
		b.WriteString("Treatment gaps:\n")
		for _, g := range s.TreatmentGaps {
			fmt.Fprintf(&b, "- %s to %s (%d days)", g.StartDate, g.EndDate, g.DurationDays)
			if g.Explanation != "" {
				fmt.Fprintf(&b, ": %s", g.Explanation)
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
