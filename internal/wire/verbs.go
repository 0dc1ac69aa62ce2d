package wire

// Query verbs, exactly as carried on the wire between client, broker, and
// worker (§6). Workers only answer a subset of these — fan-out verbs
// the broker does not forward as-is (e.g. ListCountries, which the
// broker answers from its own registry) are still named here because
// workers speak them directly over nc for debugging, per the original's
// "easter egg for nc" comment.
const (
	VerbListCountries    = "/listCountries"
	VerbDiseaseFrequency = "/diseaseFrequency"
	VerbTopKAgeRanges    = "/topk-AgeRanges"
	VerbSearchRecord     = "/searchPatientRecord"
	VerbNumAdmissions    = "/numPatientAdmissions"
	VerbNumDischarges    = "/numPatientDischarges"
	VerbTopKDiseases     = "/topkDiseases"
	VerbTopKCountries    = "/topkCountries"
	VerbExit             = "/exit"
	VerbRescan           = "/rescan"
)
