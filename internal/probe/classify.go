package probe

// Classify applies the provider-general rules to an outcome.
// Provider classifiers handle their ambiguous statuses first and defer here for the rest.
func Classify(kind Kind, o Outcome) Verdict {
	if o.Err != nil {
		return Failure(kind, o.Status, o.Err)
	}

	switch {
	case o.Status >= 200 && o.Status < 300:
		if kind == KindExistence {
			return Exists(kind, o.Status)
		}
		return Allowed(kind, o.Status)
	case o.Status == 404:
		if kind == KindExistence {
			return NotFound(kind, o.Status)
		}
		return Denied(kind, o.Status)
	case o.Status == 403:
		return Denied(kind, o.Status)
	default:
		return Ambiguous(kind, o.Status)
	}
}
