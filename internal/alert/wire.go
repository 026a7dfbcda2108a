package alert

import "strconv"

// WireRecord is the framed alert record published externally (§6): two
// tables (aux, action list) plus seven scalars. Aux always carries ctime;
// "triggered" emissions (Outcome present) also carry outcome and, when
// more than one outcome item is produced, the indexed outcome.<i> labels.
type WireRecord struct {
	Aux         map[string]string `json:"aux"`
	Mtime       int64             `json:"mtime"`
	TTL         int64             `json:"ttl"`
	Rule        string            `json:"rule"`
	Element     string            `json:"element"`
	State       string            `json:"state"`
	Severity    string            `json:"severity"`
	Description string            `json:"description"`
	Actions     []string          `json:"actions"`
}

// Wire renders a framed record for a, per §6.
func (a *Alert) Wire() WireRecord {
	aux := map[string]string{"ctime": strconv.FormatInt(a.Ctime.Unix(), 10)}
	if len(a.Outcome) > 0 {
		aux["outcome"] = a.Outcome[0]
		if len(a.Outcome) > 1 {
			aux["outcome_count"] = strconv.Itoa(len(a.Outcome))
			for i, label := range a.Outcome {
				aux["outcome."+strconv.Itoa(i)] = label
			}
		}
	}
	return WireRecord{
		Aux:         aux,
		Mtime:       a.Mtime.Unix(),
		TTL:         int64(a.TTL.Seconds()),
		Rule:        a.RuleName,
		Element:     a.Element,
		State:       string(a.State),
		Severity:    a.Severity,
		Description: a.Description,
		Actions:     append([]string(nil), a.Actions...),
	}
}
