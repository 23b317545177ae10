package export

// Dataset defines tabular export content. Rows are keyed by header.
type Dataset struct {
	Headers []string
	Rows    []map[string]string
	// Numeric names the headers whose cells are right aligned.
	Numeric []string
	// Emphasized holds indexes into Rows rendered as total lines.
	Emphasized map[int]bool
}

// Record returns row i ordered by Headers, with missing cells empty.
func (d Dataset) Record(i int) []string {
	record := make([]string, len(d.Headers))
	for j, header := range d.Headers {
		record[j] = d.Rows[i][header]
	}
	return record
}

func (d Dataset) isNumeric(header string) bool {
	for _, h := range d.Numeric {
		if h == header {
			return true
		}
	}
	return false
}
