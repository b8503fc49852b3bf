package domain

// PipelineResult is the terminal artifact of one pipeline invocation.
type PipelineResult struct {
	Query         string
	ExtractedTerm string
	Documents     []Document
	Summary       string
}

// NoResults reports whether the pipeline produced nothing usable: no
// documents and no synthesized text.
func (r PipelineResult) NoResults() bool {
	return len(r.Documents) == 0 && r.Summary == ""
}

// AuditEvent summarizes a pipeline transaction for the audit trail.
type AuditEvent struct {
	Level         string
	Message       string
	Query         string
	ExtractedTerm string
	Summary       string
	Referer       string
	Outcome       string
}
