package provider

// Input types for triggering workflows from schedules and other apps

// SupplierStatusInput controls the paging of a reconciliation pass. A pass that continues
// as new sets StartID, MaxID, Height and Totals so the next run resumes at the same height.
type SupplierStatusInput struct {
	BatchSize int64                `json:"batchSize"`
	StartID   int64                `json:"startId,omitempty"`
	MaxID     int64                `json:"maxId,omitempty"`
	Height    int64                `json:"height,omitempty"`
	Totals    SupplierStatusTotals `json:"totals"`
}

// Resumed reports whether the input continues an earlier run.
func (in SupplierStatusInput) Resumed() bool {
	return in.StartID > 0
}

// SupplierStatusTotals are the running counters of a reconciliation pass.
type SupplierStatusTotals struct {
	Keys    int `json:"keys"`
	Batches int `json:"batches"`
	Changed int `json:"changed"`
	Stale   int `json:"stale"`
	Failed  int `json:"failed"`
}

type SupplierRemediationInput struct {
	// Limit caps the keys remediated in one pass; zero means no cap.
	Limit int
}
