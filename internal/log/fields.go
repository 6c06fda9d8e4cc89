package log

// Common field names for structured logging
const (
	FieldComponent   = "component"
	FieldError       = "error"
	FieldOperation   = "operation"
	FieldUserID      = "user_id"
	FieldGranularity = "granularity"
	FieldBucket      = "bucket"
	FieldGrandTotal  = "grand_total"
	FieldBadge       = "badge_equivalent"
	FieldItabag      = "itabag_equivalent"
	FieldMessageID   = "message_id"
	FieldDuration    = "duration_ms"
)

// Components defines standard component names
const (
	ComponentApp        = "app"
	ComponentAggregator = "aggregator"
	ComponentPurchase   = "purchase"
	ComponentSettings   = "settings"
	ComponentStorage    = "storage"
	ComponentAMQP       = "amqp"
	ComponentWorker     = "worker"
	ComponentSheets     = "sheets"
)

// Operations defines standard operation names
const (
	OpAppend    = "append"
	OpRecompute = "recompute"
	OpRebuild   = "rebuild"
	OpBreakdown = "breakdown"
	OpExport    = "export"
	OpUpdate    = "update"
	OpShutdown  = "shutdown"
	OpStartup   = "startup"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

func NewFields() LogFields {
	return make(LogFields)
}

func (f LogFields) WithComponent(component string) LogFields {
	f[FieldComponent] = component
	return f
}

// WithError adds the error text; a nil error is ignored.
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithBucket identifies one summary bucket of a user.
func (f LogFields) WithBucket(userID int64, granularity, bucket string) LogFields {
	f[FieldUserID] = userID
	f[FieldGranularity] = granularity
	f[FieldBucket] = bucket
	return f
}

// WithTotals adds the computed grand total and its equivalences.
func (f LogFields) WithTotals(grandTotal int64, badge, itabag float64) LogFields {
	f[FieldGrandTotal] = grandTotal
	f[FieldBadge] = badge
	f[FieldItabag] = itabag
	return f
}

// ToSlice converts LogFields to a slice for slog
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}
