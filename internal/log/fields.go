package log

// Common field names for structured logging.
const (
	FieldComponent    = "component"
	FieldRequestID    = "request_id"
	FieldClientIP     = "client_ip"
	FieldMethod       = "method"
	FieldPath         = "path"
	FieldStatusCode   = "status_code"
	FieldDuration     = "duration_ms"
	FieldError        = "error"
	FieldOperation    = "operation"
	FieldAccountID    = "account_id"
	FieldAllocationID = "allocation_id"
	FieldStudentID    = "student_id"
	FieldClassID      = "class_id"
	FieldReceipt      = "receipt"
	FieldReference    = "reference"
	FieldAmountCents  = "amount_cents"
	FieldQueue        = "queue"
	FieldBatchSize    = "batch_size"
)

// Components defines standard component names.
const (
	ComponentApp       = "app"
	ComponentHTTP      = "http"
	ComponentLedger    = "ledger"
	ComponentStorage   = "storage"
	ComponentReports   = "reports"
	ComponentBulk      = "bulk"
	ComponentAMQP      = "amqp"
	ComponentWorker    = "worker"
	ComponentScheduler = "scheduler"
	ComponentRateLimit = "rate_limit"
	ComponentTrace     = "trace"
)

// Operations defines standard operation names.
const (
	OpCreate      = "create"
	OpList        = "list"
	OpPostPayment = "post_payment"
	OpPostTxn     = "post_transaction"
	OpBulkCollect = "bulk_collect"
	OpReport      = "report"
	OpRemind      = "remind"
	OpPublish     = "publish"
	OpConsume     = "consume"
	OpStartup     = "startup"
	OpShutdown    = "shutdown"
)
