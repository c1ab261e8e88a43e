package billing

// Outcome classifies how an event was handled
type Outcome string

const (
	// OutcomeOK means the account delta (if any) was applied and the activity recorded
	OutcomeOK Outcome = "ok"
	// OutcomeIgnored means no handler is registered for the event type
	OutcomeIgnored Outcome = "ignored"
	// OutcomeSkipped means the event could not be associated with an account
	OutcomeSkipped Outcome = "skipped"
	// OutcomeRetryable means a transient failure; running the handler again may succeed
	OutcomeRetryable Outcome = "retryable"
	// OutcomePermanent means a failure that will not go away on retry
	OutcomePermanent Outcome = "permanent"
	// OutcomeDuplicate means the provider event was already processed or is held by another worker
	OutcomeDuplicate Outcome = "duplicate"
)

// Result is the outcome of one handler invocation. Handlers never return
// errors directly; the processor turns a Result into a ledger state.
type Result struct {
	Outcome      Outcome
	Err          error
	AccountID    *string
	ActivityType string
}

func Ok(accountID *string, activityType string) Result {
	return Result{Outcome: OutcomeOK, AccountID: accountID, ActivityType: activityType}
}

func Ignored() Result {
	return Result{Outcome: OutcomeIgnored}
}

func Skipped(err error) Result {
	return Result{Outcome: OutcomeSkipped, Err: err}
}

func Retryable(err error) Result {
	return Result{Outcome: OutcomeRetryable, Err: err}
}

func Permanent(err error) Result {
	return Result{Outcome: OutcomePermanent, Err: err}
}

// WithActivity attaches the account and activity type that were recorded.
func (r Result) WithActivity(accountID *string, activityType string) Result {
	r.AccountID = accountID
	r.ActivityType = activityType
	return r
}

func Duplicate() Result {
	return Result{Outcome: OutcomeDuplicate}
}

func (r Result) Success() bool {
	return r.Outcome != OutcomeRetryable && r.Outcome != OutcomePermanent
}

func (r Result) IsRetryable() bool {
	return r.Outcome == OutcomeRetryable
}

// Recorded reports whether an activity record was written.
func (r Result) Recorded() bool {
	return r.ActivityType != ""
}

func (r Result) ErrorMsg() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}
