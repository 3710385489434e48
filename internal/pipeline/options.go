package pipeline

import (
	"time"

	"github.com/CZERTAINLY/runway/internal/model"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

const (
	ValidateAttempts  = 1
	ExecuteAttempts   = 3
	StructureAttempts = 2
)

var nonRetryable = []string{model.ErrTypeInvalidInput}

// ValidateOptions: validation is deterministic, a retry can't help
var ValidateOptions = workflow.ActivityOptions{
	StartToCloseTimeout: 30 * time.Second,
	RetryPolicy: &temporal.RetryPolicy{
		MaximumAttempts:        ValidateAttempts,
		NonRetryableErrorTypes: nonRetryable,
	},
}

// ExecuteOptions allow hours long processes. A worker which stops
// heartbeating for two minutes is considered lost and the attempt is retried.
var ExecuteOptions = workflow.ActivityOptions{
	StartToCloseTimeout: 4 * time.Hour,
	HeartbeatTimeout:    2 * time.Minute,
	RetryPolicy: &temporal.RetryPolicy{
		MaximumAttempts:        ExecuteAttempts,
		NonRetryableErrorTypes: nonRetryable,
	},
}

var StructureOptions = workflow.ActivityOptions{
	StartToCloseTimeout: 60 * time.Second,
	RetryPolicy: &temporal.RetryPolicy{
		MaximumAttempts:        StructureAttempts,
		NonRetryableErrorTypes: nonRetryable,
	},
}
