package filter

import (
	"fmt"

	"github.com/temirov/ingest/internal/types"
	"github.com/temirov/ingest/internal/utils"
)

const (
	noticeFileCountFormat = "file count limit of %d reached at %s; remaining files were listed without content"
	noticeTotalSizeFormat = "total size limit of %s reached at %s; remaining files were listed without content"
)

// Budget tracks the running file count and byte total of one walk. Once a file
// would exceed either limit, the walk is truncated: that file and every later one
// are refused, so the admitted total never exceeds the limits.
type Budget struct {
	maxFileCount int
	maxTotalSize int64

	admittedFiles int
	admittedBytes int64
	exhaustedBy   types.ExclusionReason
	notice        string
}

// NewBudget starts an empty budget for policy's limits.
func NewBudget(policy Policy) *Budget {
	return &Budget{maxFileCount: policy.MaxFileCount, maxTotalSize: policy.MaxTotalSize}
}

// Admit reserves size bytes for the file at relativePath.
func (budget *Budget) Admit(relativePath string, size int64) Decision {
	if budget.exhaustedBy != types.ReasonNone {
		return Decision{Reason: budget.exhaustedBy}
	}
	if budget.admittedFiles+1 > budget.maxFileCount {
		budget.exhaustedBy = types.ReasonFileCountLimit
		budget.notice = fmt.Sprintf(noticeFileCountFormat, budget.maxFileCount, relativePath)
		return Decision{Reason: budget.exhaustedBy}
	}
	if budget.admittedBytes+size > budget.maxTotalSize {
		budget.exhaustedBy = types.ReasonTotalSizeLimit
		budget.notice = fmt.Sprintf(noticeTotalSizeFormat, utils.FormatFileSize(budget.maxTotalSize), relativePath)
		return Decision{Reason: budget.exhaustedBy}
	}
	budget.admittedFiles++
	budget.admittedBytes += size
	return Decision{Include: true}
}

// AdmittedFiles returns the number of files admitted so far.
func (budget *Budget) AdmittedFiles() int {
	return budget.admittedFiles
}

// AdmittedBytes returns the bytes admitted so far.
func (budget *Budget) AdmittedBytes() int64 {
	return budget.admittedBytes
}

// Truncated reports whether a limit stopped admission.
func (budget *Budget) Truncated() bool {
	return budget.exhaustedBy != types.ReasonNone
}

// Notice describes the truncation, or "" when none happened.
func (budget *Budget) Notice() string {
	return budget.notice
}
