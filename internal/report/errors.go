package report

import "codeberg.org/mutker/iiocapture/internal/errors"

const ErrWrite = errors.ErrorCode("report_write_failed")
