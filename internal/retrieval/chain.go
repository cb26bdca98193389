package retrieval

import (
	"context"
	"errors"
	"fmt"
)

// Outcome is the tri-state result of one strategy.
type Outcome int

const (
	// Success means the artifact now exists.
	Success Outcome = iota
	// SoftFailure means the next strategy should be tried.
	SoftFailure
	// HardFailure means no later strategy can succeed.
	HardFailure
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case SoftFailure:
		return "soft-failure"
	case HardFailure:
		return "hard-failure"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Attempt is what a strategy reports.
type Attempt struct {
	Outcome Outcome
	Path    string
	Bytes   int64
	Digest  string
	Note    string
	Err     error
}

// Soft builds a SoftFailure attempt.
func Soft(err error) Attempt {
	return Attempt{Outcome: SoftFailure, Err: err}
}

// Hard builds a HardFailure attempt.
func Hard(err error) Attempt {
	return Attempt{Outcome: HardFailure, Err: err}
}

// Strategy is one independent way of producing an artifact.
type Strategy struct {
	Name string
	Run  func(ctx context.Context) Attempt
}

// RunChain runs strategies in order until one succeeds or fails hard. It
// returns the deciding strategy's name and attempt; when every strategy
// fails softly the errors of all of them are joined.
func RunChain(ctx context.Context, strategies []Strategy) (string, Attempt) {
	var errs []error
	for _, s := range strategies {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			return s.Name, Attempt{Outcome: HardFailure, Err: errors.Join(errs...)}
		}
		attempt := s.Run(ctx)
		switch attempt.Outcome {
		case Success:
			return s.Name, attempt
		case HardFailure:
			errs = append(errs, fmt.Errorf("%s: %w", s.Name, attempt.Err))
			attempt.Err = errors.Join(errs...)
			return s.Name, attempt
		default:
			if attempt.Err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", s.Name, attempt.Err))
			}
		}
	}
	if len(errs) == 0 {
		errs = append(errs, errors.New("no strategy applied"))
	}
	return "", Attempt{Outcome: SoftFailure, Err: errors.Join(errs...)}
}
