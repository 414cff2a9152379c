package service

import (
	"context"
	"errors"
	"iter"

	"github.com/sirupsen/logrus"

	"github.com/DaDevFox/task-systems/checkin-core/internal/dispatch"
	"github.com/DaDevFox/task-systems/checkin-core/internal/domain"
	"github.com/DaDevFox/task-systems/checkin-core/internal/events"
	"github.com/DaDevFox/task-systems/checkin-core/internal/qrcode"
	"github.com/DaDevFox/task-systems/checkin-core/internal/scanner"
	"github.com/DaDevFox/task-systems/checkin-core/internal/workflow"
)

// Rejection reasons produced after validation succeeds
const (
	ReasonWrongKind           qrcode.RejectionReason = "wrong_kind"
	ReasonUnreadable          qrcode.RejectionReason = "unreadable"
	ReasonNotAssessor         qrcode.RejectionReason = "not_assessor"
	ReasonAlreadyParticipated qrcode.RejectionReason = "already_participated"
	ReasonInvalidSession      qrcode.RejectionReason = "invalid_session"
	ReasonProcessingFailed    qrcode.RejectionReason = "processing_failed"
)

const processingFailedMessage = "Failed to process scan. Please try again."

// ScanResult is the outcome of one scan as shown to the person scanning
type ScanResult struct {
	Accepted bool                   `json:"accepted"`
	Reason   qrcode.RejectionReason `json:"reason,omitempty"`
	Message  string                 `json:"message"`
	Payload  *domain.Payload        `json:"payload,omitempty"`
	Outcome  *dispatch.Outcome      `json:"outcome,omitempty"`
	Err      error                  `json:"-"`
}

// ScanService validates scanned text, enforces the scan context's kind and
// hands accepted payloads to the matching workflow
type ScanService struct {
	validator  *qrcode.Validator
	dispatcher *dispatch.Dispatcher
	publisher  events.Publisher
	logger     *logrus.Logger
}

// NewScanService creates a new scan service
func NewScanService(validator *qrcode.Validator, dispatcher *dispatch.Dispatcher, publisher events.Publisher, logger *logrus.Logger) *ScanService {
	if logger == nil {
		logger = logrus.New()
	}
	if publisher == nil {
		publisher = events.Discard{}
	}
	if validator == nil {
		validator = qrcode.NewValidator(logger)
	}

	return &ScanService{
		validator:  validator,
		dispatcher: dispatcher,
		publisher:  publisher,
		logger:     logger,
	}
}

// Validate parses raw text and checks it belongs to the expected kind without
// running any workflow
func (s *ScanService) Validate(expected domain.Kind, raw string) (*domain.Payload, *ScanResult) {
	payload, err := s.validator.Validate(raw)
	if err != nil {
		return nil, &ScanResult{Reason: qrcode.Reason(err), Message: qrcode.UserMessage(err), Err: err}
	}

	if err := dispatch.CheckKind(expected, payload); err != nil {
		result := &ScanResult{Reason: ReasonWrongKind, Payload: payload, Err: err}
		var wrong *dispatch.WrongKindError
		if errors.As(err, &wrong) {
			result.Message = wrong.Message()
		} else {
			result.Message = qrcode.UserMessage(err)
		}
		return payload, result
	}

	return payload, nil
}

// Process handles one scanned text. Every failure becomes a rejected result;
// nothing here ends the scan session.
func (s *ScanService) Process(ctx context.Context, session domain.Session, expected domain.Kind, raw string) ScanResult {
	logger := s.logger.WithFields(logrus.Fields{
		"operation": "process_scan",
		"expected":  expected,
		"user_id":   session.UserID,
	})

	payload, rejected := s.Validate(expected, raw)
	if rejected != nil {
		s.rejected(ctx, session, expected, *rejected, logger)
		return *rejected
	}

	outcome, err := s.dispatcher.Dispatch(ctx, session, payload)
	if err != nil {
		result := workflowRejection(err)
		result.Payload = payload
		s.rejected(ctx, session, expected, result, logger)
		return result
	}

	logger.WithFields(logrus.Fields{
		"target_id": payload.TargetID,
		"action":    outcome.Action,
	}).Info("scan accepted")
	s.publisher.Publish(ctx, events.NewEvent(events.EventScanAccepted, session.UserID, map[string]interface{}{
		"kind":      string(payload.Kind),
		"target_id": payload.TargetID,
		"action":    string(outcome.Action),
	}))

	return ScanResult{
		Accepted: true,
		Message:  outcome.Message,
		Payload:  payload,
		Outcome:  outcome,
	}
}

// ResultsOption customises a scan session
type ResultsOption func(*resultsConfig)

type resultsConfig struct {
	stopOnAccept bool
}

// StopOnAccept ends the session after the first accepted scan
func StopOnAccept() ResultsOption {
	return func(c *resultsConfig) {
		c.stopOnAccept = true
	}
}

// Results runs a scan session over src, yielding a result per capture. The
// session stays open across rejections and ends when the source is exhausted,
// fails, or the consumer stops ranging.
func (s *ScanService) Results(ctx context.Context, session domain.Session, expected domain.Kind, src scanner.Source, opts ...ResultsOption) iter.Seq[ScanResult] {
	var cfg resultsConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	return func(yield func(ScanResult) bool) {
		for raw, err := range scanner.All(ctx, src) {
			var result ScanResult
			if err != nil {
				result = ScanResult{
					Reason:  ReasonUnreadable,
					Message: qrcode.UserMessage(err),
					Err:     err,
				}
				if !errors.Is(err, scanner.ErrUnreadable) {
					s.logger.WithError(err).Warn("scan source failed")
				}
			} else {
				result = s.Process(ctx, session, expected, raw)
			}

			if !yield(result) {
				return
			}
			if result.Accepted && cfg.stopOnAccept {
				return
			}
		}
	}
}

func (s *ScanService) rejected(ctx context.Context, session domain.Session, expected domain.Kind, result ScanResult, logger *logrus.Entry) {
	logger.WithFields(logrus.Fields{
		"reason": result.Reason,
	}).WithError(result.Err).Info("scan rejected")

	s.publisher.Publish(ctx, events.NewEvent(events.EventScanRejected, session.UserID, map[string]interface{}{
		"expected": string(expected),
		"reason":   string(result.Reason),
	}))
}

func workflowRejection(err error) ScanResult {
	result := ScanResult{Err: err, Message: workflow.UserMessage(err)}

	switch {
	case errors.Is(err, workflow.ErrNotAssessor):
		result.Reason = ReasonNotAssessor
	case errors.Is(err, workflow.ErrAlreadyParticipated):
		result.Reason = ReasonAlreadyParticipated
	case errors.Is(err, workflow.ErrInvalidSession):
		result.Reason = ReasonInvalidSession
	default:
		result.Reason = ReasonProcessingFailed
		result.Message = processingFailedMessage
	}

	return result
}
