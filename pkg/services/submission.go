package services

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"mint-desk/pkg/config"
	"mint-desk/pkg/models"
	"mint-desk/pkg/reconcile"
	"mint-desk/pkg/store"
	"mint-desk/pkg/utils"
)

var tracer = otel.Tracer("mint-desk/services")

// Receipt describes a stored mint request
type Receipt struct {
	ID      string `json:"id"`
	TokenID string `json:"tokenId"`
}

// MintSubmissionService defines the interface for recording mint requests
type MintSubmissionService interface {
	Submit(ctx context.Context, form models.MintFormData, purchase models.Purchase) (Receipt, error)
	UpdateStatus(ctx context.Context, id string, update models.StatusUpdate) error
}

type mintSubmissionServiceImpl struct {
	collection store.Collection
	config     *config.Config
	validate   *validator.Validate
	log        *zap.Logger
	now        func() time.Time

	// serialises the tokenId scan and the append within this process
	mu sync.Mutex
}

// NewMintSubmissionService creates a new submission service
func NewMintSubmissionService(
	collection store.Collection,
	config *config.Config,
	log *zap.Logger,
	now func() time.Time,
) MintSubmissionService {
	if now == nil {
		now = time.Now
	}
	return &mintSubmissionServiceImpl{
		collection: collection,
		config:     config,
		validate:   NewValidator(),
		log:        log,
		now:        now,
	}
}

// NewValidator returns a validator that reports JSON field names and knows
// the notblank tag.
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	return v
}

// Submit validates the buyer's data, assigns the next tokenId and appends a
// pending mint request.
func (s *mintSubmissionServiceImpl) Submit(ctx context.Context, form models.MintFormData, purchase models.Purchase) (Receipt, error) {
	ctx, span := tracer.Start(ctx, "Submit")
	defer span.End()

	if err := s.validate.Struct(models.MintRequest{MintFormData: form, Purchase: purchase}); err != nil {
		verr := fieldErrors(err)
		span.SetStatus(codes.Error, "validation")
		s.log.Info("Rejected submission", zap.Int("fields", len(verr.Fields)), zap.Error(verr))
		return Receipt{}, verr
	}

	emailHash := utils.EmailFingerprint(form.Email)
	s.log.Info("Processing submission", zap.String("email_hash", emailHash), zap.Int("quantity", purchase.Quantity))

	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.collection.ReadAll(ctx, s.config.CollectionPath)
	if err != nil {
		return Receipt{}, s.fail(span, "scan", emailHash, err)
	}
	tokenID := reconcile.NextTokenID(store.Records(entries))

	record := models.SubmissionRecord{
		FirstName:          strings.TrimSpace(form.FirstName),
		LastName:           strings.TrimSpace(form.LastName),
		Email:              strings.TrimSpace(form.Email),
		PhoneNumber:        strings.TrimSpace(form.PhoneNumber),
		Quantity:           purchase.Quantity,
		ContractAddress:    purchase.ContractAddress,
		ContractType:       purchase.ContractType,
		TokenID:            tokenID,
		Timestamp:          s.now().UTC().Format(time.RFC3339Nano),
		Status:             models.StatusPending,
		DestinationAddress: s.config.DestinationAddress,
	}

	key, err := s.collection.Append(ctx, s.config.CollectionPath, record)
	if err != nil {
		return Receipt{}, s.fail(span, "append", emailHash, err)
	}

	span.SetAttributes(attribute.String("mint.token_id", tokenID))
	s.log.Info("Stored mint request",
		zap.String("key", key),
		zap.String("token_id", tokenID),
		zap.String("email_hash", emailHash))
	return Receipt{ID: key, TokenID: tokenID}, nil
}

func (s *mintSubmissionServiceImpl) fail(span trace.Span, op, emailHash string, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, op)
	s.log.Error("Submission failed", zap.String("op", op), zap.String("email_hash", emailHash), zap.Error(err))
	return &SubmissionFailedError{Op: op, Cause: err}
}

// UpdateStatus records the outcome of the on-chain claim for a stored request.
func (s *mintSubmissionServiceImpl) UpdateStatus(ctx context.Context, id string, update models.StatusUpdate) error {
	ctx, span := tracer.Start(ctx, "UpdateStatus")
	defer span.End()

	fields := map[string]any{
		"status":      update.Status,
		"completedAt": s.now().UTC().Format(time.RFC3339Nano),
	}
	if len(update.TransactionData) > 0 {
		fields["transactionData"] = update.TransactionData
	}

	err := s.collection.Patch(ctx, s.config.CollectionPath, id, fields)
	if errors.Is(err, store.ErrNotFound) {
		return ErrRecordNotFound
	}
	if err != nil {
		span.RecordError(err)
		s.log.Error("Error updating mint request", zap.String("key", id), zap.Error(err))
		return err
	}
	s.log.Info("Updated mint request", zap.String("key", id), zap.String("status", update.Status))
	return nil
}
