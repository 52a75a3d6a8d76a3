package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mmdatafocus/teller_backend/config"
	"github.com/mmdatafocus/teller_backend/models"
	"github.com/mmdatafocus/teller_backend/utils"
)

// ErrApproverRequired is returned when a teller tries an approver-only action.
var ErrApproverRequired = errors.New("approver role required")

// Actor is the authenticated employee performing an operation.
type Actor struct {
	EmployeeId int
	BranchId   int
	Role       models.EmployeeRole
}

// ActorFromContext reads the actor placed in ctx by the session middleware.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	employeeId, ok := utils.GetEmployeeIdFromContext(ctx)
	if !ok || employeeId <= 0 {
		return Actor{}, false
	}
	branchId, _ := utils.GetBranchIdFromContext(ctx)
	role, _ := utils.GetEmployeeRoleFromContext(ctx)
	return Actor{EmployeeId: employeeId, BranchId: branchId, Role: models.EmployeeRole(role)}, true
}

type ConfirmAction string

const (
	ConfirmActionRequestView ConfirmAction = "request-blotter-view"
	ConfirmActionEndBatch    ConfirmAction = "end-batch"
)

// Confirmer gates sensitive actions behind re-authentication.
// It returns models.ErrConfirmationDeclined when the employee does not confirm.
type Confirmer interface {
	Confirm(ctx context.Context, actor Actor, action ConfirmAction, credential string) error
}

// PasswordConfirmer re-checks the employee password.
// REQUIRE_SECURITY_CONFIRMATION=false turns the gate off.
type PasswordConfirmer struct {
	Employees models.Repository[models.Employee]
}

func (c *PasswordConfirmer) Confirm(ctx context.Context, actor Actor, action ConfirmAction, credential string) error {
	if !config.RequireSecurityConfirmation() {
		return nil
	}
	if strings.TrimSpace(credential) == "" {
		return models.ErrConfirmationDeclined
	}
	employee, err := c.Employees.GetById(ctx, actor.EmployeeId)
	if err != nil {
		var nf *models.NotFoundError
		if errors.As(err, &nf) {
			return models.ErrConfirmationDeclined
		}
		return err
	}
	if employee.IsActive != nil && !*employee.IsActive {
		return models.ErrConfirmationDeclined
	}
	if err := utils.ComparePassword(employee.PasswordHash, credential); err != nil {
		return models.ErrConfirmationDeclined
	}
	return nil
}

// Locker serializes work on one key across instances.
type Locker interface {
	Obtain(ctx context.Context, key string, ttl time.Duration) (release func(), err error)
}

type RedisLocker struct{}

func (RedisLocker) Obtain(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	return utils.ObtainLock(ctx, "BatchLock", key, ttl)
}

// SignatureStore persists a signature image and returns its URL. Remove
// deletes a stored signature whose batch change did not commit.
type SignatureStore interface {
	Store(ctx context.Context, actor Actor, kind string, encoded string) (string, error)
	Remove(ctx context.Context, url string) error
}

type GCSSignatureStore struct{}

func (GCSSignatureStore) Store(ctx context.Context, actor Actor, kind string, encoded string) (string, error) {
	raw, err := utils.DecodeSignature(encoded)
	if err != nil {
		return "", models.NewValidationError("signature", err.Error())
	}
	png, err := utils.NormalizeSignature(raw)
	if err != nil {
		return "", models.NewValidationError("signature", err.Error())
	}
	objectName := fmt.Sprintf("signatures/%d/%d/%s-%s.png", actor.BranchId, actor.EmployeeId, kind, uuid.NewString())
	if err := utils.UploadBytesToGCS(ctx, objectName, png, "image/png"); err != nil {
		return "", err
	}
	return utils.BuildObjectAccessURL(objectName), nil
}

func (GCSSignatureStore) Remove(ctx context.Context, url string) error {
	objectName := utils.ExtractObjectKeyFromURL(url)
	if objectName == "" {
		return fmt.Errorf("unrecognised signature url %q", url)
	}
	return utils.DeleteObjectFromGCS(ctx, objectName)
}

// EventPublisher records a realtime event. Called inside the transaction of
// the change it describes.
type EventPublisher interface {
	Publish(ctx context.Context, record *models.BatchEventRecord) error
}

// OutboxPublisher writes events to the outbox table; OutboxDispatcher sends them.
type OutboxPublisher struct {
	Records models.Repository[models.BatchEventRecord]
}

func (p *OutboxPublisher) Publish(ctx context.Context, record *models.BatchEventRecord) error {
	return p.Records.Create(ctx, record)
}
